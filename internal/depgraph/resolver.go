package depgraph

import (
	"sort"
	"time"

	"github.com/taihochan/superclaude-code-pm-sub001/internal/errors"
	"github.com/taihochan/superclaude-code-pm-sub001/internal/task"
)

// Option configures a Resolver.
type Option func(*Resolver)

// WithInference enables dependency inference from input/output artifact
// keys. Inferred edges are added on top of explicit dependencies and never
// replace them.
func WithInference() Option {
	return func(r *Resolver) { r.infer = true }
}

// Resolver analyzes task sets into executable dependency graphs.
// A Resolver is stateless between calls and safe for concurrent use.
type Resolver struct {
	infer bool
}

// NewResolver creates a Resolver with the given options.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Analyze validates the task set, builds the dependency graph, and computes
// topological order, critical path, and phase decomposition.
//
// It fails with *errors.ValidationError on duplicate or unknown task IDs and
// with *errors.CycleError when the graph is not acyclic. A cycle is never
// silently repaired.
func (r *Resolver) Analyze(tasks []task.Task) (*Analysis, error) {
	if len(tasks) == 0 {
		return nil, errors.NewValidationError("task set is empty")
	}

	nodes := make(map[string]*Node, len(tasks))
	for i := range tasks {
		t := &tasks[i]
		if t.ID == "" {
			return nil, errors.NewValidationError("task ID cannot be empty").WithField("id")
		}
		if _, exists := nodes[t.ID]; exists {
			return nil, errors.NewValidationError("duplicate task id").
				WithField("id").WithValue(t.ID)
		}
		nodes[t.ID] = &Node{
			TaskID:   t.ID,
			Duration: t.EstimatedDuration,
		}
	}

	// Effective dependency sets: explicit declarations first.
	deps := make(map[string]map[string]bool, len(tasks))
	for i := range tasks {
		t := &tasks[i]
		set := make(map[string]bool, len(t.DependsOn))
		for _, depID := range t.DependsOn {
			if _, ok := nodes[depID]; !ok {
				return nil, errors.NewValidationError("task depends on unknown task").
					WithField("depends_on").WithValue(depID)
			}
			if depID == t.ID {
				return nil, errors.NewCycleError([]string{t.ID})
			}
			set[depID] = true
		}
		deps[t.ID] = set
	}

	// Layer inferred edges on top of explicit ones.
	var inferred map[string][]string
	if r.infer {
		inferred = inferDependencies(tasks, deps)
	}

	for id, set := range deps {
		node := nodes[id]
		node.DependsOn = sortedKeys(set)
		for depID := range set {
			nodes[depID].Dependents = append(nodes[depID].Dependents, id)
		}
	}
	for _, node := range nodes {
		sort.Strings(node.Dependents)
	}

	order, err := topologicalOrder(nodes, deps)
	if err != nil {
		return nil, err
	}

	analysis := &Analysis{
		Nodes:         nodes,
		Order:         order,
		InferredEdges: inferred,
	}

	computeCriticalPath(analysis)
	assignPhases(analysis)

	return analysis, nil
}

// topologicalOrder runs Kahn's algorithm over the graph. Nodes left with
// non-zero in-degree after the sort terminates are part of a cycle and are
// reported in the returned CycleError.
func topologicalOrder(nodes map[string]*Node, deps map[string]map[string]bool) ([]string, error) {
	inDegree := make(map[string]int, len(nodes))
	for id := range nodes {
		inDegree[id] = len(deps[id])
	}

	var queue []string
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	order := make([]string, 0, len(nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)

		var freed []string
		for _, depID := range nodes[id].Dependents {
			inDegree[depID]--
			if inDegree[depID] == 0 {
				freed = append(freed, depID)
			}
		}
		// Deterministic order keeps phases and reports stable.
		sort.Strings(freed)
		queue = append(queue, freed...)
	}

	if len(order) != len(nodes) {
		var cycle []string
		for id, deg := range inDegree {
			if deg > 0 {
				cycle = append(cycle, id)
			}
		}
		sort.Strings(cycle)
		return nil, errors.NewCycleError(cycle)
	}
	return order, nil
}

// computeCriticalPath runs the two-pass critical-path method. The forward
// pass computes earliest starts from dependency chains; the backward pass
// computes latest starts from the plan's total duration. Zero-slack nodes
// form the critical path.
func computeCriticalPath(a *Analysis) {
	// Forward pass in topological order.
	var total time.Duration
	for _, id := range a.Order {
		node := a.Nodes[id]
		var earliest time.Duration
		for _, depID := range node.DependsOn {
			dep := a.Nodes[depID]
			if end := dep.EarliestStart + dep.Duration; end > earliest {
				earliest = end
			}
		}
		node.EarliestStart = earliest
		if end := earliest + node.Duration; end > total {
			total = end
		}
	}
	a.TotalDuration = total

	// Backward pass in reverse topological order.
	for i := len(a.Order) - 1; i >= 0; i-- {
		node := a.Nodes[a.Order[i]]
		latestFinish := total
		for _, depID := range node.Dependents {
			if ls := a.Nodes[depID].LatestStart; ls < latestFinish {
				latestFinish = ls
			}
		}
		node.LatestStart = latestFinish - node.Duration
		node.Slack = node.LatestStart - node.EarliestStart
		node.OnCriticalPath = node.Slack == 0
	}

	for _, id := range a.Order {
		if a.Nodes[id].OnCriticalPath {
			a.CriticalPath = append(a.CriticalPath, id)
		}
	}
}

// assignPhases places each task in the earliest phase strictly after all of
// its dependencies. Phase 0 holds tasks with no dependencies. This yields
// the maximum safe parallelism per phase.
func assignPhases(a *Analysis) {
	for _, id := range a.Order {
		node := a.Nodes[id]
		phase := 0
		for _, depID := range node.DependsOn {
			if p := a.Nodes[depID].Phase + 1; p > phase {
				phase = p
			}
		}
		node.Phase = phase
		for len(a.Phases) <= phase {
			a.Phases = append(a.Phases, nil)
		}
		a.Phases[phase] = append(a.Phases[phase], id)
	}
}

// sortedKeys returns the keys of a string set in sorted order.
func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
