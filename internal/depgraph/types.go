package depgraph

import "time"

// Node carries the per-task scheduling attributes computed during analysis.
type Node struct {
	// TaskID identifies the task this node represents.
	TaskID string

	// Duration is the task's estimated duration used for path computation.
	Duration time.Duration

	// DependsOn lists the effective dependencies (explicit plus inferred).
	DependsOn []string

	// Dependents lists tasks that depend on this one.
	Dependents []string

	// EarliestStart is the soonest this task can begin given its
	// dependency chain.
	EarliestStart time.Duration

	// LatestStart is the latest this task can begin without extending the
	// plan's total duration.
	LatestStart time.Duration

	// Slack is LatestStart - EarliestStart. Zero means the task is on the
	// critical path.
	Slack time.Duration

	// OnCriticalPath is true when Slack is zero.
	OnCriticalPath bool

	// Phase is the zero-based phase index this task was assigned to.
	Phase int
}

// Analysis is the complete output of dependency analysis for one task set.
type Analysis struct {
	// Nodes maps task IDs to their computed scheduling attributes.
	Nodes map[string]*Node

	// Order is a topological ordering of all task IDs.
	Order []string

	// CriticalPath lists the zero-slack task IDs in topological order.
	CriticalPath []string

	// Phases groups task IDs into ordered phases. Every task's
	// dependencies lie in strictly earlier phases; tasks within a phase
	// have no dependency edges among them.
	Phases [][]string

	// TotalDuration is the length of the critical path: the minimum
	// wall-clock time the plan needs with unlimited parallelism.
	TotalDuration time.Duration

	// InferredEdges maps task IDs to dependencies added by input/output
	// inference. Empty unless inference is enabled.
	InferredEdges map[string][]string
}

// MaxPhaseParallelism returns the size of the largest phase: the most tasks
// that can ever run concurrently under dependency constraints alone.
func (a *Analysis) MaxPhaseParallelism() int {
	max := 0
	for _, phase := range a.Phases {
		if len(phase) > max {
			max = len(phase)
		}
	}
	return max
}

// PhaseOf returns the phase index for a task ID, or -1 if unknown.
func (a *Analysis) PhaseOf(taskID string) int {
	if n, ok := a.Nodes[taskID]; ok {
		return n.Phase
	}
	return -1
}
