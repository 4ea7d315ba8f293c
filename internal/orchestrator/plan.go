package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/taihochan/superclaude-code-pm-sub001/internal/depgraph"
	"github.com/taihochan/superclaude-code-pm-sub001/internal/resource"
	"github.com/taihochan/superclaude-code-pm-sub001/internal/task"
)

// PlanStatus tracks a plan through its lifecycle.
type PlanStatus string

const (
	// PlanIdle means the plan is created but not yet executed.
	PlanIdle PlanStatus = "idle"

	// PlanPlanning means dependency analysis and resource allocation are
	// in progress.
	PlanPlanning PlanStatus = "planning"

	// PlanExecuting means phased execution is under way.
	PlanExecuting PlanStatus = "executing"

	// PlanPaused means execution is suspended and can be resumed.
	PlanPaused PlanStatus = "paused"

	// PlanCompleted means every task reached a terminal state and none
	// failed.
	PlanCompleted PlanStatus = "completed"

	// PlanFailed means execution finished with failures or could not run.
	PlanFailed PlanStatus = "failed"

	// PlanCancelled means the plan was cancelled before completion.
	PlanCancelled PlanStatus = "cancelled"
)

// String returns the string representation of the status.
func (s PlanStatus) String() string {
	return string(s)
}

// IsTerminal reports whether the plan has finished for good.
func (s PlanStatus) IsTerminal() bool {
	switch s {
	case PlanCompleted, PlanFailed, PlanCancelled:
		return true
	default:
		return false
	}
}

// Progress counts a plan's tasks by disposition.
type Progress struct {
	Total     int `json:"total"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Settled returns how many tasks have reached a terminal state.
func (p Progress) Settled() int {
	return p.Completed + p.Failed + p.Skipped
}

// Pending returns how many tasks have not started yet.
func (p Progress) Pending() int {
	n := p.Total - p.Settled() - p.Running
	if n < 0 {
		n = 0
	}
	return n
}

// Plan is one submitted task set plus its execution policy and all state
// the pipeline accumulates while driving it. It is mutated only by the
// orchestration control flow for the plan; status queries take copies.
type Plan struct {
	ID        string
	Tasks     []*task.Task
	Policy    task.Policy
	CreatedAt time.Time

	mu          sync.Mutex
	status      PlanStatus
	analysis    *depgraph.Analysis
	allocation  *resource.GlobalAllocation
	assignments map[string]string // task ID -> worker ID
	results     map[string]*task.Result
	progress    Progress
	concurrency int
	startedAt   time.Time
	finishedAt  time.Time
	cancel      context.CancelFunc
	pauseGate   chan struct{} // non-nil while paused; closed on resume
}

func newPlan(id string, tasks []*task.Task, policy task.Policy) *Plan {
	return &Plan{
		ID:          id,
		Tasks:       tasks,
		Policy:      policy,
		CreatedAt:   time.Now(),
		status:      PlanIdle,
		assignments: make(map[string]string),
		results:     make(map[string]*task.Result),
		progress:    Progress{Total: len(tasks)},
		concurrency: policy.EffectiveConcurrency(),
	}
}

// Status returns the plan's current status.
func (p *Plan) Status() PlanStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Progress returns a copy of the plan's progress counters.
func (p *Plan) Progress() Progress {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progress
}

// Concurrency returns the plan's effective concurrency limit. Adaptive
// plans may see this change between phases.
func (p *Plan) Concurrency() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.concurrency
}

// Results returns a copy of the per-task results recorded so far.
func (p *Plan) Results() map[string]*task.Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]*task.Result, len(p.results))
	for id, r := range p.results {
		out[id] = r
	}
	return out
}

// WorkerFor returns the worker a task was assigned to, if any.
func (p *Plan) WorkerFor(taskID string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id, ok := p.assignments[taskID]
	return id, ok
}

// taskByID returns the plan's task with the given ID, or nil. Tasks are
// immutable after creation so no lock is needed.
func (p *Plan) taskByID(id string) *task.Task {
	for _, t := range p.Tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// taskStarted moves a task into the running count.
func (p *Plan) taskStarted(taskID, workerID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.progress.Running++
	if workerID != "" {
		p.assignments[taskID] = workerID
	}
}

// taskSettled records a terminal result and updates the counters.
func (p *Plan) taskSettled(res *task.Result, wasRunning bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results[res.TaskID] = res
	if wasRunning && p.progress.Running > 0 {
		p.progress.Running--
	}
	if res.WorkerID != "" {
		p.assignments[res.TaskID] = res.WorkerID
	}
	switch res.Status {
	case task.StatusCompleted:
		p.progress.Completed++
	case task.StatusSkipped:
		p.progress.Skipped++
	default:
		p.progress.Failed++
	}
}

// waitIfPaused blocks while the plan is paused. It returns the context
// error if the plan is cancelled while waiting.
func (p *Plan) waitIfPaused(ctx context.Context) error {
	for {
		p.mu.Lock()
		gate := p.pauseGate
		p.mu.Unlock()
		if gate == nil {
			return ctx.Err()
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// PlanSummary is a read-only snapshot of a plan for status queries.
type PlanSummary struct {
	PlanID       string        `json:"plan_id"`
	Status       PlanStatus    `json:"status"`
	Progress     Progress      `json:"progress"`
	Concurrency  int           `json:"concurrency"`
	Phases       int           `json:"phases"`
	CriticalPath []string      `json:"critical_path,omitempty"`
	Elapsed      time.Duration `json:"elapsed"`
}

// summary builds a snapshot under the plan lock.
func (p *Plan) summary() PlanSummary {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := PlanSummary{
		PlanID:      p.ID,
		Status:      p.status,
		Progress:    p.progress,
		Concurrency: p.concurrency,
	}
	if p.analysis != nil {
		s.Phases = len(p.analysis.Phases)
		s.CriticalPath = append([]string(nil), p.analysis.CriticalPath...)
	}
	switch {
	case p.startedAt.IsZero():
	case p.finishedAt.IsZero():
		s.Elapsed = time.Since(p.startedAt)
	default:
		s.Elapsed = p.finishedAt.Sub(p.startedAt)
	}
	return s
}

// Metrics summarizes a finished execution.
type Metrics struct {
	// Elapsed is the wall-clock execution time.
	Elapsed time.Duration `json:"elapsed"`

	// Throughput is completed tasks per second.
	Throughput float64 `json:"throughput"`

	// Phases is how many dependency phases the plan had.
	Phases int `json:"phases"`

	// CriticalPath lists the task IDs on the longest dependency chain.
	CriticalPath []string `json:"critical_path,omitempty"`

	// EstimatedDuration is the critical path length by declared task
	// durations, the lower bound on wall-clock time.
	EstimatedDuration time.Duration `json:"estimated_duration"`
}

// ExecutionResult is what ExecutePlan returns. Success distinguishes a
// fully clean run from one with failures; Results is populated either
// way so callers can tell partial success from total failure.
type ExecutionResult struct {
	PlanID   string                  `json:"plan_id"`
	Success  bool                    `json:"success"`
	Status   PlanStatus              `json:"status"`
	Results  map[string]*task.Result `json:"results"`
	Progress Progress                `json:"progress"`
	Metrics  Metrics                 `json:"metrics"`
}
