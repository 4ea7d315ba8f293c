// Package task defines the core data types shared across the execution
// engine: tasks, execution policies, retry behavior, and task results.
//
// These are pure data types with no behavior beyond validation and basic
// accessors. They are consumed by the depgraph, resource, worker, and
// orchestrator packages.
package task

import (
	"time"
)

// -----------------------------------------------------------------------------
// Resource Types
// -----------------------------------------------------------------------------

// ResourceType identifies a typed resource pool.
type ResourceType string

const (
	// ResourceCPU is compute capacity, measured in abstract CPU units.
	ResourceCPU ResourceType = "cpu"

	// ResourceMemory is memory capacity, measured in megabytes.
	ResourceMemory ResourceType = "memory"

	// ResourceNetwork is network bandwidth capacity.
	ResourceNetwork ResourceType = "network"

	// ResourceStorage is disk/storage capacity.
	ResourceStorage ResourceType = "storage"

	// ResourceHandles is file/socket handle capacity.
	ResourceHandles ResourceType = "handles"

	// ResourceThreads is thread-slot capacity for concurrent work.
	ResourceThreads ResourceType = "threads"
)

// String returns the string representation of the resource type.
func (r ResourceType) String() string {
	return string(r)
}

// IsValid returns true if this is a recognized resource type.
func (r ResourceType) IsValid() bool {
	switch r {
	case ResourceCPU, ResourceMemory, ResourceNetwork,
		ResourceStorage, ResourceHandles, ResourceThreads:
		return true
	default:
		return false
	}
}

// AllocationOrder is the fixed order in which multi-pool allocations acquire
// resources. Acquiring in a single global order prevents priority-inversion
// deadlock between concurrent multi-pool callers.
var AllocationOrder = []ResourceType{
	ResourceMemory,
	ResourceCPU,
	ResourceThreads,
	ResourceHandles,
	ResourceNetwork,
	ResourceStorage,
}

// -----------------------------------------------------------------------------
// Task
// -----------------------------------------------------------------------------

// Task is a single unit of work submitted to the engine. Tasks are immutable
// once submitted to a plan; the engine tracks execution state separately.
//
// Task dependencies form a directed acyclic graph that determines execution
// order. Tasks with no dependency edges between them can run in parallel.
type Task struct {
	// ID uniquely identifies this task within a plan.
	ID string `json:"id" yaml:"id"`

	// Type is a caller-defined task category. Workers with a matching type
	// receive a selection bonus under the weighted balancing policy.
	Type string `json:"type" yaml:"type"`

	// DependsOn lists task IDs that must complete before this task starts.
	DependsOn []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`

	// Inputs lists artifact keys this task consumes. Used only by optional
	// dependency inference; never required.
	Inputs []string `json:"inputs,omitempty" yaml:"inputs,omitempty"`

	// Outputs lists artifact keys this task produces.
	Outputs []string `json:"outputs,omitempty" yaml:"outputs,omitempty"`

	// EstimatedDuration is the expected runtime, used for critical-path
	// analysis. Zero is treated as unknown and contributes no path length.
	EstimatedDuration time.Duration `json:"estimated_duration" yaml:"estimated_duration"`

	// Resources maps resource types to the amount this task requires while
	// running. Empty means the task needs no reserved capacity.
	Resources map[ResourceType]int64 `json:"resources,omitempty" yaml:"resources,omitempty"`

	// Priority orders tasks competing for the same worker or resource slot.
	// Higher values are served first. Default is 0.
	Priority int `json:"priority" yaml:"priority"`
}

// HasDependencies returns true if this task depends on other tasks.
func (t *Task) HasDependencies() bool {
	return len(t.DependsOn) > 0
}

// -----------------------------------------------------------------------------
// Task Status
// -----------------------------------------------------------------------------

// Status represents the execution state of a task within a plan.
type Status string

const (
	// StatusPending indicates the task has not been dispatched yet.
	StatusPending Status = "pending"

	// StatusRunning indicates the task is executing on a worker.
	StatusRunning Status = "running"

	// StatusCompleted indicates the task finished successfully.
	StatusCompleted Status = "completed"

	// StatusFailed indicates the task failed and exhausted all retries.
	StatusFailed Status = "failed"

	// StatusSkipped indicates the task was never dispatched because one of
	// its dependencies failed.
	StatusSkipped Status = "skipped"

	// StatusCancelled indicates the task was aborted by plan cancellation.
	StatusCancelled Status = "cancelled"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true if this status represents a final state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusSkipped, StatusCancelled:
		return true
	default:
		return false
	}
}

// -----------------------------------------------------------------------------
// Result
// -----------------------------------------------------------------------------

// Result records the outcome of one task's execution within a plan.
type Result struct {
	// TaskID is the task this result belongs to.
	TaskID string `json:"task_id"`

	// Status is the terminal status the task reached.
	Status Status `json:"status"`

	// WorkerID is the worker that ran the final attempt, if any.
	WorkerID string `json:"worker_id,omitempty"`

	// Output is the value returned by the task's executor.
	Output any `json:"output,omitempty"`

	// Error holds the failure message when Status is failed.
	Error string `json:"error,omitempty"`

	// Attempts is the number of execution attempts made.
	Attempts int `json:"attempts"`

	// StartedAt is when the first attempt was dispatched.
	StartedAt time.Time `json:"started_at,omitempty"`

	// FinishedAt is when the task reached its terminal state.
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// Duration returns the wall-clock time from dispatch to terminal state.
func (r *Result) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
