package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "plan.created", "task.failed")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// newBaseEvent creates a baseEvent with the current time.
func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Plan Lifecycle Events
// -----------------------------------------------------------------------------

// PlanCreatedEvent is emitted when a plan is registered with the orchestrator.
type PlanCreatedEvent struct {
	baseEvent
	PlanID    string // Unique identifier for the plan
	TaskCount int    // Number of tasks in the plan
	Strategy  string // Execution strategy name
}

// NewPlanCreatedEvent creates a PlanCreatedEvent.
func NewPlanCreatedEvent(planID string, taskCount int, strategy string) PlanCreatedEvent {
	return PlanCreatedEvent{
		baseEvent: newBaseEvent("plan.created"),
		PlanID:    planID,
		TaskCount: taskCount,
		Strategy:  strategy,
	}
}

// PlanCompletedEvent is emitted when a plan finishes with all tasks settled.
type PlanCompletedEvent struct {
	baseEvent
	PlanID    string        // Plan that completed
	Completed int           // Number of completed tasks
	Failed    int           // Number of failed tasks
	Elapsed   time.Duration // Wall-clock execution time
}

// NewPlanCompletedEvent creates a PlanCompletedEvent.
func NewPlanCompletedEvent(planID string, completed, failed int, elapsed time.Duration) PlanCompletedEvent {
	return PlanCompletedEvent{
		baseEvent: newBaseEvent("plan.completed"),
		PlanID:    planID,
		Completed: completed,
		Failed:    failed,
		Elapsed:   elapsed,
	}
}

// PlanFailedEvent is emitted when a plan cannot run or aborts.
type PlanFailedEvent struct {
	baseEvent
	PlanID string // Plan that failed
	Reason string // Failure description
}

// NewPlanFailedEvent creates a PlanFailedEvent.
func NewPlanFailedEvent(planID, reason string) PlanFailedEvent {
	return PlanFailedEvent{
		baseEvent: newBaseEvent("plan.failed"),
		PlanID:    planID,
		Reason:    reason,
	}
}

// PlanPausedEvent is emitted when a plan's execution is suspended.
type PlanPausedEvent struct {
	baseEvent
	PlanID string
}

// NewPlanPausedEvent creates a PlanPausedEvent.
func NewPlanPausedEvent(planID string) PlanPausedEvent {
	return PlanPausedEvent{
		baseEvent: newBaseEvent("plan.paused"),
		PlanID:    planID,
	}
}

// PlanResumedEvent is emitted when a paused plan resumes execution.
type PlanResumedEvent struct {
	baseEvent
	PlanID string
}

// NewPlanResumedEvent creates a PlanResumedEvent.
func NewPlanResumedEvent(planID string) PlanResumedEvent {
	return PlanResumedEvent{
		baseEvent: newBaseEvent("plan.resumed"),
		PlanID:    planID,
	}
}

// PlanCancelledEvent is emitted when a plan is cancelled by the caller.
type PlanCancelledEvent struct {
	baseEvent
	PlanID string
}

// NewPlanCancelledEvent creates a PlanCancelledEvent.
func NewPlanCancelledEvent(planID string) PlanCancelledEvent {
	return PlanCancelledEvent{
		baseEvent: newBaseEvent("plan.cancelled"),
		PlanID:    planID,
	}
}

// -----------------------------------------------------------------------------
// Task Events
// -----------------------------------------------------------------------------

// TaskCompletedEvent is emitted when a task finishes successfully.
type TaskCompletedEvent struct {
	baseEvent
	PlanID   string        // Plan the task belongs to
	TaskID   string        // Task that completed
	WorkerID string        // Worker that ran it
	Elapsed  time.Duration // Execution time of the final attempt
}

// NewTaskCompletedEvent creates a TaskCompletedEvent.
func NewTaskCompletedEvent(planID, taskID, workerID string, elapsed time.Duration) TaskCompletedEvent {
	return TaskCompletedEvent{
		baseEvent: newBaseEvent("task.completed"),
		PlanID:    planID,
		TaskID:    taskID,
		WorkerID:  workerID,
		Elapsed:   elapsed,
	}
}

// TaskFailedEvent is emitted when a task fails after exhausting retries.
type TaskFailedEvent struct {
	baseEvent
	PlanID   string // Plan the task belongs to
	TaskID   string // Task that failed
	Attempts int    // Number of attempts made
	Error    string // Failure message
}

// NewTaskFailedEvent creates a TaskFailedEvent.
func NewTaskFailedEvent(planID, taskID string, attempts int, errMsg string) TaskFailedEvent {
	return TaskFailedEvent{
		baseEvent: newBaseEvent("task.failed"),
		PlanID:    planID,
		TaskID:    taskID,
		Attempts:  attempts,
		Error:     errMsg,
	}
}

// TaskSkippedEvent is emitted when a task is skipped because a dependency
// failed.
type TaskSkippedEvent struct {
	baseEvent
	PlanID   string // Plan the task belongs to
	TaskID   string // Task that was skipped
	FailedOn string // Dependency whose failure caused the skip
}

// NewTaskSkippedEvent creates a TaskSkippedEvent.
func NewTaskSkippedEvent(planID, taskID, failedOn string) TaskSkippedEvent {
	return TaskSkippedEvent{
		baseEvent: newBaseEvent("task.skipped"),
		PlanID:    planID,
		TaskID:    taskID,
		FailedOn:  failedOn,
	}
}

// PhaseCompletedEvent is emitted when every task in a phase has settled.
type PhaseCompletedEvent struct {
	baseEvent
	PlanID    string   // Plan being executed
	Phase     int      // Zero-based phase index
	Succeeded []string // Task IDs that completed
	Failed    []string // Task IDs that failed
}

// NewPhaseCompletedEvent creates a PhaseCompletedEvent.
func NewPhaseCompletedEvent(planID string, phase int, succeeded, failed []string) PhaseCompletedEvent {
	return PhaseCompletedEvent{
		baseEvent: newBaseEvent("phase.completed"),
		PlanID:    planID,
		Phase:     phase,
		Succeeded: succeeded,
		Failed:    failed,
	}
}

// -----------------------------------------------------------------------------
// Resource Events
// -----------------------------------------------------------------------------

// ResourceWarningEvent is emitted when a pool's utilization crosses its
// warning threshold or a waiting queue begins to back up.
type ResourceWarningEvent struct {
	baseEvent
	Pool        string  // Pool type (cpu, memory, ...)
	Utilization float64 // Fraction of capacity in use, 0..1
	Waiting     int     // Requests currently queued
}

// NewResourceWarningEvent creates a ResourceWarningEvent.
func NewResourceWarningEvent(pool string, utilization float64, waiting int) ResourceWarningEvent {
	return ResourceWarningEvent{
		baseEvent:   newBaseEvent("resource.warning"),
		Pool:        pool,
		Utilization: utilization,
		Waiting:     waiting,
	}
}

// -----------------------------------------------------------------------------
// Worker Events
// -----------------------------------------------------------------------------

// WorkerStartedEvent is emitted when a worker reaches the ready state.
type WorkerStartedEvent struct {
	baseEvent
	WorkerID string
	Type     string
}

// NewWorkerStartedEvent creates a WorkerStartedEvent.
func NewWorkerStartedEvent(workerID, workerType string) WorkerStartedEvent {
	return WorkerStartedEvent{
		baseEvent: newBaseEvent("worker.started"),
		WorkerID:  workerID,
		Type:      workerType,
	}
}

// WorkerStoppedEvent is emitted when a worker stops.
type WorkerStoppedEvent struct {
	baseEvent
	WorkerID string
	Reason   string // "stopped", "scaled_down", "crashed"
}

// NewWorkerStoppedEvent creates a WorkerStoppedEvent.
func NewWorkerStoppedEvent(workerID, reason string) WorkerStoppedEvent {
	return WorkerStoppedEvent{
		baseEvent: newBaseEvent("worker.stopped"),
		WorkerID:  workerID,
		Reason:    reason,
	}
}

// WorkerRestartedEvent is emitted when an unhealthy worker is restarted.
type WorkerRestartedEvent struct {
	baseEvent
	WorkerID string
	Attempt  int     // Restart attempt number
	Health   float64 // Health score that triggered the restart
}

// NewWorkerRestartedEvent creates a WorkerRestartedEvent.
func NewWorkerRestartedEvent(workerID string, attempt int, health float64) WorkerRestartedEvent {
	return WorkerRestartedEvent{
		baseEvent: newBaseEvent("worker.restarted"),
		WorkerID:  workerID,
		Attempt:   attempt,
		Health:    health,
	}
}

// WorkerCrashedEvent is emitted when a worker exceeds its restart budget
// and is removed from the pool.
type WorkerCrashedEvent struct {
	baseEvent
	WorkerID string
	Restarts int // Restart attempts made before giving up
}

// NewWorkerCrashedEvent creates a WorkerCrashedEvent.
func NewWorkerCrashedEvent(workerID string, restarts int) WorkerCrashedEvent {
	return WorkerCrashedEvent{
		baseEvent: newBaseEvent("worker.crashed"),
		WorkerID:  workerID,
		Restarts:  restarts,
	}
}

// -----------------------------------------------------------------------------
// Tuning Events
// -----------------------------------------------------------------------------

// TuningPerformedEvent is emitted when adaptive tuning adjusts a plan's
// effective concurrency or the worker pool size.
type TuningPerformedEvent struct {
	baseEvent
	PlanID         string // Plan being tuned ("" for pool-wide adjustments)
	OldConcurrency int    // Previous effective concurrency
	NewConcurrency int    // New effective concurrency
	Reason         string // Human-readable rationale
}

// NewTuningPerformedEvent creates a TuningPerformedEvent.
func NewTuningPerformedEvent(planID string, oldConcurrency, newConcurrency int, reason string) TuningPerformedEvent {
	return TuningPerformedEvent{
		baseEvent:      newBaseEvent("tuning.performed"),
		PlanID:         planID,
		OldConcurrency: oldConcurrency,
		NewConcurrency: newConcurrency,
		Reason:         reason,
	}
}

// LoadChangedEvent reports a snapshot of engine load. The orchestrator
// publishes one at every phase boundary; the scaling monitor evaluates
// its policy against it.
type LoadChangedEvent struct {
	baseEvent
	PlanID    string // Plan whose progress changed ("" for pool-wide)
	Pending   int    // Tasks not yet started
	Running   int    // Tasks currently executing
	Completed int    // Tasks finished successfully
	Failed    int    // Tasks that failed or were skipped
	Workers   int    // Workers currently in the pool
}

// NewLoadChangedEvent creates a LoadChangedEvent.
func NewLoadChangedEvent(planID string, pending, running, completed, failed, workers int) LoadChangedEvent {
	return LoadChangedEvent{
		baseEvent: newBaseEvent("load.changed"),
		PlanID:    planID,
		Pending:   pending,
		Running:   running,
		Completed: completed,
		Failed:    failed,
		Workers:   workers,
	}
}

// ScalingDecisionEvent records a non-none scaling decision.
type ScalingDecisionEvent struct {
	baseEvent
	Action  string // "scale_up" or "scale_down"
	Delta   int    // Workers to add (positive) or remove (negative)
	Reason  string // Human-readable rationale
	Workers int    // Pool size at decision time
}

// NewScalingDecisionEvent creates a ScalingDecisionEvent.
func NewScalingDecisionEvent(action string, delta int, reason string, workers int) ScalingDecisionEvent {
	return ScalingDecisionEvent{
		baseEvent: newBaseEvent("scaling.decision"),
		Action:    action,
		Delta:     delta,
		Reason:    reason,
		Workers:   workers,
	}
}
