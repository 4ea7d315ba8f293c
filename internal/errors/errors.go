// Package errors provides centralized error definitions and error handling
// utilities for the execution engine. It defines domain-specific errors,
// semantic error types, error constructors with context wrapping, and error
// classification helpers.
//
// # Error Types
//
// The package provides two categories of errors:
//
// Domain-specific errors represent errors from specific subsystems:
//   - CycleError: a dependency cycle was detected during graph analysis
//   - ResourceError: a resource pool could not satisfy a request
//   - WorkerError: errors related to worker lifecycle and dispatch
//   - TaskError: a task execution failed
//   - PlanStateError: an operation is invalid for the plan's current status
//
// Semantic errors represent common error conditions:
//   - NotFoundError: resource not found
//   - ValidationError: invalid input or state
//   - TimeoutError: operation timed out
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewCycleError([]string{"task-a", "task-b"})
//	err := errors.NewResourceError("allocate failed", errors.ErrInsufficientResources).
//	    WithPool("memory").WithRequested(512)
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrDependencyCycle) { ... }
//
//	var resErr *errors.ResourceError
//	if errors.As(err, &resErr) { ... }
//
//	if errors.IsRetryable(err) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Graph-related sentinel errors
var (
	// ErrDependencyCycle indicates a circular dependency between tasks.
	ErrDependencyCycle = New("dependency cycle detected")
	// ErrUnknownDependency indicates a task depends on an ID not in the set.
	ErrUnknownDependency = New("unknown dependency")
	// ErrDuplicateTask indicates two tasks in a set share an ID.
	ErrDuplicateTask = New("duplicate task id")
)

// Resource-related sentinel errors
var (
	// ErrInsufficientResources indicates a pool cannot satisfy a request.
	ErrInsufficientResources = New("insufficient resources")
	// ErrAllocationNotFound indicates an allocation ID is unknown to the pool.
	ErrAllocationNotFound = New("allocation not found")
	// ErrReservationNotFound indicates a reservation ID is unknown to the pool.
	ErrReservationNotFound = New("reservation not found")
	// ErrCapacityShrink indicates a capacity adjustment below committed usage.
	ErrCapacityShrink = New("capacity below allocated and reserved")
	// ErrAllocationTimeout indicates a queued allocation request timed out.
	ErrAllocationTimeout = New("allocation request timed out")
)

// Worker-related sentinel errors
var (
	// ErrWorkerUnavailable indicates no eligible worker could accept a task.
	ErrWorkerUnavailable = New("no worker available")
	// ErrWorkerNotFound indicates a worker ID is unknown to the manager.
	ErrWorkerNotFound = New("worker not found")
	// ErrWorkerCrashed indicates a worker exceeded its restart attempts.
	ErrWorkerCrashed = New("worker crashed")
	// ErrQueueFull indicates a worker's task queue is at capacity.
	ErrQueueFull = New("worker queue full")
	// ErrInvalidTransition indicates an illegal worker state transition.
	ErrInvalidTransition = New("invalid state transition")
)

// Plan-related sentinel errors
var (
	// ErrPlanNotFound indicates a plan ID is unknown to the orchestrator.
	ErrPlanNotFound = New("plan not found")
	// ErrTaskFailed indicates a task execution failed.
	ErrTaskFailed = New("task failed")
	// ErrTaskNotFound indicates a task ID is unknown within a plan.
	ErrTaskNotFound = New("task not found")
	// ErrPlanAborted indicates execution stopped before all phases ran.
	ErrPlanAborted = New("plan aborted")
)

// General sentinel errors
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// EngineError is the base interface for all engine errors. It extends the
// standard error interface with methods for classification.
type EngineError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool
}

// baseError provides common functionality for all error types.
type baseError struct {
	message   string
	cause     error
	severity  Severity
	retryable bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// CycleError reports a dependency cycle found during graph analysis.
// Tasks holds at least one task ID involved in the cycle.
//
// Example:
//
//	err := errors.NewCycleError([]string{"build", "test"})
//	fmt.Println(err) // "cycle error [tasks=build,test]: dependency cycle detected"
type CycleError struct {
	baseError
	Tasks []string
}

// NewCycleError creates a CycleError naming the tasks involved in the cycle.
func NewCycleError(tasks []string) *CycleError {
	return &CycleError{
		baseError: baseError{
			message:   "dependency cycle detected",
			cause:     ErrDependencyCycle,
			severity:  SeverityError,
			retryable: false,
		},
		Tasks: tasks,
	}
}

// Error returns the formatted error message.
func (e *CycleError) Error() string {
	if len(e.Tasks) == 0 {
		return "cycle error: " + e.message
	}
	return fmt.Sprintf("cycle error [tasks=%s]: %s", strings.Join(e.Tasks, ","), e.message)
}

// Is checks if this error matches the target.
func (e *CycleError) Is(target error) bool {
	if _, ok := target.(*CycleError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ResourceError represents errors from resource pools and allocation.
//
// Example:
//
//	err := errors.NewResourceError("allocate failed", errors.ErrInsufficientResources).
//	    WithPool("memory").WithRequested(512).WithAvailable(128)
type ResourceError struct {
	baseError
	Pool      string
	Requested int64
	Available int64
}

// NewResourceError creates a new ResourceError.
func NewResourceError(message string, cause error) *ResourceError {
	return &ResourceError{
		baseError: baseError{
			message:   message,
			cause:     cause,
			severity:  SeverityError,
			retryable: false,
		},
		Requested: -1,
		Available: -1,
	}
}

// WithPool adds the pool type to the error context.
func (e *ResourceError) WithPool(pool string) *ResourceError {
	e.Pool = pool
	return e
}

// WithRequested adds the requested amount to the error context.
func (e *ResourceError) WithRequested(n int64) *ResourceError {
	e.Requested = n
	return e
}

// WithAvailable adds the available amount to the error context.
func (e *ResourceError) WithAvailable(n int64) *ResourceError {
	e.Available = n
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *ResourceError) WithRetryable(r bool) *ResourceError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *ResourceError) Error() string {
	var parts []string
	if e.Pool != "" {
		parts = append(parts, fmt.Sprintf("pool=%s", e.Pool))
	}
	if e.Requested >= 0 {
		parts = append(parts, fmt.Sprintf("requested=%d", e.Requested))
	}
	if e.Available >= 0 {
		parts = append(parts, fmt.Sprintf("available=%d", e.Available))
	}

	prefix := "resource error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("resource error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ResourceError) Is(target error) bool {
	if _, ok := target.(*ResourceError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// WorkerError represents errors from worker lifecycle and task dispatch.
//
// Example:
//
//	err := errors.NewWorkerError("dispatch failed", errors.ErrQueueFull).
//	    WithWorkerID("worker-3")
type WorkerError struct {
	baseError
	WorkerID string
	State    string
}

// NewWorkerError creates a new WorkerError.
func NewWorkerError(message string, cause error) *WorkerError {
	return &WorkerError{
		baseError: baseError{
			message:   message,
			cause:     cause,
			severity:  SeverityError,
			retryable: false,
		},
	}
}

// WithWorkerID adds a worker ID to the error context.
func (e *WorkerError) WithWorkerID(id string) *WorkerError {
	e.WorkerID = id
	return e
}

// WithState adds the worker's state to the error context.
func (e *WorkerError) WithState(state string) *WorkerError {
	e.State = state
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *WorkerError) WithRetryable(r bool) *WorkerError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *WorkerError) Error() string {
	var parts []string
	if e.WorkerID != "" {
		parts = append(parts, fmt.Sprintf("worker=%s", e.WorkerID))
	}
	if e.State != "" {
		parts = append(parts, fmt.Sprintf("state=%s", e.State))
	}

	prefix := "worker error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("worker error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *WorkerError) Is(target error) bool {
	if _, ok := target.(*WorkerError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// TaskError represents a failed task execution.
//
// Example:
//
//	err := errors.NewTaskError("executor returned error", cause).
//	    WithTaskID("task-1").WithAttempts(2)
type TaskError struct {
	baseError
	TaskID   string
	Attempts int
}

// NewTaskError creates a new TaskError.
func NewTaskError(message string, cause error) *TaskError {
	return &TaskError{
		baseError: baseError{
			message:   message,
			cause:     cause,
			severity:  SeverityError,
			retryable: true,
		},
	}
}

// WithTaskID adds a task ID to the error context.
func (e *TaskError) WithTaskID(id string) *TaskError {
	e.TaskID = id
	return e
}

// WithAttempts records how many attempts were made.
func (e *TaskError) WithAttempts(n int) *TaskError {
	e.Attempts = n
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *TaskError) WithRetryable(r bool) *TaskError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *TaskError) Error() string {
	var parts []string
	if e.TaskID != "" {
		parts = append(parts, fmt.Sprintf("task=%s", e.TaskID))
	}
	if e.Attempts > 0 {
		parts = append(parts, fmt.Sprintf("attempts=%d", e.Attempts))
	}

	prefix := "task error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("task error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *TaskError) Is(target error) bool {
	if _, ok := target.(*TaskError); ok {
		return true
	}
	if errors.Is(target, ErrTaskFailed) {
		return true
	}
	return e.baseError.Is(target)
}

// PlanStateError indicates an operation that is invalid for the plan's
// current status, such as pausing an already-completed plan. These are
// always rejected, never silently ignored.
//
// Example:
//
//	err := errors.NewPlanStateError("plan-1", "completed", "pause")
type PlanStateError struct {
	baseError
	PlanID    string
	Status    string
	Operation string
}

// NewPlanStateError creates a new PlanStateError.
func NewPlanStateError(planID, status, operation string) *PlanStateError {
	return &PlanStateError{
		baseError: baseError{
			message:   fmt.Sprintf("cannot %s plan in status %s", operation, status),
			severity:  SeverityWarning,
			retryable: false,
		},
		PlanID:    planID,
		Status:    status,
		Operation: operation,
	}
}

// Error returns the formatted error message.
func (e *PlanStateError) Error() string {
	return fmt.Sprintf("plan state error [plan=%s]: %s", e.PlanID, e.message)
}

// Is checks if this error matches the target.
func (e *PlanStateError) Is(target error) bool {
	if _, ok := target.(*PlanStateError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("plan", "abc123")
//	fmt.Println(err) // "plan 'abc123' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:   fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			severity:  SeverityWarning,
			retryable: false,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' not found: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("task ID cannot be empty").WithField("id")
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:   message,
			severity:  SeverityWarning,
			retryable: false,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}

	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// TimeoutError represents an operation that timed out.
//
// Example:
//
//	err := errors.NewTimeoutError("waiting for allocation", 500*time.Millisecond)
//	fmt.Println(err) // "timeout error: waiting for allocation (timeout: 500ms)"
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message:   operation,
			severity:  SeverityWarning,
			retryable: true, // Timeouts are generally retryable
		},
		Operation: operation,
		Duration:  duration,
	}
}

// WithCause adds a cause to the error.
func (e *TimeoutError) WithCause(cause error) *TimeoutError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	base := fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Duration)
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", base, e.cause)
	}
	return base
}

// Is checks if this error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	if errors.Is(target, ErrTimeout) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry.
//
// Example:
//
//	if errors.IsRetryable(err) {
//	    time.Sleep(backoff)
//	    return retry(operation)
//	}
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var engineErr EngineError
	if As(err, &engineErr) {
		return engineErr.IsRetryable()
	}

	if Is(err, ErrTimeout) {
		return true
	}

	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement EngineError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var engineErr EngineError
	if As(err, &engineErr) {
		return engineErr.Severity()
	}

	return SeverityError
}

// IsDomainError returns true if the error is a domain-specific engine error.
func IsDomainError(err error) bool {
	if err == nil {
		return false
	}

	var cycleErr *CycleError
	var resErr *ResourceError
	var workerErr *WorkerError
	var taskErr *TaskError
	var planErr *PlanStateError

	return As(err, &cycleErr) || As(err, &resErr) ||
		As(err, &workerErr) || As(err, &taskErr) || As(err, &planErr)
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
//
// Example:
//
//	err := errors.Wrap(baseErr, "failed to allocate plan budget")
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
//
// Example:
//
//	err := errors.Wrapf(baseErr, "failed to execute plan %s", planID)
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
