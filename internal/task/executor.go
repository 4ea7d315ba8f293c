package task

import "context"

// Executor runs the actual business logic of a task. The engine defines
// only scheduling, resourcing, and lifecycle around this opaque call; it
// assumes nothing about what execution does.
//
// Execute must honor ctx cancellation: when the context is cancelled the
// implementation should stop work and return ctx.Err().
type Executor interface {
	Execute(ctx context.Context, t *Task) (any, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, t *Task) (any, error)

// Execute calls f(ctx, t).
func (f ExecutorFunc) Execute(ctx context.Context, t *Task) (any, error) {
	return f(ctx, t)
}
