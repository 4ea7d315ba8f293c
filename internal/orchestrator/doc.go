// Package orchestrator drives plans through the engine's six-stage
// pipeline: dependency analysis, resource planning, resource allocation,
// worker preparation, phased parallel execution, and cleanup.
//
// A plan is one submitted task set plus an execution policy, tracked
// through a status lifecycle from creation to a terminal state. Stages
// are strictly sequential; within stage five, each phase's tasks run
// concurrently and the orchestrator waits for the whole phase to settle
// before advancing. That phase barrier is the only hard synchronization
// point in the engine and is what guarantees dependency ordering.
//
// Plans can be paused, resumed, and cancelled while executing. Cancel
// aborts every in-flight task and still runs cleanup, so resources are
// never leaked. ExecutePlan always returns a structured result that
// distinguishes "some tasks failed" from "the plan itself could not run".
//
// Usage:
//
//	o := orchestrator.New(resolver, resources, workers, bus, logger)
//	planID, err := o.CreatePlan(tasks, task.DefaultPolicy())
//	if err != nil { ... }
//	result, err := o.ExecutePlan(ctx, planID)
package orchestrator
