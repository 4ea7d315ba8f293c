// Package event provides the engine's synchronous pub-sub event bus and the
// typed events emitted during plan execution.
//
// Components communicate through an explicit [Bus] instance passed in by the
// caller; there is no package-level default bus. The orchestrator publishes
// plan and task lifecycle events, the resource manager publishes capacity
// warnings, and the worker manager publishes worker lifecycle events.
// External reporting layers subscribe without coupling to the engine
// internals.
//
// Usage:
//
//	bus := event.NewBus()
//	bus.Subscribe("task.completed", func(e event.Event) {
//	    ce := e.(event.TaskCompletedEvent)
//	    log.Printf("task %s done on %s", ce.TaskID, ce.WorkerID)
//	})
//	bus.Publish(event.NewTaskCompletedEvent("plan-1", "task-a", "w-2", time.Second))
//
// Handlers run synchronously in the publishing goroutine; a panicking
// handler is recovered and logged so it cannot block delivery to others.
package event
