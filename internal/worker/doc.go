// Package worker provides the execution capacity layer of the engine: a
// pool of workers that accept assigned tasks, each with its own bounded
// FIFO queue, lifecycle state machine, and health score.
//
// A Worker runs at most MaxConcurrentTasks tasks at once; submissions past
// that limit queue up to QueueSize and run in arrival order as capacity
// frees. The Manager owns the pool: it selects a worker for each task
// (round-robin, least-busy, or weighted), retries once on a different
// worker when an assignment fails and failover is enabled, and scales the
// pool toward the observed load without ever stopping a worker that still
// holds tasks.
//
// Health is a weighted score over status validity, uptime, memory ceiling
// compliance, recent errors, and heartbeat freshness. Workers scoring
// below the restart threshold are restarted; a worker that exhausts its
// restart budget transitions to Crashed and is removed from the pool.
//
// Usage:
//
//	mgr := worker.NewManager(cfg, executor, bus, logger)
//	if err := mgr.EnsureWorkers(4); err != nil { ... }
//	result, err := mgr.AssignTask(ctx, t)
package worker
