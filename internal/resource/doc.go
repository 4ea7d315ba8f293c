// Package resource provides typed capacity pools and atomic multi-pool
// allocation for plan execution.
//
// A [Pool] is a capacity counter for one resource type (cpu, memory,
// network, storage, handles, threads) supporting allocation, reservation,
// release, a priority-ordered waiting queue with timeouts, and optional
// automatic capacity growth under pressure. Every mutation is serialized by
// the pool's mutex, keeping the core invariant
//
//	allocated + reserved <= capacity
//
// atomic under concurrent callers.
//
// A [Manager] composes pools and provides [Manager.AllocateResources]:
// an all-or-nothing allocation across several pools. Pools are always
// acquired in the fixed order defined by task.AllocationOrder so that
// concurrent multi-pool callers cannot deadlock each other, and a failure
// partway rolls back every allocation already acquired in the batch before
// the error is surfaced.
//
// Allocations are tracked by ID and must be released exactly once; an
// unreleased allocation is leaked until [Pool.Sweep] reclaims entries older
// than the configured TTL.
package resource
