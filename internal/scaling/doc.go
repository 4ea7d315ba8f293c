// Package scaling provides load-based elastic scaling decisions for the
// worker pool.
//
// During plan execution, the number of workers may need to grow or shrink
// with the workload. The scaling package watches load snapshots published
// on the event bus and applies a configurable policy to recommend scaling
// actions.
//
// The core types are:
//
//   - [Policy]: Defines scaling rules (thresholds, cooldown, worker limits)
//   - [Monitor]: Watches load events on the event bus and applies the policy
//   - [Decision]: The output of policy evaluation: scale up, scale down, or hold
//
// # Usage
//
//	policy := scaling.NewPolicy(
//	    scaling.WithMinWorkers(1),
//	    scaling.WithMaxWorkers(8),
//	    scaling.WithScaleUpThreshold(2),
//	    scaling.WithScaleDownThreshold(1),
//	    scaling.WithCooldownPeriod(30 * time.Second),
//	)
//
//	monitor := scaling.NewMonitor(bus, policy, workers.Count())
//	monitor.OnDecision(func(d scaling.Decision) {
//	    workers.AutoScale(d.Target)
//	})
//	go monitor.Start(ctx)
//	defer monitor.Stop()
//
// # Thread Safety
//
// All types in this package are safe for concurrent use.
package scaling
