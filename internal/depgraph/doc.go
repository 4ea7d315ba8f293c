// Package depgraph builds and analyzes the task dependency graph for a plan.
//
// Given a task set, [Resolver.Analyze] validates that the declared
// dependencies form a directed acyclic graph, computes a topological order
// (Kahn's algorithm), runs the classic two-pass critical-path computation,
// and decomposes the graph into phases: ordered groups of tasks with no
// dependency edges among them, safe to run concurrently. Every task's
// dependencies are guaranteed to lie in strictly earlier phases, which is
// what the orchestrator's phase barrier relies on for correctness.
//
// A cycle is a hard error, never silently repaired: Analyze fails with a
// *errors.CycleError naming the tasks left unsorted.
//
// Dependency inference (matching a task's declared inputs against other
// tasks' outputs) is an optional convenience enabled with [WithInference].
// Inferred edges are layered strictly on top of explicit declarations and
// never replace them.
//
// Usage:
//
//	resolver := depgraph.NewResolver()
//	analysis, err := resolver.Analyze(tasks)
//	if err != nil {
//	    var cycleErr *errors.CycleError
//	    if errors.As(err, &cycleErr) { ... }
//	}
//	for i, phase := range analysis.Phases {
//	    // phase is a []string of task IDs runnable in parallel
//	}
package depgraph
