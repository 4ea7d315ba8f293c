package orchestrator

import (
	"context"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/taihochan/superclaude-code-pm-sub001/internal/depgraph"
	"github.com/taihochan/superclaude-code-pm-sub001/internal/errors"
	"github.com/taihochan/superclaude-code-pm-sub001/internal/event"
	"github.com/taihochan/superclaude-code-pm-sub001/internal/logging"
	"github.com/taihochan/superclaude-code-pm-sub001/internal/resource"
	"github.com/taihochan/superclaude-code-pm-sub001/internal/task"
)

// ExecutePlan drives a plan through the full pipeline: dependency
// analysis, resource allocation, worker preparation, phased execution,
// and cleanup. It blocks until the plan reaches a terminal status and
// returns the aggregated result. A plan executes at most once; calling
// ExecutePlan on a plan that already left the idle state is rejected
// with a PlanStateError.
//
// Cancellation, whether through ctx or CancelPlan, aborts in-flight
// tasks but still runs cleanup, so allocated resources are always
// returned to their pools.
func (o *Orchestrator) ExecutePlan(ctx context.Context, planID string) (*ExecutionResult, error) {
	plan, err := o.Plan(planID)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	plan.mu.Lock()
	if plan.status != PlanIdle {
		status := plan.status
		plan.mu.Unlock()
		return nil, errors.NewPlanStateError(planID, status.String(), "execute")
	}
	plan.status = PlanPlanning
	plan.startedAt = time.Now()
	plan.cancel = cancel
	plan.mu.Unlock()

	logger := o.logger.WithPlan(planID)
	logger.Info("plan execution started", "tasks", len(plan.Tasks))

	// Stage one and two: build the dependency graph and derive phases.
	analysis, err := o.resolver.Analyze(derefTasks(plan.Tasks))
	if err != nil {
		logger.Error("dependency analysis failed", "error", err.Error())
		return o.finish(plan, logger, err), err
	}
	plan.mu.Lock()
	plan.analysis = analysis
	plan.mu.Unlock()
	logger.Info("dependency analysis complete",
		"phases", len(analysis.Phases),
		"critical_path", len(analysis.CriticalPath),
		"estimated", analysis.TotalDuration)

	// Stage three: reserve the plan's resource budget up front.
	requirements := planRequirements(plan, analysis)
	if len(requirements) > 0 {
		alloc, allocErr := o.resources.AllocateResources(runCtx, requirements, allocOptions(o.cfg, plan))
		if allocErr != nil {
			logger.Error("resource allocation failed", "error", allocErr.Error())
			return o.finish(plan, logger, allocErr), allocErr
		}
		plan.mu.Lock()
		plan.allocation = alloc
		plan.mu.Unlock()
	}
	defer o.releaseAllocation(plan, logger)

	// Stage four: make sure enough workers exist for the widest phase.
	want := plan.Concurrency()
	if mp := analysis.MaxPhaseParallelism(); mp < want {
		want = mp
	}
	if err := o.workers.EnsureWorkers(want); err != nil {
		logger.Error("worker preparation failed", "error", err.Error())
		return o.finish(plan, logger, err), err
	}

	plan.mu.Lock()
	plan.status = PlanExecuting
	plan.mu.Unlock()

	// Stage five: run the phases.
	execErr := o.runPhases(runCtx, plan, analysis, logger)

	// Stage six: settle the terminal status and report.
	result := o.finish(plan, logger, execErr)
	if execErr != nil {
		return result, execErr
	}
	return result, nil
}

// runPhases executes each dependency phase in order, with tasks inside a
// phase fanned out up to the plan's concurrency limit. A phase does not
// start until the previous one fully settles.
func (o *Orchestrator) runPhases(ctx context.Context, plan *Plan, analysis *depgraph.Analysis, logger *logging.Logger) error {
	// failedBy maps a task to the failed ancestor that dooms it.
	failedBy := make(map[string]string)

	for phaseIdx, phase := range analysis.Phases {
		if err := plan.waitIfPaused(ctx); err != nil {
			return errors.Wrap(errors.ErrCanceled, "plan cancelled")
		}
		if ctx.Err() != nil {
			return errors.Wrap(errors.ErrCanceled, "plan cancelled")
		}

		var succeeded, failed []string
		results := make([]*task.Result, len(phase))

		p := pool.New().WithMaxGoroutines(plan.Concurrency())
		for i, taskID := range phase {
			if failedOn, doomed := failedBy[taskID]; doomed {
				results[i] = o.skipTask(plan, taskID, failedOn)
				continue
			}
			t := plan.taskByID(taskID)
			p.Go(func() {
				results[i] = o.runTask(ctx, plan, t)
			})
		}
		p.Wait()

		for _, res := range results {
			if res == nil {
				continue
			}
			switch res.Status {
			case task.StatusCompleted:
				succeeded = append(succeeded, res.TaskID)
			default:
				failed = append(failed, res.TaskID)
				markDependents(analysis, res.TaskID, failedBy)
			}
		}

		o.publish(event.NewPhaseCompletedEvent(plan.ID, phaseIdx, succeeded, failed))
		progress := plan.Progress()
		o.publish(event.NewLoadChangedEvent(plan.ID,
			progress.Pending(), progress.Running, progress.Completed,
			progress.Failed+progress.Skipped, o.workers.Count()))
		logger.Info("phase completed",
			"phase", phaseIdx, "succeeded", len(succeeded), "failed", len(failed))

		if ctx.Err() != nil {
			return errors.Wrap(errors.ErrCanceled, "plan cancelled")
		}
		if len(failed) > 0 && !plan.Policy.ContinueOnError {
			return errors.Wrapf(errors.ErrTaskFailed, "phase %d failed", phaseIdx)
		}
	}

	if plan.Progress().Failed > 0 {
		return errors.Wrap(errors.ErrTaskFailed, "plan finished with failures")
	}
	return nil
}

// runTask executes one task through the worker manager, retrying per the
// plan's retry policy with exponential backoff between attempts.
func (o *Orchestrator) runTask(ctx context.Context, plan *Plan, t *task.Task) *task.Result {
	attempts := plan.Policy.Retry.Attempts()
	startedAt := time.Now()
	plan.taskStarted(t.ID, "")

	var res *task.Result
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if !o.sleep(ctx, plan.Policy.Retry.Backoff(attempt-1)) {
				break
			}
		}
		if waitErr := plan.waitIfPaused(ctx); waitErr != nil {
			break
		}

		res, err = o.assignOnce(ctx, plan, t)
		if err == nil {
			res.Attempts = attempt
			res.StartedAt = startedAt
			plan.taskSettled(res, true)
			o.publish(event.NewTaskCompletedEvent(plan.ID, t.ID, res.WorkerID, res.Duration()))
			return res
		}
		if errors.Is(err, errors.ErrCanceled) || ctx.Err() != nil {
			res = cancelResult(t.ID, res, startedAt, attempt)
			plan.taskSettled(res, true)
			return res
		}
		o.logger.WithPlan(plan.ID).Warn("task attempt failed",
			"task_id", t.ID, "attempt", attempt, "error", err.Error())
	}

	if ctx.Err() != nil {
		res = cancelResult(t.ID, res, startedAt, attempts)
		plan.taskSettled(res, true)
		return res
	}

	final := failResult(t.ID, res, err, startedAt, attempts)
	plan.taskSettled(final, true)
	o.publish(event.NewTaskFailedEvent(plan.ID, t.ID, final.Attempts, final.Error))
	return final
}

// assignOnce runs a single attempt, applying the per-attempt timeout.
func (o *Orchestrator) assignOnce(ctx context.Context, plan *Plan, t *task.Task) (*task.Result, error) {
	attemptCtx := ctx
	if plan.Policy.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, plan.Policy.Timeout)
		defer cancel()
	}
	return o.workers.AssignTask(attemptCtx, t)
}

// skipTask settles a task that cannot run because an ancestor failed.
func (o *Orchestrator) skipTask(plan *Plan, taskID, failedOn string) *task.Result {
	res := &task.Result{
		TaskID:     taskID,
		Status:     task.StatusSkipped,
		Error:      "dependency failed: " + failedOn,
		FinishedAt: time.Now(),
	}
	plan.taskSettled(res, false)
	o.publish(event.NewTaskSkippedEvent(plan.ID, taskID, failedOn))
	return res
}

// cancelResult settles a task that was aborted mid-flight. The worker's
// partial result is reused when it exists so the worker ID survives.
func cancelResult(taskID string, partial *task.Result, startedAt time.Time, attempt int) *task.Result {
	res := partial
	if res == nil {
		res = &task.Result{TaskID: taskID, Error: errors.ErrCanceled.Error()}
	}
	res.Status = task.StatusCancelled
	res.Attempts = attempt
	res.StartedAt = startedAt
	if res.FinishedAt.IsZero() {
		res.FinishedAt = time.Now()
	}
	return res
}

// failResult settles a task that exhausted its retry budget.
func failResult(taskID string, partial *task.Result, err error, startedAt time.Time, attempts int) *task.Result {
	res := partial
	if res == nil {
		res = &task.Result{TaskID: taskID}
	}
	res.Status = task.StatusFailed
	res.Attempts = attempts
	res.StartedAt = startedAt
	if res.Error == "" && err != nil {
		res.Error = err.Error()
	}
	if res.FinishedAt.IsZero() {
		res.FinishedAt = time.Now()
	}
	return res
}

// sleep waits for d or until ctx is done. Returns false on cancellation.
func (o *Orchestrator) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// finish records the plan's terminal status, publishes the matching
// event, and builds the execution result. Safe to call with or without
// an analysis in place.
func (o *Orchestrator) finish(plan *Plan, logger *logging.Logger, execErr error) *ExecutionResult {
	now := time.Now()

	plan.mu.Lock()
	plan.finishedAt = now
	plan.cancel = nil
	if gate := plan.pauseGate; gate != nil {
		plan.pauseGate = nil
		close(gate)
	}

	switch {
	case execErr == nil:
		plan.status = PlanCompleted
	case errors.Is(execErr, errors.ErrCanceled):
		plan.status = PlanCancelled
	default:
		plan.status = PlanFailed
	}
	status := plan.status
	progress := plan.progress
	elapsed := plan.finishedAt.Sub(plan.startedAt)
	analysis := plan.analysis

	results := make(map[string]*task.Result, len(plan.results))
	for id, r := range plan.results {
		results[id] = r
	}
	plan.mu.Unlock()

	metrics := Metrics{Elapsed: elapsed}
	if elapsed > 0 {
		metrics.Throughput = float64(progress.Completed) / elapsed.Seconds()
	}
	if analysis != nil {
		metrics.Phases = len(analysis.Phases)
		metrics.CriticalPath = append([]string(nil), analysis.CriticalPath...)
		metrics.EstimatedDuration = analysis.TotalDuration
	}

	switch status {
	case PlanCompleted:
		o.publish(event.NewPlanCompletedEvent(plan.ID, progress.Completed, progress.Failed, elapsed))
		logger.Info("plan completed",
			"completed", progress.Completed, "elapsed", elapsed)
	case PlanCancelled:
		o.publish(event.NewPlanCancelledEvent(plan.ID))
		logger.Info("plan cancelled",
			"completed", progress.Completed, "pending", progress.Pending())
	default:
		reason := "execution failed"
		if execErr != nil {
			reason = execErr.Error()
		}
		o.publish(event.NewPlanFailedEvent(plan.ID, reason))
		logger.Error("plan failed",
			"completed", progress.Completed, "failed", progress.Failed, "reason", reason)
	}

	return &ExecutionResult{
		PlanID:   plan.ID,
		Success:  status == PlanCompleted && progress.Failed == 0,
		Status:   status,
		Results:  results,
		Progress: progress,
		Metrics:  metrics,
	}
}

// releaseAllocation returns the plan's resource budget to its pools.
func (o *Orchestrator) releaseAllocation(plan *Plan, logger *logging.Logger) {
	plan.mu.Lock()
	alloc := plan.allocation
	plan.allocation = nil
	plan.mu.Unlock()
	if alloc == nil {
		return
	}
	if o.resources.ReleaseResources(alloc.ID) {
		logger.Debug("plan resources released", "allocation_id", alloc.ID)
	}
}

// markDependents records every transitive dependent of a failed task so
// later phases settle them as skipped instead of dispatching them.
func markDependents(analysis *depgraph.Analysis, failedID string, failedBy map[string]string) {
	node, ok := analysis.Nodes[failedID]
	if !ok {
		return
	}
	for _, dep := range node.Dependents {
		if _, seen := failedBy[dep]; seen {
			continue
		}
		failedBy[dep] = failedID
		markDependents(analysis, dep, failedBy)
	}
}

// planRequirements derives the plan's resource budget: the policy's
// explicit limits when set, otherwise the element-wise maximum over
// phases of each phase's summed task requirements.
func planRequirements(plan *Plan, analysis *depgraph.Analysis) map[task.ResourceType]int64 {
	if len(plan.Policy.ResourceLimits) > 0 {
		out := make(map[task.ResourceType]int64, len(plan.Policy.ResourceLimits))
		for rt, amount := range plan.Policy.ResourceLimits {
			out[rt] = amount
		}
		return out
	}

	byID := make(map[string]*task.Task, len(plan.Tasks))
	for _, t := range plan.Tasks {
		byID[t.ID] = t
	}

	out := make(map[task.ResourceType]int64)
	for _, phase := range analysis.Phases {
		sums := make(map[task.ResourceType]int64)
		for _, id := range phase {
			t, ok := byID[id]
			if !ok {
				continue
			}
			for rt, amount := range t.Resources {
				sums[rt] += amount
			}
		}
		for rt, sum := range sums {
			if sum > out[rt] {
				out[rt] = sum
			}
		}
	}
	return out
}

func allocOptions(cfg Config, plan *Plan) resource.AllocateOptions {
	priority := 0
	for _, t := range plan.Tasks {
		if t.Priority > priority {
			priority = t.Priority
		}
	}
	return resource.AllocateOptions{
		Priority: priority,
		Wait:     true,
		Timeout:  cfg.AllocationTimeout,
	}
}

func derefTasks(tasks []*task.Task) []task.Task {
	out := make([]task.Task, len(tasks))
	for i, t := range tasks {
		out[i] = *t
	}
	return out
}
