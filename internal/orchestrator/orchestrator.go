package orchestrator

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taihochan/superclaude-code-pm-sub001/internal/depgraph"
	"github.com/taihochan/superclaude-code-pm-sub001/internal/errors"
	"github.com/taihochan/superclaude-code-pm-sub001/internal/event"
	"github.com/taihochan/superclaude-code-pm-sub001/internal/logging"
	"github.com/taihochan/superclaude-code-pm-sub001/internal/resource"
	"github.com/taihochan/superclaude-code-pm-sub001/internal/task"
	"github.com/taihochan/superclaude-code-pm-sub001/internal/worker"
)

// Config holds orchestrator-level settings.
type Config struct {
	// AllocationTimeout bounds how long stage three waits on resource
	// pool queues before aborting the plan.
	AllocationTimeout time.Duration

	// HighUtilization is the pool utilization above which adaptive
	// tuning lowers a plan's concurrency.
	HighUtilization float64

	// LowUtilization is the pool utilization below which adaptive tuning
	// raises a plan's concurrency.
	LowUtilization float64
}

func (c Config) withDefaults() Config {
	if c.AllocationTimeout <= 0 {
		c.AllocationTimeout = 30 * time.Second
	}
	if c.HighUtilization <= 0 {
		c.HighUtilization = 0.85
	}
	if c.LowUtilization <= 0 {
		c.LowUtilization = 0.5
	}
	return c
}

// Orchestrator sequences dependency analysis, resource allocation, worker
// preparation, and phased execution for submitted plans. It is safe for
// concurrent use; each plan is driven by the one goroutine that called
// ExecutePlan, while status queries may come from anywhere.
type Orchestrator struct {
	cfg       Config
	resolver  *depgraph.Resolver
	resources *resource.Manager
	workers   *worker.Manager
	bus       *event.Bus
	logger    *logging.Logger

	mu    sync.RWMutex
	plans map[string]*Plan
}

// New creates an Orchestrator over the given collaborators. The bus may
// be nil to disable event publication.
func New(resolver *depgraph.Resolver, resources *resource.Manager, workers *worker.Manager, bus *event.Bus, logger *logging.Logger) *Orchestrator {
	return NewWithConfig(Config{}, resolver, resources, workers, bus, logger)
}

// NewWithConfig creates an Orchestrator with explicit settings.
func NewWithConfig(cfg Config, resolver *depgraph.Resolver, resources *resource.Manager, workers *worker.Manager, bus *event.Bus, logger *logging.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Orchestrator{
		cfg:       cfg.withDefaults(),
		resolver:  resolver,
		resources: resources,
		workers:   workers,
		bus:       bus,
		logger:    logger,
		plans:     make(map[string]*Plan),
	}
}

// CreatePlan registers a task set with a policy and returns the plan ID.
// Tasks are validated structurally (non-empty set, unique non-empty IDs);
// full dependency analysis happens when the plan executes.
func (o *Orchestrator) CreatePlan(tasks []*task.Task, policy task.Policy) (string, error) {
	if len(tasks) == 0 {
		return "", errors.NewValidationError("plan needs at least one task")
	}
	seen := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		if t.ID == "" {
			return "", errors.NewValidationError("task ID cannot be empty").WithField("id")
		}
		if seen[t.ID] {
			return "", errors.NewValidationError("duplicate task ID").
				WithField("id").WithValue(t.ID)
		}
		seen[t.ID] = true
		for rt := range t.Resources {
			if !rt.IsValid() {
				return "", errors.NewValidationError("unknown resource type").
					WithField("resources").WithValue(rt.String())
			}
		}
	}
	if policy.Strategy == "" {
		policy.Strategy = task.StrategyBalanced
	}
	if !policy.Strategy.IsValid() {
		return "", errors.NewValidationError("unknown execution strategy").
			WithField("strategy").WithValue(policy.Strategy.String())
	}
	if policy.MaxConcurrency <= 0 {
		policy.MaxConcurrency = task.DefaultPolicy().MaxConcurrency
	}

	plan := newPlan(uuid.NewString(), tasks, policy)

	o.mu.Lock()
	o.plans[plan.ID] = plan
	o.mu.Unlock()

	o.publish(event.NewPlanCreatedEvent(plan.ID, len(tasks), policy.Strategy.String()))
	o.logger.WithPlan(plan.ID).Info("plan created",
		"tasks", len(tasks), "strategy", policy.Strategy.String(), "concurrency", plan.Concurrency())
	return plan.ID, nil
}

// Plan returns a plan by ID.
func (o *Orchestrator) Plan(planID string) (*Plan, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	plan, ok := o.plans[planID]
	if !ok {
		return nil, errors.NewNotFoundError("plan", planID).WithCause(errors.ErrPlanNotFound)
	}
	return plan, nil
}

// PausePlan suspends an executing plan at its next phase boundary and
// pauses the worker pool so queued tasks stop being picked up. In-flight
// tasks continue. Pausing a plan in any other state is rejected with a
// PlanStateError.
func (o *Orchestrator) PausePlan(planID string) error {
	plan, err := o.Plan(planID)
	if err != nil {
		return err
	}

	plan.mu.Lock()
	if plan.status != PlanExecuting {
		status := plan.status
		plan.mu.Unlock()
		return errors.NewPlanStateError(planID, status.String(), "pause")
	}
	plan.status = PlanPaused
	plan.pauseGate = make(chan struct{})
	plan.mu.Unlock()

	o.workers.PauseAll()
	o.publish(event.NewPlanPausedEvent(planID))
	o.logger.WithPlan(planID).Info("plan paused")
	return nil
}

// ResumePlan reverses a pause. Resuming a plan that is not paused is
// rejected with a PlanStateError.
func (o *Orchestrator) ResumePlan(planID string) error {
	plan, err := o.Plan(planID)
	if err != nil {
		return err
	}

	plan.mu.Lock()
	if plan.status != PlanPaused {
		status := plan.status
		plan.mu.Unlock()
		return errors.NewPlanStateError(planID, status.String(), "resume")
	}
	plan.status = PlanExecuting
	gate := plan.pauseGate
	plan.pauseGate = nil
	plan.mu.Unlock()

	o.workers.ResumeAll()
	if gate != nil {
		close(gate)
	}
	o.publish(event.NewPlanResumedEvent(planID))
	o.logger.WithPlan(planID).Info("plan resumed")
	return nil
}

// CancelPlan aborts a plan. Idle plans go terminal immediately; executing
// or paused plans have every in-flight task cancelled and still run
// cleanup before going terminal. Cancelling a terminal plan is rejected
// with a PlanStateError.
func (o *Orchestrator) CancelPlan(planID string) error {
	plan, err := o.Plan(planID)
	if err != nil {
		return err
	}

	plan.mu.Lock()
	switch {
	case plan.status.IsTerminal():
		status := plan.status
		plan.mu.Unlock()
		return errors.NewPlanStateError(planID, status.String(), "cancel")

	case plan.status == PlanIdle:
		plan.status = PlanCancelled
		plan.mu.Unlock()
		o.publish(event.NewPlanCancelledEvent(planID))
		o.logger.WithPlan(planID).Info("plan cancelled before execution")
		return nil
	}

	cancel := plan.cancel
	gate := plan.pauseGate
	plan.pauseGate = nil
	plan.mu.Unlock()

	// Unblock a paused control loop so it can observe the cancellation.
	if gate != nil {
		close(gate)
	}
	if cancel != nil {
		cancel()
	}
	o.logger.WithPlan(planID).Info("plan cancellation requested")
	return nil
}

// GetStatus returns a snapshot of one plan.
func (o *Orchestrator) GetStatus(planID string) (PlanSummary, error) {
	plan, err := o.Plan(planID)
	if err != nil {
		return PlanSummary{}, err
	}
	return plan.summary(), nil
}

// GetAllStatuses returns snapshots of every known plan.
func (o *Orchestrator) GetAllStatuses() []PlanSummary {
	o.mu.RLock()
	plans := make([]*Plan, 0, len(o.plans))
	for _, p := range o.plans {
		plans = append(plans, p)
	}
	o.mu.RUnlock()

	out := make([]PlanSummary, 0, len(plans))
	for _, p := range plans {
		out = append(out, p.summary())
	}
	return out
}

// Optimization is one performance recommendation. Applied reports whether
// the orchestrator already acted on it.
type Optimization struct {
	Target  string `json:"target"` // "pool:<type>", "worker:<id>", "plan:<id>"
	Action  string `json:"action"`
	Reason  string `json:"reason"`
	Applied bool   `json:"applied"`
}

// OptimizePerformance inspects pool utilization, worker health, and
// executing plans, and returns recommendations. Concurrency retuning for
// adaptive plans is applied in place and reported with Applied set.
func (o *Orchestrator) OptimizePerformance() []Optimization {
	var out []Optimization

	for rt, st := range o.resources.Status() {
		util := st.Utilization()
		switch {
		case util >= o.cfg.HighUtilization:
			out = append(out, Optimization{
				Target: "pool:" + rt.String(),
				Action: "increase capacity",
				Reason: "utilization above high watermark",
			})
		case st.Waiting > 0:
			out = append(out, Optimization{
				Target: "pool:" + rt.String(),
				Action: "increase capacity",
				Reason: "requests queued on pool",
			})
		}
	}

	for _, ws := range o.workers.Status() {
		if ws.Health < 0.5 {
			out = append(out, Optimization{
				Target: "worker:" + ws.ID,
				Action: "restart",
				Reason: "health score below restart threshold",
			})
		}
	}

	o.mu.RLock()
	plans := make([]*Plan, 0, len(o.plans))
	for _, p := range o.plans {
		plans = append(plans, p)
	}
	o.mu.RUnlock()

	for _, plan := range plans {
		if plan.Status() != PlanExecuting || plan.Policy.Strategy != task.StrategyAdaptive {
			continue
		}
		if opt, tuned := o.retune(plan); tuned {
			out = append(out, opt)
		}
	}
	return out
}

// retune adjusts an adaptive plan's concurrency from observed pool
// utilization: back off when any pool runs hot, open up when everything
// is quiet. Returns the applied optimization, if any.
func (o *Orchestrator) retune(plan *Plan) (Optimization, bool) {
	var maxUtil float64
	waiting := 0
	for _, st := range o.resources.Status() {
		if u := st.Utilization(); u > maxUtil {
			maxUtil = u
		}
		waiting += st.Waiting
	}

	plan.mu.Lock()
	old := plan.concurrency
	next := old
	var reason string
	switch {
	case maxUtil >= o.cfg.HighUtilization && old > 1:
		next = old - 1
		reason = "resource utilization above high watermark"
	case maxUtil < o.cfg.LowUtilization && waiting == 0 && old < plan.Policy.MaxConcurrency:
		next = old + 1
		reason = "resource headroom available"
	}
	plan.concurrency = next
	plan.mu.Unlock()

	if next == old {
		return Optimization{}, false
	}

	o.publish(event.NewTuningPerformedEvent(plan.ID, old, next, reason))
	o.logger.WithPlan(plan.ID).Info("concurrency retuned",
		"old", old, "new", next, "reason", reason)
	return Optimization{
		Target:  "plan:" + plan.ID,
		Action:  "retune concurrency",
		Reason:  reason,
		Applied: true,
	}, true
}

func (o *Orchestrator) publish(e event.Event) {
	if o.bus != nil {
		o.bus.Publish(e)
	}
}
