package worker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taihochan/superclaude-code-pm-sub001/internal/errors"
	"github.com/taihochan/superclaude-code-pm-sub001/internal/event"
	"github.com/taihochan/superclaude-code-pm-sub001/internal/logging"
	"github.com/taihochan/superclaude-code-pm-sub001/internal/task"
)

const (
	// errorWindow bounds how far back recent errors count against health.
	errorWindow = time.Minute

	// errorBudget is the recent error count that zeroes the error
	// component of the health score.
	errorBudget = 5
)

// Config holds per-worker settings.
type Config struct {
	// Type tags the worker for type-match selection bonuses. Empty
	// matches any task type.
	Type string

	// MaxConcurrentTasks bounds simultaneous task executions.
	MaxConcurrentTasks int

	// QueueSize bounds the FIFO queue behind the active tasks.
	QueueSize int

	// MaxRestartAttempts bounds restarts before the worker crashes.
	MaxRestartAttempts int

	// HeartbeatInterval is how often the worker refreshes its liveness
	// timestamp.
	HeartbeatInterval time.Duration

	// UptimeTarget is the uptime at which the health score's uptime
	// component reaches full marks.
	UptimeTarget time.Duration

	// MemoryCeiling is the memory budget in bytes. Zero disables the
	// memory component of the health score.
	MemoryCeiling int64

	// MemoryProbe reports current memory usage in bytes. Nil disables
	// the memory component.
	MemoryProbe func() int64
}

func (c Config) withDefaults() Config {
	if c.MaxConcurrentTasks <= 0 {
		c.MaxConcurrentTasks = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 16
	}
	if c.MaxRestartAttempts <= 0 {
		c.MaxRestartAttempts = 3
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 5 * time.Second
	}
	if c.UptimeTarget <= 0 {
		c.UptimeTarget = 5 * time.Minute
	}
	return c
}

// taskRun is an in-flight task execution.
type taskRun struct {
	t         *task.Task
	ctx       context.Context
	cancel    context.CancelFunc
	startedAt time.Time
}

// pending is a queued submission waiting for a free slot.
type pending struct {
	t         *task.Task
	ctx       context.Context
	ready     chan struct{} // closed on grant or cancellation
	cancelled bool
	run       *taskRun // set under the worker mutex when granted
}

// Status is a point-in-time snapshot of a worker.
type Status struct {
	ID          string        `json:"id"`
	Type        string        `json:"type"`
	State       State         `json:"state"`
	Health      float64       `json:"health"`
	ActiveTasks int           `json:"active_tasks"`
	QueueLength int           `json:"queue_length"`
	Restarts    int           `json:"restarts"`
	Uptime      time.Duration `json:"uptime"`
}

// Worker executes assigned tasks with bounded concurrency and a bounded
// FIFO queue. All methods are safe for concurrent use.
type Worker struct {
	id       string
	cfg      Config
	executor task.Executor
	bus      *event.Bus
	logger   *logging.Logger

	mu       sync.Mutex
	state    State
	active   map[string]*taskRun
	queue    []*pending
	ran      bool // at least one task has completed
	restarts int
	errTimes []time.Time

	startedAt time.Time
	lastBeat  time.Time
	stopBeat  chan struct{}
}

// NewWorker creates a worker in the Initializing state. Call Start to
// bring it up.
func NewWorker(cfg Config, executor task.Executor, bus *event.Bus, logger *logging.Logger) *Worker {
	if logger == nil {
		logger = logging.NopLogger()
	}
	id := uuid.NewString()
	return &Worker{
		id:       id,
		cfg:      cfg.withDefaults(),
		executor: executor,
		bus:      bus,
		logger:   logger.WithWorker(id),
		state:    StateInitializing,
		active:   make(map[string]*taskRun),
	}
}

// ID returns the worker's unique identifier.
func (w *Worker) ID() string { return w.id }

// Type returns the worker's type tag.
func (w *Worker) Type() string { return w.cfg.Type }

// State returns the worker's current lifecycle state.
func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Start brings the worker from Initializing to Ready and begins its
// heartbeat.
func (w *Worker) Start() error {
	w.mu.Lock()
	if w.state != StateInitializing {
		state := w.state
		w.mu.Unlock()
		return errors.NewWorkerError("start requires an initializing worker", errors.ErrInvalidTransition).
			WithWorkerID(w.id).WithState(state.String())
	}
	w.state = StateReady
	w.startedAt = time.Now()
	w.lastBeat = w.startedAt
	w.stopBeat = make(chan struct{})
	stop := w.stopBeat
	w.mu.Unlock()

	go w.heartbeatLoop(stop)

	w.publish(event.NewWorkerStartedEvent(w.id, w.cfg.Type))
	w.logger.Info("worker started", "type", w.cfg.Type)
	return nil
}

// Stop shuts the worker down. In-flight tasks are cancelled and queued
// submissions are rejected. Stopping a stopped worker is a no-op.
func (w *Worker) Stop(reason string) error {
	w.mu.Lock()
	if w.state.Terminal() || w.state == StateStopping {
		w.mu.Unlock()
		return nil
	}
	if w.state == StateInitializing {
		w.state = StateStopped
		w.mu.Unlock()
		return nil
	}
	w.state = StateStopping
	w.abortAllLocked()
	w.state = StateStopped
	stop := w.stopBeat
	w.stopBeat = nil
	w.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	w.publish(event.NewWorkerStoppedEvent(w.id, reason))
	w.logger.Info("worker stopped", "reason", reason)
	return nil
}

// Pause holds new work. In-flight tasks continue; queued submissions stay
// queued until Resume.
func (w *Worker) Pause() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == StatePaused {
		return nil
	}
	if !w.state.CanTransition(StatePaused) {
		return errors.NewWorkerError("cannot pause", errors.ErrInvalidTransition).
			WithWorkerID(w.id).WithState(w.state.String())
	}
	w.state = StatePaused
	return nil
}

// Resume reverses a Pause and drains any queued work into free slots.
// Resuming a worker that is not paused is a no-op.
func (w *Worker) Resume() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StatePaused {
		return nil
	}
	w.state = StateReady
	w.refreshLocked()
	w.grantLocked()
	return nil
}

// Restart recycles the worker through Error and Initializing back to
// Ready, cancelling in-flight tasks and rejecting queued ones. Once the
// restart budget is exhausted the worker transitions to Crashed and
// ErrWorkerCrashed is returned. The health argument records what score
// triggered the restart.
func (w *Worker) Restart(health float64) error {
	w.mu.Lock()
	if w.state.Terminal() {
		state := w.state
		w.mu.Unlock()
		return errors.NewWorkerError("cannot restart", errors.ErrInvalidTransition).
			WithWorkerID(w.id).WithState(state.String())
	}

	w.restarts++
	w.state = StateError
	w.abortAllLocked()

	if w.restarts > w.cfg.MaxRestartAttempts {
		w.state = StateCrashed
		restarts := w.restarts
		stop := w.stopBeat
		w.stopBeat = nil
		w.mu.Unlock()

		if stop != nil {
			close(stop)
		}
		w.publish(event.NewWorkerCrashedEvent(w.id, restarts))
		w.logger.Error("worker crashed", "restarts", restarts)
		return errors.NewWorkerError("restart budget exhausted", errors.ErrWorkerCrashed).
			WithWorkerID(w.id).WithState(StateCrashed.String())
	}

	attempt := w.restarts
	w.state = StateInitializing
	w.state = StateReady
	w.ran = false
	w.errTimes = nil
	w.startedAt = time.Now()
	w.lastBeat = w.startedAt
	w.mu.Unlock()

	w.publish(event.NewWorkerRestartedEvent(w.id, attempt, health))
	w.logger.Warn("worker restarted", "attempt", attempt, "health", health)
	return nil
}

// abortAllLocked cancels every in-flight task and rejects every queued
// submission. Must be called with the mutex held.
func (w *Worker) abortAllLocked() {
	for _, run := range w.active {
		run.cancel()
	}
	w.active = make(map[string]*taskRun)
	for _, p := range w.queue {
		p.cancelled = true
		close(p.ready)
	}
	w.queue = nil
}

// ExecuteTask runs a task on this worker, queueing behind active tasks
// when the worker is at its concurrency limit. It blocks until the task
// settles and returns its result. Queue overflow fails with ErrQueueFull.
func (w *Worker) ExecuteTask(ctx context.Context, t *task.Task) (*task.Result, error) {
	w.mu.Lock()
	if !w.state.Eligible() {
		state := w.state
		w.mu.Unlock()
		return nil, errors.NewWorkerError("worker cannot accept tasks", errors.ErrWorkerUnavailable).
			WithWorkerID(w.id).WithState(state.String())
	}

	if len(w.active) < w.cfg.MaxConcurrentTasks {
		run := w.admitLocked(ctx, t)
		w.mu.Unlock()
		return w.invoke(run)
	}

	if len(w.queue) >= w.cfg.QueueSize {
		w.mu.Unlock()
		return nil, errors.NewWorkerError("task queue at capacity", errors.ErrQueueFull).
			WithWorkerID(w.id)
	}

	p := &pending{t: t, ctx: ctx, ready: make(chan struct{})}
	w.queue = append(w.queue, p)
	w.mu.Unlock()

	select {
	case <-p.ready:
		w.mu.Lock()
		cancelled, run := p.cancelled, p.run
		w.mu.Unlock()
		if cancelled {
			return nil, errors.NewTaskError("task cancelled while queued", errors.ErrCanceled).
				WithTaskID(t.ID)
		}
		return w.invoke(run)

	case <-ctx.Done():
		w.mu.Lock()
		if p.run != nil {
			// Granted while the caller was giving up; the run context
			// is already cancelled, so the invoke settles immediately.
			run := p.run
			w.mu.Unlock()
			return w.invoke(run)
		}
		w.removePendingLocked(p)
		w.mu.Unlock()
		return nil, errors.Wrap(ctx.Err(), "waiting for worker slot")
	}
}

// admitLocked registers an in-flight run for a task.
// Must be called with the mutex held and a free slot available.
func (w *Worker) admitLocked(ctx context.Context, t *task.Task) *taskRun {
	runCtx, cancel := context.WithCancel(ctx)
	run := &taskRun{t: t, ctx: runCtx, cancel: cancel, startedAt: time.Now()}
	w.active[t.ID] = run
	w.refreshLocked()
	return run
}

// invoke executes a run through the worker's executor and settles its
// result.
func (w *Worker) invoke(run *taskRun) (*task.Result, error) {
	res := &task.Result{
		TaskID:    run.t.ID,
		WorkerID:  w.id,
		Attempts:  1,
		StartedAt: run.startedAt,
	}

	out, err := w.executor.Execute(run.ctx, run.t)
	res.FinishedAt = time.Now()
	w.finishTask(run, err)

	if err != nil {
		res.Error = err.Error()
		if errors.Is(err, context.Canceled) {
			res.Status = task.StatusCancelled
			return res, errors.NewTaskError("task cancelled", errors.ErrCanceled).
				WithTaskID(run.t.ID)
		}
		res.Status = task.StatusFailed
		return res, errors.NewTaskError("task execution failed", err).
			WithTaskID(run.t.ID)
	}

	res.Status = task.StatusCompleted
	res.Output = out
	return res, nil
}

// finishTask releases a run's slot, records failures for health scoring,
// and hands freed slots to queued submissions.
func (w *Worker) finishTask(run *taskRun, err error) {
	run.cancel()

	w.mu.Lock()
	defer w.mu.Unlock()

	delete(w.active, run.t.ID)
	w.ran = true
	if err != nil && !errors.Is(err, context.Canceled) {
		now := time.Now()
		w.errTimes = append(w.errTimes, now)
		w.trimErrorsLocked(now)
	}
	w.refreshLocked()
	w.grantLocked()
}

// CancelTask aborts an in-flight task or rejects a queued one. Unknown
// task IDs return false.
func (w *Worker) CancelTask(taskID string) bool {
	w.mu.Lock()
	if run, ok := w.active[taskID]; ok {
		w.mu.Unlock()
		run.cancel()
		return true
	}
	for i, p := range w.queue {
		if p.t.ID == taskID {
			w.queue = append(w.queue[:i], w.queue[i+1:]...)
			p.cancelled = true
			close(p.ready)
			w.mu.Unlock()
			return true
		}
	}
	w.mu.Unlock()
	return false
}

// grantLocked moves queued submissions into free slots, in arrival order.
// Must be called with the mutex held.
func (w *Worker) grantLocked() {
	if w.state == StatePaused || w.state == StateStopping || w.state.Terminal() {
		return
	}
	for len(w.active) < w.cfg.MaxConcurrentTasks && len(w.queue) > 0 {
		p := w.queue[0]
		w.queue = w.queue[1:]
		if p.cancelled {
			continue
		}
		p.run = w.admitLocked(p.ctx, p.t)
		close(p.ready)
	}
}

// removePendingLocked drops an abandoned submission from the queue.
// Must be called with the mutex held.
func (w *Worker) removePendingLocked(target *pending) {
	for i, p := range w.queue {
		if p == target {
			w.queue = append(w.queue[:i], w.queue[i+1:]...)
			return
		}
	}
}

// refreshLocked recomputes the derived busy-state from the active count.
// Explicit states (Paused, Stopping, Error, terminal) are left alone.
// Must be called with the mutex held.
func (w *Worker) refreshLocked() {
	switch w.state {
	case StateReady, StateRunning, StateBusy, StateIdle:
	default:
		return
	}

	var next State
	switch {
	case len(w.active) >= w.cfg.MaxConcurrentTasks:
		next = StateBusy
	case len(w.active) > 0:
		next = StateRunning
	case w.ran:
		next = StateIdle
	default:
		next = StateReady
	}
	if next != w.state && w.state.CanTransition(next) {
		w.state = next
	}
}

// Load returns the worker's current load: active tasks plus queued
// submissions.
func (w *Worker) Load() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.active) + len(w.queue)
}

// ActiveTasks returns the number of in-flight tasks.
func (w *Worker) ActiveTasks() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.active)
}

// Status returns a snapshot of the worker.
func (w *Worker) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := time.Now()
	return Status{
		ID:          w.id,
		Type:        w.cfg.Type,
		State:       w.state,
		Health:      w.healthLocked(now),
		ActiveTasks: len(w.active),
		QueueLength: len(w.queue),
		Restarts:    w.restarts,
		Uptime:      now.Sub(w.startedAt),
	}
}

// Health returns the worker's weighted health score in [0, 1].
func (w *Worker) Health() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.healthLocked(time.Now())
}

// healthLocked combines status validity (0.25), uptime (0.20), memory
// ceiling compliance (0.20), recent errors (0.20), and heartbeat
// freshness (0.15). Must be called with the mutex held.
func (w *Worker) healthLocked(now time.Time) float64 {
	var score float64

	if w.state != StateError && !w.state.Terminal() {
		score += 0.25
	}

	uptime := float64(now.Sub(w.startedAt)) / float64(w.cfg.UptimeTarget)
	if uptime > 1 {
		uptime = 1
	}
	if uptime < 0 {
		uptime = 0
	}
	score += 0.20 * uptime

	memory := 1.0
	if w.cfg.MemoryCeiling > 0 && w.cfg.MemoryProbe != nil {
		if usage := w.cfg.MemoryProbe(); usage > w.cfg.MemoryCeiling {
			memory = float64(w.cfg.MemoryCeiling) / float64(usage)
		}
	}
	score += 0.20 * memory

	w.trimErrorsLocked(now)
	errFrac := float64(len(w.errTimes)) / float64(errorBudget)
	if errFrac > 1 {
		errFrac = 1
	}
	score += 0.20 * (1 - errFrac)

	fresh := 1.0
	if since := now.Sub(w.lastBeat); since > 2*w.cfg.HeartbeatInterval {
		fresh = float64(2*w.cfg.HeartbeatInterval) / float64(since)
	}
	score += 0.15 * fresh

	return score
}

// trimErrorsLocked discards error timestamps outside the scoring window.
// Must be called with the mutex held.
func (w *Worker) trimErrorsLocked(now time.Time) {
	cut := 0
	for cut < len(w.errTimes) && now.Sub(w.errTimes[cut]) > errorWindow {
		cut++
	}
	if cut > 0 {
		w.errTimes = w.errTimes[cut:]
	}
}

func (w *Worker) heartbeatLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(w.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			w.mu.Lock()
			w.lastBeat = time.Now()
			w.mu.Unlock()
		}
	}
}

func (w *Worker) publish(e event.Event) {
	if w.bus != nil {
		w.bus.Publish(e)
	}
}
