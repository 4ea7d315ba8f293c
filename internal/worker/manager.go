package worker

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/taihochan/superclaude-code-pm-sub001/internal/errors"
	"github.com/taihochan/superclaude-code-pm-sub001/internal/event"
	"github.com/taihochan/superclaude-code-pm-sub001/internal/logging"
	"github.com/taihochan/superclaude-code-pm-sub001/internal/task"
)

// SelectionPolicy names a worker selection strategy.
type SelectionPolicy string

const (
	// SelectRoundRobin cycles an index over the eligible workers.
	SelectRoundRobin SelectionPolicy = "round_robin"

	// SelectLeastBusy picks the eligible worker with the lowest load.
	SelectLeastBusy SelectionPolicy = "least_busy"

	// SelectWeighted scores eligible workers on type match, load, and
	// health, and picks the highest.
	SelectWeighted SelectionPolicy = "weighted"
)

// Weighted selection scoring constants.
const (
	weightBase        = 1.0
	weightTypeBonus   = 0.5
	weightLoadPenalty = 0.1
	weightHealthBonus = 0.5
)

// ManagerConfig holds pool-level settings.
type ManagerConfig struct {
	// MinWorkers is the floor AutoScale will not shrink below.
	MinWorkers int

	// MaxWorkers caps the pool size.
	MaxWorkers int

	// Worker is the template configuration for new workers.
	Worker Config

	// Selection picks the load-balancing strategy.
	Selection SelectionPolicy

	// Failover retries a failed assignment once on a different worker.
	Failover bool

	// HealthCheckInterval is how often Monitor scores the pool.
	HealthCheckInterval time.Duration

	// RestartThreshold is the health score below which a worker is
	// restarted.
	RestartThreshold float64

	// AvgTasksPerWorker is the load AutoScale targets per worker.
	AvgTasksPerWorker float64
}

func (c ManagerConfig) withDefaults() ManagerConfig {
	if c.MinWorkers <= 0 {
		c.MinWorkers = 1
	}
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = 8
	}
	if c.MaxWorkers < c.MinWorkers {
		c.MaxWorkers = c.MinWorkers
	}
	if c.Selection == "" {
		c.Selection = SelectLeastBusy
	}
	if c.HealthCheckInterval <= 0 {
		c.HealthCheckInterval = 15 * time.Second
	}
	if c.RestartThreshold <= 0 {
		c.RestartThreshold = 0.5
	}
	if c.AvgTasksPerWorker <= 0 {
		c.AvgTasksPerWorker = 3
	}
	return c
}

// Manager owns a pool of workers: creation, selection, failover, health
// supervision, and scaling. It is safe for concurrent use.
type Manager struct {
	cfg      ManagerConfig
	executor task.Executor
	bus      *event.Bus
	logger   *logging.Logger

	mu      sync.Mutex
	workers map[string]*Worker
	order   []string // creation order, for round-robin cycling
	rr      int
}

// NewManager creates a worker pool manager. Workers are not created until
// EnsureWorkers or AutoScale is called.
func NewManager(cfg ManagerConfig, executor task.Executor, bus *event.Bus, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Manager{
		cfg:      cfg.withDefaults(),
		executor: executor,
		bus:      bus,
		logger:   logger,
		workers:  make(map[string]*Worker),
	}
}

// StartWorker creates and starts one worker, honoring the pool cap.
// The worker is registered in the same critical section as the cap check
// so concurrent callers cannot overshoot MaxWorkers together.
func (m *Manager) StartWorker() (*Worker, error) {
	w := NewWorker(m.cfg.Worker, m.executor, m.bus, m.logger)

	m.mu.Lock()
	if len(m.workers) >= m.cfg.MaxWorkers {
		m.mu.Unlock()
		return nil, errors.NewWorkerError("worker pool at capacity", errors.ErrWorkerUnavailable).
			WithRetryable(false)
	}
	m.workers[w.ID()] = w
	m.order = append(m.order, w.ID())
	m.mu.Unlock()

	if err := w.Start(); err != nil {
		m.mu.Lock()
		m.removeLocked(w.ID())
		m.mu.Unlock()
		return nil, err
	}
	return w, nil
}

// StopWorker stops a worker and removes it from the pool.
func (m *Manager) StopWorker(workerID, reason string) error {
	m.mu.Lock()
	w, ok := m.workers[workerID]
	if ok {
		m.removeLocked(workerID)
	}
	m.mu.Unlock()

	if !ok {
		return errors.NewWorkerError("unknown worker", errors.ErrWorkerNotFound).
			WithWorkerID(workerID)
	}
	return w.Stop(reason)
}

// removeLocked drops a worker from the registry and the round-robin
// order. Must be called with the mutex held.
func (m *Manager) removeLocked(workerID string) {
	delete(m.workers, workerID)
	for i, id := range m.order {
		if id == workerID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			if m.rr > i {
				m.rr--
			}
			break
		}
	}
}

// EnsureWorkers grows the pool to at least n workers, bounded by the
// pool cap. It never shrinks the pool.
func (m *Manager) EnsureWorkers(n int) error {
	if n > m.cfg.MaxWorkers {
		n = m.cfg.MaxWorkers
	}
	for {
		m.mu.Lock()
		have := len(m.workers)
		m.mu.Unlock()
		if have >= n {
			return nil
		}
		if _, err := m.StartWorker(); err != nil {
			return err
		}
	}
}

// Count returns the number of workers in the pool.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.workers)
}

// Load returns the aggregate load over all workers.
func (m *Manager) Load() int {
	m.mu.Lock()
	workers := m.snapshotLocked()
	m.mu.Unlock()

	total := 0
	for _, w := range workers {
		total += w.Load()
	}
	return total
}

// snapshotLocked copies the worker list in creation order.
// Must be called with the mutex held.
func (m *Manager) snapshotLocked() []*Worker {
	out := make([]*Worker, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.workers[id])
	}
	return out
}

// SelectWorker picks an eligible worker for a task type under the
// configured policy. Workers in exclude are skipped, which failover uses
// to avoid reassigning to the worker that just failed.
func (m *Manager) SelectWorker(taskType string, exclude map[string]bool) (*Worker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var eligible []*Worker
	for _, id := range m.order {
		w := m.workers[id]
		if exclude[id] || !w.State().Eligible() {
			continue
		}
		eligible = append(eligible, w)
	}
	if len(eligible) == 0 {
		return nil, errors.NewWorkerError("no eligible worker", errors.ErrWorkerUnavailable).
			WithRetryable(true)
	}

	switch m.cfg.Selection {
	case SelectRoundRobin:
		w := eligible[m.rr%len(eligible)]
		m.rr++
		return w, nil

	case SelectWeighted:
		best := eligible[0]
		bestScore := math.Inf(-1)
		for _, w := range eligible {
			score := weightBase + weightHealthBonus*w.Health() - weightLoadPenalty*float64(w.Load())
			if w.Type() == "" || w.Type() == taskType {
				score += weightTypeBonus
			}
			if score > bestScore {
				best, bestScore = w, score
			}
		}
		return best, nil

	default: // least-busy
		best := eligible[0]
		bestLoad := best.Load()
		for _, w := range eligible[1:] {
			if load := w.Load(); load < bestLoad {
				best, bestLoad = w, load
			}
		}
		return best, nil
	}
}

// AssignTask selects a worker and executes the task on it. If the
// execution fails and failover is enabled, the task is retried exactly
// once on a different eligible worker; the retry itself never fails over
// again. Cancellations are not failed over.
func (m *Manager) AssignTask(ctx context.Context, t *task.Task) (*task.Result, error) {
	w, err := m.SelectWorker(t.Type, nil)
	if err != nil {
		return nil, err
	}

	res, err := w.ExecuteTask(ctx, t)
	if err == nil || !m.cfg.Failover {
		return res, err
	}
	if errors.Is(err, errors.ErrCanceled) || ctx.Err() != nil {
		return res, err
	}

	next, selErr := m.SelectWorker(t.Type, map[string]bool{w.ID(): true})
	if selErr != nil {
		return res, err
	}
	m.logger.Warn("failing task over",
		"task_id", t.ID, "from", w.ID(), "to", next.ID(), "error", err.Error())
	return next.ExecuteTask(ctx, t)
}

// CancelTask aborts a task on whichever worker holds it.
func (m *Manager) CancelTask(taskID string) bool {
	m.mu.Lock()
	workers := m.snapshotLocked()
	m.mu.Unlock()

	for _, w := range workers {
		if w.CancelTask(taskID) {
			return true
		}
	}
	return false
}

// AutoScale moves the pool toward a target worker count. A target of
// zero or less derives the target from aggregate load divided by the
// configured average tasks per worker. The pool never exceeds its cap,
// never shrinks below its floor, and only idle workers with no held
// tasks are stopped. It returns how many workers were created and
// stopped.
func (m *Manager) AutoScale(target int) (created, stopped int) {
	if target <= 0 {
		load := m.Load()
		target = int(math.Ceil(float64(load) / m.cfg.AvgTasksPerWorker))
	}
	if target < m.cfg.MinWorkers {
		target = m.cfg.MinWorkers
	}
	if target > m.cfg.MaxWorkers {
		target = m.cfg.MaxWorkers
	}

	for m.Count() < target {
		if _, err := m.StartWorker(); err != nil {
			m.logger.Warn("auto-scale could not start worker", "error", err.Error())
			break
		}
		created++
	}

	if m.Count() > target {
		m.mu.Lock()
		candidates := m.snapshotLocked()
		m.mu.Unlock()

		for _, w := range candidates {
			if m.Count() <= target {
				break
			}
			if w.Load() > 0 {
				continue
			}
			state := w.State()
			if state != StateIdle && state != StateReady {
				continue
			}
			if err := m.StopWorker(w.ID(), "scaled_down"); err == nil {
				stopped++
			}
		}
	}

	if created > 0 || stopped > 0 {
		m.logger.Info("worker pool scaled",
			"target", target, "created", created, "stopped", stopped, "size", m.Count())
	}
	return created, stopped
}

// CheckHealth scores every worker, restarts those under the threshold,
// and removes workers that crash out of their restart budget. It returns
// the number of restarts performed and crashes removed.
func (m *Manager) CheckHealth() (restarted, crashed int) {
	m.mu.Lock()
	workers := m.snapshotLocked()
	m.mu.Unlock()

	for _, w := range workers {
		if w.State().Terminal() {
			m.mu.Lock()
			m.removeLocked(w.ID())
			m.mu.Unlock()
			continue
		}
		health := w.Health()
		if health >= m.cfg.RestartThreshold {
			continue
		}
		err := w.Restart(health)
		switch {
		case err == nil:
			restarted++
		case errors.Is(err, errors.ErrWorkerCrashed):
			crashed++
			m.mu.Lock()
			m.removeLocked(w.ID())
			m.mu.Unlock()
		}
	}
	return restarted, crashed
}

// Monitor runs periodic health checks until the context is cancelled.
func (m *Manager) Monitor(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.HealthCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			restarted, crashed := m.CheckHealth()
			if restarted > 0 || crashed > 0 {
				m.logger.Warn("health sweep acted on workers",
					"restarted", restarted, "crashed", crashed)
			}
		}
	}
}

// PauseAll pauses every worker that can be paused.
func (m *Manager) PauseAll() {
	m.mu.Lock()
	workers := m.snapshotLocked()
	m.mu.Unlock()
	for _, w := range workers {
		_ = w.Pause()
	}
}

// ResumeAll resumes every paused worker.
func (m *Manager) ResumeAll() {
	m.mu.Lock()
	workers := m.snapshotLocked()
	m.mu.Unlock()
	for _, w := range workers {
		_ = w.Resume()
	}
}

// StopAll stops every worker and empties the pool.
func (m *Manager) StopAll(reason string) {
	m.mu.Lock()
	workers := m.snapshotLocked()
	m.workers = make(map[string]*Worker)
	m.order = nil
	m.rr = 0
	m.mu.Unlock()

	for _, w := range workers {
		_ = w.Stop(reason)
	}
}

// Status returns a snapshot of every worker in creation order.
func (m *Manager) Status() []Status {
	m.mu.Lock()
	workers := m.snapshotLocked()
	m.mu.Unlock()

	out := make([]Status, 0, len(workers))
	for _, w := range workers {
		out = append(out, w.Status())
	}
	return out
}
