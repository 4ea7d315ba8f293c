package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/taihochan/superclaude-code-pm-sub001/internal/errors"
	"github.com/taihochan/superclaude-code-pm-sub001/internal/logging"
	"github.com/taihochan/superclaude-code-pm-sub001/internal/task"
)

func newTestManager(t *testing.T, cfg ManagerConfig, exec task.Executor) *Manager {
	t.Helper()
	if exec == nil {
		exec = echoExecutor()
	}
	m := NewManager(cfg, exec, nil, logging.NopLogger())
	t.Cleanup(func() { m.StopAll("test done") })
	return m
}

// ---- Pool management ----

func TestManagerEnsureWorkersHonorsCap(t *testing.T) {
	m := newTestManager(t, ManagerConfig{MaxWorkers: 3}, nil)

	if err := m.EnsureWorkers(5); err != nil {
		t.Fatalf("EnsureWorkers() error = %v", err)
	}
	if m.Count() != 3 {
		t.Errorf("Count() = %d, want capped at 3", m.Count())
	}

	// Already satisfied; no growth.
	if err := m.EnsureWorkers(2); err != nil {
		t.Fatalf("EnsureWorkers(2) error = %v", err)
	}
	if m.Count() != 3 {
		t.Errorf("Count() = %d after smaller ensure", m.Count())
	}
}

func TestManagerStartWorkerAtCap(t *testing.T) {
	m := newTestManager(t, ManagerConfig{MaxWorkers: 1}, nil)

	if _, err := m.StartWorker(); err != nil {
		t.Fatalf("StartWorker() error = %v", err)
	}
	if _, err := m.StartWorker(); !errors.Is(err, errors.ErrWorkerUnavailable) {
		t.Errorf("error = %v, want ErrWorkerUnavailable at cap", err)
	}
}

func TestManagerStartWorkerConcurrentCap(t *testing.T) {
	m := newTestManager(t, ManagerConfig{MaxWorkers: 1}, nil)

	var wg sync.WaitGroup
	var started atomic.Int32
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.StartWorker(); err == nil {
				started.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := started.Load(); got != 1 {
		t.Errorf("successful StartWorker calls = %d, want 1", got)
	}
	if m.Count() != 1 {
		t.Errorf("Count() = %d, want cap of 1", m.Count())
	}
}

func TestManagerStopWorkerUnknown(t *testing.T) {
	m := newTestManager(t, ManagerConfig{}, nil)
	if err := m.StopWorker("nope", "test"); !errors.Is(err, errors.ErrWorkerNotFound) {
		t.Errorf("error = %v, want ErrWorkerNotFound", err)
	}
}

// ---- Assignment and selection ----

func TestManagerAssignTask(t *testing.T) {
	m := newTestManager(t, ManagerConfig{}, nil)
	if err := m.EnsureWorkers(2); err != nil {
		t.Fatalf("EnsureWorkers() error = %v", err)
	}

	res, err := m.AssignTask(context.Background(), &task.Task{ID: "t1"})
	if err != nil {
		t.Fatalf("AssignTask() error = %v", err)
	}
	if res.Status != task.StatusCompleted || res.WorkerID == "" {
		t.Errorf("result = %+v", res)
	}
}

func TestManagerAssignTaskNoWorkers(t *testing.T) {
	m := newTestManager(t, ManagerConfig{}, nil)
	if _, err := m.AssignTask(context.Background(), &task.Task{ID: "t1"}); !errors.Is(err, errors.ErrWorkerUnavailable) {
		t.Errorf("error = %v, want ErrWorkerUnavailable", err)
	}
}

func TestManagerRoundRobinSelection(t *testing.T) {
	m := newTestManager(t, ManagerConfig{Selection: SelectRoundRobin, MaxWorkers: 3}, nil)
	if err := m.EnsureWorkers(3); err != nil {
		t.Fatalf("EnsureWorkers() error = %v", err)
	}

	seen := make(map[string]bool)
	for i := 0; i < 3; i++ {
		w, err := m.SelectWorker("", nil)
		if err != nil {
			t.Fatalf("SelectWorker() error = %v", err)
		}
		seen[w.ID()] = true
	}
	if len(seen) != 3 {
		t.Errorf("round-robin visited %d distinct workers over 3 picks, want 3", len(seen))
	}
}

func TestManagerLeastBusySelection(t *testing.T) {
	release := make(chan struct{})
	m := newTestManager(t, ManagerConfig{Selection: SelectLeastBusy, MaxWorkers: 2},
		blockingExecutor(release))
	if err := m.EnsureWorkers(2); err != nil {
		t.Fatalf("EnsureWorkers() error = %v", err)
	}

	busy, err := m.SelectWorker("", nil)
	if err != nil {
		t.Fatalf("SelectWorker() error = %v", err)
	}
	go func() { _, _ = busy.ExecuteTask(context.Background(), &task.Task{ID: "t1"}) }()
	waitFor(t, "t1 running", func() bool { return busy.ActiveTasks() == 1 })

	next, err := m.SelectWorker("", nil)
	if err != nil {
		t.Fatalf("SelectWorker() error = %v", err)
	}
	if next.ID() == busy.ID() {
		t.Error("least-busy picked the loaded worker")
	}

	close(release)
}

func TestManagerWeightedSelectionPrefersTypeMatch(t *testing.T) {
	m := NewManager(ManagerConfig{Selection: SelectWeighted, MaxWorkers: 2},
		echoExecutor(), nil, logging.NopLogger())
	t.Cleanup(func() { m.StopAll("test done") })

	// Two workers with distinct types, registered by hand.
	build := NewWorker(Config{Type: "build"}, echoExecutor(), nil, logging.NopLogger())
	lint := NewWorker(Config{Type: "lint"}, echoExecutor(), nil, logging.NopLogger())
	for _, w := range []*Worker{build, lint} {
		if err := w.Start(); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		m.mu.Lock()
		m.workers[w.ID()] = w
		m.order = append(m.order, w.ID())
		m.mu.Unlock()
	}

	w, err := m.SelectWorker("lint", nil)
	if err != nil {
		t.Fatalf("SelectWorker() error = %v", err)
	}
	if w.ID() != lint.ID() {
		t.Errorf("weighted selection picked %q worker, want type match", w.Type())
	}
}

func TestManagerSelectionExcludes(t *testing.T) {
	m := newTestManager(t, ManagerConfig{MaxWorkers: 2}, nil)
	if err := m.EnsureWorkers(2); err != nil {
		t.Fatalf("EnsureWorkers() error = %v", err)
	}

	first, err := m.SelectWorker("", nil)
	if err != nil {
		t.Fatalf("SelectWorker() error = %v", err)
	}
	second, err := m.SelectWorker("", map[string]bool{first.ID(): true})
	if err != nil {
		t.Fatalf("SelectWorker(exclude) error = %v", err)
	}
	if second.ID() == first.ID() {
		t.Error("selection returned an excluded worker")
	}

	_, err = m.SelectWorker("", map[string]bool{first.ID(): true, second.ID(): true})
	if !errors.Is(err, errors.ErrWorkerUnavailable) {
		t.Errorf("error = %v, want ErrWorkerUnavailable with all excluded", err)
	}
}

// ---- Failover ----

func TestManagerFailoverRetriesOnce(t *testing.T) {
	var calls atomic.Int32
	exec := task.ExecutorFunc(func(ctx context.Context, tk *task.Task) (any, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("transient failure")
		}
		return tk.ID, nil
	})
	m := newTestManager(t, ManagerConfig{Failover: true, MaxWorkers: 2}, exec)
	if err := m.EnsureWorkers(2); err != nil {
		t.Fatalf("EnsureWorkers() error = %v", err)
	}

	res, err := m.AssignTask(context.Background(), &task.Task{ID: "t1"})
	if err != nil {
		t.Fatalf("AssignTask() error = %v, want failover success", err)
	}
	if res.Status != task.StatusCompleted {
		t.Errorf("result = %+v", res)
	}
	if calls.Load() != 2 {
		t.Errorf("executor calls = %d, want 2", calls.Load())
	}
}

func TestManagerFailoverDisabled(t *testing.T) {
	var calls atomic.Int32
	exec := task.ExecutorFunc(func(ctx context.Context, tk *task.Task) (any, error) {
		calls.Add(1)
		return nil, errors.New("boom")
	})
	m := newTestManager(t, ManagerConfig{Failover: false, MaxWorkers: 2}, exec)
	if err := m.EnsureWorkers(2); err != nil {
		t.Fatalf("EnsureWorkers() error = %v", err)
	}

	if _, err := m.AssignTask(context.Background(), &task.Task{ID: "t1"}); !errors.Is(err, errors.ErrTaskFailed) {
		t.Fatalf("error = %v, want ErrTaskFailed", err)
	}
	if calls.Load() != 1 {
		t.Errorf("executor calls = %d, want 1 without failover", calls.Load())
	}
}

func TestManagerFailoverSingleWorker(t *testing.T) {
	exec := task.ExecutorFunc(func(ctx context.Context, tk *task.Task) (any, error) {
		return nil, errors.New("boom")
	})
	m := newTestManager(t, ManagerConfig{Failover: true, MaxWorkers: 1}, exec)
	if err := m.EnsureWorkers(1); err != nil {
		t.Fatalf("EnsureWorkers() error = %v", err)
	}

	// No second worker to fail over to; the original error surfaces.
	if _, err := m.AssignTask(context.Background(), &task.Task{ID: "t1"}); !errors.Is(err, errors.ErrTaskFailed) {
		t.Errorf("error = %v, want ErrTaskFailed", err)
	}
}

// ---- Auto-scaling ----

func TestManagerAutoScaleExplicitTarget(t *testing.T) {
	m := newTestManager(t, ManagerConfig{MinWorkers: 1, MaxWorkers: 4}, nil)

	created, stopped := m.AutoScale(6)
	if created != 4 || stopped != 0 {
		t.Errorf("AutoScale(6) = (%d, %d), want (4, 0) capped", created, stopped)
	}
	if m.Count() != 4 {
		t.Errorf("Count() = %d, want 4", m.Count())
	}

	created, stopped = m.AutoScale(2)
	if created != 0 || stopped != 2 {
		t.Errorf("AutoScale(2) = (%d, %d), want (0, 2)", created, stopped)
	}
	if m.Count() != 2 {
		t.Errorf("Count() = %d, want 2", m.Count())
	}
}

func TestManagerAutoScaleNeverStopsLoadedWorkers(t *testing.T) {
	release := make(chan struct{})
	m := newTestManager(t, ManagerConfig{MinWorkers: 1, MaxWorkers: 3},
		blockingExecutor(release))
	if err := m.EnsureWorkers(3); err != nil {
		t.Fatalf("EnsureWorkers() error = %v", err)
	}

	busy, err := m.SelectWorker("", nil)
	if err != nil {
		t.Fatalf("SelectWorker() error = %v", err)
	}
	go func() { _, _ = busy.ExecuteTask(context.Background(), &task.Task{ID: "t1"}) }()
	waitFor(t, "t1 running", func() bool { return busy.ActiveTasks() == 1 })

	m.AutoScale(1)

	if m.Count() != 1 {
		t.Errorf("Count() = %d, want 1", m.Count())
	}
	statuses := m.Status()
	if len(statuses) != 1 || statuses[0].ID != busy.ID() {
		t.Errorf("surviving worker = %+v, want the loaded one", statuses)
	}

	close(release)
}

func TestManagerAutoScaleDerivedTarget(t *testing.T) {
	release := make(chan struct{})
	m := newTestManager(t, ManagerConfig{
		MinWorkers:        1,
		MaxWorkers:        5,
		AvgTasksPerWorker: 2,
		Worker:            Config{MaxConcurrentTasks: 4},
	}, blockingExecutor(release))
	if err := m.EnsureWorkers(1); err != nil {
		t.Fatalf("EnsureWorkers() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, _ = m.AssignTask(context.Background(), &task.Task{ID: string(rune('a' + n))})
		}(i)
	}
	waitFor(t, "load to build", func() bool { return m.Load() == 6 })

	// ceil(6 / 2) = 3 workers.
	created, _ := m.AutoScale(0)
	if created != 2 || m.Count() != 3 {
		t.Errorf("created = %d, Count() = %d, want 2 created for a pool of 3", created, m.Count())
	}

	close(release)
	wg.Wait()
}

// ---- Health supervision ----

func TestManagerCheckHealthRestartsAndRemoves(t *testing.T) {
	// Memory probe far over ceiling plus a long uptime target keeps the
	// score under the restart threshold permanently.
	m := newTestManager(t, ManagerConfig{
		MaxWorkers:       1,
		RestartThreshold: 0.7,
		Worker: Config{
			UptimeTarget:       time.Hour,
			MemoryCeiling:      1,
			MemoryProbe:        func() int64 { return 1 << 30 },
			MaxRestartAttempts: 1,
		},
	}, nil)
	if err := m.EnsureWorkers(1); err != nil {
		t.Fatalf("EnsureWorkers() error = %v", err)
	}

	restarted, crashed := m.CheckHealth()
	if restarted != 1 || crashed != 0 {
		t.Fatalf("first CheckHealth() = (%d, %d), want (1, 0)", restarted, crashed)
	}
	if m.Count() != 1 {
		t.Fatalf("Count() = %d after restart", m.Count())
	}

	restarted, crashed = m.CheckHealth()
	if restarted != 0 || crashed != 1 {
		t.Fatalf("second CheckHealth() = (%d, %d), want (0, 1)", restarted, crashed)
	}
	if m.Count() != 0 {
		t.Errorf("Count() = %d, want crashed worker removed", m.Count())
	}
}

func TestManagerMonitorRemovesUnhealthyWorkers(t *testing.T) {
	// Same unhealthy setup as above, but driven by the periodic loop
	// instead of explicit CheckHealth calls.
	m := newTestManager(t, ManagerConfig{
		MaxWorkers:          1,
		RestartThreshold:    0.7,
		HealthCheckInterval: 10 * time.Millisecond,
		Worker: Config{
			UptimeTarget:       time.Hour,
			MemoryCeiling:      1,
			MemoryProbe:        func() int64 { return 1 << 30 },
			MaxRestartAttempts: 1,
		},
	}, nil)
	if err := m.EnsureWorkers(1); err != nil {
		t.Fatalf("EnsureWorkers() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Monitor(ctx)

	waitFor(t, "unhealthy worker crashed out", func() bool { return m.Count() == 0 })
}

func TestManagerPauseResumeAll(t *testing.T) {
	m := newTestManager(t, ManagerConfig{MaxWorkers: 2}, nil)
	if err := m.EnsureWorkers(2); err != nil {
		t.Fatalf("EnsureWorkers() error = %v", err)
	}

	m.PauseAll()
	for _, st := range m.Status() {
		if st.State != StatePaused {
			t.Errorf("worker %s state = %s, want paused", st.ID, st.State)
		}
	}

	if _, err := m.AssignTask(context.Background(), &task.Task{ID: "t1"}); !errors.Is(err, errors.ErrWorkerUnavailable) {
		t.Errorf("error = %v, want ErrWorkerUnavailable while paused", err)
	}

	m.ResumeAll()
	if _, err := m.AssignTask(context.Background(), &task.Task{ID: "t2"}); err != nil {
		t.Errorf("AssignTask() after resume error = %v", err)
	}
}
