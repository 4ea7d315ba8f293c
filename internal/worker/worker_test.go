package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/taihochan/superclaude-code-pm-sub001/internal/errors"
	"github.com/taihochan/superclaude-code-pm-sub001/internal/logging"
	"github.com/taihochan/superclaude-code-pm-sub001/internal/task"
)

func echoExecutor() task.Executor {
	return task.ExecutorFunc(func(ctx context.Context, t *task.Task) (any, error) {
		return t.ID, nil
	})
}

// blockingExecutor runs tasks that park until release receives a value or
// the task context is cancelled.
func blockingExecutor(release <-chan struct{}) task.Executor {
	return task.ExecutorFunc(func(ctx context.Context, t *task.Task) (any, error) {
		select {
		case <-release:
			return t.ID, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
}

func startWorker(t *testing.T, cfg Config, exec task.Executor) *Worker {
	t.Helper()
	w := NewWorker(cfg, exec, nil, logging.NopLogger())
	if err := w.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = w.Stop("test done") })
	return w
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// ---- Lifecycle ----

func TestWorkerStartStop(t *testing.T) {
	w := NewWorker(Config{}, echoExecutor(), nil, logging.NopLogger())
	if w.State() != StateInitializing {
		t.Fatalf("new worker state = %s", w.State())
	}

	if err := w.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if w.State() != StateReady {
		t.Errorf("state after start = %s, want ready", w.State())
	}

	if err := w.Start(); !errors.Is(err, errors.ErrInvalidTransition) {
		t.Errorf("second Start() error = %v, want ErrInvalidTransition", err)
	}

	if err := w.Stop("test"); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if w.State() != StateStopped {
		t.Errorf("state after stop = %s, want stopped", w.State())
	}
	if err := w.Stop("test"); err != nil {
		t.Errorf("second Stop() error = %v, want nil", err)
	}
}

func TestWorkerNotEligibleAfterStop(t *testing.T) {
	w := startWorker(t, Config{}, echoExecutor())
	_ = w.Stop("test")

	_, err := w.ExecuteTask(context.Background(), &task.Task{ID: "t1"})
	if !errors.Is(err, errors.ErrWorkerUnavailable) {
		t.Errorf("error = %v, want ErrWorkerUnavailable", err)
	}
}

// ---- Execution ----

func TestWorkerExecuteTask(t *testing.T) {
	w := startWorker(t, Config{}, echoExecutor())

	res, err := w.ExecuteTask(context.Background(), &task.Task{ID: "t1"})
	if err != nil {
		t.Fatalf("ExecuteTask() error = %v", err)
	}
	if res.Status != task.StatusCompleted || res.Output != "t1" || res.WorkerID != w.ID() {
		t.Errorf("result = %+v", res)
	}
	if res.FinishedAt.Before(res.StartedAt) {
		t.Error("FinishedAt before StartedAt")
	}
	if w.State() != StateIdle {
		t.Errorf("state after completion = %s, want idle", w.State())
	}
}

func TestWorkerExecuteFailure(t *testing.T) {
	exec := task.ExecutorFunc(func(ctx context.Context, tk *task.Task) (any, error) {
		return nil, errors.New("boom")
	})
	w := startWorker(t, Config{}, exec)

	res, err := w.ExecuteTask(context.Background(), &task.Task{ID: "t1"})
	if !errors.Is(err, errors.ErrTaskFailed) {
		t.Fatalf("error = %v, want ErrTaskFailed", err)
	}
	if res == nil || res.Status != task.StatusFailed || res.Error == "" {
		t.Errorf("result = %+v", res)
	}
}

func TestWorkerQueueFIFO(t *testing.T) {
	release := make(chan struct{})
	var mu sync.Mutex
	var order []string
	exec := task.ExecutorFunc(func(ctx context.Context, tk *task.Task) (any, error) {
		mu.Lock()
		order = append(order, tk.ID)
		mu.Unlock()
		select {
		case <-release:
			return tk.ID, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	w := startWorker(t, Config{MaxConcurrentTasks: 1, QueueSize: 4}, exec)

	var wg sync.WaitGroup
	for _, id := range []string{"t1", "t2", "t3"} {
		id := id
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := w.ExecuteTask(context.Background(), &task.Task{ID: id}); err != nil {
				t.Errorf("ExecuteTask(%s) error = %v", id, err)
			}
		}()
		// Serialize submission so queue order is deterministic.
		if id == "t1" {
			waitFor(t, "t1 running", func() bool { return w.ActiveTasks() == 1 })
		} else {
			want := map[string]int{"t2": 1, "t3": 2}[id]
			waitFor(t, id+" queued", func() bool { return w.Status().QueueLength == want })
		}
	}

	if w.State() != StateBusy {
		t.Errorf("state = %s, want busy at concurrency limit", w.State())
	}

	for i := 0; i < 3; i++ {
		release <- struct{}{}
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 || order[0] != "t1" || order[1] != "t2" || order[2] != "t3" {
		t.Errorf("execution order = %v, want [t1 t2 t3]", order)
	}
}

func TestWorkerQueueFull(t *testing.T) {
	release := make(chan struct{})
	w := startWorker(t, Config{MaxConcurrentTasks: 1, QueueSize: 1}, blockingExecutor(release))

	go func() { _, _ = w.ExecuteTask(context.Background(), &task.Task{ID: "t1"}) }()
	waitFor(t, "t1 running", func() bool { return w.ActiveTasks() == 1 })
	go func() { _, _ = w.ExecuteTask(context.Background(), &task.Task{ID: "t2"}) }()
	waitFor(t, "t2 queued", func() bool { return w.Status().QueueLength == 1 })

	_, err := w.ExecuteTask(context.Background(), &task.Task{ID: "t3"})
	if !errors.Is(err, errors.ErrQueueFull) {
		t.Errorf("error = %v, want ErrQueueFull", err)
	}

	close(release)
}

// ---- Cancellation ----

func TestWorkerCancelActiveTask(t *testing.T) {
	release := make(chan struct{})
	w := startWorker(t, Config{}, blockingExecutor(release))

	done := make(chan error, 1)
	go func() {
		_, err := w.ExecuteTask(context.Background(), &task.Task{ID: "t1"})
		done <- err
	}()
	waitFor(t, "t1 running", func() bool { return w.ActiveTasks() == 1 })

	if !w.CancelTask("t1") {
		t.Fatal("CancelTask(t1) = false")
	}
	select {
	case err := <-done:
		if !errors.Is(err, errors.ErrCanceled) {
			t.Errorf("error = %v, want ErrCanceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled task did not settle")
	}

	if w.CancelTask("t1") {
		t.Error("CancelTask(t1) = true after settlement")
	}
}

func TestWorkerCancelQueuedTask(t *testing.T) {
	release := make(chan struct{})
	executed := make(map[string]bool)
	var mu sync.Mutex
	exec := task.ExecutorFunc(func(ctx context.Context, tk *task.Task) (any, error) {
		mu.Lock()
		executed[tk.ID] = true
		mu.Unlock()
		select {
		case <-release:
			return tk.ID, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	w := startWorker(t, Config{MaxConcurrentTasks: 1}, exec)

	go func() { _, _ = w.ExecuteTask(context.Background(), &task.Task{ID: "t1"}) }()
	waitFor(t, "t1 running", func() bool { return w.ActiveTasks() == 1 })

	done := make(chan error, 1)
	go func() {
		_, err := w.ExecuteTask(context.Background(), &task.Task{ID: "t2"})
		done <- err
	}()
	waitFor(t, "t2 queued", func() bool { return w.Status().QueueLength == 1 })

	if !w.CancelTask("t2") {
		t.Fatal("CancelTask(t2) = false")
	}
	if err := <-done; !errors.Is(err, errors.ErrCanceled) {
		t.Errorf("error = %v, want ErrCanceled", err)
	}

	close(release)
	mu.Lock()
	defer mu.Unlock()
	if executed["t2"] {
		t.Error("cancelled queued task was executed")
	}
}

// ---- Pause / Resume ----

func TestWorkerPauseResume(t *testing.T) {
	release := make(chan struct{})
	w := startWorker(t, Config{MaxConcurrentTasks: 1}, blockingExecutor(release))

	go func() { _, _ = w.ExecuteTask(context.Background(), &task.Task{ID: "t1"}) }()
	waitFor(t, "t1 running", func() bool { return w.ActiveTasks() == 1 })

	done := make(chan struct{})
	go func() {
		_, _ = w.ExecuteTask(context.Background(), &task.Task{ID: "t2"})
		close(done)
	}()
	waitFor(t, "t2 queued", func() bool { return w.Status().QueueLength == 1 })

	if err := w.Pause(); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}

	// Finish the in-flight task; the queued one must stay held.
	release <- struct{}{}
	waitFor(t, "t1 settled", func() bool { return w.ActiveTasks() == 0 })
	if st := w.Status(); st.QueueLength != 1 {
		t.Fatalf("queue drained while paused: %+v", st)
	}

	if err := w.Resume(); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	waitFor(t, "t2 running", func() bool { return w.ActiveTasks() == 1 })
	release <- struct{}{}
	<-done
}

// ---- Restart and crash ----

func TestWorkerRestartBudget(t *testing.T) {
	w := startWorker(t, Config{MaxRestartAttempts: 2}, echoExecutor())

	for attempt := 1; attempt <= 2; attempt++ {
		if err := w.Restart(0.3); err != nil {
			t.Fatalf("Restart() attempt %d error = %v", attempt, err)
		}
		if w.State() != StateReady {
			t.Fatalf("state after restart %d = %s, want ready", attempt, w.State())
		}
	}

	err := w.Restart(0.3)
	if !errors.Is(err, errors.ErrWorkerCrashed) {
		t.Fatalf("error = %v, want ErrWorkerCrashed", err)
	}
	if w.State() != StateCrashed {
		t.Errorf("state = %s, want crashed", w.State())
	}
	if err := w.Restart(0.3); !errors.Is(err, errors.ErrInvalidTransition) {
		t.Errorf("Restart() on crashed worker error = %v, want ErrInvalidTransition", err)
	}
}

func TestWorkerRestartAbortsWork(t *testing.T) {
	release := make(chan struct{})
	w := startWorker(t, Config{MaxConcurrentTasks: 1, MaxRestartAttempts: 3}, blockingExecutor(release))

	running := make(chan error, 1)
	go func() {
		_, err := w.ExecuteTask(context.Background(), &task.Task{ID: "t1"})
		running <- err
	}()
	waitFor(t, "t1 running", func() bool { return w.ActiveTasks() == 1 })

	queued := make(chan error, 1)
	go func() {
		_, err := w.ExecuteTask(context.Background(), &task.Task{ID: "t2"})
		queued <- err
	}()
	waitFor(t, "t2 queued", func() bool { return w.Status().QueueLength == 1 })

	if err := w.Restart(0.2); err != nil {
		t.Fatalf("Restart() error = %v", err)
	}

	if err := <-running; !errors.Is(err, errors.ErrCanceled) {
		t.Errorf("in-flight task error = %v, want ErrCanceled", err)
	}
	if err := <-queued; !errors.Is(err, errors.ErrCanceled) {
		t.Errorf("queued task error = %v, want ErrCanceled", err)
	}
	if st := w.Status(); st.ActiveTasks != 0 || st.QueueLength != 0 {
		t.Errorf("status after restart = %+v", st)
	}
}

// ---- Health scoring ----

func TestWorkerHealthScore(t *testing.T) {
	w := startWorker(t, Config{UptimeTarget: time.Nanosecond}, echoExecutor())

	if health := w.Health(); health < 0.99 {
		t.Errorf("fresh worker health = %.2f, want ~1.0", health)
	}
}

func TestWorkerHealthDegradesWithErrors(t *testing.T) {
	exec := task.ExecutorFunc(func(ctx context.Context, tk *task.Task) (any, error) {
		return nil, errors.New("boom")
	})
	w := startWorker(t, Config{UptimeTarget: time.Nanosecond}, exec)

	for i := 0; i < errorBudget; i++ {
		_, _ = w.ExecuteTask(context.Background(), &task.Task{ID: "t"})
	}

	health := w.Health()
	if health > 0.85 || health < 0.75 {
		t.Errorf("health after %d errors = %.2f, want ~0.80", errorBudget, health)
	}
}

func TestWorkerHealthMemoryCeiling(t *testing.T) {
	w := startWorker(t, Config{
		UptimeTarget:  time.Nanosecond,
		MemoryCeiling: 100,
		MemoryProbe:   func() int64 { return 400 },
	}, echoExecutor())

	// Memory component drops from 0.20 to 0.05 at 4x the ceiling.
	health := w.Health()
	if health > 0.90 || health < 0.80 {
		t.Errorf("health over memory ceiling = %.2f, want ~0.85", health)
	}
}
