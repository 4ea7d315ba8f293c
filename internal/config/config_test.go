package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/taihochan/superclaude-code-pm-sub001/internal/scaling"
	"github.com/taihochan/superclaude-code-pm-sub001/internal/task"
	"github.com/taihochan/superclaude-code-pm-sub001/internal/worker"
)

// resetViper gives each test a clean global viper with defaults applied.
func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	SetDefaults()
	t.Cleanup(viper.Reset)
}

func TestDefault_PassesValidation(t *testing.T) {
	if errs := Default().Validate(); len(errs) != 0 {
		t.Errorf("Default().Validate() = %v, want no errors", errs)
	}
}

func TestLoad_Defaults(t *testing.T) {
	resetViper(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Workers.MaxWorkers != 8 {
		t.Errorf("Workers.MaxWorkers = %d, want 8", cfg.Workers.MaxWorkers)
	}
	if cfg.Scheduler.Strategy != "balanced" {
		t.Errorf("Scheduler.Strategy = %q, want balanced", cfg.Scheduler.Strategy)
	}
	if cfg.Pools.Capacities["cpu"] != 8 {
		t.Errorf("Pools.Capacities[cpu] = %d, want 8", cfg.Pools.Capacities["cpu"])
	}
}

func TestLoad_FromFile(t *testing.T) {
	resetViper(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
workers:
  max_workers: 3
  selection: weighted
scheduler:
  strategy: adaptive
  max_attempts: 4
pools:
  capacities:
    cpu: 2
    memory: 512
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig() error = %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Workers.MaxWorkers != 3 {
		t.Errorf("Workers.MaxWorkers = %d, want 3", cfg.Workers.MaxWorkers)
	}
	if cfg.Workers.Selection != "weighted" {
		t.Errorf("Workers.Selection = %q, want weighted", cfg.Workers.Selection)
	}
	if cfg.Scheduler.Strategy != "adaptive" {
		t.Errorf("Scheduler.Strategy = %q, want adaptive", cfg.Scheduler.Strategy)
	}
	// Unset fields keep their defaults.
	if cfg.Workers.MinWorkers != 1 {
		t.Errorf("Workers.MinWorkers = %d, want default 1", cfg.Workers.MinWorkers)
	}
}

func TestLoad_InvalidFileRejected(t *testing.T) {
	resetViper(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
workers:
  max_workers: 0
  min_workers: 5
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig() error = %v", err)
	}

	if _, err := Load(); err == nil {
		t.Error("Load() error = nil, want validation failure")
	}
}

func TestGet_FallsBackToDefaults(t *testing.T) {
	resetViper(t)

	cfg := Get()
	if cfg == nil {
		t.Fatal("Get() = nil")
	}
	if cfg.Workers.MaxWorkers != Default().Workers.MaxWorkers {
		t.Errorf("Get().Workers.MaxWorkers = %d, want default", cfg.Workers.MaxWorkers)
	}
}

// ---- Conversions ----

func TestPoolConfigs_FollowsAllocationOrder(t *testing.T) {
	cfg := Default()
	cfg.Pools.Capacities = map[string]int64{
		"cpu":     4,
		"memory":  1024,
		"storage": 50,
	}

	pools := cfg.PoolConfigs()
	got := make([]task.ResourceType, len(pools))
	for i, p := range pools {
		got[i] = p.Type
	}
	want := []task.ResourceType{task.ResourceMemory, task.ResourceCPU, task.ResourceStorage}
	if len(got) != len(want) {
		t.Fatalf("pool types = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("pool[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestPoolConfigs_MaxCapacityFactor(t *testing.T) {
	cfg := Default()
	cfg.Pools.Capacities = map[string]int64{"cpu": 10}
	cfg.Pools.MaxCapacityFactor = 1.5

	pools := cfg.PoolConfigs()
	if len(pools) != 1 {
		t.Fatalf("len(pools) = %d, want 1", len(pools))
	}
	if pools[0].MaxCapacity != 15 {
		t.Errorf("MaxCapacity = %d, want 15", pools[0].MaxCapacity)
	}
	if pools[0].SweepTTL != 10*time.Minute {
		t.Errorf("SweepTTL = %v, want 10m", pools[0].SweepTTL)
	}
}

func TestPoolConfigs_SkipsZeroCapacity(t *testing.T) {
	cfg := Default()
	cfg.Pools.Capacities = map[string]int64{"cpu": 0, "memory": 100}

	pools := cfg.PoolConfigs()
	if len(pools) != 1 || pools[0].Type != task.ResourceMemory {
		t.Errorf("pools = %+v, want memory only", pools)
	}
}

func TestManagerConfigConversion(t *testing.T) {
	cfg := Default()
	cfg.Workers.Selection = "round_robin"
	cfg.Workers.HeartbeatSeconds = 7

	mc := cfg.ManagerConfig()
	if mc.Selection != worker.SelectRoundRobin {
		t.Errorf("Selection = %v, want round_robin", mc.Selection)
	}
	if mc.Worker.HeartbeatInterval != 7*time.Second {
		t.Errorf("HeartbeatInterval = %v, want 7s", mc.Worker.HeartbeatInterval)
	}
	if mc.MaxWorkers != 8 {
		t.Errorf("MaxWorkers = %d, want 8", mc.MaxWorkers)
	}
}

func TestPolicyConversion(t *testing.T) {
	cfg := Default()
	cfg.Scheduler.Strategy = "conservative"
	cfg.Scheduler.MaxAttempts = 3
	cfg.Scheduler.InitialBackoffMs = 250

	p := cfg.Policy()
	if p.Strategy != task.StrategyConservative {
		t.Errorf("Strategy = %v, want conservative", p.Strategy)
	}
	if p.Retry.MaxAttempts != 3 {
		t.Errorf("Retry.MaxAttempts = %d, want 3", p.Retry.MaxAttempts)
	}
	if p.Retry.InitialBackoff != 250*time.Millisecond {
		t.Errorf("Retry.InitialBackoff = %v, want 250ms", p.Retry.InitialBackoff)
	}
}

func TestScalingOptionsConversion(t *testing.T) {
	cfg := Default()
	cfg.Scaling.MaxWorkers = 3
	cfg.Scaling.ScaleUpThreshold = 1
	cfg.Scaling.CooldownSeconds = 0

	policy := scaling.NewPolicy(cfg.ScalingOptions()...)
	decision := policy.Evaluate(scaling.LoadStatus{Pending: 5, Total: 5}, 1)
	if decision.Action != scaling.ActionScaleUp {
		t.Fatalf("Action = %v, want scale_up", decision.Action)
	}
	if decision.Target != 3 {
		t.Errorf("Target = %d, want max_workers cap of 3", decision.Target)
	}
}

// ---- Watch ----

func TestWatch_ReloadsOnWrite(t *testing.T) {
	resetViper(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("workers:\n  max_workers: 4\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig() error = %v", err)
	}

	reloaded := make(chan *Config, 4)
	w, err := Watch(path, func(c *Config) { reloaded <- c })
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(path, []byte("workers:\n  max_workers: 6\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Workers.MaxWorkers != 6 {
			t.Errorf("reloaded MaxWorkers = %d, want 6", cfg.Workers.MaxWorkers)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no reload callback after write")
	}
}

func TestWatch_DropsInvalidReload(t *testing.T) {
	resetViper(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("workers:\n  max_workers: 4\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig() error = %v", err)
	}

	reloaded := make(chan *Config, 4)
	w, err := Watch(path, func(c *Config) { reloaded <- c })
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	defer w.Close()

	// min above max fails validation, so no callback fires.
	if err := os.WriteFile(path, []byte("workers:\n  max_workers: 0\n  min_workers: 9\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-reloaded:
		t.Errorf("got reload %+v, want invalid config dropped", cfg)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatch_CloseIdempotent(t *testing.T) {
	resetViper(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := Watch(path, func(*Config) {})
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
