package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/taihochan/superclaude-code-pm-sub001/internal/resource"
	"github.com/taihochan/superclaude-code-pm-sub001/internal/scaling"
	"github.com/taihochan/superclaude-code-pm-sub001/internal/task"
	"github.com/taihochan/superclaude-code-pm-sub001/internal/worker"
)

// Config represents the complete engine configuration
type Config struct {
	Pools     PoolsConfig     `mapstructure:"pools"`
	Workers   WorkersConfig   `mapstructure:"workers"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Scaling   ScalingConfig   `mapstructure:"scaling"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// PoolsConfig controls the resource pools the engine allocates from
type PoolsConfig struct {
	// Capacities maps resource type names to pool capacity.
	// Recognized types: cpu, memory, threads, handles, network, storage
	Capacities map[string]int64 `mapstructure:"capacities"`
	// AutoScale enables automatic pool growth under contention
	AutoScale bool `mapstructure:"auto_scale"`
	// ScaleThreshold is the utilization fraction above which pools grow (default: 0.8)
	ScaleThreshold float64 `mapstructure:"scale_threshold"`
	// ScaleStep is the fraction of capacity added per growth step (default: 0.25)
	ScaleStep float64 `mapstructure:"scale_step"`
	// MaxCapacityFactor bounds auto-growth at factor * initial capacity, 0 = unbounded
	MaxCapacityFactor float64 `mapstructure:"max_capacity_factor"`
	// WarnThreshold is the utilization fraction above which a warning event fires (default: 0.9)
	WarnThreshold float64 `mapstructure:"warn_threshold"`
	// SweepTTLMinutes is the age in minutes after which unreleased allocations are reclaimed
	SweepTTLMinutes int `mapstructure:"sweep_ttl_minutes"`
}

// WorkersConfig controls the worker pool
type WorkersConfig struct {
	// MinWorkers is the floor auto-scaling will not shrink below (default: 1)
	MinWorkers int `mapstructure:"min_workers"`
	// MaxWorkers caps the pool size (default: 8)
	MaxWorkers int `mapstructure:"max_workers"`
	// MaxConcurrentTasks bounds simultaneous tasks per worker (default: 4)
	MaxConcurrentTasks int `mapstructure:"max_concurrent_tasks"`
	// QueueSize bounds each worker's FIFO task queue (default: 16)
	QueueSize int `mapstructure:"queue_size"`
	// MaxRestartAttempts before a failing worker is marked crashed (default: 3)
	MaxRestartAttempts int `mapstructure:"max_restart_attempts"`
	// HeartbeatSeconds is the worker liveness refresh interval (default: 5)
	HeartbeatSeconds int `mapstructure:"heartbeat_seconds"`
	// Selection is the load-balancing policy: "least_busy", "round_robin", or "weighted"
	Selection string `mapstructure:"selection"`
	// Failover retries a failed assignment once on a different worker
	Failover bool `mapstructure:"failover"`
	// HealthCheckSeconds is how often worker health is scored (default: 15)
	HealthCheckSeconds int `mapstructure:"health_check_seconds"`
	// RestartThreshold is the health score below which a worker is restarted (default: 0.5)
	RestartThreshold float64 `mapstructure:"restart_threshold"`
}

// SchedulerConfig controls default plan execution policy
type SchedulerConfig struct {
	// Strategy is the default execution strategy: "aggressive", "balanced",
	// "conservative", or "adaptive" (default: "balanced")
	Strategy string `mapstructure:"strategy"`
	// MaxConcurrency caps tasks running at once within a phase (default: 4)
	MaxConcurrency int `mapstructure:"max_concurrency"`
	// MaxAttempts is the total execution attempts per task, including the first (default: 1)
	MaxAttempts int `mapstructure:"max_attempts"`
	// InitialBackoffMs is the delay before the first retry (default: 1000)
	InitialBackoffMs int `mapstructure:"initial_backoff_ms"`
	// BackoffMultiplier scales the delay after each retry (default: 2)
	BackoffMultiplier float64 `mapstructure:"backoff_multiplier"`
	// MaxBackoffMs caps the retry delay, 0 = uncapped
	MaxBackoffMs int `mapstructure:"max_backoff_ms"`
	// TaskTimeoutSeconds bounds one execution attempt, 0 = no limit
	TaskTimeoutSeconds int `mapstructure:"task_timeout_seconds"`
	// ContinueOnError keeps executing unaffected tasks after a failure
	ContinueOnError bool `mapstructure:"continue_on_error"`
	// AllocationTimeoutSeconds bounds waiting on resource pools (default: 30)
	AllocationTimeoutSeconds int `mapstructure:"allocation_timeout_seconds"`
}

// ScalingConfig controls the adaptive load monitor
type ScalingConfig struct {
	// MinWorkers is the scale-down floor (default: 1)
	MinWorkers int `mapstructure:"min_workers"`
	// MaxWorkers is the scale-up ceiling (default: 8)
	MaxWorkers int `mapstructure:"max_workers"`
	// ScaleUpThreshold is the pending task count above which the pool grows (default: 2)
	ScaleUpThreshold int `mapstructure:"scale_up_threshold"`
	// ScaleDownThreshold is the running task count at or below which the pool shrinks
	// once no tasks are pending (default: 1)
	ScaleDownThreshold int `mapstructure:"scale_down_threshold"`
	// CooldownSeconds between scaling decisions (default: 30)
	CooldownSeconds int `mapstructure:"cooldown_seconds"`
}

// LoggingConfig controls structured logging behavior
type LoggingConfig struct {
	// Enabled controls whether logging is enabled (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "DEBUG", "INFO", "WARN", "ERROR" (default: "INFO")
	Level string `mapstructure:"level"`
	// Dir is the directory for log files. Empty logs to stderr only
	Dir string `mapstructure:"dir"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Pools: PoolsConfig{
			Capacities: map[string]int64{
				"cpu":     8,
				"memory":  8192,
				"threads": 64,
				"handles": 1024,
			},
			AutoScale:         false,
			ScaleThreshold:    0.8,
			ScaleStep:         0.25,
			MaxCapacityFactor: 2.0,
			WarnThreshold:     0.9,
			SweepTTLMinutes:   10,
		},
		Workers: WorkersConfig{
			MinWorkers:         1,
			MaxWorkers:         8,
			MaxConcurrentTasks: 4,
			QueueSize:          16,
			MaxRestartAttempts: 3,
			HeartbeatSeconds:   5,
			Selection:          "least_busy",
			Failover:           true,
			HealthCheckSeconds: 15,
			RestartThreshold:   0.5,
		},
		Scheduler: SchedulerConfig{
			Strategy:                 "balanced",
			MaxConcurrency:           4,
			MaxAttempts:              1,
			InitialBackoffMs:         1000,
			BackoffMultiplier:        2,
			MaxBackoffMs:             0,
			TaskTimeoutSeconds:       0,
			ContinueOnError:          false,
			AllocationTimeoutSeconds: 30,
		},
		Scaling: ScalingConfig{
			MinWorkers:         1,
			MaxWorkers:         8,
			ScaleUpThreshold:   2,
			ScaleDownThreshold: 1,
			CooldownSeconds:    30,
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   "INFO",
			Dir:     "",
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Pool defaults
	viper.SetDefault("pools.capacities", defaults.Pools.Capacities)
	viper.SetDefault("pools.auto_scale", defaults.Pools.AutoScale)
	viper.SetDefault("pools.scale_threshold", defaults.Pools.ScaleThreshold)
	viper.SetDefault("pools.scale_step", defaults.Pools.ScaleStep)
	viper.SetDefault("pools.max_capacity_factor", defaults.Pools.MaxCapacityFactor)
	viper.SetDefault("pools.warn_threshold", defaults.Pools.WarnThreshold)
	viper.SetDefault("pools.sweep_ttl_minutes", defaults.Pools.SweepTTLMinutes)

	// Worker defaults
	viper.SetDefault("workers.min_workers", defaults.Workers.MinWorkers)
	viper.SetDefault("workers.max_workers", defaults.Workers.MaxWorkers)
	viper.SetDefault("workers.max_concurrent_tasks", defaults.Workers.MaxConcurrentTasks)
	viper.SetDefault("workers.queue_size", defaults.Workers.QueueSize)
	viper.SetDefault("workers.max_restart_attempts", defaults.Workers.MaxRestartAttempts)
	viper.SetDefault("workers.heartbeat_seconds", defaults.Workers.HeartbeatSeconds)
	viper.SetDefault("workers.selection", defaults.Workers.Selection)
	viper.SetDefault("workers.failover", defaults.Workers.Failover)
	viper.SetDefault("workers.health_check_seconds", defaults.Workers.HealthCheckSeconds)
	viper.SetDefault("workers.restart_threshold", defaults.Workers.RestartThreshold)

	// Scheduler defaults
	viper.SetDefault("scheduler.strategy", defaults.Scheduler.Strategy)
	viper.SetDefault("scheduler.max_concurrency", defaults.Scheduler.MaxConcurrency)
	viper.SetDefault("scheduler.max_attempts", defaults.Scheduler.MaxAttempts)
	viper.SetDefault("scheduler.initial_backoff_ms", defaults.Scheduler.InitialBackoffMs)
	viper.SetDefault("scheduler.backoff_multiplier", defaults.Scheduler.BackoffMultiplier)
	viper.SetDefault("scheduler.max_backoff_ms", defaults.Scheduler.MaxBackoffMs)
	viper.SetDefault("scheduler.task_timeout_seconds", defaults.Scheduler.TaskTimeoutSeconds)
	viper.SetDefault("scheduler.continue_on_error", defaults.Scheduler.ContinueOnError)
	viper.SetDefault("scheduler.allocation_timeout_seconds", defaults.Scheduler.AllocationTimeoutSeconds)

	// Scaling defaults
	viper.SetDefault("scaling.min_workers", defaults.Scaling.MinWorkers)
	viper.SetDefault("scaling.max_workers", defaults.Scaling.MaxWorkers)
	viper.SetDefault("scaling.scale_up_threshold", defaults.Scaling.ScaleUpThreshold)
	viper.SetDefault("scaling.scale_down_threshold", defaults.Scaling.ScaleDownThreshold)
	viper.SetDefault("scaling.cooldown_seconds", defaults.Scaling.CooldownSeconds)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "codepm")
	}
	// Fall back to ~/.config/codepm
	home, err := os.UserHomeDir()
	if err != nil {
		return ".codepm"
	}
	return filepath.Join(home, ".config", "codepm")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// PoolConfigs converts the pool section into resource pool configurations.
// Unrecognized resource type names are skipped; Validate reports them.
func (c *Config) PoolConfigs() []resource.PoolConfig {
	out := make([]resource.PoolConfig, 0, len(c.Pools.Capacities))
	for _, rt := range task.AllocationOrder {
		capacity, ok := c.Pools.Capacities[rt.String()]
		if !ok || capacity <= 0 {
			continue
		}
		pc := resource.PoolConfig{
			Type:           rt,
			Capacity:       capacity,
			AutoScale:      c.Pools.AutoScale,
			ScaleThreshold: c.Pools.ScaleThreshold,
			ScaleStep:      c.Pools.ScaleStep,
			WarnThreshold:  c.Pools.WarnThreshold,
			SweepTTL:       time.Duration(c.Pools.SweepTTLMinutes) * time.Minute,
		}
		if c.Pools.MaxCapacityFactor > 0 {
			pc.MaxCapacity = int64(float64(capacity) * c.Pools.MaxCapacityFactor)
		}
		out = append(out, pc)
	}
	return out
}

// ManagerConfig converts the worker section into a worker pool configuration
func (c *Config) ManagerConfig() worker.ManagerConfig {
	return worker.ManagerConfig{
		MinWorkers: c.Workers.MinWorkers,
		MaxWorkers: c.Workers.MaxWorkers,
		Worker: worker.Config{
			MaxConcurrentTasks: c.Workers.MaxConcurrentTasks,
			QueueSize:          c.Workers.QueueSize,
			MaxRestartAttempts: c.Workers.MaxRestartAttempts,
			HeartbeatInterval:  time.Duration(c.Workers.HeartbeatSeconds) * time.Second,
		},
		Selection:           worker.SelectionPolicy(c.Workers.Selection),
		Failover:            c.Workers.Failover,
		HealthCheckInterval: time.Duration(c.Workers.HealthCheckSeconds) * time.Second,
		RestartThreshold:    c.Workers.RestartThreshold,
	}
}

// Policy converts the scheduler section into the default execution policy
func (c *Config) Policy() task.Policy {
	return task.Policy{
		Strategy:       task.Strategy(c.Scheduler.Strategy),
		MaxConcurrency: c.Scheduler.MaxConcurrency,
		Retry: task.RetryPolicy{
			MaxAttempts:       c.Scheduler.MaxAttempts,
			InitialBackoff:    time.Duration(c.Scheduler.InitialBackoffMs) * time.Millisecond,
			BackoffMultiplier: c.Scheduler.BackoffMultiplier,
			MaxBackoff:        time.Duration(c.Scheduler.MaxBackoffMs) * time.Millisecond,
		},
		Timeout:         time.Duration(c.Scheduler.TaskTimeoutSeconds) * time.Second,
		ContinueOnError: c.Scheduler.ContinueOnError,
	}
}

// AllocationTimeout returns the resource allocation wait bound
func (c *Config) AllocationTimeout() time.Duration {
	return time.Duration(c.Scheduler.AllocationTimeoutSeconds) * time.Second
}

// ScalingOptions converts the scaling section into policy options for the
// load monitor
func (c *Config) ScalingOptions() []scaling.Option {
	return []scaling.Option{
		scaling.WithMinWorkers(c.Scaling.MinWorkers),
		scaling.WithMaxWorkers(c.Scaling.MaxWorkers),
		scaling.WithScaleUpThreshold(c.Scaling.ScaleUpThreshold),
		scaling.WithScaleDownThreshold(c.Scaling.ScaleDownThreshold),
		scaling.WithCooldownPeriod(time.Duration(c.Scaling.CooldownSeconds) * time.Second),
	}
}
