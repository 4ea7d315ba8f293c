package config

import (
	"strings"
	"testing"
)

// mutate returns a default config with one field changed by fn.
func mutate(fn func(*Config)) *Config {
	cfg := Default()
	fn(cfg)
	return cfg
}

func TestValidate_SingleFieldErrors(t *testing.T) {
	tests := []struct {
		name      string
		cfg       *Config
		wantField string
	}{
		{
			name:      "unknown resource type",
			cfg:       mutate(func(c *Config) { c.Pools.Capacities["plutonium"] = 5 }),
			wantField: "pools.capacities.plutonium",
		},
		{
			name:      "non-positive capacity",
			cfg:       mutate(func(c *Config) { c.Pools.Capacities["cpu"] = 0 }),
			wantField: "pools.capacities.cpu",
		},
		{
			name:      "scale threshold above 1",
			cfg:       mutate(func(c *Config) { c.Pools.ScaleThreshold = 1.5 }),
			wantField: "pools.scale_threshold",
		},
		{
			name:      "min workers zero",
			cfg:       mutate(func(c *Config) { c.Workers.MinWorkers = 0 }),
			wantField: "workers.min_workers",
		},
		{
			name: "max below min",
			cfg: mutate(func(c *Config) {
				c.Workers.MinWorkers = 5
				c.Workers.MaxWorkers = 2
			}),
			wantField: "workers.max_workers",
		},
		{
			name:      "unknown selection policy",
			cfg:       mutate(func(c *Config) { c.Workers.Selection = "fastest" }),
			wantField: "workers.selection",
		},
		{
			name:      "restart threshold out of range",
			cfg:       mutate(func(c *Config) { c.Workers.RestartThreshold = 2 }),
			wantField: "workers.restart_threshold",
		},
		{
			name:      "unknown strategy",
			cfg:       mutate(func(c *Config) { c.Scheduler.Strategy = "yolo" }),
			wantField: "scheduler.strategy",
		},
		{
			name:      "zero max attempts",
			cfg:       mutate(func(c *Config) { c.Scheduler.MaxAttempts = 0 }),
			wantField: "scheduler.max_attempts",
		},
		{
			name:      "backoff multiplier below 1",
			cfg:       mutate(func(c *Config) { c.Scheduler.BackoffMultiplier = 0.5 }),
			wantField: "scheduler.backoff_multiplier",
		},
		{
			name: "scale down above scale up",
			cfg: mutate(func(c *Config) {
				c.Scaling.ScaleUpThreshold = 1
				c.Scaling.ScaleDownThreshold = 2
			}),
			wantField: "scaling.scale_down_threshold",
		},
		{
			name:      "bad log level",
			cfg:       mutate(func(c *Config) { c.Logging.Level = "verbose" }),
			wantField: "logging.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := tt.cfg.Validate()
			if len(errs) == 0 {
				t.Fatal("Validate() = no errors, want at least one")
			}
			found := false
			for _, e := range errs {
				if e.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("Validate() = %v, want error on field %s", errs, tt.wantField)
			}
		})
	}
}

func TestValidate_CollectsMultipleErrors(t *testing.T) {
	cfg := mutate(func(c *Config) {
		c.Workers.MinWorkers = 0
		c.Scheduler.MaxAttempts = 0
		c.Logging.Level = "loud"
	})

	errs := cfg.Validate()
	if len(errs) < 3 {
		t.Errorf("Validate() returned %d errors, want at least 3: %v", len(errs), errs)
	}
}

func TestValidationErrors_ErrorFormat(t *testing.T) {
	errs := ValidationErrors{
		{Field: "a.b", Value: 1, Message: "bad"},
		{Field: "c.d", Value: "x", Message: "worse"},
	}
	msg := errs.Error()
	if !strings.Contains(msg, "2 validation errors") {
		t.Errorf("Error() = %q, want count prefix", msg)
	}
	if !strings.Contains(msg, "a.b: bad (got: 1)") {
		t.Errorf("Error() = %q, want first error line", msg)
	}

	single := ValidationErrors{{Field: "a", Value: 0, Message: "bad"}}
	if single.Error() != "a: bad (got: 0)" {
		t.Errorf("single Error() = %q", single.Error())
	}
	if (ValidationErrors{}).Error() != "" {
		t.Error("empty Error() should be blank")
	}
}
