package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/taihochan/superclaude-code-pm-sub001/internal/task"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "workers.max_workers")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"DEBUG", "INFO", "WARN", "ERROR"}
}

// ValidSelectionPolicies returns the list of valid worker selection policies
func ValidSelectionPolicies() []string {
	return []string{"least_busy", "round_robin", "weighted"}
}

// ValidStrategies returns the list of valid execution strategies
func ValidStrategies() []string {
	return []string{"aggressive", "balanced", "conservative", "adaptive"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validatePools()...)
	errors = append(errors, c.validateWorkers()...)
	errors = append(errors, c.validateScheduler()...)
	errors = append(errors, c.validateScaling()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

func (c *Config) validatePools() []ValidationError {
	var errors []ValidationError
	p := &c.Pools

	for name, capacity := range p.Capacities {
		if !task.ResourceType(name).IsValid() {
			errors = append(errors, ValidationError{
				Field:   "pools.capacities." + name,
				Value:   name,
				Message: "unknown resource type",
			})
		}
		if capacity <= 0 {
			errors = append(errors, ValidationError{
				Field:   "pools.capacities." + name,
				Value:   capacity,
				Message: "capacity must be positive",
			})
		}
	}
	if p.ScaleThreshold < 0 || p.ScaleThreshold > 1 {
		errors = append(errors, ValidationError{
			Field:   "pools.scale_threshold",
			Value:   p.ScaleThreshold,
			Message: "must be between 0 and 1",
		})
	}
	if p.ScaleStep < 0 || p.ScaleStep > 1 {
		errors = append(errors, ValidationError{
			Field:   "pools.scale_step",
			Value:   p.ScaleStep,
			Message: "must be between 0 and 1",
		})
	}
	if p.WarnThreshold < 0 || p.WarnThreshold > 1 {
		errors = append(errors, ValidationError{
			Field:   "pools.warn_threshold",
			Value:   p.WarnThreshold,
			Message: "must be between 0 and 1",
		})
	}
	if p.MaxCapacityFactor < 0 {
		errors = append(errors, ValidationError{
			Field:   "pools.max_capacity_factor",
			Value:   p.MaxCapacityFactor,
			Message: "cannot be negative",
		})
	}
	if p.SweepTTLMinutes < 0 {
		errors = append(errors, ValidationError{
			Field:   "pools.sweep_ttl_minutes",
			Value:   p.SweepTTLMinutes,
			Message: "cannot be negative",
		})
	}

	return errors
}

func (c *Config) validateWorkers() []ValidationError {
	var errors []ValidationError
	w := &c.Workers

	if w.MinWorkers < 1 {
		errors = append(errors, ValidationError{
			Field:   "workers.min_workers",
			Value:   w.MinWorkers,
			Message: "must be at least 1",
		})
	}
	if w.MaxWorkers < w.MinWorkers {
		errors = append(errors, ValidationError{
			Field:   "workers.max_workers",
			Value:   w.MaxWorkers,
			Message: "cannot be less than min_workers",
		})
	}
	if w.MaxConcurrentTasks < 1 {
		errors = append(errors, ValidationError{
			Field:   "workers.max_concurrent_tasks",
			Value:   w.MaxConcurrentTasks,
			Message: "must be at least 1",
		})
	}
	if w.QueueSize < 0 {
		errors = append(errors, ValidationError{
			Field:   "workers.queue_size",
			Value:   w.QueueSize,
			Message: "cannot be negative",
		})
	}
	if w.MaxRestartAttempts < 0 {
		errors = append(errors, ValidationError{
			Field:   "workers.max_restart_attempts",
			Value:   w.MaxRestartAttempts,
			Message: "cannot be negative",
		})
	}
	if !slices.Contains(ValidSelectionPolicies(), w.Selection) {
		errors = append(errors, ValidationError{
			Field:   "workers.selection",
			Value:   w.Selection,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidSelectionPolicies(), ", ")),
		})
	}
	if w.RestartThreshold < 0 || w.RestartThreshold > 1 {
		errors = append(errors, ValidationError{
			Field:   "workers.restart_threshold",
			Value:   w.RestartThreshold,
			Message: "must be between 0 and 1",
		})
	}

	return errors
}

func (c *Config) validateScheduler() []ValidationError {
	var errors []ValidationError
	s := &c.Scheduler

	if !slices.Contains(ValidStrategies(), s.Strategy) {
		errors = append(errors, ValidationError{
			Field:   "scheduler.strategy",
			Value:   s.Strategy,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidStrategies(), ", ")),
		})
	}
	if s.MaxConcurrency < 1 {
		errors = append(errors, ValidationError{
			Field:   "scheduler.max_concurrency",
			Value:   s.MaxConcurrency,
			Message: "must be at least 1",
		})
	}
	if s.MaxAttempts < 1 {
		errors = append(errors, ValidationError{
			Field:   "scheduler.max_attempts",
			Value:   s.MaxAttempts,
			Message: "must be at least 1",
		})
	}
	if s.InitialBackoffMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "scheduler.initial_backoff_ms",
			Value:   s.InitialBackoffMs,
			Message: "cannot be negative",
		})
	}
	if s.BackoffMultiplier < 1 {
		errors = append(errors, ValidationError{
			Field:   "scheduler.backoff_multiplier",
			Value:   s.BackoffMultiplier,
			Message: "must be at least 1",
		})
	}
	if s.MaxBackoffMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "scheduler.max_backoff_ms",
			Value:   s.MaxBackoffMs,
			Message: "cannot be negative",
		})
	}
	if s.TaskTimeoutSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "scheduler.task_timeout_seconds",
			Value:   s.TaskTimeoutSeconds,
			Message: "cannot be negative",
		})
	}
	if s.AllocationTimeoutSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "scheduler.allocation_timeout_seconds",
			Value:   s.AllocationTimeoutSeconds,
			Message: "must be at least 1",
		})
	}

	return errors
}

func (c *Config) validateScaling() []ValidationError {
	var errors []ValidationError
	s := &c.Scaling

	if s.MinWorkers < 1 {
		errors = append(errors, ValidationError{
			Field:   "scaling.min_workers",
			Value:   s.MinWorkers,
			Message: "must be at least 1",
		})
	}
	if s.MaxWorkers < s.MinWorkers {
		errors = append(errors, ValidationError{
			Field:   "scaling.max_workers",
			Value:   s.MaxWorkers,
			Message: "cannot be less than min_workers",
		})
	}
	if s.ScaleUpThreshold <= 0 {
		errors = append(errors, ValidationError{
			Field:   "scaling.scale_up_threshold",
			Value:   s.ScaleUpThreshold,
			Message: "must be positive",
		})
	}
	if s.ScaleDownThreshold < 0 {
		errors = append(errors, ValidationError{
			Field:   "scaling.scale_down_threshold",
			Value:   s.ScaleDownThreshold,
			Message: "cannot be negative",
		})
	}
	if s.ScaleDownThreshold >= s.ScaleUpThreshold {
		errors = append(errors, ValidationError{
			Field:   "scaling.scale_down_threshold",
			Value:   s.ScaleDownThreshold,
			Message: "must be below scale_up_threshold",
		})
	}
	if s.CooldownSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "scaling.cooldown_seconds",
			Value:   s.CooldownSeconds,
			Message: "cannot be negative",
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError
	l := &c.Logging

	if !slices.Contains(ValidLogLevels(), l.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   l.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}
