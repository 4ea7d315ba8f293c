package task

import (
	"time"
)

// -----------------------------------------------------------------------------
// Execution Strategy
// -----------------------------------------------------------------------------

// Strategy selects how aggressively a plan uses available concurrency.
// The strategy only affects the effective maxConcurrency fed to worker
// preparation and phase execution; it never changes correctness semantics.
type Strategy string

const (
	// StrategyAggressive maximizes concurrency up to hard caps.
	StrategyAggressive Strategy = "aggressive"

	// StrategyBalanced uses moderate concurrency. This is the default.
	StrategyBalanced Strategy = "balanced"

	// StrategyConservative uses low concurrency, favoring stability.
	StrategyConservative Strategy = "conservative"

	// StrategyAdaptive recomputes concurrency periodically from observed
	// load instead of using a fixed value.
	StrategyAdaptive Strategy = "adaptive"
)

// String returns the string representation of the strategy.
func (s Strategy) String() string {
	return string(s)
}

// IsValid returns true if this is a recognized strategy.
func (s Strategy) IsValid() bool {
	switch s {
	case StrategyAggressive, StrategyBalanced, StrategyConservative, StrategyAdaptive:
		return true
	default:
		return false
	}
}

// Concurrency maps the strategy to an effective concurrency limit given the
// policy's configured maximum. Adaptive starts from the balanced value and is
// re-tuned during execution.
func (s Strategy) Concurrency(maxConcurrency int) int {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	switch s {
	case StrategyAggressive:
		return maxConcurrency
	case StrategyConservative:
		n := maxConcurrency / 4
		if n < 1 {
			n = 1
		}
		return n
	default: // balanced, adaptive
		n := maxConcurrency / 2
		if n < 1 {
			n = 1
		}
		return n
	}
}

// -----------------------------------------------------------------------------
// Retry Policy
// -----------------------------------------------------------------------------

// RetryPolicy controls retries of failed task executions.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	// 1 means no retries; 0 is treated as 1.
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`

	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration `json:"initial_backoff" yaml:"initial_backoff"`

	// BackoffMultiplier scales the delay after each retry. Values below 1
	// are treated as 1 (constant backoff).
	BackoffMultiplier float64 `json:"backoff_multiplier" yaml:"backoff_multiplier"`

	// MaxBackoff caps the delay between attempts. Zero means uncapped.
	MaxBackoff time.Duration `json:"max_backoff" yaml:"max_backoff"`
}

// DefaultRetryPolicy returns the policy used when a plan doesn't set one:
// a single attempt with no retries.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       1,
		InitialBackoff:    time.Second,
		BackoffMultiplier: 2,
	}
}

// Attempts returns the effective number of attempts, never less than 1.
func (p RetryPolicy) Attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Backoff returns the delay to wait before the given retry. The first retry
// is retry 1 (after the initial attempt failed).
func (p RetryPolicy) Backoff(retry int) time.Duration {
	if retry < 1 {
		return 0
	}
	d := p.InitialBackoff
	mult := p.BackoffMultiplier
	if mult < 1 {
		mult = 1
	}
	for i := 1; i < retry; i++ {
		d = time.Duration(float64(d) * mult)
		if p.MaxBackoff > 0 && d > p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		return p.MaxBackoff
	}
	return d
}

// -----------------------------------------------------------------------------
// Execution Policy
// -----------------------------------------------------------------------------

// Policy configures how a plan executes its task set.
type Policy struct {
	// Strategy selects the concurrency profile.
	Strategy Strategy `json:"strategy" yaml:"strategy"`

	// MaxConcurrency caps how many tasks may run at once within a phase.
	MaxConcurrency int `json:"max_concurrency" yaml:"max_concurrency"`

	// ResourceLimits is the resource budget reserved for the whole plan
	// before execution begins. Empty means no reservation.
	ResourceLimits map[ResourceType]int64 `json:"resource_limits,omitempty" yaml:"resource_limits,omitempty"`

	// Retry controls per-task retry behavior.
	Retry RetryPolicy `json:"retry" yaml:"retry"`

	// Timeout bounds a single task execution attempt. Zero means no limit.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// ContinueOnError controls failure propagation. When false, the plan
	// aborts after the phase containing the first failure. When true,
	// execution continues and only transitive dependents of failed tasks
	// are skipped.
	ContinueOnError bool `json:"continue_on_error" yaml:"continue_on_error"`
}

// DefaultPolicy returns a balanced policy with moderate concurrency.
func DefaultPolicy() Policy {
	return Policy{
		Strategy:       StrategyBalanced,
		MaxConcurrency: 4,
		Retry:          DefaultRetryPolicy(),
	}
}

// EffectiveConcurrency resolves the strategy-adjusted concurrency limit.
func (p Policy) EffectiveConcurrency() int {
	return p.Strategy.Concurrency(p.MaxConcurrency)
}
