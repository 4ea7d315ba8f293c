package resource

import (
	"time"

	"github.com/taihochan/superclaude-code-pm-sub001/internal/task"
)

// Default pool tuning values.
const (
	defaultScaleThreshold = 0.8
	defaultScaleStep      = 0.25
	defaultWarnThreshold  = 0.9
	defaultSweepTTL       = 10 * time.Minute
)

// PoolConfig configures a single resource pool.
type PoolConfig struct {
	// Type identifies the resource this pool manages.
	Type task.ResourceType

	// Capacity is the initial total capacity.
	Capacity int64

	// AutoScale enables automatic capacity growth when an allocation
	// request fails while utilization is above ScaleThreshold.
	AutoScale bool

	// ScaleThreshold is the utilization fraction above which auto-scaling
	// triggers. Zero uses the default of 0.8.
	ScaleThreshold float64

	// ScaleStep is the fraction of current capacity added per growth step.
	// Zero uses the default of 0.25.
	ScaleStep float64

	// MaxCapacity bounds auto-scaling growth. Zero means unbounded.
	MaxCapacity int64

	// WarnThreshold is the utilization fraction above which the pool
	// publishes a resource.warning event. Zero uses the default of 0.9.
	WarnThreshold float64

	// SweepTTL is the age after which an unreleased allocation is
	// considered leaked and reclaimed by Sweep. Zero uses the default of
	// ten minutes.
	SweepTTL time.Duration
}

// withDefaults returns the config with zero tuning fields filled in.
func (c PoolConfig) withDefaults() PoolConfig {
	if c.ScaleThreshold <= 0 {
		c.ScaleThreshold = defaultScaleThreshold
	}
	if c.ScaleStep <= 0 {
		c.ScaleStep = defaultScaleStep
	}
	if c.WarnThreshold <= 0 {
		c.WarnThreshold = defaultWarnThreshold
	}
	if c.SweepTTL <= 0 {
		c.SweepTTL = defaultSweepTTL
	}
	return c
}

// Allocation records one granted amount from a pool. Allocations are
// released by ID, exactly once.
type Allocation struct {
	// ID uniquely identifies this allocation.
	ID string

	// Pool is the resource type the allocation came from.
	Pool task.ResourceType

	// Amount is the granted amount.
	Amount int64

	// CreatedAt is when the allocation was granted.
	CreatedAt time.Time
}

// Reservation holds capacity aside without allocating it. Reservations
// expire automatically at ExpiresAt.
type Reservation struct {
	// ID uniquely identifies this reservation.
	ID string

	// Pool is the resource type the reservation came from.
	Pool task.ResourceType

	// Amount is the reserved amount.
	Amount int64

	// CreatedAt is when the reservation was made.
	CreatedAt time.Time

	// ExpiresAt is when the reservation lapses. Zero means no expiry.
	ExpiresAt time.Time
}

// AllocateOptions controls how an allocation request behaves under
// contention.
type AllocateOptions struct {
	// Priority orders waiting requests: higher values are served first,
	// FIFO within the same priority.
	Priority int

	// Wait enqueues the request when the pool cannot satisfy it
	// immediately. Without Wait the request fails fast.
	Wait bool

	// Timeout bounds how long a waiting request may queue. Zero with Wait
	// set means wait until the context is done.
	Timeout time.Duration
}

// PoolStatus is a point-in-time snapshot of one pool's accounting.
type PoolStatus struct {
	Type      task.ResourceType `json:"type"`
	Capacity  int64             `json:"capacity"`
	Allocated int64             `json:"allocated"`
	Reserved  int64             `json:"reserved"`
	Available int64             `json:"available"`
	Waiting   int               `json:"waiting"`
}

// Utilization returns the committed fraction of capacity, 0..1.
func (s PoolStatus) Utilization() float64 {
	if s.Capacity == 0 {
		return 0
	}
	return float64(s.Allocated+s.Reserved) / float64(s.Capacity)
}
