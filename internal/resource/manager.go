package resource

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

// GlobalAllocation is an atomic group of per-pool allocations created for
// one plan. It is released as a unit.
type GlobalAllocation struct {
	// ID uniquely identifies the group.
	ID string

	// CreatedAt is when the group was fully acquired.
	CreatedAt time.Time

	// Allocations holds the per-pool allocations, in acquisition order.
	Allocations []*Allocation
}

// Amount returns the allocated amount for a resource type, 0 if none.
func (g *GlobalAllocation) Amount(rt task.ResourceType) int64 {
	for _, a := range g.Allocations {
		if a.Pool == rt {
			return a.Amount
		}
	}
	return 0
}

// Manager composes typed pools into atomic multi-pool allocations.
// It is safe for concurrent use.
type Manager struct {
	mu     sync.Mutex
	pools  map[task.ResourceType]*Pool
	groups map[string]*GlobalAllocation
	logger *logging.Logger
}

// NewManager creates a Manager with one pool per config entry. The bus may
// be nil to disable pool warning events.
func NewManager(configs []PoolConfig, bus *event.Bus, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NopLogger()
	}
	pools := make(map[task.ResourceType]*Pool, len(configs))
	for _, cfg := range configs {
		pools[cfg.Type] = NewPool(cfg, bus, logger)
	}
	return &Manager{
		pools:  pools,
		groups: make(map[string]*GlobalAllocation),
		logger: logger,
	}
}

// Pool returns the pool for a resource type, or nil if the manager has no
// pool of that type.
func (m *Manager) Pool(rt task.ResourceType) *Pool {
	return m.pools[rt]
}

// AllocateResources acquires the given requirements across pools as a unit.
// Pools are visited in task.AllocationOrder so concurrent callers cannot
// deadlock each other, and if any single-pool request fails, every
// allocation already acquired in this batch is rolled back before the error
// is returned. Requirements for types the manager has no pool for fail the
// whole request.
func (m *Manager) AllocateResources(ctx context.Context, requirements map[task.ResourceType]int64, opts AllocateOptions) (*GlobalAllocation, error) {
	if len(requirements) == 0 {
		return nil, errors.NewValidationError("no resource requirements given")
	}

	group := &GlobalAllocation{ID: uuid.NewString()}

	for _, rt := range task.AllocationOrder {
		amount, wanted := requirements[rt]
		if !wanted || amount == 0 {
			continue
		}

		pool := m.pools[rt]
		if pool == nil {
			m.rollback(group)
			return nil, errors.NewResourceError("no pool for resource type", errors.ErrInsufficientResources).
				WithPool(rt.String())
		}

		alloc, err := pool.Allocate(ctx, amount, opts)
		if err != nil {
			m.rollback(group)
			return nil, errors.Wrapf(err, "allocating %s", rt)
		}
		group.Allocations = append(group.Allocations, alloc)
	}

	group.CreatedAt = time.Now()

	m.mu.Lock()
	m.groups[group.ID] = group
	m.mu.Unlock()

	m.logger.Debug("global allocation acquired",
		"group_id", group.ID, "pools", len(group.Allocations))
	return group, nil
}

// rollback returns every allocation in the group to its pool.
func (m *Manager) rollback(group *GlobalAllocation) {
	for _, alloc := range group.Allocations {
		if pool := m.pools[alloc.Pool]; pool != nil {
			pool.Release(alloc.ID)
		}
	}
	group.Allocations = nil
}

// ReleaseResources releases a global allocation as a unit. Unknown group
// IDs return false.
func (m *Manager) ReleaseResources(groupID string) bool {
	m.mu.Lock()
	group, ok := m.groups[groupID]
	if ok {
		delete(m.groups, groupID)
	}
	m.mu.Unlock()

	if !ok {
		return false
	}
	m.rollback(group)
	m.logger.Debug("global allocation released", "group_id", groupID)
	return true
}

// Sweep runs the leak sweep on every pool and returns total reclaimed
// allocation and reservation counts.
func (m *Manager) Sweep(now time.Time) (allocs, reservations int) {
	for _, pool := range m.pools {
		a, r := pool.Sweep(now)
		allocs += a
		reservations += r
	}
	return allocs, reservations
}

// Status returns a snapshot of every pool keyed by resource type.
func (m *Manager) Status() map[task.ResourceType]PoolStatus {
	statuses := make(map[task.ResourceType]PoolStatus, len(m.pools))
	for rt, pool := range m.pools {
		statuses[rt] = pool.Status()
	}
	return statuses
}
