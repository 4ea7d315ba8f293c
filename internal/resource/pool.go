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

// waiter is a queued allocation request. The grant channel is buffered so
// the releasing goroutine can hand over an allocation without blocking
// while it holds the pool mutex.
type waiter struct {
	id       string
	amount   int64
	priority int
	grant    chan *Allocation
}

// Pool is a typed capacity counter supporting allocate, reserve, release,
// and a priority-ordered waiting queue. All accounting mutations are
// serialized by the pool mutex; the invariant allocated+reserved <= capacity
// holds at every point observable by callers.
type Pool struct {
	mu  sync.Mutex
	cfg PoolConfig

	capacity  int64
	allocated int64
	reserved  int64

	allocations  map[string]*Allocation
	reservations map[string]*Reservation
	waiters      []*waiter

	bus    *event.Bus
	logger *logging.Logger
	warned bool
}

// NewPool creates a pool from the given config. The bus may be nil to
// disable warning events.
func NewPool(cfg PoolConfig, bus *event.Bus, logger *logging.Logger) *Pool {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Pool{
		cfg:          cfg,
		capacity:     cfg.Capacity,
		allocations:  make(map[string]*Allocation),
		reservations: make(map[string]*Reservation),
		bus:          bus,
		logger:       logger.With("pool", cfg.Type.String()),
	}
}

// Type returns the resource type this pool manages.
func (p *Pool) Type() task.ResourceType {
	return p.cfg.Type
}

// available must be called with the mutex held.
func (p *Pool) available() int64 {
	return p.capacity - p.allocated - p.reserved
}

// Allocate grants amount from the pool, or fails with a *errors.ResourceError
// when the pool cannot satisfy it.
//
// Under contention: if auto-scaling is enabled and utilization exceeds the
// scale threshold, capacity grows by one step and the request is retried
// once. Otherwise, if opts.Wait is set the request queues (priority-ordered,
// FIFO within priority) until capacity frees, the timeout elapses, or ctx is
// done.
func (p *Pool) Allocate(ctx context.Context, amount int64, opts AllocateOptions) (*Allocation, error) {
	if amount <= 0 {
		return nil, errors.NewValidationError("allocation amount must be positive").
			WithField("amount").WithValue(amount)
	}

	p.mu.Lock()

	if alloc := p.tryGrant(amount); alloc != nil {
		p.checkWarning()
		p.mu.Unlock()
		return alloc, nil
	}

	// Growth is attempted once per request, before queueing.
	if p.cfg.AutoScale && p.utilization() >= p.cfg.ScaleThreshold {
		p.grow()
		if alloc := p.tryGrant(amount); alloc != nil {
			p.checkWarning()
			p.mu.Unlock()
			return alloc, nil
		}
	}

	if !opts.Wait {
		avail := p.available()
		p.mu.Unlock()
		return nil, errors.NewResourceError("allocate failed", errors.ErrInsufficientResources).
			WithPool(p.cfg.Type.String()).
			WithRequested(amount).
			WithAvailable(avail)
	}

	w := &waiter{
		id:       uuid.NewString(),
		amount:   amount,
		priority: opts.Priority,
		grant:    make(chan *Allocation, 1),
	}
	p.enqueue(w)
	p.checkWarning()
	p.mu.Unlock()

	var timeout <-chan time.Time
	if opts.Timeout > 0 {
		timer := time.NewTimer(opts.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case alloc := <-w.grant:
		return alloc, nil

	case <-timeout:
		if alloc := p.abandon(w); alloc != nil {
			// A release granted us capacity while the timer fired.
			return alloc, nil
		}
		return nil, errors.NewTimeoutError("waiting for "+p.cfg.Type.String()+" allocation", opts.Timeout).
			WithCause(errors.ErrAllocationTimeout)

	case <-ctx.Done():
		if alloc := p.abandon(w); alloc != nil {
			// The grant raced the cancellation; return the capacity.
			p.Release(alloc.ID)
		}
		return nil, errors.Wrap(ctx.Err(), "waiting for "+p.cfg.Type.String()+" allocation")
	}
}

// tryGrant allocates amount if available, else returns nil.
// Must be called with the mutex held.
func (p *Pool) tryGrant(amount int64) *Allocation {
	if p.available() < amount {
		return nil
	}
	alloc := &Allocation{
		ID:        uuid.NewString(),
		Pool:      p.cfg.Type,
		Amount:    amount,
		CreatedAt: time.Now(),
	}
	p.allocated += amount
	p.allocations[alloc.ID] = alloc
	return alloc
}

// enqueue inserts a waiter after the last entry with priority >= its own,
// preserving FIFO order within each priority band.
// Must be called with the mutex held.
func (p *Pool) enqueue(w *waiter) {
	idx := len(p.waiters)
	for i, existing := range p.waiters {
		if existing.priority < w.priority {
			idx = i
			break
		}
	}
	p.waiters = append(p.waiters, nil)
	copy(p.waiters[idx+1:], p.waiters[idx:])
	p.waiters[idx] = w
}

// abandon removes a waiter from the queue. If the waiter was already
// granted, the grant is returned so the caller can decide what to do with
// it.
func (p *Pool) abandon(w *waiter) *Allocation {
	p.mu.Lock()
	for i, queued := range p.waiters {
		if queued.id == w.id {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			p.mu.Unlock()
			return nil
		}
	}
	p.mu.Unlock()

	// Not queued anymore: a grant is in flight.
	select {
	case alloc := <-w.grant:
		return alloc
	default:
		return nil
	}
}

// Release returns an allocation's amount to the pool and hands freed
// capacity to the head of the waiting queue. Releasing an unknown or
// already-released ID is a no-op that returns false; pool accounting is
// never corrupted by a double release.
func (p *Pool) Release(id string) bool {
	p.mu.Lock()
	alloc, ok := p.allocations[id]
	if !ok {
		p.mu.Unlock()
		return false
	}
	delete(p.allocations, id)
	p.allocated -= alloc.Amount
	p.drainWaiters()
	p.checkWarning()
	p.mu.Unlock()
	return true
}

// drainWaiters grants as many queued requests as the freed capacity covers,
// in queue order. Must be called with the mutex held.
func (p *Pool) drainWaiters() {
	for len(p.waiters) > 0 {
		head := p.waiters[0]
		alloc := p.tryGrant(head.amount)
		if alloc == nil {
			return
		}
		p.waiters = p.waiters[1:]
		head.grant <- alloc
	}
}

// Reserve holds amount aside without allocating it. The reservation expires
// at the given time; a zero expiry never lapses on its own.
func (p *Pool) Reserve(amount int64, expiresAt time.Time) (string, error) {
	if amount <= 0 {
		return "", errors.NewValidationError("reservation amount must be positive").
			WithField("amount").WithValue(amount)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.available() < amount {
		return "", errors.NewResourceError("reserve failed", errors.ErrInsufficientResources).
			WithPool(p.cfg.Type.String()).
			WithRequested(amount).
			WithAvailable(p.available())
	}

	res := &Reservation{
		ID:        uuid.NewString(),
		Pool:      p.cfg.Type,
		Amount:    amount,
		CreatedAt: time.Now(),
		ExpiresAt: expiresAt,
	}
	p.reserved += amount
	p.reservations[res.ID] = res
	return res.ID, nil
}

// Unreserve releases a reservation. Unknown IDs return false.
func (p *Pool) Unreserve(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	res, ok := p.reservations[id]
	if !ok {
		return false
	}
	delete(p.reservations, id)
	p.reserved -= res.Amount
	p.drainWaiters()
	p.checkWarning()
	return true
}

// AdjustCapacity sets a new total capacity. Shrinking below the committed
// amount (allocated + reserved) is refused with ErrCapacityShrink.
func (p *Pool) AdjustCapacity(newCapacity int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if newCapacity < p.allocated+p.reserved {
		return errors.NewResourceError("adjust capacity", errors.ErrCapacityShrink).
			WithPool(p.cfg.Type.String()).
			WithRequested(newCapacity).
			WithAvailable(p.allocated + p.reserved)
	}

	p.logger.Info("pool capacity adjusted", "old", p.capacity, "new", newCapacity)
	p.capacity = newCapacity
	p.drainWaiters()
	p.checkWarning()
	return nil
}

// Sweep reclaims leaked allocations older than the pool's TTL and expired
// reservations. It returns how many of each were reclaimed.
func (p *Pool) Sweep(now time.Time) (allocs, reservations int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, alloc := range p.allocations {
		if now.Sub(alloc.CreatedAt) > p.cfg.SweepTTL {
			delete(p.allocations, id)
			p.allocated -= alloc.Amount
			allocs++
			p.logger.Warn("reclaimed leaked allocation",
				"allocation_id", id, "amount", alloc.Amount, "age", now.Sub(alloc.CreatedAt).String())
		}
	}
	for id, res := range p.reservations {
		if !res.ExpiresAt.IsZero() && now.After(res.ExpiresAt) {
			delete(p.reservations, id)
			p.reserved -= res.Amount
			reservations++
		}
	}
	if allocs > 0 || reservations > 0 {
		p.drainWaiters()
		p.checkWarning()
	}
	return allocs, reservations
}

// Status returns a snapshot of the pool's accounting.
func (p *Pool) Status() PoolStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStatus{
		Type:      p.cfg.Type,
		Capacity:  p.capacity,
		Allocated: p.allocated,
		Reserved:  p.reserved,
		Available: p.available(),
		Waiting:   len(p.waiters),
	}
}

// utilization must be called with the mutex held.
func (p *Pool) utilization() float64 {
	if p.capacity == 0 {
		return 1
	}
	return float64(p.allocated+p.reserved) / float64(p.capacity)
}

// grow raises capacity by one scale step, bounded by MaxCapacity.
// Must be called with the mutex held.
func (p *Pool) grow() {
	step := int64(float64(p.capacity) * p.cfg.ScaleStep)
	if step < 1 {
		step = 1
	}
	newCap := p.capacity + step
	if p.cfg.MaxCapacity > 0 && newCap > p.cfg.MaxCapacity {
		newCap = p.cfg.MaxCapacity
	}
	if newCap == p.capacity {
		return
	}
	p.logger.Info("pool auto-scaled", "old", p.capacity, "new", newCap)
	p.capacity = newCap
}

// checkWarning publishes a resource.warning event when utilization first
// crosses the warn threshold, and re-arms once it drops back below.
// Must be called with the mutex held.
func (p *Pool) checkWarning() {
	if p.bus == nil {
		return
	}
	util := p.utilization()
	if util >= p.cfg.WarnThreshold {
		if !p.warned {
			p.warned = true
			p.bus.Publish(event.NewResourceWarningEvent(p.cfg.Type.String(), util, len(p.waiters)))
		}
	} else {
		p.warned = false
	}
}
