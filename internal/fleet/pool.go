// Package fleet tracks ownership of the shared carrier pool across
// routes. The pool owns counts only; carrier lifecycle belongs to the
// engine, which reacts to allocation changes.
package fleet

import (
	"errors"
	"fmt"
	"sort"

	"skyhaul/internal/models"
)

var (
	// ErrPoolExhausted means there are not enough unallocated carriers.
	ErrPoolExhausted = errors.New("carrier pool exhausted")
	// ErrCapacityExceeded means the route's own carrier ceiling blocks it.
	ErrCapacityExceeded = errors.New("route capacity exceeded")
	// ErrUnderflow means a deallocation asked for more than was held.
	ErrUnderflow = errors.New("allocation underflow")
	// ErrInvalidArgument flags zero or negative amounts and unknown routes.
	ErrInvalidArgument = errors.New("invalid argument")
)

// CapacityFunc reports the carrier ceiling for a route. The pool does
// not own route configuration, so the registry supplies it.
type CapacityFunc func(models.RouteID) (int, bool)

// Pool is the global supply of carriers. Availability is always derived
// from the allocation map; it is never stored as a second counter, so
// the two cannot drift apart.
type Pool struct {
	total       int
	allocations map[models.RouteID]int
	capacity    CapacityFunc
}

func NewPool(capacity CapacityFunc) *Pool {
	return &Pool{
		allocations: make(map[models.RouteID]int),
		capacity:    capacity,
	}
}

// AddToPool grows the owned total. Count must be positive; the pool only
// shrinks on a full reset.
func (p *Pool) AddToPool(count int) error {
	if count <= 0 {
		return fmt.Errorf("%w: add count %d", ErrInvalidArgument, count)
	}
	p.total += count
	return nil
}

// Total reports the owned carrier count.
func (p *Pool) Total() int { return p.total }

// Available reports unallocated carriers, computed from the single
// source of truth.
func (p *Pool) Available() int {
	return p.total - p.allocatedSum()
}

func (p *Pool) allocatedSum() int {
	sum := 0
	for _, n := range p.allocations {
		sum += n
	}
	return sum
}

// Allocate assigns amount carriers to the route. Fails without side
// effects when the pool is exhausted or the route ceiling would be
// exceeded.
func (p *Pool) Allocate(route models.RouteID, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("%w: allocate amount %d", ErrInvalidArgument, amount)
	}
	cap, ok := p.capacity(route)
	if !ok {
		return fmt.Errorf("%w: unknown route %d", ErrInvalidArgument, route)
	}
	if p.allocations[route]+amount > cap {
		return fmt.Errorf("%w: route %d at %d/%d", ErrCapacityExceeded, route, p.allocations[route], cap)
	}
	if p.Available() < amount {
		return fmt.Errorf("%w: want %d, have %d", ErrPoolExhausted, amount, p.Available())
	}
	p.allocations[route] += amount
	return nil
}

// Deallocate frees amount carriers from the route back to the pool. The
// caller is responsible for despawning carriers beyond the new count.
func (p *Pool) Deallocate(route models.RouteID, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("%w: deallocate amount %d", ErrInvalidArgument, amount)
	}
	held := p.allocations[route]
	if held < amount {
		return fmt.Errorf("%w: route %d holds %d, asked %d", ErrUnderflow, route, held, amount)
	}
	if held == amount {
		delete(p.allocations, route)
	} else {
		p.allocations[route] = held - amount
	}
	return nil
}

// ReleaseRoute drops the route's allocation entirely. Called on route
// teardown; safe when the route holds nothing.
func (p *Pool) ReleaseRoute(route models.RouteID) {
	delete(p.allocations, route)
}

// Allocated reports the route's current allocation.
func (p *Pool) Allocated(route models.RouteID) int {
	return p.allocations[route]
}

// Routes lists every route holding an allocation, in id order.
func (p *Pool) Routes() []models.RouteID {
	out := make([]models.RouteID, 0, len(p.allocations))
	for id := range p.allocations {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Reset returns the pool to its created state.
func (p *Pool) Reset() {
	p.total = 0
	p.allocations = make(map[models.RouteID]int)
}
