// Package storage implements the capacity-bounded commodity inventory
// at the hub. Overflow is discarded, never queued, and the discard
// count is always reported.
package storage

import (
	"errors"
	"fmt"

	"skyhaul/internal/models"
)

var (
	// ErrInsufficientStock is routine: a consumer simply waits for the
	// next delivery. It is not an error condition worth logging.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidArgument flags non-positive amounts and unknown commodities.
	ErrInvalidArgument = errors.New("invalid argument")
)

// ReceiveReport accounts for one delivery. Accepted+Discarded always
// equals the amount offered.
type ReceiveReport struct {
	Accepted  int
	Discarded int
}

type slot struct {
	quantity int
	capacity int
}

// Ledger is the per-commodity inventory. Quantity never exceeds
// capacity; a capacity shrink keeps existing stock and only constrains
// future receives.
type Ledger struct {
	slots map[models.CommodityID]*slot
}

func NewLedger() *Ledger {
	return &Ledger{slots: make(map[models.CommodityID]*slot)}
}

// Register creates a storage slot for the commodity. Re-registering
// updates capacity without touching stock.
func (l *Ledger) Register(c models.CommodityID, capacity int) {
	if s, ok := l.slots[c]; ok {
		s.capacity = capacity
		return
	}
	l.slots[c] = &slot{capacity: capacity}
}

// Receive accepts up to the remaining headroom and reports the rest as
// discarded.
func (l *Ledger) Receive(c models.CommodityID, amount int) (ReceiveReport, error) {
	if amount <= 0 {
		return ReceiveReport{}, fmt.Errorf("%w: receive amount %d", ErrInvalidArgument, amount)
	}
	s, ok := l.slots[c]
	if !ok {
		return ReceiveReport{}, fmt.Errorf("%w: unknown commodity %q", ErrInvalidArgument, c)
	}
	headroom := s.capacity - s.quantity
	if headroom < 0 {
		// Can only happen after a capacity shrink below stock.
		headroom = 0
	}
	accepted := amount
	if accepted > headroom {
		accepted = headroom
	}
	s.quantity += accepted
	return ReceiveReport{Accepted: accepted, Discarded: amount - accepted}, nil
}

// Consume atomically checks and decrements. It never partially
// consumes.
func (l *Ledger) Consume(c models.CommodityID, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("%w: consume amount %d", ErrInvalidArgument, amount)
	}
	s, ok := l.slots[c]
	if !ok {
		return fmt.Errorf("%w: unknown commodity %q", ErrInvalidArgument, c)
	}
	if s.quantity < amount {
		return fmt.Errorf("%w: %q has %d, want %d", ErrInsufficientStock, c, s.quantity, amount)
	}
	s.quantity -= amount
	return nil
}

// SetCapacity adjusts the slot ceiling. Shrinking below current stock
// does not discard anything.
func (l *Ledger) SetCapacity(c models.CommodityID, capacity int) error {
	s, ok := l.slots[c]
	if !ok {
		return fmt.Errorf("%w: unknown commodity %q", ErrInvalidArgument, c)
	}
	s.capacity = capacity
	return nil
}

func (l *Ledger) Quantity(c models.CommodityID) int {
	if s, ok := l.slots[c]; ok {
		return s.quantity
	}
	return 0
}

func (l *Ledger) Capacity(c models.CommodityID) int {
	if s, ok := l.slots[c]; ok {
		return s.capacity
	}
	return 0
}

// Snapshot copies current quantities. The production scheduler runs its
// start-attempt pass against this working copy.
func (l *Ledger) Snapshot() map[models.CommodityID]int {
	out := make(map[models.CommodityID]int, len(l.slots))
	for c, s := range l.slots {
		out[c] = s.quantity
	}
	return out
}

// Commodities lists registered commodity ids, unordered.
func (l *Ledger) Commodities() []models.CommodityID {
	out := make([]models.CommodityID, 0, len(l.slots))
	for c := range l.slots {
		out = append(out, c)
	}
	return out
}
