// Package demand tracks delivery rates per commodity over a rolling
// window of simulated time and derives the payout multiplier used when
// crediting deliveries.
package demand

import "skyhaul/internal/models"

// DefaultWindow is the trailing window, in simulated seconds.
const DefaultWindow = 60.0

// DefaultReducedFactor is the payout multiplier applied while a
// commodity's demand target is missed.
const DefaultReducedFactor = 0.5

type record struct {
	timestamps []float64
	target     int
}

// Tracker keeps per-commodity delivery timestamp queues, pruned to the
// trailing window. Timestamps are simulated seconds, supplied by the
// engine clock.
type Tracker struct {
	window        float64
	reducedFactor float64
	records       map[models.CommodityID]*record
}

func NewTracker(window, reducedFactor float64) *Tracker {
	if window <= 0 {
		window = DefaultWindow
	}
	if reducedFactor <= 0 {
		reducedFactor = DefaultReducedFactor
	}
	return &Tracker{
		window:        window,
		reducedFactor: reducedFactor,
		records:       make(map[models.CommodityID]*record),
	}
}

func (t *Tracker) rec(c models.CommodityID) *record {
	r, ok := t.records[c]
	if !ok {
		r = &record{}
		t.records[c] = r
	}
	return r
}

// SetTarget sets the deliveries-per-window target for a commodity.
func (t *Tracker) SetTarget(c models.CommodityID, target int) {
	t.rec(c).target = target
}

func (t *Tracker) Target(c models.CommodityID) int {
	if r, ok := t.records[c]; ok {
		return r.target
	}
	return 0
}

// RecordDelivery appends a delivery timestamp. Timestamps arrive in
// tick order, so the queue stays sorted.
func (t *Tracker) RecordDelivery(c models.CommodityID, timestamp float64) {
	r := t.rec(c)
	r.timestamps = append(r.timestamps, timestamp)
}

// Prune drops timestamps older than now-window. Called once per tick
// before any rate query.
func (t *Tracker) Prune(now float64) {
	cutoff := now - t.window
	for _, r := range t.records {
		i := 0
		for i < len(r.timestamps) && r.timestamps[i] < cutoff {
			i++
		}
		if i > 0 {
			r.timestamps = append(r.timestamps[:0], r.timestamps[i:]...)
		}
	}
}

// Rate is the delivery count within the window: deliveries per window,
// not normalized.
func (t *Tracker) Rate(c models.CommodityID) int {
	if r, ok := t.records[c]; ok {
		return len(r.timestamps)
	}
	return 0
}

// DemandMet reports whether the commodity's current rate reaches its
// target.
func (t *Tracker) DemandMet(c models.CommodityID) bool {
	r, ok := t.records[c]
	if !ok {
		return false
	}
	return len(r.timestamps) >= r.target
}

// PayoutMultiplier is 1.0 while demand is met, the reduced factor
// otherwise.
func (t *Tracker) PayoutMultiplier(c models.CommodityID) float64 {
	if t.DemandMet(c) {
		return 1.0
	}
	return t.reducedFactor
}

// ScaleTargets multiplies every active target by factor, rounding up so
// escalation never stalls at small targets. Demand grows over time
// regardless of delivery performance.
func (t *Tracker) ScaleTargets(factor float64) {
	if factor <= 0 {
		return
	}
	for _, r := range t.records {
		if r.target <= 0 {
			continue
		}
		scaled := float64(r.target) * factor
		next := int(scaled)
		if float64(next) < scaled {
			next++
		}
		r.target = next
	}
}

// Commodities lists tracked commodity ids, unordered.
func (t *Tracker) Commodities() []models.CommodityID {
	out := make([]models.CommodityID, 0, len(t.records))
	for c := range t.records {
		out = append(out, c)
	}
	return out
}
