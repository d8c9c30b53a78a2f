package game

import (
	"fmt"

	"skyhaul/internal/models"
)

// queueEvent appends an outbound event. Events are never delivered
// mid-tick; the queue is drained after the tick completes so handlers
// cannot re-enter the simulation.
func (e *Engine) queueEvent(t models.EventType, payload any) {
	e.events = append(e.events, models.Event{
		Type:    t,
		Tick:    e.tick,
		Payload: payload,
	})
}

// FlushEvents delivers events queued outside the tick loop (allocation
// changes and route edits made between ticks) to the sink. The tick
// itself flushes directly; action callers invoke this afterwards. The
// sink runs outside the lock, same as in Tick.
func (e *Engine) FlushEvents() {
	e.mu.Lock()
	drained := e.events
	e.events = nil
	sink := e.sink
	e.mu.Unlock()
	if sink != nil && len(drained) > 0 {
		sink(drained)
	}
}

const maxRecentEvents = 20

// addRecent pushes a human-readable line onto the recent-events ring
// shown in the state endpoint.
func (e *Engine) addRecent(format string, args ...any) {
	e.recent = append(e.recent, fmt.Sprintf(format, args...))
	if len(e.recent) > maxRecentEvents {
		e.recent = e.recent[len(e.recent)-maxRecentEvents:]
	}
}

// RecentEvents returns a copy of the recent human-readable event lines.
func (e *Engine) RecentEvents() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.recent))
	copy(out, e.recent)
	return out
}
