package game

import (
	"fmt"

	"skyhaul/internal/fleet"
	"skyhaul/internal/geometry"
	"skyhaul/internal/models"
)

// AddRoute registers a producer↔hub link and returns its id. The
// commodity must already be registered.
func (e *Engine) AddRoute(cfg models.Route) (models.RouteID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.deliveryValue[cfg.Commodity]; !ok {
		return 0, fmt.Errorf("%w: route commodity %q", fleet.ErrInvalidArgument, cfg.Commodity)
	}
	if cfg.BaseSpeed <= 0 || cfg.Capacity <= 0 {
		return 0, fmt.Errorf("%w: route needs positive speed and capacity", fleet.ErrInvalidArgument)
	}
	if cfg.GatherTime <= 0 {
		cfg.GatherTime = e.cfg.GatherTime
	}
	cfg.Hub = e.cfg.Hub

	id := e.nextRoute
	e.nextRoute++
	cfg.ID = id

	rs := &routeState{cfg: cfg}
	e.rebuildArc(rs)
	e.routes[id] = rs
	e.routeOrder = append(e.routeOrder, id)

	e.queueEvent(models.EventRouteCreated, models.RoutePayload{Route: id})
	e.addRecent("Route %s opened", cfg.Name)
	return id, nil
}

// RemoveRoute tears a route down: despawns its carriers and releases
// its allocation back to the pool.
func (e *Engine) RemoveRoute(id models.RouteID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	rs, ok := e.routes[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownRoute, id)
	}
	e.despawnExcess(rs, 0)
	e.pool.ReleaseRoute(id)
	delete(e.routes, id)
	for i, rid := range e.routeOrder {
		if rid == id {
			e.routeOrder = append(e.routeOrder[:i], e.routeOrder[i+1:]...)
			break
		}
	}
	e.queueEvent(models.EventAllocationChanged, models.AllocationChangedPayload{Route: id, NewCount: 0})
	e.queueEvent(models.EventRouteRemoved, models.RoutePayload{Route: id})
	e.addRecent("Route %s closed", rs.cfg.Name)
	return nil
}

// Allocate assigns carriers from the pool to the route.
func (e *Engine) Allocate(id models.RouteID, amount int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.pool.Allocate(id, amount); err != nil {
		return err
	}
	e.queueEvent(models.EventAllocationChanged, models.AllocationChangedPayload{
		Route:    id,
		NewCount: e.pool.Allocated(id),
	})
	return nil
}

// Deallocate frees carriers from the route back to the pool and
// despawns any carriers beyond the new allocation, last spawned first.
func (e *Engine) Deallocate(id models.RouteID, amount int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.pool.Deallocate(id, amount); err != nil {
		return err
	}
	if rs, ok := e.routes[id]; ok {
		e.despawnExcess(rs, e.pool.Allocated(id))
	}
	e.queueEvent(models.EventAllocationChanged, models.AllocationChangedPayload{
		Route:    id,
		NewCount: e.pool.Allocated(id),
	})
	return nil
}

// rebuildArc recomputes the cached curve and its length. Called on
// creation and whenever speed-independent geometry (altitude, producer
// position) changes.
func (e *Engine) rebuildArc(rs *routeState) {
	rs.arc = geometry.NewArc(rs.cfg.Producer, rs.cfg.Hub, rs.cfg.ArcAltitude)
	rs.arcLength = rs.arc.Length()
}

// spawnInterval derives the per-route cadence so carriers stay evenly
// spaced around the round trip: (2·L/v) / allocated. Zero allocation
// means no spawning at all.
func (e *Engine) spawnInterval(rs *routeState) (float64, bool) {
	allocated := e.pool.Allocated(rs.cfg.ID)
	if allocated == 0 {
		return 0, false
	}
	speed := rs.cfg.BaseSpeed * e.mods.Speed
	if speed <= 0 || rs.arcLength <= 0 {
		return 0, false
	}
	roundTrip := 2 * rs.arcLength / speed
	return roundTrip / float64(allocated), true
}

// advanceSpawns runs the spawn timer for one route. Excess carriers are
// trimmed first so a stale allocation can never over-populate a route.
func (e *Engine) advanceSpawns(rs *routeState, dt float64) {
	allocated := e.pool.Allocated(rs.cfg.ID)
	if len(rs.carriers) > allocated {
		e.despawnExcess(rs, allocated)
	}

	interval, ok := e.spawnInterval(rs)
	if !ok {
		rs.spawnTimer = 0
		return
	}
	rs.spawnTimer += dt
	if len(rs.carriers) < allocated && rs.spawnTimer >= interval {
		e.spawnCarrier(rs)
		rs.spawnTimer = 0
	}
}

func (e *Engine) spawnCarrier(rs *routeState) {
	c := &models.Carrier{
		ID:    e.nextCarrier,
		Route: rs.cfg.ID,
		Phase: models.PhaseAtProducer,
	}
	e.nextCarrier++
	rs.carriers = append(rs.carriers, c)
	e.queueEvent(models.EventCarrierSpawned, models.CarrierPayload{Route: rs.cfg.ID, Carrier: c.ID})
}

// despawnExcess trims the route down to keep carriers, last spawned
// first. Deterministic so tests can rely on survivor identity.
func (e *Engine) despawnExcess(rs *routeState, keep int) {
	if keep < 0 {
		keep = 0
	}
	for len(rs.carriers) > keep {
		c := rs.carriers[len(rs.carriers)-1]
		rs.carriers = rs.carriers[:len(rs.carriers)-1]
		e.queueEvent(models.EventCarrierDespawned, models.CarrierPayload{Route: rs.cfg.ID, Carrier: c.ID})
	}
}

// RouteIDs lists live routes in creation order.
func (e *Engine) RouteIDs() []models.RouteID {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.RouteID, len(e.routeOrder))
	copy(out, e.routeOrder)
	return out
}
