package game

import (
	"skyhaul/internal/geometry"
	"skyhaul/internal/models"
	"skyhaul/internal/production"
)

// CarrierView is a carrier plus its world position, evaluated on the
// same curve that drives spawn cadence.
type CarrierView struct {
	models.Carrier
	Position geometry.Vec3 `json:"position"`
}

// RouteView is one route with its live allocation and spacing data.
type RouteView struct {
	models.Route
	Allocated     int           `json:"allocated"`
	ArcLength     float64       `json:"arc_length"`
	SpawnInterval float64       `json:"spawn_interval"`
	Carriers      []CarrierView `json:"carriers"`
}

// StockView is one commodity's storage and demand standing.
type StockView struct {
	Commodity        models.CommodityID `json:"commodity"`
	Quantity         int                `json:"quantity"`
	Capacity         int                `json:"capacity"`
	DemandTarget     int                `json:"demand_target"`
	DeliveryRate     int                `json:"delivery_rate"`
	DemandMet        bool               `json:"demand_met"`
	PayoutMultiplier float64            `json:"payout_multiplier"`
}

// State is the full snapshot served by the API.
type State struct {
	Tick           uint64                `json:"tick"`
	Clock          float64               `json:"clock"`
	Balance        float64               `json:"balance"`
	LifetimeEarned float64               `json:"lifetime_earned"`
	PoolTotal      int                   `json:"pool_total"`
	PoolAvailable  int                   `json:"pool_available"`
	Routes         []RouteView           `json:"routes"`
	Stock          []StockView           `json:"stock"`
	Recipes        []production.Recipe   `json:"recipes"`
	Runs           []production.Run      `json:"runs"`
	Modifiers      Modifiers             `json:"modifiers"`
	RecentEvents   []string              `json:"recent_events"`
	IsRunning      bool                  `json:"is_running"`
	Speed          int                   `json:"speed"`
}

// State builds a deep snapshot of the simulation for the API layer.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := State{
		Tick:           e.tick,
		Clock:          e.clock,
		Balance:        e.bank.Balance(),
		LifetimeEarned: e.bank.LifetimeEarned(),
		PoolTotal:      e.pool.Total(),
		PoolAvailable:  e.pool.Available(),
		Modifiers:      e.mods,
		IsRunning:      e.running,
		Speed:          e.speed,
	}
	st.RecentEvents = make([]string, len(e.recent))
	copy(st.RecentEvents, e.recent)

	for _, id := range e.routeOrder {
		rs := e.routes[id]
		rv := RouteView{
			Route:     rs.cfg,
			Allocated: e.pool.Allocated(id),
			ArcLength: rs.arcLength,
		}
		if interval, ok := e.spawnInterval(rs); ok {
			rv.SpawnInterval = interval
		}
		for _, c := range rs.carriers {
			rv.Carriers = append(rv.Carriers, CarrierView{
				Carrier:  *c,
				Position: e.carrierPosition(rs, c),
			})
		}
		st.Routes = append(st.Routes, rv)
	}

	for _, c := range e.store.Commodities() {
		st.Stock = append(st.Stock, StockView{
			Commodity:        c,
			Quantity:         e.store.Quantity(c),
			Capacity:         e.store.Capacity(c),
			DemandTarget:     e.track.Target(c),
			DeliveryRate:     e.track.Rate(c),
			DemandMet:        e.track.DemandMet(c),
			PayoutMultiplier: e.track.PayoutMultiplier(c),
		})
	}

	for _, r := range e.sched.Recipes() {
		st.Recipes = append(st.Recipes, *r)
	}
	for _, r := range e.sched.Recipes() {
		if run, ok := e.sched.Runs()[r.ID]; ok {
			st.Runs = append(st.Runs, *run)
		}
	}
	return st
}

// carrierPosition evaluates the carrier's place on its route curve.
// Outbound legs run the curve forward, the return leg runs it backward.
func (e *Engine) carrierPosition(rs *routeState, c *models.Carrier) geometry.Vec3 {
	switch c.Phase {
	case models.PhaseToHub:
		return rs.arc.Point(c.Progress)
	case models.PhaseAtHub:
		return rs.cfg.Hub
	case models.PhaseToProducer:
		return rs.arc.Point(1 - c.Progress)
	default:
		return rs.cfg.Producer
	}
}
