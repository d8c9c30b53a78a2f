// Package models holds the shared domain types passed between the
// simulation core, the API layer, and telemetry.
package models

import "skyhaul/internal/geometry"

// RouteID is a stable integer key for a producer↔hub link. Bookkeeping
// is keyed by ID, never by live object reference, so teardown is explicit.
type RouteID uint32

// CommodityID names a discrete resource type.
type CommodityID string

// RecipeID names a production recipe.
type RecipeID string

// CarrierPhase is one leg of the carrier round trip.
type CarrierPhase string

const (
	PhaseAtProducer CarrierPhase = "at_producer"
	PhaseGathering  CarrierPhase = "gathering"
	PhaseToHub      CarrierPhase = "to_hub"
	PhaseAtHub      CarrierPhase = "at_hub"
	PhaseToProducer CarrierPhase = "to_producer"
)

// Carrier is one transport unit in flight on a route.
type Carrier struct {
	ID       int          `json:"id"`
	Route    RouteID      `json:"route_id"`
	Phase    CarrierPhase `json:"phase"`
	Progress float64      `json:"progress"`
	Payload  *CommodityID `json:"payload,omitempty"`

	// DwellRemaining counts down the gathering stop at the producer.
	DwellRemaining float64 `json:"dwell_remaining,omitempty"`
}

// Route is the static configuration of a producer↔hub link. Runtime
// state (spawn timer, cached arc, live carriers) lives in the engine.
type Route struct {
	ID          RouteID       `json:"id"`
	Name        string        `json:"name"`
	Producer    geometry.Vec3 `json:"producer_position"`
	Hub         geometry.Vec3 `json:"hub_position"`
	BaseSpeed   float64       `json:"base_speed"`
	ArcAltitude float64       `json:"arc_altitude"`
	Capacity    int           `json:"capacity"`
	Commodity   CommodityID   `json:"commodity"`
	GatherTime  float64       `json:"gather_time"`
}

// Ingredient is one line of a recipe's cost.
type Ingredient struct {
	Commodity CommodityID `json:"commodity"`
	Quantity  int         `json:"quantity"`
}

// EventType tags an outbound simulation event.
type EventType string

const (
	EventRecipeCompleted   EventType = "recipe_completed"
	EventAllocationChanged EventType = "allocation_changed"
	EventOverflowDiscarded EventType = "overflow_discarded"
	EventDemandChanged     EventType = "demand_changed"
	EventCarrierSpawned    EventType = "carrier_spawned"
	EventCarrierDespawned  EventType = "carrier_despawned"
	EventRouteCreated      EventType = "route_created"
	EventRouteRemoved      EventType = "route_removed"
)

// Event is a fire-and-forget notification queued during a tick and
// drained by the host afterwards. Consumers must not call back into the
// simulation while handling one.
type Event struct {
	Type    EventType `json:"type"`
	Tick    uint64    `json:"tick"`
	Payload any       `json:"payload"`
}

type RecipeCompletedPayload struct {
	Recipe RecipeID `json:"recipe_id"`
	Value  float64  `json:"value"`
}

type AllocationChangedPayload struct {
	Route    RouteID `json:"route_id"`
	NewCount int     `json:"new_count"`
}

type OverflowDiscardedPayload struct {
	Commodity CommodityID `json:"commodity"`
	Amount    int         `json:"amount"`
}

type DemandChangedPayload struct {
	Commodity CommodityID `json:"commodity"`
	Target    int         `json:"target"`
	Rate      int         `json:"current_rate"`
}

type CarrierPayload struct {
	Route   RouteID `json:"route_id"`
	Carrier int     `json:"carrier_id"`
}

type RoutePayload struct {
	Route RouteID `json:"route_id"`
}
