// Package tuning loads the balance/tuning file that seeds the
// simulation: commodities, recipes, starting routes, and the knobs for
// demand escalation and upgrade pricing.
package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"skyhaul/internal/geometry"
)

type Tuning struct {
	Balance     Balance     `yaml:"balance"`
	Sim         Sim         `yaml:"sim"`
	Demand      Demand      `yaml:"demand"`
	Hub         Position    `yaml:"hub"`
	Commodities []Commodity `yaml:"commodities"`
	Recipes     []Recipe    `yaml:"recipes"`
	Routes      []Route     `yaml:"routes"`
}

type Balance struct {
	StartingBalance     float64 `yaml:"starting_balance"`
	StartingCarriers    int     `yaml:"starting_carriers"`
	CarrierCost         float64 `yaml:"carrier_cost"`
	RouteCapacityCost   float64 `yaml:"route_capacity_cost"`
	RouteSpeedCost      float64 `yaml:"route_speed_cost"`
	RouteSpeedStep      float64 `yaml:"route_speed_step"`
	StorageCapacityCost float64 `yaml:"storage_capacity_cost"`
	StorageCapacityStep int     `yaml:"storage_capacity_step"`
	RecipeTierCost      float64 `yaml:"recipe_tier_cost"`
	RecipeUnlockCost    float64 `yaml:"recipe_unlock_cost"`
}

type Sim struct {
	TickSeconds float64 `yaml:"tick_seconds"`
	GatherTime  float64 `yaml:"gather_time"`
}

type Demand struct {
	WindowSeconds      float64 `yaml:"window_seconds"`
	ReducedFactor      float64 `yaml:"reduced_factor"`
	EscalationInterval float64 `yaml:"escalation_interval"`
	EscalationFactor   float64 `yaml:"escalation_factor"`
}

type Position struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

func (p Position) Vec3() geometry.Vec3 { return geometry.Vec3{X: p.X, Y: p.Y, Z: p.Z} }

type Commodity struct {
	Key           string  `yaml:"key"`
	Name          string  `yaml:"name"`
	Capacity      int     `yaml:"capacity"`
	DeliveryValue float64 `yaml:"delivery_value"`
	DemandTarget  int     `yaml:"demand_target"`
}

type Recipe struct {
	Key                string              `yaml:"key"`
	Name               string              `yaml:"name"`
	Ingredients        []RecipeIngredient  `yaml:"ingredients"`
	BaseTime           float64             `yaml:"base_time"`
	BaseValue          float64             `yaml:"base_value"`
	IngredientDiscount []float64           `yaml:"ingredient_discount"`
	TimeDiscount       []float64           `yaml:"time_discount"`
	ValueBonus         []float64           `yaml:"value_bonus"`
	Unlocked           bool                `yaml:"unlocked"`
}

type RecipeIngredient struct {
	Commodity string `yaml:"commodity"`
	Quantity  int    `yaml:"quantity"`
}

type Route struct {
	Name        string   `yaml:"name"`
	Producer    Position `yaml:"producer"`
	BaseSpeed   float64  `yaml:"base_speed"`
	ArcAltitude float64  `yaml:"arc_altitude"`
	Capacity    int      `yaml:"capacity"`
	Commodity   string   `yaml:"commodity"`
}

// Load reads and validates the tuning file.
func Load(path string) (Tuning, error) {
	var t Tuning
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning %s: %w", path, err)
	}
	t.applyDefaults()
	if err := t.validate(); err != nil {
		return t, fmt.Errorf("tuning %s: %w", path, err)
	}
	return t, nil
}

func (t *Tuning) applyDefaults() {
	if t.Sim.TickSeconds <= 0 {
		t.Sim.TickSeconds = 1
	}
	if t.Sim.GatherTime <= 0 {
		t.Sim.GatherTime = 2
	}
	if t.Demand.WindowSeconds <= 0 {
		t.Demand.WindowSeconds = 60
	}
	if t.Demand.ReducedFactor <= 0 {
		t.Demand.ReducedFactor = 0.5
	}
	if t.Demand.EscalationInterval <= 0 {
		t.Demand.EscalationInterval = 60
	}
	if t.Demand.EscalationFactor <= 0 {
		t.Demand.EscalationFactor = 1.1
	}
}

func (t *Tuning) validate() error {
	if len(t.Commodities) == 0 {
		return fmt.Errorf("no commodities defined")
	}
	known := make(map[string]bool, len(t.Commodities))
	for _, c := range t.Commodities {
		if c.Key == "" {
			return fmt.Errorf("commodity with empty key")
		}
		if known[c.Key] {
			return fmt.Errorf("duplicate commodity %q", c.Key)
		}
		if c.Capacity <= 0 {
			return fmt.Errorf("commodity %q: capacity must be positive", c.Key)
		}
		known[c.Key] = true
	}
	recipeKeys := make(map[string]bool, len(t.Recipes))
	for _, r := range t.Recipes {
		if r.Key == "" {
			return fmt.Errorf("recipe with empty key")
		}
		if recipeKeys[r.Key] {
			return fmt.Errorf("duplicate recipe %q", r.Key)
		}
		recipeKeys[r.Key] = true
		if r.BaseTime <= 0 {
			return fmt.Errorf("recipe %q: base_time must be positive", r.Key)
		}
		for _, ing := range r.Ingredients {
			if !known[ing.Commodity] {
				return fmt.Errorf("recipe %q: unknown commodity %q", r.Key, ing.Commodity)
			}
			if ing.Quantity <= 0 {
				return fmt.Errorf("recipe %q: quantity for %q must be positive", r.Key, ing.Commodity)
			}
		}
	}
	for _, rt := range t.Routes {
		if !known[rt.Commodity] {
			return fmt.Errorf("route %q: unknown commodity %q", rt.Name, rt.Commodity)
		}
		if rt.BaseSpeed <= 0 {
			return fmt.Errorf("route %q: base_speed must be positive", rt.Name)
		}
		if rt.Capacity <= 0 {
			return fmt.Errorf("route %q: capacity must be positive", rt.Name)
		}
	}
	return nil
}
