package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"skyhaul/internal/game"
	"skyhaul/internal/geometry"
	"skyhaul/internal/models"
)

func newTestServer(t *testing.T) (*game.Engine, http.Handler) {
	t.Helper()
	cfg := game.Config{
		TickSeconds:     1,
		GatherTime:      2,
		DemandWindow:    60,
		ReducedFactor:   0.5,
		StartingBalance: 500,
		Hub:             geometry.Vec3{X: 100},
		Costs: game.Costs{
			Carrier:             50,
			RouteCapacity:       20,
			RouteSpeed:          20,
			RouteSpeedStep:      5,
			StorageCapacity:     30,
			StorageCapacityStep: 10,
			RecipeTier:          40,
			RecipeUnlock:        25,
		},
	}
	eng := game.NewEngine(cfg, nil)
	eng.RegisterCommodity("nectar", 100, 10, 1)
	return eng, New(eng, nil)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	_, h := newTestServer(t)
	rec := doJSON(t, h, "GET", "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d, want 200", rec.Code)
	}
}

func TestStateShape(t *testing.T) {
	_, h := newTestServer(t)
	rec := doJSON(t, h, "GET", "/state", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("state status = %d", rec.Code)
	}
	var state game.State
	if err := json.NewDecoder(rec.Body).Decode(&state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if state.Balance != 500 {
		t.Fatalf("balance = %v, want 500", state.Balance)
	}
	if len(state.Stock) != 1 {
		t.Fatalf("stock entries = %d, want 1", len(state.Stock))
	}
}

func TestCreateAllocateTick(t *testing.T) {
	eng, h := newTestServer(t)
	eng.Pool().AddToPool(4)

	rec := doJSON(t, h, "POST", "/routes", models.Route{
		Name:      "meadow",
		Producer:  geometry.Vec3{},
		BaseSpeed: 50,
		Capacity:  4,
		Commodity: "nectar",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("create route status = %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		RouteID uint32 `json:"route_id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.RouteID == 0 {
		t.Fatalf("route id not assigned")
	}

	rec = doJSON(t, h, "POST", "/fleet/allocate", map[string]any{"route_id": created.RouteID, "amount": 4})
	if rec.Code != http.StatusOK {
		t.Fatalf("allocate status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, "POST", "/tick", map[string]int{"count": 10})
	if rec.Code != http.StatusOK {
		t.Fatalf("tick status = %d", rec.Code)
	}
	var state game.State
	if err := json.NewDecoder(rec.Body).Decode(&state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if state.Tick != 10 {
		t.Fatalf("tick = %d, want 10", state.Tick)
	}
	if len(state.Routes) != 1 || len(state.Routes[0].Carriers) == 0 {
		t.Fatalf("expected carriers in flight after 10 ticks")
	}
}

func TestAllocateExhaustedPoolConflicts(t *testing.T) {
	eng, h := newTestServer(t)
	id, err := eng.AddRoute(models.Route{Name: "r", BaseSpeed: 10, Capacity: 8, Commodity: "nectar"})
	if err != nil {
		t.Fatalf("add route: %v", err)
	}
	rec := doJSON(t, h, "POST", "/fleet/allocate", map[string]any{"route_id": uint32(id), "amount": 3})
	if rec.Code != http.StatusConflict {
		t.Fatalf("allocate from empty pool status = %d, want 409", rec.Code)
	}
}

func TestPurchaseCannotAfford(t *testing.T) {
	_, h := newTestServer(t)
	rec := doJSON(t, h, "POST", "/fleet/purchase", map[string]int{"count": 100})
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("purchase status = %d, want 402", rec.Code)
	}
	rec = doJSON(t, h, "POST", "/fleet/purchase", map[string]int{"count": 2})
	if rec.Code != http.StatusOK {
		t.Fatalf("affordable purchase status = %d: %s", rec.Code, rec.Body.String())
	}
	var state game.State
	if err := json.NewDecoder(rec.Body).Decode(&state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if state.Balance != 400 {
		t.Fatalf("balance after purchase = %v, want 400", state.Balance)
	}
	if state.PoolTotal != 2 {
		t.Fatalf("pool total = %d, want 2", state.PoolTotal)
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	_, h := newTestServer(t)
	rec := doJSON(t, h, "DELETE", "/routes/99", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("remove unknown route status = %d, want 404", rec.Code)
	}
}

func TestUpgradeRouteBadKind(t *testing.T) {
	eng, h := newTestServer(t)
	id, err := eng.AddRoute(models.Route{Name: "r", BaseSpeed: 10, Capacity: 2, Commodity: "nectar"})
	if err != nil {
		t.Fatalf("add route: %v", err)
	}
	path := fmt.Sprintf("/routes/%d/upgrade", id)
	rec := doJSON(t, h, "POST", path, map[string]string{"kind": "wings"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad kind status = %d, want 400", rec.Code)
	}
	rec = doJSON(t, h, "POST", path, map[string]string{"kind": "capacity"})
	if rec.Code != http.StatusOK {
		t.Fatalf("capacity upgrade status = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestModifiersEndpoint(t *testing.T) {
	eng, h := newTestServer(t)
	rec := doJSON(t, h, "POST", "/modifiers", map[string]float64{"speed": 2, "time": 0.5, "income": 1.5})
	if rec.Code != http.StatusOK {
		t.Fatalf("modifiers status = %d", rec.Code)
	}
	mods := eng.Modifiers()
	if mods.Speed != 2 || mods.Time != 0.5 || mods.Income != 1.5 {
		t.Fatalf("modifiers = %+v", mods)
	}
}

func TestTickUsesConfiguredDuration(t *testing.T) {
	cfg := game.Config{
		TickSeconds:     2,
		DemandWindow:    60,
		ReducedFactor:   0.5,
		StartingBalance: 500,
		Hub:             geometry.Vec3{X: 100},
	}
	eng := game.NewEngine(cfg, nil)
	h := New(eng, nil)

	rec := doJSON(t, h, "POST", "/tick", map[string]int{"count": 3})
	if rec.Code != http.StatusOK {
		t.Fatalf("tick status = %d", rec.Code)
	}
	if got := eng.TickCount(); got != 3 {
		t.Fatalf("tick count = %d, want 3", got)
	}
	if got := eng.Clock(); got != 6 {
		t.Fatalf("clock = %v, want 6 (3 ticks of 2s)", got)
	}
}

func TestActionsFlushEventsToSink(t *testing.T) {
	eng, h := newTestServer(t)
	if err := eng.Pool().AddToPool(4); err != nil {
		t.Fatalf("AddToPool: %v", err)
	}
	id, err := eng.AddRoute(models.Route{Name: "r", BaseSpeed: 10, Capacity: 4, Commodity: "nectar"})
	if err != nil {
		t.Fatalf("AddRoute: %v", err)
	}

	var got []models.Event
	eng.SetEventSink(func(events []models.Event) {
		got = append(got, events...)
	})

	rec := doJSON(t, h, "POST", "/fleet/allocate", map[string]any{"route_id": uint32(id), "amount": 2})
	if rec.Code != http.StatusOK {
		t.Fatalf("allocate status = %d: %s", rec.Code, rec.Body.String())
	}

	found := false
	for _, ev := range got {
		if ev.Type == models.EventAllocationChanged {
			found = true
		}
	}
	if !found {
		t.Fatalf("allocation event not delivered without a tick: %+v", got)
	}
}

func TestSimSpeedValidation(t *testing.T) {
	_, h := newTestServer(t)
	rec := doJSON(t, h, "POST", "/sim/speed", map[string]int{"speed": 0})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("speed 0 status = %d, want 400", rec.Code)
	}
}
