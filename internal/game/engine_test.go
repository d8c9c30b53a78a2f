package game

import (
	"math"
	"testing"

	"skyhaul/internal/geometry"
	"skyhaul/internal/models"
	"skyhaul/internal/production"
)

const nectar = models.CommodityID("nectar")

func testConfig() Config {
	return Config{
		TickSeconds:     1,
		GatherTime:      2,
		DemandWindow:    60,
		ReducedFactor:   0.5,
		StartingBalance: 1000,
		Hub:             geometry.Vec3{X: 100},
		Costs: Costs{
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
}

// newTestEngine builds an engine with one commodity and one straight
// route of length 100 (producer at origin, hub at x=100, no altitude).
func newTestEngine(t *testing.T, speed float64, capacity int) (*Engine, models.RouteID) {
	t.Helper()
	e := NewEngine(testConfig(), nil)
	e.RegisterCommodity(nectar, 100, 10, 1)
	id, err := e.AddRoute(models.Route{
		Name:        "meadow",
		Producer:    geometry.Vec3{},
		BaseSpeed:   speed,
		ArcAltitude: 0,
		Capacity:    capacity,
		Commodity:   nectar,
	})
	if err != nil {
		t.Fatalf("AddRoute: %v", err)
	}
	return e, id
}

func TestSpawnIntervalFormula(t *testing.T) {
	e, id := newTestEngine(t, 10, 8)
	if err := e.Pool().AddToPool(8); err != nil {
		t.Fatalf("AddToPool: %v", err)
	}
	if err := e.Allocate(id, 4); err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	st := e.State()
	rt := st.Routes[0]
	if math.Abs(rt.ArcLength-100) > 0.01 {
		t.Fatalf("flat arc length = %.4f, want 100", rt.ArcLength)
	}
	// (2×L/S)/N = (2×100/10)/4 = 5
	if math.Abs(rt.SpawnInterval-5) > 0.01 {
		t.Fatalf("spawn interval = %.4f, want 5", rt.SpawnInterval)
	}
}

func TestZeroAllocationNeverSpawns(t *testing.T) {
	e, _ := newTestEngine(t, 10, 4)
	for i := 0; i < 200; i++ {
		e.Tick(1)
	}
	if n := len(e.State().Routes[0].Carriers); n != 0 {
		t.Fatalf("spawned %d carriers with zero allocation", n)
	}
}

func TestCarrierDeliversThroughFullLoop(t *testing.T) {
	e, id := newTestEngine(t, 50, 4)
	_ = e.Pool().AddToPool(4)
	if err := e.Allocate(id, 4); err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	// interval = (2×100/50)/4 = 1: first spawn on tick 1; the carrier
	// gathers for 2 ticks, then crosses in 2 ticks at progress 0.5/tick.
	for i := 0; i < 6; i++ {
		e.Tick(1)
	}
	if q := e.Storage().Quantity(nectar); q != 1 {
		t.Fatalf("stock after first delivery = %d, want 1", q)
	}
	st := e.State()
	if st.Stock[0].DeliveryRate != 1 {
		t.Fatalf("delivery rate = %d, want 1", st.Stock[0].DeliveryRate)
	}
	// target 1 is met by this delivery: full payout of 10
	wantBalance := 1000.0 + 10.0
	if math.Abs(st.Balance-wantBalance) > 1e-9 {
		t.Fatalf("balance = %.2f, want %.2f", st.Balance, wantBalance)
	}
}

func TestDeliveryPayoutHalvedWhenDemandMissed(t *testing.T) {
	e, id := newTestEngine(t, 50, 4)
	// Raise the target beyond what one carrier can deliver.
	e.RegisterCommodity(nectar, 100, 10, 5)
	_ = e.Pool().AddToPool(1)
	_ = e.Allocate(id, 1)

	// interval = 4: spawn at tick 4, gather 2 ticks, fly 2 ticks.
	for i := 0; i < 9; i++ {
		e.Tick(1)
	}
	if q := e.Storage().Quantity(nectar); q != 1 {
		t.Fatalf("stock = %d, want 1", q)
	}
	if bal := e.Economy().Balance(); math.Abs(bal-1005) > 1e-9 {
		t.Fatalf("balance = %.2f, want 1005 (half payout)", bal)
	}
}

func TestTickOrderDeliveryFeedsSameTickProduction(t *testing.T) {
	e, id := newTestEngine(t, 50, 4)
	_ = e.Pool().AddToPool(4)
	_ = e.Allocate(id, 4)

	recipe := &production.Recipe{
		ID:          "honey",
		Name:        "Honey",
		Ingredients: []models.Ingredient{{Commodity: nectar, Quantity: 1}},
		BaseTime:    5,
		BaseValue:   2,
		Unlocked:    true,
	}
	if err := e.Scheduler().AddRecipe(recipe); err != nil {
		t.Fatalf("AddRecipe: %v", err)
	}

	// First delivery lands on tick 6; the start pass runs after
	// arrivals in the same tick, so the unit is consumed immediately.
	for i := 0; i < 6; i++ {
		e.Tick(1)
	}
	if q := e.Storage().Quantity(nectar); q != 0 {
		t.Fatalf("stock = %d, want 0 (consumed by same-tick start)", q)
	}
	if _, running := e.Scheduler().Runs()["honey"]; !running {
		t.Fatalf("expected honey run to start on the delivery tick")
	}
}

func TestDeallocateDespawnsLastSpawnedFirst(t *testing.T) {
	e, id := newTestEngine(t, 50, 4)
	_ = e.Pool().AddToPool(2)
	_ = e.Allocate(id, 2)

	// interval = 2: carriers spawn at ticks 2 and 4.
	for i := 0; i < 4; i++ {
		e.Tick(1)
	}
	carriers := e.State().Routes[0].Carriers
	if len(carriers) != 2 {
		t.Fatalf("carriers = %d, want 2", len(carriers))
	}
	first := carriers[0].ID

	if err := e.Deallocate(id, 1); err != nil {
		t.Fatalf("Deallocate: %v", err)
	}
	carriers = e.State().Routes[0].Carriers
	if len(carriers) != 1 {
		t.Fatalf("carriers after deallocate = %d, want 1", len(carriers))
	}
	if carriers[0].ID != first {
		t.Fatalf("survivor = %d, want first-spawned %d", carriers[0].ID, first)
	}
}

func TestOverflowDeliveriesEmitDiscardEvents(t *testing.T) {
	e, id := newTestEngine(t, 50, 4)
	e.RegisterCommodity(nectar, 1, 10, 1) // capacity of one unit
	_ = e.Pool().AddToPool(4)
	_ = e.Allocate(id, 4)

	var overflowed int
	e.SetEventSink(func(events []models.Event) {
		for _, ev := range events {
			if ev.Type == models.EventOverflowDiscarded {
				overflowed++
			}
		}
	})

	for i := 0; i < 12; i++ {
		e.Tick(1)
	}
	if q := e.Storage().Quantity(nectar); q != 1 {
		t.Fatalf("stock = %d, want capacity 1", q)
	}
	if overflowed == 0 {
		t.Fatalf("expected overflow discard events")
	}
}

func TestRemoveRouteReleasesAllocation(t *testing.T) {
	e, id := newTestEngine(t, 10, 4)
	_ = e.Pool().AddToPool(4)
	_ = e.Allocate(id, 3)

	if err := e.RemoveRoute(id); err != nil {
		t.Fatalf("RemoveRoute: %v", err)
	}
	if avail := e.Pool().Available(); avail != 4 {
		t.Fatalf("available after teardown = %d, want 4", avail)
	}
	if err := e.Allocate(id, 1); err == nil {
		t.Fatalf("allocating on a removed route should fail")
	}
}

func TestPurchaseCarriersChecksAffordability(t *testing.T) {
	e, _ := newTestEngine(t, 10, 4)

	if err := e.PurchaseCarriers(20); err == nil {
		t.Fatalf("expected purchase of 20 carriers (cost 1000+) to fail at balance 1000")
	}
	if e.Pool().Total() != 0 {
		t.Fatalf("failed purchase must not grow the pool")
	}

	if err := e.PurchaseCarriers(3); err != nil {
		t.Fatalf("PurchaseCarriers: %v", err)
	}
	if e.Pool().Total() != 3 {
		t.Fatalf("pool total = %d, want 3", e.Pool().Total())
	}
	if bal := e.Economy().Balance(); bal != 850 {
		t.Fatalf("balance = %.2f, want 850", bal)
	}
}

func TestUpgradeActions(t *testing.T) {
	e, id := newTestEngine(t, 10, 4)

	if err := e.UpgradeRouteCapacity(id); err != nil {
		t.Fatalf("UpgradeRouteCapacity: %v", err)
	}
	if cap := e.State().Routes[0].Capacity; cap != 5 {
		t.Fatalf("capacity = %d, want 5", cap)
	}

	if err := e.UpgradeRouteSpeed(id); err != nil {
		t.Fatalf("UpgradeRouteSpeed: %v", err)
	}
	if sp := e.State().Routes[0].BaseSpeed; sp != 15 {
		t.Fatalf("speed = %.1f, want 15", sp)
	}

	if err := e.UpgradeStorage(nectar); err != nil {
		t.Fatalf("UpgradeStorage: %v", err)
	}
	if cap := e.Storage().Capacity(nectar); cap != 110 {
		t.Fatalf("storage capacity = %d, want 110", cap)
	}
}

func TestUpgradeRecipeTierAtCapDoesNotCharge(t *testing.T) {
	e, _ := newTestEngine(t, 10, 4)
	r := &production.Recipe{
		ID:          "honey",
		Ingredients: []models.Ingredient{{Commodity: nectar, Quantity: 2}},
		BaseTime:    5,
		BaseValue:   2,
		ValueBonus:  []float64{0, 0.4},
		Unlocked:    true,
	}
	if err := e.Scheduler().AddRecipe(r); err != nil {
		t.Fatalf("AddRecipe: %v", err)
	}

	if err := e.UpgradeRecipeTier("honey"); err != nil {
		t.Fatalf("upgrade to max tier: %v", err)
	}
	before := e.Economy().Balance()

	if err := e.UpgradeRecipeTier("honey"); err == nil {
		t.Fatalf("expected error upgrading past max tier")
	}
	if got := e.Economy().Balance(); got != before {
		t.Fatalf("charged for a no-op upgrade: balance %.2f -> %.2f", before, got)
	}
	if r.Tier != 1 {
		t.Fatalf("tier = %d, want 1", r.Tier)
	}
}

func TestModifiersScaleSpawnCadence(t *testing.T) {
	e, id := newTestEngine(t, 10, 4)
	_ = e.Pool().AddToPool(4)
	_ = e.Allocate(id, 4)

	base := e.State().Routes[0].SpawnInterval
	e.SetModifiers(Modifiers{Speed: 2, Time: 1, Income: 1})
	boosted := e.State().Routes[0].SpawnInterval
	if math.Abs(boosted-base/2) > 1e-9 {
		t.Fatalf("doubling speed should halve interval: base %.3f, boosted %.3f", base, boosted)
	}
}

func TestEventSinkReceivesAllocationChanges(t *testing.T) {
	e, id := newTestEngine(t, 10, 4)
	_ = e.Pool().AddToPool(2)
	_ = e.Allocate(id, 2)

	var got []models.Event
	e.SetEventSink(func(events []models.Event) {
		got = append(got, events...)
	})
	e.Tick(1)

	found := false
	for _, ev := range got {
		if ev.Type == models.EventAllocationChanged {
			p := ev.Payload.(models.AllocationChangedPayload)
			if p.Route == id && p.NewCount == 2 {
				found = true
			}
		}
	}
	if !found {
		t.Fatalf("allocation change event not delivered: %+v", got)
	}
}

func TestResetClearsEverything(t *testing.T) {
	e, id := newTestEngine(t, 50, 4)
	_ = e.Pool().AddToPool(4)
	_ = e.Allocate(id, 4)
	for i := 0; i < 10; i++ {
		e.Tick(1)
	}

	e.Reset(nil)
	if e.Pool().Total() != 0 {
		t.Fatalf("pool not reset")
	}
	st := e.State()
	if st.Tick != 0 || len(st.Routes) != 0 || st.Balance != 1000 {
		t.Fatalf("state not reset: %+v", st)
	}
}

func TestAddRouteValidation(t *testing.T) {
	e := NewEngine(testConfig(), nil)
	if _, err := e.AddRoute(models.Route{Commodity: "ghost", BaseSpeed: 1, Capacity: 1}); err == nil {
		t.Fatalf("unknown commodity should be rejected")
	}
	e.RegisterCommodity(nectar, 10, 1, 1)
	if _, err := e.AddRoute(models.Route{Commodity: nectar, BaseSpeed: 0, Capacity: 1}); err == nil {
		t.Fatalf("zero speed should be rejected")
	}
}
