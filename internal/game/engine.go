// Package game wires the simulation core together: the carrier fleet,
// routes and their spawn timing, hub storage, demand tracking, and the
// production scheduler. The engine owns all shared state and advances
// it only inside Tick.
package game

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"skyhaul/internal/demand"
	"skyhaul/internal/economy"
	"skyhaul/internal/fleet"
	"skyhaul/internal/geometry"
	"skyhaul/internal/models"
	"skyhaul/internal/production"
	"skyhaul/internal/storage"
)

// ErrCannotAfford is returned by purchase actions when the ledger
// balance is too low. No state changes on failure.
var ErrCannotAfford = errors.New("insufficient funds")

// ErrUnknownRoute flags operations on route ids that were never created
// or already torn down.
var ErrUnknownRoute = errors.New("unknown route")

// Modifiers is the external seasonal/contextual layer. The engine reads
// it every tick and never mutates it.
type Modifiers struct {
	Speed  float64 `json:"speed"`
	Time   float64 `json:"time"`
	Income float64 `json:"income"`
}

// Costs prices the externally-triggered upgrade actions.
type Costs struct {
	Carrier             float64
	RouteCapacity       float64
	RouteSpeed          float64
	RouteSpeedStep      float64
	StorageCapacity     float64
	StorageCapacityStep int
	RecipeTier          float64
	RecipeUnlock        float64
}

// Config carries the tuning knobs the engine needs at construction.
type Config struct {
	TickSeconds        float64
	GatherTime         float64
	DemandWindow       float64
	ReducedFactor      float64
	EscalationInterval float64
	EscalationFactor   float64
	StartingBalance    float64
	Hub                geometry.Vec3
	Costs              Costs
}

// EventSink receives the events drained after each tick. It runs
// outside the engine lock and must not call back into the engine.
type EventSink func([]models.Event)

type routeState struct {
	cfg        models.Route
	arc        geometry.Arc
	arcLength  float64
	spawnTimer float64
	carriers   []*models.Carrier
}

// Engine owns simulation state and logic. All public methods take the
// lock; the tick itself is single-threaded.
type Engine struct {
	mu  sync.Mutex
	cfg Config
	log *slog.Logger

	tick  uint64
	clock float64 // simulated seconds

	pool  *fleet.Pool
	store *storage.Ledger
	track *demand.Tracker
	bank  *economy.Ledger
	sched *production.Scheduler

	routes      map[models.RouteID]*routeState
	routeOrder  []models.RouteID
	nextRoute   models.RouteID
	nextCarrier int

	deliveryValue map[models.CommodityID]float64
	lastMet       map[models.CommodityID]bool

	mods       Modifiers
	escalation float64

	events []models.Event
	recent []string
	sink   EventSink

	// background ticker
	running bool
	speed   int
	ticker  *time.Ticker
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewEngine(cfg Config, logger *slog.Logger) *Engine {
	if cfg.TickSeconds <= 0 {
		cfg.TickSeconds = 1
	}
	if cfg.GatherTime <= 0 {
		cfg.GatherTime = 2
	}
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		cfg:           cfg,
		log:           logger,
		store:         storage.NewLedger(),
		track:         demand.NewTracker(cfg.DemandWindow, cfg.ReducedFactor),
		bank:          economy.NewLedger(cfg.StartingBalance),
		routes:        make(map[models.RouteID]*routeState),
		deliveryValue: make(map[models.CommodityID]float64),
		lastMet:       make(map[models.CommodityID]bool),
		mods:          Modifiers{Speed: 1, Time: 1, Income: 1},
		nextRoute:     1,
		nextCarrier:   1,
		speed:         1,
	}
	e.pool = fleet.NewPool(func(id models.RouteID) (int, bool) {
		rs, ok := e.routes[id]
		if !ok {
			return 0, false
		}
		return rs.cfg.Capacity, true
	})
	e.sched = production.NewScheduler(e.store)
	return e
}

// SetEventSink installs the post-tick event consumer.
func (e *Engine) SetEventSink(sink EventSink) {
	e.mu.Lock()
	e.sink = sink
	e.mu.Unlock()
}

// RegisterCommodity creates the storage slot and demand record for a
// commodity type.
func (e *Engine) RegisterCommodity(id models.CommodityID, capacity int, deliveryValue float64, target int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.store.Register(id, capacity)
	e.track.SetTarget(id, target)
	e.deliveryValue[id] = deliveryValue
	e.lastMet[id] = target <= 0
}

// Pool exposes the allocation pool for direct queries in tests and the
// API layer. Mutations go through the engine methods.
func (e *Engine) Pool() *fleet.Pool { return e.pool }

// Storage exposes the hub ledger for queries.
func (e *Engine) Storage() *storage.Ledger { return e.store }

// Economy exposes the currency ledger for affordability checks.
func (e *Engine) Economy() *economy.Ledger { return e.bank }

// Scheduler exposes the production scheduler for queries.
func (e *Engine) Scheduler() *production.Scheduler { return e.sched }

// Tick advances the simulation by dt simulated seconds. The phase order
// is fixed: demand pruning, carrier movement and arrivals, production
// run advancement, production start attempts, then route spawn timers.
// Reordering changes which recipe wins contested ingredients on ticks
// where delivery and consumption coincide.
func (e *Engine) Tick(dt float64) {
	if dt <= 0 {
		return
	}
	e.mu.Lock()

	e.tick++
	e.clock += dt

	// (1) prune demand windows
	e.track.Prune(e.clock)
	e.emitDemandFlips()

	// (2) advance carriers; arrivals feed storage and demand
	for _, id := range e.routeOrder {
		e.advanceCarriers(e.routes[id], dt)
	}

	// (3) advance production timers, credit completed runs
	for _, c := range e.sched.AdvanceRuns(dt, e.mods.Income) {
		e.bank.Earn(c.Value)
		e.queueEvent(models.EventRecipeCompleted, models.RecipeCompletedPayload{
			Recipe: c.Recipe,
			Value:  c.Value,
		})
		e.addRecent("Completed %s for %.2f", string(c.Recipe), c.Value)
	}

	// (4) start new runs against the now-updated ledger
	e.sched.StartRuns(e.mods.Time)

	// (5) advance route spawn timers
	for _, id := range e.routeOrder {
		e.advanceSpawns(e.routes[id], dt)
	}

	e.escalate(dt)

	drained := e.events
	e.events = nil
	sink := e.sink
	e.mu.Unlock()

	if sink != nil && len(drained) > 0 {
		sink(drained)
	}
}

// escalate periodically scales demand targets upward, independent of
// delivery performance.
func (e *Engine) escalate(dt float64) {
	if e.cfg.EscalationInterval <= 0 || e.cfg.EscalationFactor <= 1 {
		return
	}
	e.escalation += dt
	for e.escalation >= e.cfg.EscalationInterval {
		e.escalation -= e.cfg.EscalationInterval
		e.track.ScaleTargets(e.cfg.EscalationFactor)
		for _, c := range e.track.Commodities() {
			e.queueEvent(models.EventDemandChanged, models.DemandChangedPayload{
				Commodity: c,
				Target:    e.track.Target(c),
				Rate:      e.track.Rate(c),
			})
		}
		e.log.Info("demand escalated", "factor", e.cfg.EscalationFactor)
	}
}

// emitDemandFlips fires DemandChanged whenever a commodity crosses its
// target in either direction.
func (e *Engine) emitDemandFlips() {
	for c, was := range e.lastMet {
		now := e.track.DemandMet(c)
		if now == was {
			continue
		}
		e.lastMet[c] = now
		e.queueEvent(models.EventDemandChanged, models.DemandChangedPayload{
			Commodity: c,
			Target:    e.track.Target(c),
			Rate:      e.track.Rate(c),
		})
	}
}

// TickSeconds returns the configured simulated duration of one tick.
// Every driver (API tick endpoint, headless loop, background ticker)
// advances by this same dt.
func (e *Engine) TickSeconds() float64 {
	return e.cfg.TickSeconds
}

// Clock returns the simulated time in seconds.
func (e *Engine) Clock() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock
}

// TickCount returns the number of completed ticks.
func (e *Engine) TickCount() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tick
}

// SetModifiers replaces the seasonal modifier set. Non-positive values
// are clamped to 1 so a bad caller cannot stall the sim.
func (e *Engine) SetModifiers(m Modifiers) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if m.Speed <= 0 {
		m.Speed = 1
	}
	if m.Time <= 0 {
		m.Time = 1
	}
	if m.Income <= 0 {
		m.Income = 1
	}
	e.mods = m
}

// Modifiers returns the active seasonal modifier set.
func (e *Engine) Modifiers() Modifiers {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mods
}

// Reset returns the whole simulation to its created state: pool zeroed,
// routes and carriers removed, ledgers cleared. The recipe set is
// reinstalled fresh.
func (e *Engine) Reset(recipes []*production.Recipe) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pool.Reset()
	e.bank.Reset(e.cfg.StartingBalance)
	e.track = demand.NewTracker(e.cfg.DemandWindow, e.cfg.ReducedFactor)
	e.store = storage.NewLedger()
	e.sched = production.NewScheduler(e.store)
	for _, r := range recipes {
		_ = e.sched.AddRecipe(r)
	}
	e.routes = make(map[models.RouteID]*routeState)
	e.routeOrder = nil
	e.deliveryValue = make(map[models.CommodityID]float64)
	e.lastMet = make(map[models.CommodityID]bool)
	e.tick = 0
	e.clock = 0
	e.escalation = 0
	e.events = nil
	e.recent = nil
	e.log.Info("simulation reset")
}

// ===== background ticker (host loop driving Tick) =====

// StartSim starts the ticker loop at the given speed (1-4). The core
// stays host-driven; this is a convenience driver for the server.
func (e *Engine) StartSim(speed int) {
	e.startSim(speed)
}

func (e *Engine) startSim(speed int) {
	speed = clampSpeed(speed)
	interval := intervalForSpeed(speed)

	e.mu.Lock()
	e.speed = speed
	e.running = true
	dt := e.cfg.TickSeconds
	e.mu.Unlock()

	if e.ticker == nil {
		e.ticker = time.NewTicker(interval)
	} else {
		e.ticker.Reset(interval)
	}
	if e.cancel != nil {
		e.cancel()
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())

	go func(ctx context.Context, ticker *time.Ticker) {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.Tick(dt)
			}
		}
	}(e.ctx, e.ticker)
}

// PauseSim stops the ticker loop.
func (e *Engine) PauseSim() {
	e.mu.Lock()
	e.running = false
	e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	if e.ticker != nil {
		e.ticker.Stop()
		e.ticker = nil
	}
}

// SetSpeed updates the sim speed, restarting the ticker if running.
func (e *Engine) SetSpeed(speed int) {
	e.mu.Lock()
	running := e.running
	e.speed = clampSpeed(speed)
	e.mu.Unlock()
	if running {
		e.startSim(speed)
	}
}

func clampSpeed(speed int) int {
	if speed < 1 {
		return 1
	}
	if speed > 4 {
		return 4
	}
	return speed
}

func intervalForSpeed(speed int) time.Duration {
	switch speed {
	case 2:
		return 500 * time.Millisecond
	case 3:
		return 250 * time.Millisecond
	case 4:
		return 125 * time.Millisecond
	default:
		return time.Second
	}
}
