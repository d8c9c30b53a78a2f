package game

import (
	"fmt"

	"skyhaul/internal/fleet"
	"skyhaul/internal/models"
)

// Purchase and upgrade actions. These are the externally-triggered
// operations: each checks affordability against the economy ledger
// before touching the core component, and a failed purchase leaves no
// partial state. The pool and the scheduler never see currency.

// PurchaseCarriers buys count carriers into the shared pool.
func (e *Engine) PurchaseCarriers(count int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if count <= 0 {
		return fmt.Errorf("%w: purchase count %d", fleet.ErrInvalidArgument, count)
	}
	cost := e.cfg.Costs.Carrier * float64(count)
	if !e.bank.TrySpend(cost) {
		return fmt.Errorf("%w: need %.2f", ErrCannotAfford, cost)
	}
	if err := e.pool.AddToPool(count); err != nil {
		// Arguments were validated above; refund to stay consistent.
		e.bank.Earn(cost)
		return err
	}
	e.addRecent("Bought %d carrier(s)", count)
	return nil
}

// UpgradeRouteCapacity raises the route's carrier ceiling by one.
func (e *Engine) UpgradeRouteCapacity(id models.RouteID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	rs, ok := e.routes[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownRoute, id)
	}
	if !e.bank.TrySpend(e.cfg.Costs.RouteCapacity) {
		return fmt.Errorf("%w: need %.2f", ErrCannotAfford, e.cfg.Costs.RouteCapacity)
	}
	rs.cfg.Capacity++
	e.addRecent("Route %s capacity now %d", rs.cfg.Name, rs.cfg.Capacity)
	return nil
}

// UpgradeRouteSpeed raises the route's base speed by the configured
// step. The spawn interval follows automatically since it is derived
// from live speed each tick.
func (e *Engine) UpgradeRouteSpeed(id models.RouteID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	rs, ok := e.routes[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownRoute, id)
	}
	if !e.bank.TrySpend(e.cfg.Costs.RouteSpeed) {
		return fmt.Errorf("%w: need %.2f", ErrCannotAfford, e.cfg.Costs.RouteSpeed)
	}
	rs.cfg.BaseSpeed += e.cfg.Costs.RouteSpeedStep
	e.addRecent("Route %s speed now %.1f", rs.cfg.Name, rs.cfg.BaseSpeed)
	return nil
}

// UpgradeStorage raises the commodity's hub capacity by the configured
// step.
func (e *Engine) UpgradeStorage(c models.CommodityID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.deliveryValue[c]; !ok {
		return fmt.Errorf("%w: unknown commodity %q", fleet.ErrInvalidArgument, c)
	}
	if !e.bank.TrySpend(e.cfg.Costs.StorageCapacity) {
		return fmt.Errorf("%w: need %.2f", ErrCannotAfford, e.cfg.Costs.StorageCapacity)
	}
	if err := e.store.SetCapacity(c, e.store.Capacity(c)+e.cfg.Costs.StorageCapacityStep); err != nil {
		e.bank.Earn(e.cfg.Costs.StorageCapacity)
		return err
	}
	e.addRecent("%s storage now %d", string(c), e.store.Capacity(c))
	return nil
}

// UpgradeRecipeTier buys the next tier of a recipe.
func (e *Engine) UpgradeRecipeTier(id models.RecipeID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.bank.CanAfford(e.cfg.Costs.RecipeTier) {
		return fmt.Errorf("%w: need %.2f", ErrCannotAfford, e.cfg.Costs.RecipeTier)
	}
	if err := e.sched.UpgradeTier(id); err != nil {
		return err
	}
	e.bank.TrySpend(e.cfg.Costs.RecipeTier)
	e.addRecent("Upgraded recipe %s", string(id))
	return nil
}

// UnlockRecipe buys a recipe unlock.
func (e *Engine) UnlockRecipe(id models.RecipeID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.bank.CanAfford(e.cfg.Costs.RecipeUnlock) {
		return fmt.Errorf("%w: need %.2f", ErrCannotAfford, e.cfg.Costs.RecipeUnlock)
	}
	if err := e.sched.Unlock(id); err != nil {
		return err
	}
	e.bank.TrySpend(e.cfg.Costs.RecipeUnlock)
	e.addRecent("Unlocked recipe %s", string(id))
	return nil
}

// Recipe scheduling operations, free of charge.

func (e *Engine) PauseRecipe(id models.RecipeID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sched.SetPaused(id, true)
}

func (e *Engine) ResumeRecipe(id models.RecipeID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sched.SetPaused(id, false)
}

func (e *Engine) IncreaseRecipePriority(id models.RecipeID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sched.IncreasePriority(id)
}

func (e *Engine) DecreaseRecipePriority(id models.RecipeID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sched.DecreasePriority(id)
}
