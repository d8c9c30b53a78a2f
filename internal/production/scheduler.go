// Package production turns accumulated hub inventory into value. Each
// tick the scheduler advances in-flight runs, then tries to start new
// ones strictly in priority order, so higher-priority recipes claim
// contested ingredients first.
package production

import (
	"errors"
	"fmt"
	"math"

	"skyhaul/internal/models"
	"skyhaul/internal/storage"
)

var (
	// ErrUnknownRecipe flags operations on recipe ids not registered
	// with the scheduler.
	ErrUnknownRecipe = errors.New("unknown recipe")
	// ErrDuplicateRecipe flags adding an id twice.
	ErrDuplicateRecipe = errors.New("duplicate recipe")
	// ErrTierAtMax flags upgrading a recipe whose tier tables have no
	// next entry. Callers charging for upgrades must not spend on it.
	ErrTierAtMax = errors.New("recipe tier at maximum")
)

// Recipe is a named transformation of commodities into value. Tier
// tables are indexed by tier; a tier past the end of a table clamps to
// the last entry.
type Recipe struct {
	ID          models.RecipeID     `json:"id"`
	Name        string              `json:"name"`
	Ingredients []models.Ingredient `json:"ingredients"`
	BaseTime    float64             `json:"base_time"`
	BaseValue   float64             `json:"base_value"`

	Tier               int       `json:"tier"`
	IngredientDiscount []float64 `json:"ingredient_discount"`
	TimeDiscount       []float64 `json:"time_discount"`
	ValueBonus         []float64 `json:"value_bonus"`

	Unlocked bool `json:"unlocked"`
	Paused   bool `json:"paused"`
}

// MaxTier is the highest tier the recipe's tables describe.
func (r *Recipe) MaxTier() int {
	m := len(r.IngredientDiscount)
	if len(r.TimeDiscount) > m {
		m = len(r.TimeDiscount)
	}
	if len(r.ValueBonus) > m {
		m = len(r.ValueBonus)
	}
	if m == 0 {
		return 0
	}
	return m - 1
}

func tierValue(table []float64, tier int) float64 {
	if len(table) == 0 || tier < 0 {
		return 0
	}
	if tier >= len(table) {
		tier = len(table) - 1
	}
	return table[tier]
}

// RequiredQty applies the tier ingredient discount with a floor of one
// unit per ingredient line.
func (r *Recipe) RequiredQty(baseQty int) int {
	d := tierValue(r.IngredientDiscount, r.Tier)
	q := int(math.Ceil(float64(baseQty) * (1 - d)))
	if q < 1 {
		q = 1
	}
	return q
}

// Run is an in-flight execution of a recipe. Its timer is independent
// of every other run and freezes while the recipe is paused.
type Run struct {
	Recipe        models.RecipeID `json:"recipe_id"`
	TierAtStart   int             `json:"tier_at_start"`
	TimeRemaining float64         `json:"time_remaining"`
	TotalTime     float64         `json:"total_time"`
}

// Completion reports one finished run with its credited value.
type Completion struct {
	Recipe models.RecipeID
	Value  float64
}

// Scheduler owns the ordered recipe list and the in-flight runs. It is
// advanced only from the engine tick; all mutating operations happen
// between ticks, atomically with respect to a tick boundary.
type Scheduler struct {
	ledger  *storage.Ledger
	recipes []*Recipe
	byID    map[models.RecipeID]*Recipe
	runs    map[models.RecipeID]*Run
}

func NewScheduler(ledger *storage.Ledger) *Scheduler {
	return &Scheduler{
		ledger: ledger,
		byID:   make(map[models.RecipeID]*Recipe),
		runs:   make(map[models.RecipeID]*Run),
	}
}

// AddRecipe appends the recipe at the lowest priority.
func (s *Scheduler) AddRecipe(r *Recipe) error {
	if r == nil || r.ID == "" {
		return fmt.Errorf("%w: nil or unnamed recipe", ErrUnknownRecipe)
	}
	if _, ok := s.byID[r.ID]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateRecipe, r.ID)
	}
	s.recipes = append(s.recipes, r)
	s.byID[r.ID] = r
	return nil
}

// RemoveRecipe drops the recipe and cancels any in-flight run without
// crediting it.
func (s *Scheduler) RemoveRecipe(id models.RecipeID) error {
	if _, ok := s.byID[id]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownRecipe, id)
	}
	delete(s.byID, id)
	delete(s.runs, id)
	for i, r := range s.recipes {
		if r.ID == id {
			s.recipes = append(s.recipes[:i], s.recipes[i+1:]...)
			break
		}
	}
	return nil
}

// Recipe returns the recipe by id.
func (s *Scheduler) Recipe(id models.RecipeID) (*Recipe, bool) {
	r, ok := s.byID[id]
	return r, ok
}

// Recipes returns the priority-ordered list. Callers must not reorder it.
func (s *Scheduler) Recipes() []*Recipe { return s.recipes }

// Runs returns the in-flight runs keyed by recipe.
func (s *Scheduler) Runs() map[models.RecipeID]*Run { return s.runs }

func (s *Scheduler) indexOf(id models.RecipeID) int {
	for i, r := range s.recipes {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// IncreasePriority swaps the recipe with its higher-priority neighbor.
// Already at the top is a no-op.
func (s *Scheduler) IncreasePriority(id models.RecipeID) error {
	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownRecipe, id)
	}
	if i > 0 {
		s.recipes[i-1], s.recipes[i] = s.recipes[i], s.recipes[i-1]
	}
	return nil
}

// DecreasePriority swaps the recipe with its lower-priority neighbor.
func (s *Scheduler) DecreasePriority(id models.RecipeID) error {
	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownRecipe, id)
	}
	if i < len(s.recipes)-1 {
		s.recipes[i], s.recipes[i+1] = s.recipes[i+1], s.recipes[i]
	}
	return nil
}

// Unlock makes the recipe eligible for the start pass.
func (s *Scheduler) Unlock(id models.RecipeID) error {
	r, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownRecipe, id)
	}
	r.Unlocked = true
	return nil
}

// SetPaused pauses or resumes a recipe. A paused recipe is skipped by
// the start pass and its running instance's timer freezes.
func (s *Scheduler) SetPaused(id models.RecipeID, paused bool) error {
	r, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownRecipe, id)
	}
	r.Paused = paused
	return nil
}

// UpgradeTier raises the recipe tier by one. At the table limit it
// returns ErrTierAtMax instead of silently doing nothing. In-flight
// runs keep the tier they started with.
func (s *Scheduler) UpgradeTier(id models.RecipeID) error {
	r, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownRecipe, id)
	}
	if r.Tier >= r.MaxTier() {
		return fmt.Errorf("%w: %q at tier %d", ErrTierAtMax, id, r.Tier)
	}
	r.Tier++
	return nil
}

// AdvanceRuns moves every unpaused run forward by dt and completes any
// that reach zero. Value uses the tier captured at start:
// base × (1 + bonus) × incomeModifier.
func (s *Scheduler) AdvanceRuns(dt float64, incomeModifier float64) []Completion {
	if incomeModifier <= 0 {
		incomeModifier = 1
	}
	// Walk the priority list, not the runs map, so completions come out
	// in a deterministic order.
	var done []Completion
	for _, r := range s.recipes {
		run, ok := s.runs[r.ID]
		if !ok || r.Paused {
			continue
		}
		run.TimeRemaining -= dt
		if run.TimeRemaining > 0 {
			continue
		}
		value := r.BaseValue * (1 + tierValue(r.ValueBonus, run.TierAtStart)) * incomeModifier
		done = append(done, Completion{Recipe: r.ID, Value: value})
		delete(s.runs, r.ID)
	}
	return done
}

// StartRuns attempts to start idle, unlocked, unpaused recipes in
// priority order against a single working copy of the hub stock, then
// commits each reservation to the live ledger. Returns the recipes
// started this pass.
//
// The working map and the live ledger are decremented in lockstep
// within one synchronous pass, so a live commit failing after the
// snapshot said yes means the single-threaded tick ordering was broken
// somewhere. That is not a retry condition.
func (s *Scheduler) StartRuns(timeModifier float64) []models.RecipeID {
	if timeModifier <= 0 {
		timeModifier = 1
	}
	working := s.ledger.Snapshot()
	var started []models.RecipeID

	for _, r := range s.recipes {
		if !r.Unlocked || r.Paused {
			continue
		}
		if _, running := s.runs[r.ID]; running {
			continue
		}
		if !s.reserve(working, r) {
			continue
		}
		for _, ing := range r.Ingredients {
			need := r.RequiredQty(ing.Quantity)
			if err := s.ledger.Consume(ing.Commodity, need); err != nil {
				panic(fmt.Sprintf("production: ledger diverged from snapshot for recipe %q: %v", r.ID, err))
			}
		}
		total := r.BaseTime * (1 - tierValue(r.TimeDiscount, r.Tier)) * timeModifier
		s.runs[r.ID] = &Run{
			Recipe:        r.ID,
			TierAtStart:   r.Tier,
			TimeRemaining: total,
			TotalTime:     total,
		}
		started = append(started, r.ID)
	}
	return started
}

// reserve checks the working map and decrements it when every
// ingredient line is satisfiable. All-or-nothing.
func (s *Scheduler) reserve(working map[models.CommodityID]int, r *Recipe) bool {
	for _, ing := range r.Ingredients {
		if working[ing.Commodity] < r.RequiredQty(ing.Quantity) {
			return false
		}
	}
	for _, ing := range r.Ingredients {
		working[ing.Commodity] -= r.RequiredQty(ing.Quantity)
	}
	return true
}

// Reset cancels all runs and clears tier/unlock state back to the given
// recipe set. Used for campaign restart.
func (s *Scheduler) Reset(recipes []*Recipe) {
	s.recipes = nil
	s.byID = make(map[models.RecipeID]*Recipe)
	s.runs = make(map[models.RecipeID]*Run)
	for _, r := range recipes {
		_ = s.AddRecipe(r)
	}
}
