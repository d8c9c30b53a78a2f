package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"skyhaul/internal/fleet"
	"skyhaul/internal/game"
	"skyhaul/internal/models"
)

type Server struct {
	engine *game.Engine
	hub    *Hub
}

// New constructs the HTTP router wired to the game engine. The hub may
// be nil when running headless.
func New(engine *game.Engine, hub *Hub) http.Handler {
	s := &Server{engine: engine, hub: hub}
	r := chi.NewRouter()
	r.Use(corsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/state", s.handleState)
	r.Post("/tick", s.handleTick)
	r.Post("/sim/start", s.handleSimStart)
	r.Post("/sim/pause", s.handleSimPause)
	r.Post("/sim/speed", s.handleSimSpeed)

	r.Post("/fleet/purchase", s.handleFleetPurchase)
	r.Post("/fleet/allocate", s.handleAllocate)
	r.Post("/fleet/deallocate", s.handleDeallocate)

	r.Post("/routes", s.handleCreateRoute)
	r.Delete("/routes/{id}", s.handleRemoveRoute)
	r.Post("/routes/{id}/upgrade", s.handleUpgradeRoute)

	r.Post("/storage/upgrade", s.handleUpgradeStorage)

	r.Post("/recipes/{id}/priority", s.handleRecipePriority)
	r.Post("/recipes/{id}/pause", s.handleRecipePause)
	r.Post("/recipes/{id}/resume", s.handleRecipeResume)
	r.Post("/recipes/{id}/unlock", s.handleRecipeUnlock)
	r.Post("/recipes/{id}/upgrade", s.handleRecipeUpgrade)

	r.Post("/modifiers", s.handleModifiers)

	if hub != nil {
		r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
			serveWs(hub, w, r)
		})
	}

	return r
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.engine.State())
}

func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Count int `json:"count"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Count < 1 {
		req.Count = 1
	}
	dt := s.engine.TickSeconds()
	for i := 0; i < req.Count; i++ {
		s.engine.Tick(dt)
	}
	s.writeState(w)
}

func (s *Server) handleSimStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Speed int `json:"speed"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Speed < 1 {
		req.Speed = 1
	}
	s.engine.StartSim(req.Speed)
	s.writeState(w)
}

func (s *Server) handleSimPause(w http.ResponseWriter, r *http.Request) {
	s.engine.PauseSim()
	s.writeState(w)
}

func (s *Server) handleSimSpeed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Speed int `json:"speed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Speed <= 0 {
		writeJSONError(w, http.StatusBadRequest, "bad request")
		return
	}
	s.engine.SetSpeed(req.Speed)
	s.writeState(w)
}

func (s *Server) handleFleetPurchase(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Count <= 0 {
		writeJSONError(w, http.StatusBadRequest, "bad request")
		return
	}
	if err := s.engine.PurchaseCarriers(req.Count); err != nil {
		writeActionError(w, err)
		return
	}
	s.writeState(w)
}

type allocationRequest struct {
	RouteID uint32 `json:"route_id"`
	Amount  int    `json:"amount"`
}

func (s *Server) handleAllocate(w http.ResponseWriter, r *http.Request) {
	var req allocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad request")
		return
	}
	if req.Amount < 1 {
		req.Amount = 1
	}
	if err := s.engine.Allocate(models.RouteID(req.RouteID), req.Amount); err != nil {
		writeActionError(w, err)
		return
	}
	s.writeState(w)
}

func (s *Server) handleDeallocate(w http.ResponseWriter, r *http.Request) {
	var req allocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad request")
		return
	}
	if req.Amount < 1 {
		req.Amount = 1
	}
	if err := s.engine.Deallocate(models.RouteID(req.RouteID), req.Amount); err != nil {
		writeActionError(w, err)
		return
	}
	s.writeState(w)
}

func (s *Server) handleCreateRoute(w http.ResponseWriter, r *http.Request) {
	var req models.Route
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad request")
		return
	}
	id, err := s.engine.AddRoute(req)
	if err != nil {
		writeActionError(w, err)
		return
	}
	s.engine.FlushEvents()
	writeJSON(w, map[string]uint32{"route_id": uint32(id)})
}

func (s *Server) handleRemoveRoute(w http.ResponseWriter, r *http.Request) {
	id, ok := routeParam(w, r)
	if !ok {
		return
	}
	if err := s.engine.RemoveRoute(id); err != nil {
		writeActionError(w, err)
		return
	}
	s.writeState(w)
}

func (s *Server) handleUpgradeRoute(w http.ResponseWriter, r *http.Request) {
	id, ok := routeParam(w, r)
	if !ok {
		return
	}
	var req struct {
		Kind string `json:"kind"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad request")
		return
	}
	var err error
	switch req.Kind {
	case "capacity":
		err = s.engine.UpgradeRouteCapacity(id)
	case "speed":
		err = s.engine.UpgradeRouteSpeed(id)
	default:
		writeJSONError(w, http.StatusBadRequest, "kind must be capacity or speed")
		return
	}
	if err != nil {
		writeActionError(w, err)
		return
	}
	s.writeState(w)
}

func (s *Server) handleUpgradeStorage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Commodity string `json:"commodity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Commodity == "" {
		writeJSONError(w, http.StatusBadRequest, "bad request")
		return
	}
	if err := s.engine.UpgradeStorage(models.CommodityID(req.Commodity)); err != nil {
		writeActionError(w, err)
		return
	}
	s.writeState(w)
}

func (s *Server) handleRecipePriority(w http.ResponseWriter, r *http.Request) {
	id := models.RecipeID(chi.URLParam(r, "id"))
	var req struct {
		Direction string `json:"direction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad request")
		return
	}
	var err error
	switch req.Direction {
	case "up":
		err = s.engine.IncreaseRecipePriority(id)
	case "down":
		err = s.engine.DecreaseRecipePriority(id)
	default:
		writeJSONError(w, http.StatusBadRequest, "direction must be up or down")
		return
	}
	if err != nil {
		writeActionError(w, err)
		return
	}
	s.writeState(w)
}

func (s *Server) handleRecipePause(w http.ResponseWriter, r *http.Request) {
	s.recipeAction(w, r, s.engine.PauseRecipe)
}

func (s *Server) handleRecipeResume(w http.ResponseWriter, r *http.Request) {
	s.recipeAction(w, r, s.engine.ResumeRecipe)
}

func (s *Server) handleRecipeUnlock(w http.ResponseWriter, r *http.Request) {
	s.recipeAction(w, r, s.engine.UnlockRecipe)
}

func (s *Server) handleRecipeUpgrade(w http.ResponseWriter, r *http.Request) {
	s.recipeAction(w, r, s.engine.UpgradeRecipeTier)
}

func (s *Server) recipeAction(w http.ResponseWriter, r *http.Request, fn func(models.RecipeID) error) {
	id := models.RecipeID(chi.URLParam(r, "id"))
	if id == "" {
		writeJSONError(w, http.StatusBadRequest, "missing recipe id")
		return
	}
	if err := fn(id); err != nil {
		writeActionError(w, err)
		return
	}
	s.writeState(w)
}

func (s *Server) handleModifiers(w http.ResponseWriter, r *http.Request) {
	var req game.Modifiers
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad request")
		return
	}
	s.engine.SetModifiers(req)
	s.writeState(w)
}

// ===== helpers =====

func routeParam(w http.ResponseWriter, r *http.Request) (models.RouteID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad route id")
		return 0, false
	}
	return models.RouteID(id), true
}

// writeState pushes any events the action queued out through the
// engine's sink, then responds with a fresh snapshot. Actions taken
// between ticks reach websocket clients without waiting for the next
// tick.
func (s *Server) writeState(w http.ResponseWriter) {
	s.engine.FlushEvents()
	writeJSON(w, s.engine.State())
}

// writeActionError maps failed actions onto status codes. Expected
// gameplay failures (can't afford, pool exhausted) are client errors;
// nothing here is a server fault.
func writeActionError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, game.ErrCannotAfford):
		status = http.StatusPaymentRequired
	case errors.Is(err, fleet.ErrPoolExhausted), errors.Is(err, fleet.ErrCapacityExceeded):
		status = http.StatusConflict
	case errors.Is(err, game.ErrUnknownRoute):
		status = http.StatusNotFound
	}
	writeJSONError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	if msg == "" {
		msg = http.StatusText(status)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS, PUT, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
