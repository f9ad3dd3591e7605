package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/trustful/badge-registry/internal/model"
	"github.com/trustful/badge-registry/internal/service"
)

// FactoryHandler exposes the scorer factory: scorer lifecycle and the
// factory's manager set.
type FactoryHandler struct {
	factory *service.FactoryService
	logger  *slog.Logger
}

func NewFactoryHandler(factory *service.FactoryService, logger *slog.Logger) *FactoryHandler {
	return &FactoryHandler{factory: factory, logger: logger}
}

// HandleGet reports a factory's initialization state and creator.
//
// GET /api/factories/{addr}
func (h *FactoryHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, "addr")
	if !ok {
		return
	}

	info, err := h.factory.Describe(r.Context(), addr)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, info)
}

// HandleCreateScorer deploys and registers a scorer in one shot.
//
// POST /api/factories/{addr}/scorers
// {"salt": ..., "initArgs": {"creator": ..., "badges": [...], "name": ..., ...}}
func (h *FactoryHandler) HandleCreateScorer(w http.ResponseWriter, r *http.Request) {
	factory, ok := pathAddress(w, r, "addr")
	if !ok {
		return
	}
	from, ok := caller(w, r)
	if !ok {
		return
	}

	var req struct {
		Salt     model.Salt      `json:"salt"`
		InitArgs json.RawMessage `json:"initArgs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid JSON body",
		})
		return
	}

	addr, err := h.factory.CreateScorer(r.Context(), factory, from, req.Salt, service.InitName, req.InitArgs)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"address": addr})
}

// HandleListScorers returns the registry: scorer address → metadata.
//
// GET /api/factories/{addr}/scorers
func (h *FactoryHandler) HandleListScorers(w http.ResponseWriter, r *http.Request) {
	factory, ok := pathAddress(w, r, "addr")
	if !ok {
		return
	}

	scorers, err := h.factory.GetScorers(r.Context(), factory)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, scorers)
}

// HandleRemoveScorer drops a scorer's registry entry. The scorer
// instance itself survives.
//
// DELETE /api/factories/{addr}/scorers/{scorer}
func (h *FactoryHandler) HandleRemoveScorer(w http.ResponseWriter, r *http.Request) {
	factory, ok := pathAddress(w, r, "addr")
	if !ok {
		return
	}
	scorer, ok := pathAddress(w, r, "scorer")
	if !ok {
		return
	}
	from, ok := caller(w, r)
	if !ok {
		return
	}

	if err := h.factory.RemoveScorer(r.Context(), factory, from, scorer); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleAddManager adds an address to the factory's manager set.
//
// POST /api/factories/{addr}/managers  {"manager": ...}
func (h *FactoryHandler) HandleAddManager(w http.ResponseWriter, r *http.Request) {
	factory, ok := pathAddress(w, r, "addr")
	if !ok {
		return
	}
	from, ok := caller(w, r)
	if !ok {
		return
	}

	var req struct {
		Manager model.Address `json:"manager"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid JSON body",
		})
		return
	}

	if err := h.factory.AddManager(r.Context(), factory, from, req.Manager); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRemoveManager removes an address from the factory's manager set.
//
// DELETE /api/factories/{addr}/managers/{manager}
func (h *FactoryHandler) HandleRemoveManager(w http.ResponseWriter, r *http.Request) {
	factory, ok := pathAddress(w, r, "addr")
	if !ok {
		return
	}
	manager, ok := pathAddress(w, r, "manager")
	if !ok {
		return
	}
	from, ok := caller(w, r)
	if !ok {
		return
	}

	if err := h.factory.RemoveManager(r.Context(), factory, from, manager); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleIsManager reports whether an address is a factory manager.
//
// GET /api/factories/{addr}/managers/{manager}
func (h *FactoryHandler) HandleIsManager(w http.ResponseWriter, r *http.Request) {
	factory, ok := pathAddress(w, r, "addr")
	if !ok {
		return
	}
	manager, ok := pathAddress(w, r, "manager")
	if !ok {
		return
	}

	isManager, err := h.factory.IsManager(r.Context(), factory, manager)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"address": manager,
		"manager": isManager,
	})
}
