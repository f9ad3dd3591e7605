package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"

	"github.com/trustful/badge-registry/internal/model"
	"github.com/trustful/badge-registry/internal/service"
)

// ScorerHandler exposes one scorer instance: badges, users, managers,
// metadata and the code upgrade.
type ScorerHandler struct {
	scorer *service.ScorerService
	logger *slog.Logger
}

func NewScorerHandler(scorer *service.ScorerService, logger *slog.Logger) *ScorerHandler {
	return &ScorerHandler{scorer: scorer, logger: logger}
}

// HandleGet returns a scorer's metadata and running code version.
//
// GET /api/scorers/{addr}
func (h *ScorerHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, "addr")
	if !ok {
		return
	}

	meta, err := h.scorer.GetMetadata(r.Context(), addr)
	if err != nil {
		writeError(w, err)
		return
	}
	version, err := h.scorer.ContractVersion(r.Context(), addr)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"address":     addr,
		"name":        meta.Name,
		"description": meta.Description,
		"icon":        meta.Icon,
		"version":     version,
	})
}

// HandleListBadges returns the badge map as a list, sorted by name
// then issuer for stable output.
//
// GET /api/scorers/{addr}/badges
func (h *ScorerHandler) HandleListBadges(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, "addr")
	if !ok {
		return
	}

	badges, err := h.scorer.GetBadges(r.Context(), addr)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]model.Badge, 0, len(badges))
	for id, score := range badges {
		out = append(out, model.Badge{Name: id.Name, Issuer: id.Issuer, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Issuer < out[j].Issuer
	})

	writeJSON(w, http.StatusOK, out)
}

// HandleAddBadge inserts or overwrites a badge.
//
// POST /api/scorers/{addr}/badges
// {"name": ..., "issuer": ..., "score": ...}
func (h *ScorerHandler) HandleAddBadge(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, "addr")
	if !ok {
		return
	}
	from, ok := caller(w, r)
	if !ok {
		return
	}

	var req model.Badge
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid JSON body",
		})
		return
	}

	if err := h.scorer.AddBadge(r.Context(), addr, from, req.Name, req.Issuer, req.Score); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRemoveBadge deletes the badge keyed by name and issuer, both
// passed as query parameters.
//
// DELETE /api/scorers/{addr}/badges?name=...&issuer=...
func (h *ScorerHandler) HandleRemoveBadge(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, "addr")
	if !ok {
		return
	}
	from, ok := caller(w, r)
	if !ok {
		return
	}

	name := r.URL.Query().Get("name")
	issuer := model.Address(r.URL.Query().Get("issuer"))
	if name == "" || !issuer.Valid() {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "name and issuer query parameters are required",
		})
		return
	}

	if err := h.scorer.RemoveBadge(r.Context(), addr, from, name, issuer); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListUsers returns the membership map: address → active flag.
//
// GET /api/scorers/{addr}/users
func (h *ScorerHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, "addr")
	if !ok {
		return
	}

	users, err := h.scorer.GetUsers(r.Context(), addr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// HandleAddUser joins the authenticated caller to the scorer. There is
// no body: membership is self-service, so the user is always the
// caller.
//
// POST /api/scorers/{addr}/users
func (h *ScorerHandler) HandleAddUser(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, "addr")
	if !ok {
		return
	}
	from, ok := caller(w, r)
	if !ok {
		return
	}

	if err := h.scorer.AddUser(r.Context(), addr, from, from); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRemoveUser deactivates a membership. The URL names the user;
// the service enforces that only that user can remove themselves.
//
// DELETE /api/scorers/{addr}/users/{user}
func (h *ScorerHandler) HandleRemoveUser(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, "addr")
	if !ok {
		return
	}
	user, ok := pathAddress(w, r, "user")
	if !ok {
		return
	}
	from, ok := caller(w, r)
	if !ok {
		return
	}

	if err := h.scorer.RemoveUser(r.Context(), addr, from, user); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleAddManager adds an address to the scorer's manager set.
//
// POST /api/scorers/{addr}/managers  {"manager": ...}
func (h *ScorerHandler) HandleAddManager(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, "addr")
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

	if err := h.scorer.AddManager(r.Context(), addr, from, req.Manager); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRemoveManager removes an address from the scorer's manager set.
//
// DELETE /api/scorers/{addr}/managers/{manager}
func (h *ScorerHandler) HandleRemoveManager(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, "addr")
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

	if err := h.scorer.RemoveManager(r.Context(), addr, from, manager); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleUpgrade swaps the scorer's code to another registered version.
//
// POST /api/scorers/{addr}/upgrade  {"codeHash": ...}
func (h *ScorerHandler) HandleUpgrade(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, "addr")
	if !ok {
		return
	}
	from, ok := caller(w, r)
	if !ok {
		return
	}

	var req struct {
		CodeHash model.CodeHash `json:"codeHash"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid JSON body",
		})
		return
	}

	if err := h.scorer.Upgrade(r.Context(), addr, from, req.CodeHash); err != nil {
		writeError(w, err)
		return
	}

	version, err := h.scorer.ContractVersion(r.Context(), addr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"address": addr,
		"version": version,
	})
}
