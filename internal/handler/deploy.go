package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/trustful/badge-registry/internal/model"
	"github.com/trustful/badge-registry/internal/service"
)

// DeployHandler exposes contract deployment: the generic deploy
// endpoint and the factory shortcut that fills in the init args.
type DeployHandler struct {
	deployer    *service.DeployerService
	factoryCode model.CodeHash
	logger      *slog.Logger
}

func NewDeployHandler(deployer *service.DeployerService, factoryCode model.CodeHash, logger *slog.Logger) *DeployHandler {
	return &DeployHandler{
		deployer:    deployer,
		factoryCode: factoryCode,
		logger:      logger,
	}
}

// HandleDeploy atomically deploys and initializes any registered
// contract code. The authenticated caller is the deployer, so the
// resulting address is bound to their identity.
//
// POST /api/deploy
// {"codeHash": ..., "salt": ..., "initFn": "initialize", "initArgs": {...}}
func (h *DeployHandler) HandleDeploy(w http.ResponseWriter, r *http.Request) {
	from, ok := caller(w, r)
	if !ok {
		return
	}

	var req struct {
		CodeHash model.CodeHash  `json:"codeHash"`
		Salt     model.Salt      `json:"salt"`
		InitFn   string          `json:"initFn"`
		InitArgs json.RawMessage `json:"initArgs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid JSON body",
		})
		return
	}

	addr, result, err := h.deployer.Deploy(r.Context(), from, req.CodeHash, req.Salt, req.InitFn, req.InitArgs)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"address": addr,
		"result":  result,
	})
}

// HandleCreateFactory deploys a scorer factory owned by the caller.
//
// POST /api/factories  {"salt": ..., "scorerCodeHash": ...}
func (h *DeployHandler) HandleCreateFactory(w http.ResponseWriter, r *http.Request) {
	from, ok := caller(w, r)
	if !ok {
		return
	}

	var req struct {
		Salt           model.Salt     `json:"salt"`
		ScorerCodeHash model.CodeHash `json:"scorerCodeHash"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid JSON body",
		})
		return
	}

	initArgs, err := json.Marshal(map[string]any{
		"creator":        from,
		"scorerCodeHash": req.ScorerCodeHash,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	addr, _, err := h.deployer.Deploy(r.Context(), from, h.factoryCode, req.Salt, service.InitName, initArgs)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"address": addr})
}
