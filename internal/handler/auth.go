// Package handler translates the HTTP surface into service calls.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/trustful/badge-registry/internal/auth"
	"github.com/trustful/badge-registry/internal/model"
)

// AuthHandler runs the challenge/response flow: a client proves control
// of its address by signing a one-shot nonce, and gets a bearer token.
type AuthHandler struct {
	challenges *auth.ChallengeStore
	tokens     *auth.TokenService
	logger     *slog.Logger
}

func NewAuthHandler(challenges *auth.ChallengeStore, tokens *auth.TokenService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		challenges: challenges,
		tokens:     tokens,
		logger:     logger,
	}
}

// HandleChallenge issues a nonce for the given address.
//
// POST /auth/challenge  {"address": "<hex pubkey>"}  →  {"nonce": "..."}
func (h *AuthHandler) HandleChallenge(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address model.Address `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid JSON body",
		})
		return
	}

	nonce, err := h.challenges.Issue(req.Address)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "address is not a valid public key",
			Field:   "address",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"nonce": nonce})
}

// HandleToken redeems a signed nonce for a session token.
//
// POST /auth/token  {"address": ..., "nonce": ..., "signature": "<hex>"}
// → {"token": "<jwt>"}
func (h *AuthHandler) HandleToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address   model.Address `json:"address"`
		Nonce     string        `json:"nonce"`
		Signature string        `json:"signature"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid JSON body",
		})
		return
	}

	if err := h.challenges.Verify(req.Address, req.Nonce, req.Signature); err != nil {
		h.logger.Warn("challenge verification failed",
			slog.String("address", string(req.Address)),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "challenge verification failed",
		})
		return
	}

	token, err := h.tokens.Generate(string(req.Address))
	if err != nil {
		h.logger.Error("token generation failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}
