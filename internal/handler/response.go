package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/trustful/badge-registry/internal/apperror"
)

// ErrorResponse is the standard error shape returned by every API
// endpoint, whatever the status code.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers already went out; nothing left but to log it.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to its HTTP status. The service layer
// knows nothing of HTTP; this is the only place the translation lives.
//
// InitializationFailed is checked first: it wraps the initializer's own
// failure (often a validation error), and the deploy-level outcome is
// the one the client acted on.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrInitializationFailed):
			status = http.StatusUnprocessableEntity
			errorType = "initialization_failed"
		case errors.Is(err, apperror.ErrValidation), errors.Is(err, apperror.ErrInvalidScore):
			status = http.StatusBadRequest
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
			errorType = "not_found"
		case errors.Is(err, apperror.ErrUnauthorized):
			status = http.StatusForbidden
			errorType = "unauthorized"
		case errors.Is(err, apperror.ErrAlreadyInitialized),
			errors.Is(err, apperror.ErrNotInitialized),
			errors.Is(err, apperror.ErrAddressCollision):
			status = http.StatusConflict
			errorType = "conflict"
		}

		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: appErr.Message,
			Field:   appErr.Field,
		})
		return
	}

	// Unknown error: generic 500, no internal details leaked.
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}
