package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/trustful/badge-registry/internal/auth"
	"github.com/trustful/badge-registry/internal/model"
)

// pathAddress extracts and validates an address URL parameter. On
// failure it writes the 400 itself and reports ok=false.
func pathAddress(w http.ResponseWriter, r *http.Request, name string) (model.Address, bool) {
	addr := model.Address(chi.URLParam(r, name))
	if !addr.Valid() {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "malformed address in URL",
			Field:   name,
		})
		return "", false
	}
	return addr, true
}

// caller pulls the authenticated address out of the request context.
// Routes using it sit behind auth.RequireCaller, so a miss means the
// route was wired without the middleware; answer 401 rather than panic.
func caller(w http.ResponseWriter, r *http.Request) (model.Address, bool) {
	addr, ok := auth.CallerFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "valid authentication required",
		})
		return "", false
	}
	return addr, true
}
