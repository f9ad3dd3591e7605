package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/trustful/badge-registry/internal/model"
)

var errNoToken = errors.New("auth: no bearer token")

// contextKey keeps this package's context values private: no other
// package can forge or shadow the caller identity.
type contextKey string

const callerKey contextKey = "caller"

// RequireCaller enforces authentication on mutating routes. It reads
// the bearer token from the Authorization header, validates it, and
// stores the caller's address in the request context. Missing or
// invalid tokens get 401 and the chain stops.
func RequireCaller(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr, err := extractCaller(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"unauthorized","message":"valid authentication required"}`))
				return
			}

			ctx := context.WithValue(r.Context(), callerKey, addr)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CallerFromContext retrieves the authenticated caller's address.
// Returns ("", false) on anonymous requests.
func CallerFromContext(ctx context.Context) (model.Address, bool) {
	addr, ok := ctx.Value(callerKey).(model.Address)
	return addr, ok && addr != ""
}

func extractCaller(r *http.Request, tokens *TokenService) (model.Address, error) {
	header := r.Header.Get("Authorization")
	tokenStr, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || tokenStr == "" {
		return "", errNoToken
	}

	subject, err := tokens.Validate(tokenStr)
	if err != nil {
		return "", err
	}
	return model.Address(subject), nil
}
