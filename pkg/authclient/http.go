package authclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
)

type ctxKey struct{}

// WithIdentity stores id on ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored by HTTPMiddleware.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

// HTTPMiddleware is AuthMiddleware for net/http routers, optionally limited
// to roles.
func HTTPMiddleware(v Validator, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearer(r.Header.Get("Authorization"))
			if token == "" {
				writeError(w, http.StatusUnauthorized, "missing or malformed token")
				return
			}
			id, err := v.Validate(r.Context(), token)
			if err != nil {
				status := http.StatusUnauthorized
				if !errors.Is(err, ErrInvalidToken) {
					status = http.StatusBadGateway
				}
				writeError(w, status, err.Error())
				return
			}
			if len(roles) > 0 && !hasRole(id.Role, roles) {
				writeError(w, http.StatusForbidden, "access denied")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), *id)))
		})
	}
}

func hasRole(role string, roles []string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
