package rbac

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/clinicore/clinicore/internal/shared"
)

// Middleware wires authorization helpers for HTTP handlers. Required
// permissions are checked against the actor's resolved effective set, so a
// DENY override locks an administrator out of an endpoint even when their
// role grants it.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// RequireAny ensures the current actor holds at least one of the required
// permission codes.
func (m Middleware) RequireAny(codes ...string) func(http.Handler) http.Handler {
	normalized := normalizeCodes(codes)
	return m.require(normalized, func(effective EffectivePermissionSet, required []string) bool {
		for _, code := range required {
			if effective.Has(code) {
				return true
			}
		}
		return len(required) == 0
	})
}

// RequireAll ensures the current actor holds every required permission code.
func (m Middleware) RequireAll(codes ...string) func(http.Handler) http.Handler {
	normalized := normalizeCodes(codes)
	return m.require(normalized, func(effective EffectivePermissionSet, required []string) bool {
		for _, code := range required {
			if !effective.Has(code) {
				return false
			}
		}
		return true
	})
}

func (m Middleware) require(required []string, allowed func(EffectivePermissionSet, []string) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(required) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			actorID, ok := shared.ActorFromContext(r.Context())
			if !ok {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			effective, err := m.Service.Resolve(r.Context(), actorID)
			if err != nil {
				if IsNotFound(err) {
					http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
					return
				}
				if m.Logger != nil {
					m.Logger.Error("rbac require", slog.Any("error", err))
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if allowed(effective, required) {
				next.ServeHTTP(w, r)
				return
			}
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}

func normalizeCodes(codes []string) []string {
	unique := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		code = strings.TrimSpace(strings.ToLower(code))
		if code == "" {
			continue
		}
		unique[code] = struct{}{}
	}
	normalized := make([]string, 0, len(unique))
	for code := range unique {
		normalized = append(normalized, code)
	}
	return normalized
}
