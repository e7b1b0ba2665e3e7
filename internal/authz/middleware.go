package authz

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/atlas-crm/atlas-crm/internal/platform/httpx"
	"github.com/atlas-crm/atlas-crm/internal/shared"
)

// Middleware wires the guard into the HTTP routing layer. Required
// permissions are declared statically at the route definition site.
type Middleware struct {
	Guard  *Guard
	Logger *slog.Logger
}

// Require ensures the current principal holds at least one of the given
// permissions before the handler runs. With no permissions the route is
// public and the middleware is a pass-through.
func (m Middleware) Require(perms ...string) func(http.Handler) http.Handler {
	normalized := NormalizeAll(perms)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(normalized) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			principal := shared.PrincipalFromContext(r.Context())
			err := m.Guard.Authorize(r.Context(), principal, normalized)
			switch {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.Is(err, ErrUnauthenticated):
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
			case errors.Is(err, ErrIndexUnavailable):
				// Fail closed, but as a system fault rather than a denial so
				// callers can tell the two apart.
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "could not evaluate permissions")
			case errors.Is(err, ErrForbidden):
				httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
			default:
				if m.Logger != nil {
					m.Logger.Error("authorization middleware", slog.Any("error", err))
				}
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
			}
		})
	}
}
