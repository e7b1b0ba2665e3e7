package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/atlas-crm/atlas-crm/internal/platform/httpx"
	"github.com/atlas-crm/atlas-crm/internal/shared"
)

// Middleware resolves a bearer token into a request principal. Requests
// without an Authorization header pass through anonymously; the authorization
// guard rejects them on protected routes.
type Middleware struct {
	Tokens *Tokens
	Logger *slog.Logger
}

// Authenticate installs the resolved principal into the request context.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "malformed authorization header")
			return
		}

		claims, err := m.Tokens.Verify(tokenString)
		if err != nil {
			if errors.Is(err, ErrTokenExpired) {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "token expired")
				return
			}
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid token")
			return
		}

		principal, err := claims.Principal()
		if err != nil {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid token")
			return
		}

		ctx := shared.ContextWithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
