package authz

import (
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/atlas-crm/atlas-crm/internal/shared"
)

func newMiddleware(index PermissionIndex) Middleware {
	logger := slog.New(slog.DiscardHandler)
	return Middleware{Guard: NewGuard(index, logger, nil, false), Logger: logger}
}

func performRequest(t *testing.T, mw Middleware, principal *shared.Principal, perms ...string) *httptest.ResponseRecorder {
	t.Helper()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	req := httptest.NewRequest(http.MethodGet, "/clients", nil)
	if principal != nil {
		req = req.WithContext(shared.ContextWithPrincipal(req.Context(), principal))
	}
	res := httptest.NewRecorder()
	mw.Require(perms...)(next).ServeHTTP(res, req)
	return res
}

func TestRequireAllowsGrantedPrincipal(t *testing.T) {
	mw := newMiddleware(&stubIndex{grants: NewPermissionSet([]string{"client:*"})})
	res := performRequest(t, mw, testPrincipal(), "client:read")
	require.Equal(t, http.StatusNoContent, res.Code)
}

func TestRequireWithoutPermsIsPublic(t *testing.T) {
	mw := newMiddleware(&stubIndex{})
	res := performRequest(t, mw, nil)
	require.Equal(t, http.StatusNoContent, res.Code)
}

func TestRequireRejectsAnonymous(t *testing.T) {
	mw := newMiddleware(&stubIndex{grants: NewPermissionSet([]string{"client:read"})})
	res := performRequest(t, mw, nil, "client:read")
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestRequireDeniesMissingPermission(t *testing.T) {
	mw := newMiddleware(&stubIndex{grants: NewPermissionSet([]string{"project:read"})})
	res := performRequest(t, mw, testPrincipal(), "client:write")
	require.Equal(t, http.StatusForbidden, res.Code)
	require.Contains(t, res.Body.String(), "client:write")
}

func TestRequireIndexFailureIsServerError(t *testing.T) {
	mw := newMiddleware(&stubIndex{err: errors.New("storage down")})
	res := performRequest(t, mw, testPrincipal(), "client:read")
	require.Equal(t, http.StatusInternalServerError, res.Code)
}
