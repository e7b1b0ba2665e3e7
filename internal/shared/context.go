package shared

import "context"

type principalContextKey struct{}

// Principal describes the authenticated actor for the lifetime of one request.
// It is built once by the auth middleware and never mutated afterwards.
type Principal struct {
	UserID   int64
	TenantID string
	Email    string
}

// Valid reports whether the principal carries both identifiers required for
// authorization decisions.
func (p *Principal) Valid() bool {
	return p != nil && p.UserID > 0 && p.TenantID != ""
}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context. Returns nil for
// anonymous requests.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey{}).(*Principal)
	return p
}
