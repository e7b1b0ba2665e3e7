package authz

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/atlas-crm/atlas-crm/internal/observability"
	"github.com/atlas-crm/atlas-crm/internal/shared"
)

// PermissionIndex is what the guard needs from the index.
type PermissionIndex interface {
	Grants(ctx context.Context, userID int64) (PermissionSet, error)
}

// Guard decides, per request, whether a principal may perform an operation.
// It is stateless: calling it twice with the same inputs yields the same
// decision within one index snapshot.
type Guard struct {
	index   PermissionIndex
	logger  *slog.Logger
	metrics *observability.Metrics
	debug   bool
}

// NewGuard constructs a Guard. metrics may be nil.
func NewGuard(index PermissionIndex, logger *slog.Logger, metrics *observability.Metrics, debug bool) *Guard {
	return &Guard{
		index:   index,
		logger:  logger,
		metrics: metrics,
		debug:   debug,
	}
}

// Authorize allows the operation when required is empty, or when the
// principal holds at least one of the required permissions (literal or via a
// "resource:*" grant). Any failure to evaluate the index denies access: an
// unreachable index is never an implicit grant.
//
// Returned errors: ErrUnauthenticated for a missing or incomplete principal,
// ErrForbidden when every required permission is absent (the message carries
// the full required list, which is public operation metadata), and
// ErrIndexUnavailable when the lookup itself failed.
func (g *Guard) Authorize(ctx context.Context, principal *shared.Principal, required []string) error {
	normalized := NormalizeAll(required)
	if len(normalized) == 0 {
		g.observe("allow")
		return nil
	}

	if !principal.Valid() {
		g.observe("unauthenticated")
		return ErrUnauthenticated
	}

	grants, err := g.index.Grants(ctx, principal.UserID)
	if err != nil {
		g.observe("error")
		if g.logger != nil {
			// Logged apart from genuine denials so operators can tell
			// "misconfigured" from "correctly denied".
			g.logger.Error("permission index lookup failed",
				slog.Int64("user_id", principal.UserID),
				slog.Any("error", err))
		}
		return fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}

	for _, perm := range normalized {
		if grants.Has(perm) {
			g.observe("allow")
			if g.debug && g.logger != nil {
				g.logger.Debug("authorization allowed",
					slog.Int64("user_id", principal.UserID),
					slog.String("tenant_id", principal.TenantID),
					slog.String("permission", perm))
			}
			return nil
		}
	}

	g.observe("deny")
	if g.logger != nil {
		g.logger.Warn("authorization denied",
			slog.Int64("user_id", principal.UserID),
			slog.String("tenant_id", principal.TenantID),
			slog.String("required", strings.Join(normalized, " OR ")))
	}
	return fmt.Errorf("%w: requires one of [%s]", ErrForbidden, strings.Join(normalized, " OR "))
}

func (g *Guard) observe(outcome string) {
	g.metrics.ObserveAuthzDecision(outcome)
}
