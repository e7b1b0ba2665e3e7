package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlas-crm/atlas-crm/internal/observability"
)

// tenantGUC is the session variable the row-level security policies read.
const tenantGUC = "app.current_tenant_id"

var (
	// ErrInvalidTenantID rejects tenant identifiers that are not UUIDs,
	// before any SQL is constructed or executed.
	ErrInvalidTenantID = errors.New("platform/db: invalid tenant id")
	// ErrTenantBinding indicates the session variable could not be set. The
	// transaction aborts without running any protected statement.
	ErrTenantBinding = errors.New("platform/db: tenant binding failed")
)

// sessionConn is the subset of *pgxpool.Conn a tenant session needs.
type sessionConn interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Release()
}

// WithTenant runs fn inside one transaction on one exclusive pooled
// connection, with the tenant session variable pinned to tenantID for the
// duration of the transaction. Row-level security policies read the variable,
// so tenant filtering is enforced by the engine itself, not just by whatever
// WHERE clauses each query happens to carry.
//
// The variable is reset before the connection returns to the pool no matter
// how fn ends: success, error, panic or context cancellation. A stale binding
// on a reused connection would be a tenant-isolation breach.
func WithTenant(ctx context.Context, pool *pgxpool.Pool, tenantID string, fn func(pgx.Tx) error) error {
	if _, err := uuid.Parse(tenantID); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidTenantID, tenantID)
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("platform/db: acquire conn: %w", err)
	}

	return runTenantSession(ctx, conn, tenantID, fn)
}

func runTenantSession(ctx context.Context, conn sessionConn, tenantID string, fn func(pgx.Tx) error) (err error) {
	// Cleanup must survive cancellation of the caller's context.
	cleanup := context.WithoutCancel(ctx)

	defer func() {
		if _, resetErr := conn.Exec(cleanup, "RESET "+tenantGUC); resetErr != nil && err == nil {
			err = fmt.Errorf("platform/db: reset tenant binding: %w", resetErr)
		}
		conn.Release()
	}()

	tx, err := conn.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		// A rollback failure must not mask the error fn returned.
		if rbErr := tx.Rollback(cleanup); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) && err == nil {
			err = fmt.Errorf("platform/db: rollback: %w", rbErr)
		}
	}()

	// set_config(..., true) is transaction-local and keeps the tenant id on
	// the parameter-binding path; it is never spliced into SQL text.
	if _, err = tx.Exec(ctx, "SELECT set_config($1, $2, true)", tenantGUC, tenantID); err != nil {
		return fmt.Errorf("%w: %v", ErrTenantBinding, err)
	}

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}
	committed = true
	return nil
}

// TenantSessions hands tenant-scoped transactions to domain services without
// exposing the pool.
type TenantSessions struct {
	pool    *pgxpool.Pool
	metrics *observability.Metrics
}

// NewTenantSessions constructs a TenantSessions facade over the pool.
// metrics may be nil.
func NewTenantSessions(pool *pgxpool.Pool, metrics *observability.Metrics) *TenantSessions {
	return &TenantSessions{pool: pool, metrics: metrics}
}

// WithTenant delegates to the package-level WithTenant.
func (s *TenantSessions) WithTenant(ctx context.Context, tenantID string, fn func(pgx.Tx) error) error {
	err := WithTenant(ctx, s.pool, tenantID, fn)
	switch {
	case err == nil:
		s.metrics.ObserveTenantSession("ok")
	case errors.Is(err, ErrInvalidTenantID):
		s.metrics.ObserveTenantSession("invalid_tenant")
	case errors.Is(err, ErrTenantBinding):
		s.metrics.ObserveTenantSession("binding_failed")
	default:
		s.metrics.ObserveTenantSession("error")
	}
	return err
}
