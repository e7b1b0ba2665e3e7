package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlas-crm/atlas-crm/internal/shared"
)

const userColumns = "id, tenant_id, email, is_active, created_at, updated_at"

// Repository defines data access methods for user administration. Every
// operation is scoped to one tenant; a user id from another tenant behaves
// exactly like a missing row.
type Repository interface {
	ListUsers(ctx context.Context, tenantID string) ([]User, error)
	GetUser(ctx context.Context, tenantID string, id int64) (User, error)
	CreateUser(ctx context.Context, tenantID, email, passwordHash string) (User, error)
	SetUserActive(ctx context.Context, tenantID string, id int64, active bool) error
	SetPasswordHash(ctx context.Context, tenantID string, id int64, passwordHash string) error
}

// PGRepository provides PostgreSQL backed persistence.
type PGRepository struct {
	pool *pgxpool.Pool
}

var _ Repository = (*PGRepository)(nil)

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.TenantID, &u.Email, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, shared.ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("users: scan user: %w", err)
	}
	return u, nil
}

// ListUsers returns the users belonging to one tenant.
func (r *PGRepository) ListUsers(ctx context.Context, tenantID string) ([]User, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT "+userColumns+" FROM users WHERE tenant_id = $1 ORDER BY id", tenantID)
	if err != nil {
		return nil, fmt.Errorf("users: list users: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("users: list users: %w", err)
	}
	return out, nil
}

// GetUser fetches one user by id within the tenant.
func (r *PGRepository) GetUser(ctx context.Context, tenantID string, id int64) (User, error) {
	row := r.pool.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1 AND tenant_id = $2", id, tenantID)
	return scanUser(row)
}

// CreateUser inserts an active user with the given credential hash.
func (r *PGRepository) CreateUser(ctx context.Context, tenantID, email, passwordHash string) (User, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO users (tenant_id, email, password_hash, is_active)
		 VALUES ($1, $2, $3, true)
		 RETURNING `+userColumns,
		tenantID, email, passwordHash,
	)
	u, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, shared.ErrDuplicate
		}
		return User{}, err
	}
	return u, nil
}

// SetUserActive toggles the active flag.
func (r *PGRepository) SetUserActive(ctx context.Context, tenantID string, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx,
		"UPDATE users SET is_active = $2, updated_at = now() WHERE id = $1 AND tenant_id = $3",
		id, active, tenantID)
	if err != nil {
		return fmt.Errorf("users: set user active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SetPasswordHash replaces a user's credential hash.
func (r *PGRepository) SetPasswordHash(ctx context.Context, tenantID string, id int64, passwordHash string) error {
	tag, err := r.pool.Exec(ctx,
		"UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1 AND tenant_id = $3",
		id, passwordHash, tenantID)
	if err != nil {
		return fmt.Errorf("users: set password hash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
