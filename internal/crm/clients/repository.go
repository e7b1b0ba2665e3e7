package clients

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/atlas-crm/atlas-crm/internal/shared"
)

// Repository issues client statements against an open tenant-scoped
// transaction. Row-level security scopes every statement to the bound tenant;
// the queries themselves never need a tenant filter.
type Repository struct{}

// NewRepository constructs a repository.
func NewRepository() *Repository {
	return &Repository{}
}

const clientColumns = `id, tenant_id, name, email, phone, company, address, status, created_at, updated_at`

func scanClient(row pgx.Row) (*Client, error) {
	var c Client
	err := row.Scan(&c.ID, &c.TenantID, &c.Name, &c.Email, &c.Phone, &c.Company, &c.Address,
		&c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// List returns a page of clients plus the unpaged total.
func (r *Repository) List(ctx context.Context, tx pgx.Tx, req ListClientsRequest) ([]Client, int64, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if req.Search != "" {
		args = append(args, "%"+req.Search+"%")
		where += fmt.Sprintf(` AND (name ILIKE $%d OR email ILIKE $%d OR company ILIKE $%d)`, len(args), len(args), len(args))
	}
	if req.Status != "" {
		args = append(args, req.Status)
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	}

	var total int64
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM clients`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, req.Limit, req.Offset)
	query := fmt.Sprintf(`SELECT %s FROM clients%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		clientColumns, where, len(args)-1, len(args))
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

// Get fetches one client by id.
func (r *Repository) Get(ctx context.Context, tx pgx.Tx, id int64) (*Client, error) {
	return scanClient(tx.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id))
}

// Create inserts a client for the given tenant.
func (r *Repository) Create(ctx context.Context, tx pgx.Tx, tenantID string, req CreateClientRequest) (*Client, error) {
	client, err := scanClient(tx.QueryRow(ctx, `
		INSERT INTO clients (tenant_id, name, email, phone, company, address, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		RETURNING `+clientColumns,
		tenantID, req.Name, req.Email, req.Phone, req.Company, req.Address, StatusActive))
	if err != nil {
		return nil, mapPGError(err)
	}
	return client, nil
}

// Update applies the non-nil fields of req to one client.
func (r *Repository) Update(ctx context.Context, tx pgx.Tx, id int64, req UpdateClientRequest) (*Client, error) {
	client, err := scanClient(tx.QueryRow(ctx, `
		UPDATE clients SET
			name    = COALESCE($2, name),
			email   = COALESCE($3, email),
			phone   = COALESCE($4, phone),
			company = COALESCE($5, company),
			address = COALESCE($6, address),
			status  = COALESCE($7, status),
			updated_at = now()
		WHERE id = $1
		RETURNING `+clientColumns,
		id, req.Name, req.Email, req.Phone, req.Company, req.Address, req.Status))
	if err != nil {
		return nil, mapPGError(err)
	}
	return client, nil
}

// Delete removes one client.
func (r *Repository) Delete(ctx context.Context, tx pgx.Tx, id int64) error {
	tag, err := tx.Exec(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func mapPGError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return shared.ErrDuplicate
	}
	return err
}
