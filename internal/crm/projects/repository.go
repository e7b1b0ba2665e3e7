package projects

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/atlas-crm/atlas-crm/internal/shared"
)

const projectColumns = "id, tenant_id, client_id, name, description, status, start_date, end_date, created_at, updated_at"

// Repository persists projects. It is stateless and runs against the
// transaction supplied by the caller's tenant session.
type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

func scanProject(row pgx.Row) (*Project, error) {
	var p Project
	err := row.Scan(&p.ID, &p.TenantID, &p.ClientID, &p.Name, &p.Description, &p.Status, &p.StartDate, &p.EndDate, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("crm/projects: scan project: %w", err)
	}
	return &p, nil
}

func (r *Repository) List(ctx context.Context, tx pgx.Tx, req ListProjectsRequest) ([]Project, int64, error) {
	where := []string{"1=1"}
	args := []any{}
	if req.ClientID > 0 {
		args = append(args, req.ClientID)
		where = append(where, fmt.Sprintf("client_id = $%d", len(args)))
	}
	if req.Status != "" {
		args = append(args, req.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := tx.QueryRow(ctx, "SELECT COUNT(*) FROM projects WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("crm/projects: count projects: %w", err)
	}

	args = append(args, req.Limit, req.Offset)
	query := fmt.Sprintf(
		"SELECT %s FROM projects WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d",
		projectColumns, cond, len(args)-1, len(args),
	)
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("crm/projects: list projects: %w", err)
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("crm/projects: list projects: %w", err)
	}
	return out, total, nil
}

func (r *Repository) Get(ctx context.Context, tx pgx.Tx, id int64) (*Project, error) {
	row := tx.QueryRow(ctx, "SELECT "+projectColumns+" FROM projects WHERE id = $1", id)
	return scanProject(row)
}

func (r *Repository) Create(ctx context.Context, tx pgx.Tx, tenantID string, req CreateProjectRequest) (*Project, error) {
	row := tx.QueryRow(ctx,
		`INSERT INTO projects (tenant_id, client_id, name, description, status, start_date, end_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+projectColumns,
		tenantID, req.ClientID, req.Name, req.Description, StatusPlanned, req.StartDate, req.EndDate,
	)
	p, err := scanProject(row)
	if err != nil {
		return nil, mapPGError(err)
	}
	return p, nil
}

func (r *Repository) Update(ctx context.Context, tx pgx.Tx, id int64, req UpdateProjectRequest) (*Project, error) {
	row := tx.QueryRow(ctx,
		`UPDATE projects SET
			name = COALESCE($2, name),
			description = COALESCE($3, description),
			status = COALESCE($4, status),
			start_date = COALESCE($5, start_date),
			end_date = COALESCE($6, end_date),
			updated_at = now()
		 WHERE id = $1
		 RETURNING `+projectColumns,
		id, req.Name, req.Description, req.Status, req.StartDate, req.EndDate,
	)
	return scanProject(row)
}

func (r *Repository) Delete(ctx context.Context, tx pgx.Tx, id int64) error {
	tag, err := tx.Exec(ctx, "DELETE FROM projects WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("crm/projects: delete project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func mapPGError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23503":
			// FK to clients: the referenced client does not exist in
			// this tenant's visible rows.
			return shared.ErrNotFound
		case "23505":
			return shared.ErrDuplicate
		}
	}
	return err
}
