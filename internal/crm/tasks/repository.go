package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/atlas-crm/atlas-crm/internal/shared"
)

const taskColumns = "id, tenant_id, project_id, title, description, status, assignee_id, due_at, created_at, updated_at"

// TaskFilter narrows List queries.
type TaskFilter struct {
	ProjectID  int64
	Status     string
	AssigneeID int64
	DueBefore  *time.Time
	Limit      int
	Offset     int
}

// Repository persists tasks against the caller's tenant session.
type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

func scanTask(row pgx.Row) (*Task, error) {
	var t Task
	err := row.Scan(&t.ID, &t.TenantID, &t.ProjectID, &t.Title, &t.Description, &t.Status, &t.AssigneeID, &t.DueAt, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("crm/tasks: scan task: %w", err)
	}
	return &t, nil
}

func (r *Repository) List(ctx context.Context, tx pgx.Tx, filter TaskFilter) ([]Task, int64, error) {
	where := []string{"1=1"}
	args := []any{}
	if filter.ProjectID > 0 {
		args = append(args, filter.ProjectID)
		where = append(where, fmt.Sprintf("project_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.AssigneeID > 0 {
		args = append(args, filter.AssigneeID)
		where = append(where, fmt.Sprintf("assignee_id = $%d", len(args)))
	}
	if filter.DueBefore != nil {
		args = append(args, *filter.DueBefore)
		where = append(where, fmt.Sprintf("due_at IS NOT NULL AND due_at < $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := tx.QueryRow(ctx, "SELECT COUNT(*) FROM tasks WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("crm/tasks: count tasks: %w", err)
	}

	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(
		"SELECT %s FROM tasks WHERE %s ORDER BY due_at NULLS LAST, id LIMIT $%d OFFSET $%d",
		taskColumns, cond, len(args)-1, len(args),
	)
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("crm/tasks: list tasks: %w", err)
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("crm/tasks: list tasks: %w", err)
	}
	return out, total, nil
}

func (r *Repository) Get(ctx context.Context, tx pgx.Tx, id int64) (*Task, error) {
	row := tx.QueryRow(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = $1", id)
	return scanTask(row)
}

func (r *Repository) Create(ctx context.Context, tx pgx.Tx, tenantID string, t *Task) (*Task, error) {
	row := tx.QueryRow(ctx,
		`INSERT INTO tasks (tenant_id, project_id, title, description, status, assignee_id, due_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+taskColumns,
		tenantID, t.ProjectID, t.Title, t.Description, t.Status, t.AssigneeID, t.DueAt,
	)
	created, err := scanTask(row)
	if err != nil {
		return nil, mapPGError(err)
	}
	return created, nil
}

func (r *Repository) Update(ctx context.Context, tx pgx.Tx, id int64, title, description, status *string, assigneeID *int64, dueAt *time.Time) (*Task, error) {
	row := tx.QueryRow(ctx,
		`UPDATE tasks SET
			title = COALESCE($2, title),
			description = COALESCE($3, description),
			status = COALESCE($4, status),
			assignee_id = COALESCE($5, assignee_id),
			due_at = COALESCE($6, due_at),
			updated_at = now()
		 WHERE id = $1
		 RETURNING `+taskColumns,
		id, title, description, status, assigneeID, dueAt,
	)
	return scanTask(row)
}

func (r *Repository) Delete(ctx context.Context, tx pgx.Tx, id int64) error {
	tag, err := tx.Exec(ctx, "DELETE FROM tasks WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("crm/tasks: delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func mapPGError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return shared.ErrNotFound
	}
	return err
}
