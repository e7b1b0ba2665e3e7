package tasks

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/atlas-crm/atlas-crm/internal/authz"
	"github.com/atlas-crm/atlas-crm/internal/shared"
)

// TenantSessions runs fn inside a tenant-bound transaction.
type TenantSessions interface {
	WithTenant(ctx context.Context, tenantID string, fn func(pgx.Tx) error) error
}

type TaskStore interface {
	List(ctx context.Context, tx pgx.Tx, filter TaskFilter) ([]Task, int64, error)
	Get(ctx context.Context, tx pgx.Tx, id int64) (*Task, error)
	Create(ctx context.Context, tx pgx.Tx, tenantID string, t *Task) (*Task, error)
	Update(ctx context.Context, tx pgx.Tx, id int64, title, description, status *string, assigneeID *int64, dueAt *time.Time) (*Task, error)
	Delete(ctx context.Context, tx pgx.Tx, id int64) error
}

var _ TaskStore = (*Repository)(nil)

// Service executes task operations inside tenant-scoped sessions.
type Service struct {
	sessions TenantSessions
	store    TaskStore
}

func NewService(sessions TenantSessions, store TaskStore) *Service {
	return &Service{sessions: sessions, store: store}
}

func (s *Service) tenantOf(principal *shared.Principal) (string, error) {
	if !principal.Valid() {
		return "", authz.ErrUnauthenticated
	}
	return principal.TenantID, nil
}

func (s *Service) List(ctx context.Context, principal *shared.Principal, filter TaskFilter) ([]Task, int64, error) {
	tenantID, err := s.tenantOf(principal)
	if err != nil {
		return nil, 0, err
	}
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	var (
		out   []Task
		total int64
	)
	err = s.sessions.WithTenant(ctx, tenantID, func(tx pgx.Tx) error {
		out, total, err = s.store.List(ctx, tx, filter)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *Service) Get(ctx context.Context, principal *shared.Principal, id int64) (*Task, error) {
	tenantID, err := s.tenantOf(principal)
	if err != nil {
		return nil, err
	}
	var task *Task
	err = s.sessions.WithTenant(ctx, tenantID, func(tx pgx.Tx) error {
		task, err = s.store.Get(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (s *Service) Create(ctx context.Context, principal *shared.Principal, draft *Task) (*Task, error) {
	tenantID, err := s.tenantOf(principal)
	if err != nil {
		return nil, err
	}
	if draft.Status == "" {
		draft.Status = StatusTodo
	}
	var task *Task
	err = s.sessions.WithTenant(ctx, tenantID, func(tx pgx.Tx) error {
		task, err = s.store.Create(ctx, tx, tenantID, draft)
		return err
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (s *Service) Update(ctx context.Context, principal *shared.Principal, id int64, title, description, status *string, assigneeID *int64, dueAt *time.Time) (*Task, error) {
	tenantID, err := s.tenantOf(principal)
	if err != nil {
		return nil, err
	}
	var task *Task
	err = s.sessions.WithTenant(ctx, tenantID, func(tx pgx.Tx) error {
		task, err = s.store.Update(ctx, tx, id, title, description, status, assigneeID, dueAt)
		return err
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (s *Service) Delete(ctx context.Context, principal *shared.Principal, id int64) error {
	tenantID, err := s.tenantOf(principal)
	if err != nil {
		return err
	}
	return s.sessions.WithTenant(ctx, tenantID, func(tx pgx.Tx) error {
		return s.store.Delete(ctx, tx, id)
	})
}
