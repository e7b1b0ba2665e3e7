package projects

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/atlas-crm/atlas-crm/internal/authz"
	"github.com/atlas-crm/atlas-crm/internal/shared"
)

// TenantSessions runs fn inside a tenant-bound transaction.
type TenantSessions interface {
	WithTenant(ctx context.Context, tenantID string, fn func(pgx.Tx) error) error
}

type ProjectStore interface {
	List(ctx context.Context, tx pgx.Tx, req ListProjectsRequest) ([]Project, int64, error)
	Get(ctx context.Context, tx pgx.Tx, id int64) (*Project, error)
	Create(ctx context.Context, tx pgx.Tx, tenantID string, req CreateProjectRequest) (*Project, error)
	Update(ctx context.Context, tx pgx.Tx, id int64, req UpdateProjectRequest) (*Project, error)
	Delete(ctx context.Context, tx pgx.Tx, id int64) error
}

var _ ProjectStore = (*Repository)(nil)

// Service executes project operations inside tenant-scoped sessions.
type Service struct {
	sessions TenantSessions
	store    ProjectStore
}

func NewService(sessions TenantSessions, store ProjectStore) *Service {
	return &Service{sessions: sessions, store: store}
}

func (s *Service) tenantOf(principal *shared.Principal) (string, error) {
	if !principal.Valid() {
		return "", authz.ErrUnauthenticated
	}
	return principal.TenantID, nil
}

func (s *Service) List(ctx context.Context, principal *shared.Principal, req ListProjectsRequest) ([]Project, int64, error) {
	tenantID, err := s.tenantOf(principal)
	if err != nil {
		return nil, 0, err
	}
	if req.Limit <= 0 {
		req.Limit = 50
	}
	var (
		out   []Project
		total int64
	)
	err = s.sessions.WithTenant(ctx, tenantID, func(tx pgx.Tx) error {
		out, total, err = s.store.List(ctx, tx, req)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *Service) Get(ctx context.Context, principal *shared.Principal, id int64) (*Project, error) {
	tenantID, err := s.tenantOf(principal)
	if err != nil {
		return nil, err
	}
	var project *Project
	err = s.sessions.WithTenant(ctx, tenantID, func(tx pgx.Tx) error {
		project, err = s.store.Get(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return project, nil
}

func (s *Service) Create(ctx context.Context, principal *shared.Principal, req CreateProjectRequest) (*Project, error) {
	tenantID, err := s.tenantOf(principal)
	if err != nil {
		return nil, err
	}
	var project *Project
	err = s.sessions.WithTenant(ctx, tenantID, func(tx pgx.Tx) error {
		project, err = s.store.Create(ctx, tx, tenantID, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return project, nil
}

func (s *Service) Update(ctx context.Context, principal *shared.Principal, id int64, req UpdateProjectRequest) (*Project, error) {
	tenantID, err := s.tenantOf(principal)
	if err != nil {
		return nil, err
	}
	var project *Project
	err = s.sessions.WithTenant(ctx, tenantID, func(tx pgx.Tx) error {
		project, err = s.store.Update(ctx, tx, id, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return project, nil
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
