package clients

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/atlas-crm/atlas-crm/internal/authz"
	"github.com/atlas-crm/atlas-crm/internal/shared"
)

// TenantSessions runs fn inside a tenant-bound transaction. Satisfied by
// db.TenantSessions.
type TenantSessions interface {
	WithTenant(ctx context.Context, tenantID string, fn func(pgx.Tx) error) error
}

// ClientStore is the persistence surface the service drives inside a session.
type ClientStore interface {
	List(ctx context.Context, tx pgx.Tx, req ListClientsRequest) ([]Client, int64, error)
	Get(ctx context.Context, tx pgx.Tx, id int64) (*Client, error)
	Create(ctx context.Context, tx pgx.Tx, tenantID string, req CreateClientRequest) (*Client, error)
	Update(ctx context.Context, tx pgx.Tx, id int64, req UpdateClientRequest) (*Client, error)
	Delete(ctx context.Context, tx pgx.Tx, id int64) error
}

var _ ClientStore = (*Repository)(nil)

// Service executes client operations. Every call runs inside a tenant-scoped
// session bound to the principal's tenant, so even a buggy query cannot reach
// another tenant's rows.
type Service struct {
	sessions TenantSessions
	store    ClientStore
}

// NewService constructs a Service.
func NewService(sessions TenantSessions, store ClientStore) *Service {
	return &Service{sessions: sessions, store: store}
}

func (s *Service) tenantOf(principal *shared.Principal) (string, error) {
	if !principal.Valid() {
		return "", authz.ErrUnauthenticated
	}
	return principal.TenantID, nil
}

// List returns a page of the principal's tenant's clients.
func (s *Service) List(ctx context.Context, principal *shared.Principal, req ListClientsRequest) ([]Client, int64, error) {
	tenantID, err := s.tenantOf(principal)
	if err != nil {
		return nil, 0, err
	}
	if req.Limit <= 0 {
		req.Limit = 50
	}
	var (
		out   []Client
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

// Get fetches one client.
func (s *Service) Get(ctx context.Context, principal *shared.Principal, id int64) (*Client, error) {
	tenantID, err := s.tenantOf(principal)
	if err != nil {
		return nil, err
	}
	var client *Client
	err = s.sessions.WithTenant(ctx, tenantID, func(tx pgx.Tx) error {
		client, err = s.store.Get(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Create inserts a client owned by the principal's tenant.
func (s *Service) Create(ctx context.Context, principal *shared.Principal, req CreateClientRequest) (*Client, error) {
	tenantID, err := s.tenantOf(principal)
	if err != nil {
		return nil, err
	}
	var client *Client
	err = s.sessions.WithTenant(ctx, tenantID, func(tx pgx.Tx) error {
		client, err = s.store.Create(ctx, tx, tenantID, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Update applies a partial update to one client.
func (s *Service) Update(ctx context.Context, principal *shared.Principal, id int64, req UpdateClientRequest) (*Client, error) {
	tenantID, err := s.tenantOf(principal)
	if err != nil {
		return nil, err
	}
	var client *Client
	err = s.sessions.WithTenant(ctx, tenantID, func(tx pgx.Tx) error {
		client, err = s.store.Update(ctx, tx, id, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Delete removes one client.
func (s *Service) Delete(ctx context.Context, principal *shared.Principal, id int64) error {
	tenantID, err := s.tenantOf(principal)
	if err != nil {
		return err
	}
	return s.sessions.WithTenant(ctx, tenantID, func(tx pgx.Tx) error {
		return s.store.Delete(ctx, tx, id)
	})
}
