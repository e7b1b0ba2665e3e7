package clients

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/atlas-crm/atlas-crm/internal/authz"
	"github.com/atlas-crm/atlas-crm/internal/shared"
)

type fakeSessions struct {
	tenants []string
	err     error
}

func (f *fakeSessions) WithTenant(ctx context.Context, tenantID string, fn func(pgx.Tx) error) error {
	f.tenants = append(f.tenants, tenantID)
	if f.err != nil {
		return f.err
	}
	return fn(nil)
}

type memoryStore struct {
	nextID  int64
	clients map[int64]*Client
}

func newMemoryStore() *memoryStore {
	return &memoryStore{nextID: 1, clients: map[int64]*Client{}}
}

func (m *memoryStore) List(ctx context.Context, tx pgx.Tx, req ListClientsRequest) ([]Client, int64, error) {
	out := make([]Client, 0, len(m.clients))
	for _, c := range m.clients {
		if req.Status != "" && c.Status != req.Status {
			continue
		}
		out = append(out, *c)
	}
	return out, int64(len(out)), nil
}

func (m *memoryStore) Get(ctx context.Context, tx pgx.Tx, id int64) (*Client, error) {
	c, ok := m.clients[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memoryStore) Create(ctx context.Context, tx pgx.Tx, tenantID string, req CreateClientRequest) (*Client, error) {
	c := &Client{
		ID:       m.nextID,
		TenantID: tenantID,
		Name:     req.Name,
		Email:    req.Email,
		Status:   StatusActive,
	}
	m.clients[c.ID] = c
	m.nextID++
	cp := *c
	return &cp, nil
}

func (m *memoryStore) Update(ctx context.Context, tx pgx.Tx, id int64, req UpdateClientRequest) (*Client, error) {
	c, ok := m.clients[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	if req.Name != nil {
		c.Name = *req.Name
	}
	if req.Status != nil {
		c.Status = *req.Status
	}
	cp := *c
	return &cp, nil
}

func (m *memoryStore) Delete(ctx context.Context, tx pgx.Tx, id int64) error {
	if _, ok := m.clients[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.clients, id)
	return nil
}

func testPrincipal() *shared.Principal {
	return &shared.Principal{
		UserID:   7,
		TenantID: "2b9df1c8-40cf-48a6-9f0b-2f1f6f3f9e01",
		Email:    "owner@example.com",
	}
}

func TestServiceCreateBindsPrincipalTenant(t *testing.T) {
	sessions := &fakeSessions{}
	store := newMemoryStore()
	svc := NewService(sessions, store)
	principal := testPrincipal()

	client, err := svc.Create(context.Background(), principal, CreateClientRequest{Name: "Acme"})
	require.NoError(t, err)
	require.Equal(t, principal.TenantID, client.TenantID)
	require.Equal(t, StatusActive, client.Status)
	require.Equal(t, []string{principal.TenantID}, sessions.tenants)
}

func TestServiceEveryCallRunsInTenantSession(t *testing.T) {
	sessions := &fakeSessions{}
	store := newMemoryStore()
	svc := NewService(sessions, store)
	principal := testPrincipal()
	ctx := context.Background()

	created, err := svc.Create(ctx, principal, CreateClientRequest{Name: "Acme"})
	require.NoError(t, err)
	_, err = svc.Get(ctx, principal, created.ID)
	require.NoError(t, err)
	_, _, err = svc.List(ctx, principal, ListClientsRequest{})
	require.NoError(t, err)
	name := "Acme Corp"
	_, err = svc.Update(ctx, principal, created.ID, UpdateClientRequest{Name: &name})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, principal, created.ID))

	require.Len(t, sessions.tenants, 5)
	for _, tenantID := range sessions.tenants {
		require.Equal(t, principal.TenantID, tenantID)
	}
}

func TestServiceRejectsMissingPrincipal(t *testing.T) {
	sessions := &fakeSessions{}
	svc := NewService(sessions, newMemoryStore())

	_, _, err := svc.List(context.Background(), nil, ListClientsRequest{})
	require.ErrorIs(t, err, authz.ErrUnauthenticated)
	_, err = svc.Get(context.Background(), &shared.Principal{UserID: 7}, 1)
	require.ErrorIs(t, err, authz.ErrUnauthenticated)
	require.Empty(t, sessions.tenants)
}

func TestServiceListDefaultsLimit(t *testing.T) {
	sessions := &fakeSessions{}
	store := newMemoryStore()
	svc := NewService(sessions, store)

	_, _, err := svc.List(context.Background(), testPrincipal(), ListClientsRequest{Limit: 0})
	require.NoError(t, err)
}

func TestServiceSessionErrorPropagates(t *testing.T) {
	sessions := &fakeSessions{err: context.DeadlineExceeded}
	svc := NewService(sessions, newMemoryStore())

	_, err := svc.Get(context.Background(), testPrincipal(), 1)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestServiceGetMissingClient(t *testing.T) {
	svc := NewService(&fakeSessions{}, newMemoryStore())

	_, err := svc.Get(context.Background(), testPrincipal(), 42)
	require.ErrorIs(t, err, shared.ErrNotFound)
}
