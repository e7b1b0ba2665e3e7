package projects

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
}

func (f *fakeSessions) WithTenant(ctx context.Context, tenantID string, fn func(pgx.Tx) error) error {
	f.tenants = append(f.tenants, tenantID)
	return fn(nil)
}

type memoryStore struct {
	nextID   int64
	projects map[int64]*Project
}

func newMemoryStore() *memoryStore {
	return &memoryStore{nextID: 1, projects: map[int64]*Project{}}
}

func (m *memoryStore) List(ctx context.Context, tx pgx.Tx, req ListProjectsRequest) ([]Project, int64, error) {
	out := make([]Project, 0, len(m.projects))
	for _, p := range m.projects {
		if req.ClientID > 0 && p.ClientID != req.ClientID {
			continue
		}
		if req.Status != "" && p.Status != req.Status {
			continue
		}
		out = append(out, *p)
	}
	return out, int64(len(out)), nil
}

func (m *memoryStore) Get(ctx context.Context, tx pgx.Tx, id int64) (*Project, error) {
	p, ok := m.projects[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memoryStore) Create(ctx context.Context, tx pgx.Tx, tenantID string, req CreateProjectRequest) (*Project, error) {
	p := &Project{
		ID:       m.nextID,
		TenantID: tenantID,
		ClientID: req.ClientID,
		Name:     req.Name,
		Status:   StatusPlanned,
	}
	m.projects[p.ID] = p
	m.nextID++
	cp := *p
	return &cp, nil
}

func (m *memoryStore) Update(ctx context.Context, tx pgx.Tx, id int64, req UpdateProjectRequest) (*Project, error) {
	p, ok := m.projects[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Status != nil {
		p.Status = *req.Status
	}
	cp := *p
	return &cp, nil
}

func (m *memoryStore) Delete(ctx context.Context, tx pgx.Tx, id int64) error {
	if _, ok := m.projects[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.projects, id)
	return nil
}

func testPrincipal() *shared.Principal {
	return &shared.Principal{
		UserID:   3,
		TenantID: "9c3a6f0e-1db5-4e6f-9dd5-6c5e7a2b4f10",
		Email:    "pm@example.com",
	}
}

func TestServiceCreateStartsPlanned(t *testing.T) {
	sessions := &fakeSessions{}
	svc := NewService(sessions, newMemoryStore())
	principal := testPrincipal()

	project, err := svc.Create(context.Background(), principal, CreateProjectRequest{ClientID: 9, Name: "Website revamp"})
	require.NoError(t, err)
	require.Equal(t, StatusPlanned, project.Status)
	require.Equal(t, principal.TenantID, project.TenantID)
	require.Equal(t, []string{principal.TenantID}, sessions.tenants)
}

func TestServiceStatusTransition(t *testing.T) {
	sessions := &fakeSessions{}
	svc := NewService(sessions, newMemoryStore())
	principal := testPrincipal()
	ctx := context.Background()

	project, err := svc.Create(ctx, principal, CreateProjectRequest{ClientID: 9, Name: "Website revamp"})
	require.NoError(t, err)

	status := StatusActive
	updated, err := svc.Update(ctx, principal, project.ID, UpdateProjectRequest{Status: &status})
	require.NoError(t, err)
	require.Equal(t, StatusActive, updated.Status)
}

func TestServiceListFiltersByClient(t *testing.T) {
	sessions := &fakeSessions{}
	svc := NewService(sessions, newMemoryStore())
	principal := testPrincipal()
	ctx := context.Background()

	_, err := svc.Create(ctx, principal, CreateProjectRequest{ClientID: 1, Name: "A"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, principal, CreateProjectRequest{ClientID: 2, Name: "B"})
	require.NoError(t, err)

	data, total, err := svc.List(ctx, principal, ListProjectsRequest{ClientID: 2})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Len(t, data, 1)
	require.Equal(t, "B", data[0].Name)
}

func TestServiceRejectsMissingPrincipal(t *testing.T) {
	sessions := &fakeSessions{}
	svc := NewService(sessions, newMemoryStore())

	_, err := svc.Create(context.Background(), nil, CreateProjectRequest{ClientID: 1, Name: "A"})
	require.ErrorIs(t, err, authz.ErrUnauthenticated)
	require.Empty(t, sessions.tenants)
}
