package rbac

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/atlas-crm/atlas-crm/internal/shared"
)

const (
	tenantAlpha = "0e5e2f8c-7c8d-4f7a-a1f3-4b8f3f6c2a77"
	tenantBeta  = "9b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d"
)

type memoryRepo struct {
	roles        map[int64]Role
	perms        map[int64]Permission
	rolePerms    map[int64][]int64
	userRoles    map[int64][]int64
	userTenants  map[int64]string
	nextRoleID   int64
	nextPermID   int64
	listUsersErr error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		roles:       make(map[int64]Role),
		perms:       make(map[int64]Permission),
		rolePerms:   make(map[int64][]int64),
		userRoles:   make(map[int64][]int64),
		userTenants: make(map[int64]string),
	}
}

func (r *memoryRepo) addUser(id int64, tenantID string) {
	r.userTenants[id] = tenantID
}

func (r *memoryRepo) ListRoles(ctx context.Context) ([]Role, error) {
	var out []Role
	for _, role := range r.roles {
		out = append(out, role)
	}
	return out, nil
}

func (r *memoryRepo) GetRole(ctx context.Context, id int64) (Role, error) {
	role, ok := r.roles[id]
	if !ok {
		return Role{}, shared.ErrNotFound
	}
	return role, nil
}

func (r *memoryRepo) CreateRole(ctx context.Context, name, description string) (Role, error) {
	r.nextRoleID++
	role := Role{ID: r.nextRoleID, Name: name, Description: description}
	r.roles[role.ID] = role
	return role, nil
}

func (r *memoryRepo) UpdateRole(ctx context.Context, id int64, name, description string) (Role, error) {
	role, ok := r.roles[id]
	if !ok {
		return Role{}, shared.ErrNotFound
	}
	role.Name, role.Description = name, description
	r.roles[id] = role
	return role, nil
}

func (r *memoryRepo) DeleteRole(ctx context.Context, id int64) error {
	if _, ok := r.roles[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.roles, id)
	return nil
}

func (r *memoryRepo) ListPermissions(ctx context.Context) ([]Permission, error) {
	var out []Permission
	for _, p := range r.perms {
		out = append(out, p)
	}
	return out, nil
}

func (r *memoryRepo) EnsurePermission(ctx context.Context, name, description string) (Permission, error) {
	for _, p := range r.perms {
		if p.Name == name {
			p.Description = description
			r.perms[p.ID] = p
			return p, nil
		}
	}
	r.nextPermID++
	perm := Permission{ID: r.nextPermID, Name: name, Description: description}
	r.perms[perm.ID] = perm
	return perm, nil
}

func (r *memoryRepo) ListRolePermissions(ctx context.Context, roleID int64) ([]Permission, error) {
	var out []Permission
	for _, id := range r.rolePerms[roleID] {
		out = append(out, r.perms[id])
	}
	return out, nil
}

func (r *memoryRepo) ReplaceRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	r.rolePerms[roleID] = append([]int64(nil), permissionIDs...)
	return nil
}

func (r *memoryRepo) AssignRoleToUser(ctx context.Context, tenantID string, userID, roleID int64) error {
	if r.userTenants[userID] != tenantID {
		return shared.ErrNotFound
	}
	r.userRoles[roleID] = append(r.userRoles[roleID], userID)
	return nil
}

func (r *memoryRepo) RemoveRoleFromUser(ctx context.Context, tenantID string, userID, roleID int64) error {
	if r.userTenants[userID] != tenantID {
		return shared.ErrNotFound
	}
	users := r.userRoles[roleID]
	for i, id := range users {
		if id == userID {
			r.userRoles[roleID] = append(users[:i], users[i+1:]...)
			break
		}
	}
	return nil
}

func (r *memoryRepo) ListRoleUserIDs(ctx context.Context, roleID int64) ([]int64, error) {
	if r.listUsersErr != nil {
		return nil, r.listUsersErr
	}
	return r.userRoles[roleID], nil
}

type spyInvalidator struct {
	users []int64
	all   int
}

func (s *spyInvalidator) Invalidate(ctx context.Context, userID int64) error {
	s.users = append(s.users, userID)
	return nil
}

func (s *spyInvalidator) InvalidateAll(ctx context.Context) error {
	s.all++
	return nil
}

func newTestService(repo Repository, inv Invalidator) *Service {
	return NewService(repo, inv, slog.New(slog.DiscardHandler))
}

func TestCreateRoleRequiresName(t *testing.T) {
	service := newTestService(newMemoryRepo(), &spyInvalidator{})
	_, err := service.CreateRole(context.Background(), "   ", "")
	require.Error(t, err)
}

func TestAssignRoleInvalidatesUser(t *testing.T) {
	repo := newMemoryRepo()
	repo.addUser(7, tenantAlpha)
	inv := &spyInvalidator{}
	service := newTestService(repo, inv)

	role, err := service.CreateRole(context.Background(), "manager", "")
	require.NoError(t, err)
	require.NoError(t, service.AssignRole(context.Background(), tenantAlpha, 7, role.ID))
	require.Equal(t, []int64{7}, inv.users)

	require.NoError(t, service.RemoveRole(context.Background(), tenantAlpha, 7, role.ID))
	require.Equal(t, []int64{7, 7}, inv.users)
}

func TestAssignRoleRejectsForeignTenantUser(t *testing.T) {
	repo := newMemoryRepo()
	repo.addUser(7, tenantBeta)
	inv := &spyInvalidator{}
	service := newTestService(repo, inv)

	role, err := service.CreateRole(context.Background(), "manager", "")
	require.NoError(t, err)

	err = service.AssignRole(context.Background(), tenantAlpha, 7, role.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Empty(t, repo.userRoles[role.ID])
	require.Empty(t, inv.users)

	err = service.RemoveRole(context.Background(), tenantAlpha, 7, role.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Empty(t, inv.users)
}

func TestSetRolePermissionsInvalidatesHolders(t *testing.T) {
	repo := newMemoryRepo()
	inv := &spyInvalidator{}
	service := newTestService(repo, inv)

	role, err := service.CreateRole(context.Background(), "manager", "")
	require.NoError(t, err)
	repo.addUser(7, tenantAlpha)
	repo.addUser(9, tenantAlpha)
	require.NoError(t, repo.AssignRoleToUser(context.Background(), tenantAlpha, 7, role.ID))
	require.NoError(t, repo.AssignRoleToUser(context.Background(), tenantAlpha, 9, role.ID))

	perm, err := service.EnsurePermission(context.Background(), "Client:Read", "read clients")
	require.NoError(t, err)
	require.Equal(t, "client:read", perm.Name)

	require.NoError(t, service.SetRolePermissions(context.Background(), role.ID, []int64{perm.ID}))
	require.ElementsMatch(t, []int64{7, 9}, inv.users)
	require.Zero(t, inv.all)
}

func TestSetRolePermissionsFallsBackToFullInvalidation(t *testing.T) {
	repo := newMemoryRepo()
	repo.listUsersErr = context.DeadlineExceeded
	inv := &spyInvalidator{}
	service := newTestService(repo, inv)

	require.NoError(t, service.SetRolePermissions(context.Background(), 1, nil))
	require.Equal(t, 1, inv.all)
}

func TestDeleteRoleInvalidatesHolders(t *testing.T) {
	repo := newMemoryRepo()
	inv := &spyInvalidator{}
	service := newTestService(repo, inv)

	role, err := service.CreateRole(context.Background(), "manager", "")
	require.NoError(t, err)
	repo.addUser(7, tenantAlpha)
	require.NoError(t, repo.AssignRoleToUser(context.Background(), tenantAlpha, 7, role.ID))

	require.NoError(t, service.DeleteRole(context.Background(), role.ID))
	require.Equal(t, []int64{7}, inv.users)

	err = service.DeleteRole(context.Background(), role.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}
