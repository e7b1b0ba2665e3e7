package users

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/atlas-crm/atlas-crm/internal/shared"
)

type memoryRepo struct {
	nextID int64
	users  map[int64]*User
	hashes map[int64]string
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{nextID: 1, users: map[int64]*User{}, hashes: map[int64]string{}}
}

func (m *memoryRepo) ListUsers(ctx context.Context, tenantID string) ([]User, error) {
	var out []User
	for _, u := range m.users {
		if u.TenantID == tenantID {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *memoryRepo) GetUser(ctx context.Context, tenantID string, id int64) (User, error) {
	u, ok := m.users[id]
	if !ok || u.TenantID != tenantID {
		return User{}, shared.ErrNotFound
	}
	return *u, nil
}

func (m *memoryRepo) CreateUser(ctx context.Context, tenantID, email, passwordHash string) (User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return User{}, shared.ErrDuplicate
		}
	}
	u := &User{ID: m.nextID, TenantID: tenantID, Email: email, IsActive: true}
	m.users[u.ID] = u
	m.hashes[u.ID] = passwordHash
	m.nextID++
	return *u, nil
}

func (m *memoryRepo) SetUserActive(ctx context.Context, tenantID string, id int64, active bool) error {
	u, ok := m.users[id]
	if !ok || u.TenantID != tenantID {
		return shared.ErrNotFound
	}
	u.IsActive = active
	return nil
}

func (m *memoryRepo) SetPasswordHash(ctx context.Context, tenantID string, id int64, passwordHash string) error {
	u, ok := m.users[id]
	if !ok || u.TenantID != tenantID {
		return shared.ErrNotFound
	}
	m.hashes[id] = passwordHash
	return nil
}

type spyInvalidator struct {
	users []int64
}

func (s *spyInvalidator) Invalidate(ctx context.Context, userID int64) error {
	s.users = append(s.users, userID)
	return nil
}

const (
	testTenant  = "0e5e2f8c-7c8d-4f7a-a1f3-4b8f3f6c2a77"
	otherTenant = "9b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d"
)

func TestCreateUserHashesPassword(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, &spyInvalidator{}, slog.New(slog.DiscardHandler))

	user, err := svc.CreateUser(context.Background(), testTenant, "  Admin@Example.COM ", "correct horse battery")
	require.NoError(t, err)
	require.Equal(t, "admin@example.com", user.Email)
	require.True(t, user.IsActive)

	hash := repo.hashes[user.ID]
	require.NotEqual(t, "correct horse battery", hash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("correct horse battery")))
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, &spyInvalidator{}, slog.New(slog.DiscardHandler))
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, testTenant, "admin@example.com", "correct horse battery")
	require.NoError(t, err)
	_, err = svc.CreateUser(ctx, testTenant, "admin@example.com", "correct horse battery")
	require.ErrorIs(t, err, shared.ErrDuplicate)
}

func TestDeactivationInvalidatesGrants(t *testing.T) {
	repo := newMemoryRepo()
	spy := &spyInvalidator{}
	svc := NewService(repo, spy, slog.New(slog.DiscardHandler))
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, testTenant, "admin@example.com", "correct horse battery")
	require.NoError(t, err)

	require.NoError(t, svc.SetUserActive(ctx, testTenant, user.ID, false))
	require.Equal(t, []int64{user.ID}, spy.users)

	require.NoError(t, svc.SetUserActive(ctx, testTenant, user.ID, true))
	require.Equal(t, []int64{user.ID}, spy.users)
}

func TestResetPasswordUnknownUser(t *testing.T) {
	svc := NewService(newMemoryRepo(), &spyInvalidator{}, slog.New(slog.DiscardHandler))

	err := svc.ResetPassword(context.Background(), testTenant, 99, "correct horse battery")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestUserAdminScopedToTenant(t *testing.T) {
	repo := newMemoryRepo()
	spy := &spyInvalidator{}
	svc := NewService(repo, spy, slog.New(slog.DiscardHandler))
	ctx := context.Background()

	victim, err := svc.CreateUser(ctx, otherTenant, "victim@other.example", "correct horse battery")
	require.NoError(t, err)
	originalHash := repo.hashes[victim.ID]

	// A caller from another tenant must see the user as missing.
	_, err = svc.GetUser(ctx, testTenant, victim.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)

	err = svc.SetUserActive(ctx, testTenant, victim.ID, false)
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.True(t, repo.users[victim.ID].IsActive)
	require.Empty(t, spy.users)

	err = svc.ResetPassword(ctx, testTenant, victim.ID, "hijacked password!")
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Equal(t, originalHash, repo.hashes[victim.ID])

	// The owning tenant still reaches its own user.
	got, err := svc.GetUser(ctx, otherTenant, victim.ID)
	require.NoError(t, err)
	require.Equal(t, victim.ID, got.ID)
}
