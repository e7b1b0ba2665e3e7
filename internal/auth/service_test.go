package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/atlas-crm/atlas-crm/internal/shared"
)

type stubRepo struct {
	user     *User
	sessions map[string]int64
	swept    int64
}

func newStubRepo(user *User) *stubRepo {
	return &stubRepo{user: user, sessions: make(map[string]int64)}
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func (s *stubRepo) CreateLoginSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	s.sessions[id] = userID
	return nil
}

func (s *stubRepo) DeleteLoginSession(ctx context.Context, id string) error {
	delete(s.sessions, id)
	return nil
}

func (s *stubRepo) DeleteExpiredLoginSessions(ctx context.Context) (int64, error) {
	return s.swept, nil
}

func (s *stubRepo) ListActiveUserIDs(ctx context.Context) ([]int64, error) {
	if s.user == nil {
		return nil, nil
	}
	return []int64{s.user.ID}, nil
}

func hash(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func newTestService(t *testing.T, repo Repository) *Service {
	t.Helper()
	tokens, err := NewTokens("secret", time.Hour)
	require.NoError(t, err)
	return NewService(repo, tokens)
}

func TestLoginSuccess(t *testing.T) {
	user := testUser()
	user.PasswordHash = hash(t, "hunter2-hunter2")
	repo := newStubRepo(user)
	service := newTestService(t, repo)

	result, err := service.Login(context.Background(), user.Email, "hunter2-hunter2", "127.0.0.1", "go-test")
	require.NoError(t, err)
	require.NotEmpty(t, result.Token)
	require.Len(t, repo.sessions, 1)

	// The issued token resolves back into the same identity.
	claims, err := service.tokens.Verify(result.Token)
	require.NoError(t, err)
	principal, err := claims.Principal()
	require.NoError(t, err)
	require.Equal(t, user.ID, principal.UserID)
	require.Equal(t, user.TenantID, principal.TenantID)
}

func TestLoginWrongPassword(t *testing.T) {
	user := testUser()
	user.PasswordHash = hash(t, "hunter2-hunter2")
	service := newTestService(t, newStubRepo(user))

	_, err := service.Login(context.Background(), user.Email, "wrong", "", "")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestLoginUnknownUser(t *testing.T) {
	service := newTestService(t, newStubRepo(nil))

	_, err := service.Login(context.Background(), "ghost@example.com", "whatever", "", "")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestLoginInactiveUser(t *testing.T) {
	user := testUser()
	user.IsActive = false
	user.PasswordHash = hash(t, "hunter2-hunter2")
	service := newTestService(t, newStubRepo(user))

	_, err := service.Login(context.Background(), user.Email, "hunter2-hunter2", "", "")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestLogoutRemovesSession(t *testing.T) {
	user := testUser()
	user.PasswordHash = hash(t, "hunter2-hunter2")
	repo := newStubRepo(user)
	service := newTestService(t, repo)

	result, err := service.Login(context.Background(), user.Email, "hunter2-hunter2", "", "")
	require.NoError(t, err)

	claims, err := service.tokens.Verify(result.Token)
	require.NoError(t, err)
	require.NoError(t, service.Logout(context.Background(), claims.ID))
	require.Empty(t, repo.sessions)
}
