package users

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Invalidator drops cached permission grants for a user.
type Invalidator interface {
	Invalidate(ctx context.Context, userID int64) error
}

// Service handles user administration.
type Service struct {
	repo        Repository
	invalidator Invalidator
	logger      *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo Repository, invalidator Invalidator, logger *slog.Logger) *Service {
	return &Service{repo: repo, invalidator: invalidator, logger: logger}
}

// ListUsers returns the users of one tenant.
func (s *Service) ListUsers(ctx context.Context, tenantID string) ([]User, error) {
	return s.repo.ListUsers(ctx, tenantID)
}

// GetUser fetches one user of the tenant.
func (s *Service) GetUser(ctx context.Context, tenantID string, id int64) (User, error) {
	return s.repo.GetUser(ctx, tenantID, id)
}

// CreateUser registers a new active user with a bcrypt credential.
func (s *Service) CreateUser(ctx context.Context, tenantID, email, password string) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	return s.repo.CreateUser(ctx, tenantID, strings.ToLower(strings.TrimSpace(email)), string(hash))
}

// SetUserActive enables or disables an account. Disabling also drops the
// user's cached grants so stale permissions cannot outlive the account.
func (s *Service) SetUserActive(ctx context.Context, tenantID string, id int64, active bool) error {
	if err := s.repo.SetUserActive(ctx, tenantID, id, active); err != nil {
		return err
	}
	if !active {
		if err := s.invalidator.Invalidate(ctx, id); err != nil {
			s.logger.Warn("invalidate grants after deactivation",
				slog.Int64("user_id", id), slog.Any("error", err))
		}
	}
	return nil
}

// ResetPassword replaces a user's credential.
func (s *Service) ResetPassword(ctx context.Context, tenantID string, id int64, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.repo.SetPasswordHash(ctx, tenantID, id, string(hash))
}
