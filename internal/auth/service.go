package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/atlas-crm/atlas-crm/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo   Repository
	tokens *Tokens
}

// NewService constructs a new Service.
func NewService(repo Repository, tokens *Tokens) *Service {
	return &Service{repo: repo, tokens: tokens}
}

// LoginResult is returned to the handler after a successful login.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *User
}

// Login validates email/password credentials and issues an access token.
// Every failure path reports the same ErrInvalidCredentials so callers cannot
// probe which accounts exist.
func (s *Service) Login(ctx context.Context, email, password, ip, ua string) (*LoginResult, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}

	sessionID := uuid.NewString()
	token, expiresAt, err := s.tokens.Issue(user, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateLoginSession(ctx, sessionID, user.ID, expiresAt, ip, ua); err != nil {
		return nil, err
	}

	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// Logout removes the login-session record identified by the token's jti.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	return s.repo.DeleteLoginSession(ctx, sessionID)
}

// SweepExpiredSessions removes stale login records. Called from the worker.
func (s *Service) SweepExpiredSessions(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpiredLoginSessions(ctx)
}
