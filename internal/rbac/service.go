package rbac

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

// Invalidator drops cached grant sets after role or permission mutations.
// Satisfied by authz.Index.
type Invalidator interface {
	Invalidate(ctx context.Context, userID int64) error
	InvalidateAll(ctx context.Context) error
}

// Service orchestrates role administration. Every mutation that changes who
// may do what also drops the affected permission-index cache entries, so the
// guard never runs on a stale snapshot longer than the cache TTL.
type Service struct {
	repo        Repository
	invalidator Invalidator
	logger      *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, invalidator Invalidator, logger *slog.Logger) *Service {
	return &Service{repo: repo, invalidator: invalidator, logger: logger}
}

// ListRoles returns all roles ordered by name.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// GetRole fetches a role by ID.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	return s.repo.GetRole(ctx, id)
}

// CreateRole inserts a new role.
func (s *Service) CreateRole(ctx context.Context, name, description string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, errors.New("rbac: role name required")
	}
	return s.repo.CreateRole(ctx, name, strings.TrimSpace(description))
}

// UpdateRole updates an existing role.
func (s *Service) UpdateRole(ctx context.Context, id int64, name, description string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, errors.New("rbac: role name required")
	}
	return s.repo.UpdateRole(ctx, id, name, strings.TrimSpace(description))
}

// DeleteRole removes a role and drops cached grants of its holders.
func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	userIDs, err := s.repo.ListRoleUserIDs(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteRole(ctx, id); err != nil {
		return err
	}
	s.invalidateUsers(ctx, userIDs)
	return nil
}

// ListPermissions returns the permission catalog.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.repo.ListPermissions(ctx)
}

// EnsurePermission upserts a permission, keeping its description current.
func (s *Service) EnsurePermission(ctx context.Context, name, description string) (Permission, error) {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return Permission{}, errors.New("rbac: permission name required")
	}
	return s.repo.EnsurePermission(ctx, name, strings.TrimSpace(description))
}

// ListRolePermissions returns the permissions attached to a role.
func (s *Service) ListRolePermissions(ctx context.Context, roleID int64) ([]Permission, error) {
	return s.repo.ListRolePermissions(ctx, roleID)
}

// SetRolePermissions replaces the permission set of a role and drops cached
// grants of everyone holding it.
func (s *Service) SetRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	if err := s.repo.ReplaceRolePermissions(ctx, roleID, permissionIDs); err != nil {
		return err
	}
	userIDs, err := s.repo.ListRoleUserIDs(ctx, roleID)
	if err != nil {
		// Cannot tell who is affected; drop everything rather than let a
		// stale grant linger.
		s.invalidateAll(ctx)
		return nil
	}
	s.invalidateUsers(ctx, userIDs)
	return nil
}

// AssignRole assigns a role to a user of the caller's tenant. Users of other
// tenants are reported as not found.
func (s *Service) AssignRole(ctx context.Context, tenantID string, userID, roleID int64) error {
	if err := s.repo.AssignRoleToUser(ctx, tenantID, userID, roleID); err != nil {
		return err
	}
	s.invalidateUsers(ctx, []int64{userID})
	return nil
}

// RemoveRole removes a role from a user of the caller's tenant.
func (s *Service) RemoveRole(ctx context.Context, tenantID string, userID, roleID int64) error {
	if err := s.repo.RemoveRoleFromUser(ctx, tenantID, userID, roleID); err != nil {
		return err
	}
	s.invalidateUsers(ctx, []int64{userID})
	return nil
}

func (s *Service) invalidateUsers(ctx context.Context, userIDs []int64) {
	if s.invalidator == nil {
		return
	}
	for _, id := range userIDs {
		if err := s.invalidator.Invalidate(ctx, id); err != nil && s.logger != nil {
			s.logger.Warn("invalidate grants cache", slog.Int64("user_id", id), slog.Any("error", err))
		}
	}
}

func (s *Service) invalidateAll(ctx context.Context) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.InvalidateAll(ctx); err != nil && s.logger != nil {
		s.logger.Warn("invalidate all grants caches", slog.Any("error", err))
	}
}
