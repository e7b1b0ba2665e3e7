package rbac

import "time"

// Role represents a high-level permission grouping within the system. Roles
// are global; what a user may touch is still bounded by their tenant.
type Role struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Permission represents an atomic capability, named "resource:action" or
// "resource:*".
type Permission struct {
	ID          int64
	Name        string
	Description string
}

// UserRole links a user to a role.
type UserRole struct {
	UserID    int64
	RoleID    int64
	CreatedAt time.Time
}
