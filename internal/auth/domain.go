package auth

import "time"

// User represents an authenticated user account within one tenant.
type User struct {
	ID           int64
	TenantID     string
	Email        string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
