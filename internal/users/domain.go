package users

import "time"

// User represents a user account for management. The password hash never
// leaves the repository layer.
type User struct {
	ID        int64     `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Email     string    `json:"email"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
