package tenants

import "time"

// Tenant is an isolated customer account. Every protected row in the system
// belongs to exactly one tenant.
type Tenant struct {
	ID        string
	Name      string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
