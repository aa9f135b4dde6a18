package entities

import (
	"time"
)

// Tenant is the isolation boundary grouping providers, locations and
// commitments belonging to one business. No query ever crosses tenants.
type Tenant struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Role represents the tenant-scoped role of an acting user
type Role string

const (
	RoleOwner     Role = "owner"
	RoleAdmin     Role = "admin"
	RoleAttendant Role = "attendant"
	RoleProvider  Role = "provider"
)

// Actor is the authenticated identity a request acts as. The triple is
// extracted from a session by the request-handling layer and trusted here;
// no credential verification happens in this core.
type Actor struct {
	ID       string `json:"id"`
	Role     Role   `json:"role"`
	TenantID string `json:"tenant_id"`
}
