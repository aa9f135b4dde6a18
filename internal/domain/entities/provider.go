package entities

import (
	"time"
)

// Provider is a schedulable professional. It belongs to exactly one tenant
// and is owned by exactly one user account; both links are immutable after
// creation.
type Provider struct {
	ID         string    `json:"id" db:"id"`
	TenantID   string    `json:"tenant_id" db:"tenant_id"`
	UserID     string    `json:"user_id" db:"user_id"`
	LocationID string    `json:"location_id" db:"location_id"`
	Name       string    `json:"name" db:"name"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}
