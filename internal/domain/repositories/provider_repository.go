package repositories

import (
	"context"

	"github.com/attenda/scheduling/internal/domain/entities"
)

// ProviderRepository defines the interface for provider lookups backing
// authorization and tenancy checks
type ProviderRepository interface {
	// GetByID retrieves a provider by id within a tenant
	GetByID(ctx context.Context, tenantID, providerID string) (*entities.Provider, error)

	// ListByTenant retrieves all providers of a tenant
	ListByTenant(ctx context.Context, tenantID string) ([]*entities.Provider, error)
}
