package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"github.com/attenda/scheduling/internal/domain/entities"
	"github.com/attenda/scheduling/internal/domain/repositories"
	"github.com/attenda/scheduling/internal/infrastructure/clients/postgres"
	apperrors "github.com/attenda/scheduling/pkg/errors"
)

// ProviderAdapter implements the ProviderRepository interface
type ProviderAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewProviderAdapter creates a new provider adapter
func NewProviderAdapter(client *postgres.Client) repositories.ProviderRepository {
	return &ProviderAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// GetByID retrieves a provider by id within a tenant
func (a *ProviderAdapter) GetByID(ctx context.Context, tenantID, providerID string) (*entities.Provider, error) {
	query, args, err := a.db.Select(
		"id", "tenant_id", "user_id", "location_id", "name", "created_at", "updated_at",
	).From("providers").
		Where(goqu.Ex{"tenant_id": tenantID, "id": providerID}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	provider := &entities.Provider{}
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&provider.ID,
		&provider.TenantID,
		&provider.UserID,
		&provider.LocationID,
		&provider.Name,
		&provider.CreatedAt,
		&provider.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewInvalidProviderError(fmt.Sprintf("provider %s does not belong to tenant", providerID))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get provider", err)
	}
	return provider, nil
}

// ListByTenant retrieves all providers of a tenant
func (a *ProviderAdapter) ListByTenant(ctx context.Context, tenantID string) ([]*entities.Provider, error) {
	query, args, err := a.db.Select(
		"id", "tenant_id", "user_id", "location_id", "name", "created_at", "updated_at",
	).From("providers").
		Where(goqu.Ex{"tenant_id": tenantID}).
		Order(goqu.C("name").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list providers", err)
	}
	defer rows.Close()

	var providers []*entities.Provider
	for rows.Next() {
		provider := &entities.Provider{}
		if err := rows.Scan(
			&provider.ID,
			&provider.TenantID,
			&provider.UserID,
			&provider.LocationID,
			&provider.Name,
			&provider.CreatedAt,
			&provider.UpdatedAt,
		); err != nil {
			return nil, apperrors.NewInternalError("failed to scan provider", err)
		}
		providers = append(providers, provider)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate providers", err)
	}
	return providers, nil
}
