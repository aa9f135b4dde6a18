package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/attenda/scheduling/internal/application/services"
	"github.com/attenda/scheduling/internal/domain/entities"
	apperrors "github.com/attenda/scheduling/pkg/errors"
)

func TestCacheWarmingService_WarmDayViews(t *testing.T) {
	ctx := context.Background()

	t.Run("reads today and tomorrow for every provider", func(t *testing.T) {
		store := NewMockCommitmentStore(new(MockCommitmentTx))
		providerRepo := new(MockProviderRepository)
		warming := services.NewCacheWarmingService(store, providerRepo, []string{"tenant-1"})

		providerRepo.On("ListByTenant", ctx, "tenant-1").Return([]*entities.Provider{
			{ID: "prov-1", TenantID: "tenant-1"},
			{ID: "prov-2", TenantID: "tenant-1"},
		}, nil)
		store.On("ListForDay", ctx, "tenant-1", "prov-1", mock.Anything).
			Return([]entities.Commitment{}, nil).Twice()
		store.On("ListForDay", ctx, "tenant-1", "prov-2", mock.Anything).
			Return([]entities.Commitment{}, nil).Twice()

		require.NoError(t, warming.WarmDayViews(ctx))

		store.AssertExpectations(t)
		providerRepo.AssertExpectations(t)
	})

	t.Run("a failing tenant does not stop the others", func(t *testing.T) {
		store := NewMockCommitmentStore(new(MockCommitmentTx))
		providerRepo := new(MockProviderRepository)
		warming := services.NewCacheWarmingService(store, providerRepo, []string{"tenant-1", "tenant-2"})

		providerRepo.On("ListByTenant", ctx, "tenant-1").
			Return(nil, apperrors.NewInternalError("db down", nil))
		providerRepo.On("ListByTenant", ctx, "tenant-2").Return([]*entities.Provider{
			{ID: "prov-3", TenantID: "tenant-2"},
		}, nil)
		store.On("ListForDay", ctx, "tenant-2", "prov-3", mock.Anything).
			Return([]entities.Commitment{}, nil).Twice()

		require.NoError(t, warming.WarmDayViews(ctx))
		store.AssertExpectations(t)
	})

	t.Run("no tenants means nothing to warm", func(t *testing.T) {
		store := NewMockCommitmentStore(new(MockCommitmentTx))
		providerRepo := new(MockProviderRepository)
		warming := services.NewCacheWarmingService(store, providerRepo, nil)

		require.NoError(t, warming.WarmDayViews(ctx))
		assert.Empty(t, providerRepo.Calls)
	})
}
