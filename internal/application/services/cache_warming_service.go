package services

import (
	"context"
	"time"

	"github.com/attenda/scheduling/internal/domain/repositories"
	"github.com/attenda/scheduling/internal/infrastructure/observability"
)

// CacheWarmingService pre-populates day-view caches for the providers of
// the configured tenants. Reading through the cached commitment store is
// what fills the cache, so warming is just a scheduled read of today's and
// tomorrow's calendars.
type CacheWarmingService struct {
	commitments  repositories.CommitmentStore
	providerRepo repositories.ProviderRepository
	tenantIDs    []string
}

// NewCacheWarmingService creates a new cache warming service
func NewCacheWarmingService(
	commitments repositories.CommitmentStore,
	providerRepo repositories.ProviderRepository,
	tenantIDs []string,
) *CacheWarmingService {
	return &CacheWarmingService{
		commitments:  commitments,
		providerRepo: providerRepo,
		tenantIDs:    tenantIDs,
	}
}

// WarmDayViews loads the current and next UTC day for every provider of
// every configured tenant
func (s *CacheWarmingService) WarmDayViews(ctx context.Context) error {
	logger := observability.GetLogger()
	today := time.Now().UTC()
	warmed := 0

	for _, tenantID := range s.tenantIDs {
		providerList, err := s.providerRepo.ListByTenant(ctx, tenantID)
		if err != nil {
			logger.Warn().Err(err).Str("tenant_id", tenantID).Msg("failed to list providers for warming")
			continue
		}

		for _, provider := range providerList {
			for _, day := range []time.Time{today, today.AddDate(0, 0, 1)} {
				if _, err := s.commitments.ListForDay(ctx, tenantID, provider.ID, day); err != nil {
					logger.Warn().Err(err).
						Str("tenant_id", tenantID).
						Str("provider_id", provider.ID).
						Msg("failed to warm day view")
					continue
				}
				warmed++
			}
		}
	}

	logger.Info().Int("day_views", warmed).Msg("cache warming completed")
	return nil
}

// StartPeriodicWarming warms immediately and then on every tick until the
// context is cancelled
func (s *CacheWarmingService) StartPeriodicWarming(ctx context.Context, interval time.Duration) {
	if err := s.WarmDayViews(ctx); err != nil {
		observability.GetLogger().Warn().Err(err).Msg("initial cache warming failed")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.WarmDayViews(ctx); err != nil {
				observability.GetLogger().Warn().Err(err).Msg("cache warming failed")
			}
		}
	}
}
