package services

import (
	"context"
	"fmt"
	"time"

	"github.com/attenda/scheduling/internal/domain/entities"
	"github.com/attenda/scheduling/internal/domain/providers"
	"github.com/attenda/scheduling/internal/domain/timespan"
	"github.com/attenda/scheduling/internal/infrastructure/observability"
)

// maxInvalidationDays caps how many day keys one event may touch
const maxInvalidationDays = 62

// CacheInvalidationService drops cached day views when schedule events
// arrive, keeping calendar reads close behind writes without coupling the
// write path to the cache.
type CacheInvalidationService struct {
	cache    providers.CacheProvider
	eventBus providers.EventBus
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewCacheInvalidationService creates a new cache invalidation service
func NewCacheInvalidationService(cache providers.CacheProvider, eventBus providers.EventBus) *CacheInvalidationService {
	ctx, cancel := context.WithCancel(context.Background())
	return &CacheInvalidationService{
		cache:    cache,
		eventBus: eventBus,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins listening for schedule events
func (s *CacheInvalidationService) Start() error {
	eventChan, err := s.eventBus.Subscribe(s.ctx, providers.EventChannelSchedule)
	if err != nil {
		return fmt.Errorf("failed to subscribe to schedule events: %w", err)
	}

	go s.processEvents(eventChan)
	observability.GetLogger().Info().Msg("cache invalidation service started")
	return nil
}

// Stop stops the cache invalidation service
func (s *CacheInvalidationService) Stop() {
	s.cancel()
}

func (s *CacheInvalidationService) processEvents(eventChan <-chan *entities.ScheduleEvent) {
	for {
		select {
		case <-s.ctx.Done():
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if event != nil {
				s.handleEvent(event)
			}
		}
	}
}

// handleEvent drops the day keys covered by the event's interval, and by
// the previous interval when the event carries one
func (s *CacheInvalidationService) handleEvent(event *entities.ScheduleEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger := observability.GetLogger()
	for _, day := range affectedDays(event) {
		key := providers.DayViewCacheKey(event.TenantID, event.ProviderID, day)
		if err := s.cache.Delete(ctx, key); err != nil {
			logger.Warn().Err(err).Str("key", key).Msg("failed to invalidate day view")
		}
	}
}

func affectedDays(event *entities.ScheduleEvent) []time.Time {
	var days []time.Time
	for _, pair := range [][2]string{
		{"start_at", "end_at"},
		{"prev_start_at", "prev_end_at"},
	} {
		start, err1 := time.Parse(time.RFC3339, event.Payload[pair[0]])
		end, err2 := time.Parse(time.RFC3339, event.Payload[pair[1]])
		if err1 != nil || err2 != nil {
			continue
		}
		for day := timespan.Day(start).Start; day.Before(end) && len(days) < maxInvalidationDays; day = day.AddDate(0, 0, 1) {
			days = append(days, day)
		}
	}
	return days
}
