package providers

import (
	"context"

	"github.com/attenda/scheduling/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to
// schedule events
type EventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, channel string, event *entities.ScheduleEvent) error

	// Subscribe subscribes to events on a channel
	Subscribe(ctx context.Context, channel string) (<-chan *entities.ScheduleEvent, error)

	// Close closes the event bus and all subscriptions
	Close() error
}

// EventChannelSchedule is the channel carrying all schedule transitions
const EventChannelSchedule = "schedule:events"

// EventChannelProviderPrefix is the prefix for provider-specific channels
const EventChannelProviderPrefix = "schedule:provider:"

// GetProviderChannel returns the channel name for a specific provider
func GetProviderChannel(tenantID, providerID string) string {
	return EventChannelProviderPrefix + tenantID + ":" + providerID
}
