package providers

import (
	"context"
	"fmt"
	"time"
)

// DayViewCacheKey is the cache key for one provider's calendar day. Day
// boundaries are UTC, matching the listing window.
func DayViewCacheKey(tenantID, providerID string, day time.Time) string {
	return fmt.Sprintf("schedule:day:%s:%s:%s", tenantID, providerID, day.UTC().Truncate(24*time.Hour).Format("2006-01-02"))
}

// CacheProvider defines the interface for caching operations
type CacheProvider interface {
	// Get retrieves a value from cache
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with expiration
	Set(ctx context.Context, key string, value []byte, expirationSeconds int) error

	// Delete removes a value from cache
	Delete(ctx context.Context, key string) error

	// Exists checks if a key exists in cache
	Exists(ctx context.Context, key string) (bool, error)
}
