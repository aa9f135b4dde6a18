package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/attenda/scheduling/internal/domain/entities"
	"github.com/attenda/scheduling/internal/domain/providers"
	"github.com/attenda/scheduling/internal/domain/repositories"
	"github.com/attenda/scheduling/internal/infrastructure/observability"
)

// dayViewTTL is deliberately short: the cache only has to absorb bursts of
// calendar reads; invalidation arrives asynchronously via schedule events.
const dayViewTTL = 60

// CachedCommitmentAdapter decorates a CommitmentStore with a Redis-backed
// day-view cache. Only ListForDay is cached; conflict-check reads inside
// transactions always hit the database.
type CachedCommitmentAdapter struct {
	inner   repositories.CommitmentStore
	cache   providers.CacheProvider
	metrics *observability.Metrics
}

// NewCachedCommitmentAdapter creates a new caching decorator
func NewCachedCommitmentAdapter(inner repositories.CommitmentStore, cache providers.CacheProvider, metrics *observability.Metrics) repositories.CommitmentStore {
	return &CachedCommitmentAdapter{
		inner:   inner,
		cache:   cache,
		metrics: metrics,
	}
}

// commitmentEnvelope carries the kind tag the interface type loses in JSON
type commitmentEnvelope struct {
	Kind        entities.CommitmentKind `json:"kind"`
	Block       *entities.Block         `json:"block,omitempty"`
	Appointment *entities.Appointment   `json:"appointment,omitempty"`
}

// ListForDay returns the cached day view when present, otherwise reads
// through and populates the cache in the background
func (a *CachedCommitmentAdapter) ListForDay(ctx context.Context, tenantID, providerID string, day time.Time) ([]entities.Commitment, error) {
	key := providers.DayViewCacheKey(tenantID, providerID, day)

	if cached, err := a.cache.Get(ctx, key); err == nil {
		if commitments, err := decodeDayView(cached); err == nil {
			a.countCacheHit(true)
			return commitments, nil
		}
	}
	a.countCacheHit(false)

	commitments, err := a.inner.ListForDay(ctx, tenantID, providerID, day)
	if err != nil {
		return nil, err
	}

	if data, err := encodeDayView(commitments); err == nil {
		bgCtx := context.Background()
		go func() {
			_ = a.cache.Set(bgCtx, key, data, dayViewTTL)
		}()
	}

	return commitments, nil
}

// GetCommitment delegates to the inner store
func (a *CachedCommitmentAdapter) GetCommitment(ctx context.Context, tenantID, commitmentID string) (entities.Commitment, error) {
	return a.inner.GetCommitment(ctx, tenantID, commitmentID)
}

// FindAppointmentWithPayment delegates to the inner store
func (a *CachedCommitmentAdapter) FindAppointmentWithPayment(ctx context.Context, tenantID, appointmentID string) (*entities.Appointment, *entities.Payment, error) {
	return a.inner.FindAppointmentWithPayment(ctx, tenantID, appointmentID)
}

// InTx delegates to the inner store; day keys are invalidated by the cache
// invalidation service when the resulting schedule event arrives
func (a *CachedCommitmentAdapter) InTx(ctx context.Context, tenantID, providerID string, fn func(tx repositories.CommitmentTx) error) error {
	return a.inner.InTx(ctx, tenantID, providerID, fn)
}

func (a *CachedCommitmentAdapter) countCacheHit(hit bool) {
	if a.metrics == nil {
		return
	}
	if hit {
		a.metrics.CacheHitCount.Add(context.Background(), 1)
	} else {
		a.metrics.CacheMissCount.Add(context.Background(), 1)
	}
}

func encodeDayView(commitments []entities.Commitment) ([]byte, error) {
	envelopes := make([]commitmentEnvelope, 0, len(commitments))
	for _, c := range commitments {
		switch v := c.(type) {
		case *entities.Block:
			envelopes = append(envelopes, commitmentEnvelope{Kind: entities.CommitmentKindBlock, Block: v})
		case *entities.Appointment:
			envelopes = append(envelopes, commitmentEnvelope{Kind: entities.CommitmentKindAppointment, Appointment: v})
		}
	}
	return json.Marshal(envelopes)
}

func decodeDayView(data []byte) ([]entities.Commitment, error) {
	var envelopes []commitmentEnvelope
	if err := json.Unmarshal(data, &envelopes); err != nil {
		return nil, err
	}

	commitments := make([]entities.Commitment, 0, len(envelopes))
	for _, e := range envelopes {
		switch {
		case e.Kind == entities.CommitmentKindBlock && e.Block != nil:
			commitments = append(commitments, e.Block)
		case e.Kind == entities.CommitmentKindAppointment && e.Appointment != nil:
			commitments = append(commitments, e.Appointment)
		default:
			return nil, fmt.Errorf("malformed cached commitment of kind %q", e.Kind)
		}
	}
	return commitments, nil
}
