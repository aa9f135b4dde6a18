package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/attenda/scheduling/internal/domain/entities"
	"github.com/attenda/scheduling/internal/domain/providers"
	"github.com/attenda/scheduling/internal/infrastructure/observability"
)

const emitTimeout = 5 * time.Second

// NotificationService raises schedule events after successful state
// transitions. Emission is fire-and-forget: it runs after the triggering
// transaction has committed, and a failed publish is logged, never
// propagated to the caller.
type NotificationService struct {
	eventBus providers.EventBus
}

// NewNotificationService creates a new notification service
func NewNotificationService(eventBus providers.EventBus) *NotificationService {
	return &NotificationService{eventBus: eventBus}
}

// CommitmentCreated announces an accepted create
func (n *NotificationService) CommitmentCreated(ctx context.Context, actor entities.Actor, commitment entities.Commitment) {
	n.emit(ctx, actor, entities.ScheduleEventCommitmentCreated, commitment.CommitmentProviderID(), commitmentPayload(commitment))
}

// CommitmentUpdated announces an accepted move or resize
func (n *NotificationService) CommitmentUpdated(ctx context.Context, actor entities.Actor, commitment entities.Commitment, prevStart, prevEnd time.Time) {
	payload := commitmentPayload(commitment)
	payload["prev_start_at"] = prevStart.UTC().Format(time.RFC3339)
	payload["prev_end_at"] = prevEnd.UTC().Format(time.RFC3339)
	n.emit(ctx, actor, entities.ScheduleEventCommitmentUpdated, commitment.CommitmentProviderID(), payload)
}

// CommitmentRemoved announces a deletion
func (n *NotificationService) CommitmentRemoved(ctx context.Context, actor entities.Actor, commitment entities.Commitment) {
	n.emit(ctx, actor, entities.ScheduleEventCommitmentRemoved, commitment.CommitmentProviderID(), commitmentPayload(commitment))
}

// AppointmentCancelled announces a completed cancellation
func (n *NotificationService) AppointmentCancelled(ctx context.Context, actor entities.Actor, appointment *entities.Appointment, payment *entities.Payment) {
	payload := commitmentPayload(appointment)
	payload["reason"] = appointment.CancelledReason
	if payment != nil {
		payload["payment_id"] = payment.ID
		payload["payment_status"] = string(payment.Status)
	}
	n.emit(ctx, actor, entities.ScheduleEventAppointmentCancelled, appointment.ProviderID, payload)
}

func (n *NotificationService) emit(ctx context.Context, actor entities.Actor, kind entities.ScheduleEventKind, providerID string, payload map[string]string) {
	if n.eventBus == nil {
		return
	}
	event := &entities.ScheduleEvent{
		ID:         uuid.New().String(),
		TenantID:   actor.TenantID,
		ProviderID: providerID,
		ActorID:    actor.ID,
		Kind:       kind,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}

	logger := observability.LoggerFromContext(ctx)
	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()

		for _, channel := range []string{
			providers.EventChannelSchedule,
			providers.GetProviderChannel(event.TenantID, event.ProviderID),
		} {
			if err := n.eventBus.Publish(bgCtx, channel, event); err != nil {
				logger.Warn().Err(err).
					Str("channel", channel).
					Str("kind", string(kind)).
					Msg("failed to publish schedule event")
			}
		}
	}()
}

func commitmentPayload(commitment entities.Commitment) map[string]string {
	span := commitment.Span()
	return map[string]string{
		"commitment_id": commitment.CommitmentID(),
		"kind":          string(commitment.CommitmentKind()),
		"start_at":      span.Start.UTC().Format(time.RFC3339),
		"end_at":        span.End.UTC().Format(time.RFC3339),
	}
}
