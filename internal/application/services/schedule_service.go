package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/attenda/scheduling/internal/domain/authz"
	"github.com/attenda/scheduling/internal/domain/entities"
	"github.com/attenda/scheduling/internal/domain/repositories"
	"github.com/attenda/scheduling/internal/domain/timespan"
	"github.com/attenda/scheduling/internal/infrastructure/observability"
	apperrors "github.com/attenda/scheduling/pkg/errors"
)

// ScheduleService is the conflict resolution engine for provider
// commitments. Every proposed interval is checked against the provider's
// active commitments inside a per-provider transaction, so two concurrent
// overlapping proposals can never both be accepted.
type ScheduleService struct {
	commitments  repositories.CommitmentStore
	providerRepo repositories.ProviderRepository
	notifier     *NotificationService
	metrics      *observability.Metrics
}

// NewScheduleService creates a new schedule service
func NewScheduleService(
	commitments repositories.CommitmentStore,
	providerRepo repositories.ProviderRepository,
	notifier *NotificationService,
	metrics *observability.Metrics,
) *ScheduleService {
	return &ScheduleService{
		commitments:  commitments,
		providerRepo: providerRepo,
		notifier:     notifier,
		metrics:      metrics,
	}
}

// CreateBlock reserves manual unavailability on a provider's schedule
func (s *ScheduleService) CreateBlock(ctx context.Context, actor entities.Actor, providerID string, start, end time.Time, reason string) (*entities.Block, error) {
	if _, err := s.authorizeProvider(ctx, actor, providerID, authz.ActionScheduleWrite); err != nil {
		return nil, err
	}

	span, err := timespan.New(start, end)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	block := &entities.Block{
		ID:         uuid.New().String(),
		TenantID:   actor.TenantID,
		ProviderID: providerID,
		StartAt:    span.Start,
		EndAt:      span.End,
		Reason:     reason,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = s.commitments.InTx(ctx, actor.TenantID, providerID, func(tx repositories.CommitmentTx) error {
		if err := s.rejectOnConflict(ctx, tx, actor.TenantID, providerID, span, ""); err != nil {
			return err
		}
		return tx.InsertBlock(ctx, block)
	})
	if err != nil {
		return nil, err
	}

	observability.LoggerFromContext(ctx).Info().
		Str("tenant_id", actor.TenantID).
		Str("provider_id", providerID).
		Str("block_id", block.ID).
		Msg("block created")
	s.notifier.CommitmentCreated(ctx, actor, block)

	return block, nil
}

// CreateAppointment books a client appointment on a provider's schedule
func (s *ScheduleService) CreateAppointment(ctx context.Context, actor entities.Actor, providerID, clientName string, start, end time.Time) (*entities.Appointment, error) {
	provider, err := s.authorizeProvider(ctx, actor, providerID, authz.ActionScheduleWrite)
	if err != nil {
		return nil, err
	}

	span, err := timespan.New(start, end)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	appointment := &entities.Appointment{
		ID:         uuid.New().String(),
		TenantID:   actor.TenantID,
		ProviderID: providerID,
		LocationID: provider.LocationID,
		ClientName: clientName,
		StartAt:    span.Start,
		EndAt:      span.End,
		Status:     entities.AppointmentStatusScheduled,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = s.commitments.InTx(ctx, actor.TenantID, providerID, func(tx repositories.CommitmentTx) error {
		if err := s.rejectOnConflict(ctx, tx, actor.TenantID, providerID, span, ""); err != nil {
			return err
		}
		return tx.InsertAppointment(ctx, appointment)
	})
	if err != nil {
		return nil, err
	}

	observability.LoggerFromContext(ctx).Info().
		Str("tenant_id", actor.TenantID).
		Str("provider_id", providerID).
		Str("appointment_id", appointment.ID).
		Msg("appointment created")
	s.notifier.CommitmentCreated(ctx, actor, appointment)

	return appointment, nil
}

// Reschedule moves or resizes an existing commitment. The commitment's own
// current interval is excluded from the comparison set, so a pure shrink or
// move is judged only against other commitments.
func (s *ScheduleService) Reschedule(ctx context.Context, actor entities.Actor, commitmentID string, newStart, newEnd time.Time) (entities.Commitment, error) {
	commitment, err := s.commitments.GetCommitment(ctx, actor.TenantID, commitmentID)
	if err != nil {
		return nil, err
	}
	providerID := commitment.CommitmentProviderID()

	if _, err := s.authorizeProvider(ctx, actor, providerID, authz.ActionScheduleWrite); err != nil {
		return nil, err
	}

	span, err := timespan.New(newStart, newEnd)
	if err != nil {
		return nil, err
	}
	prev := commitment.Span()

	err = s.commitments.InTx(ctx, actor.TenantID, providerID, func(tx repositories.CommitmentTx) error {
		if err := s.rejectOnConflict(ctx, tx, actor.TenantID, providerID, span, commitmentID); err != nil {
			return err
		}
		return tx.UpdateCommitmentSpan(ctx, actor.TenantID, commitmentID, span)
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.commitments.GetCommitment(ctx, actor.TenantID, commitmentID)
	if err != nil {
		return nil, err
	}

	observability.LoggerFromContext(ctx).Info().
		Str("tenant_id", actor.TenantID).
		Str("provider_id", providerID).
		Str("commitment_id", commitmentID).
		Msg("commitment rescheduled")
	s.notifier.CommitmentUpdated(ctx, actor, updated, prev.Start, prev.End)

	return updated, nil
}

// Remove deletes a commitment. No conflict check applies; authorization
// still does.
func (s *ScheduleService) Remove(ctx context.Context, actor entities.Actor, commitmentID string) error {
	commitment, err := s.commitments.GetCommitment(ctx, actor.TenantID, commitmentID)
	if err != nil {
		return err
	}
	providerID := commitment.CommitmentProviderID()

	if _, err := s.authorizeProvider(ctx, actor, providerID, authz.ActionScheduleWrite); err != nil {
		return err
	}

	err = s.commitments.InTx(ctx, actor.TenantID, providerID, func(tx repositories.CommitmentTx) error {
		return tx.DeleteCommitment(ctx, actor.TenantID, commitmentID)
	})
	if err != nil {
		return err
	}

	observability.LoggerFromContext(ctx).Info().
		Str("tenant_id", actor.TenantID).
		Str("provider_id", providerID).
		Str("commitment_id", commitmentID).
		Msg("commitment removed")
	s.notifier.CommitmentRemoved(ctx, actor, commitment)

	return nil
}

// ListForDay returns every commitment of the provider intersecting the UTC
// calendar day containing day, ordered by start ascending
func (s *ScheduleService) ListForDay(ctx context.Context, actor entities.Actor, providerID string, day time.Time) ([]entities.Commitment, error) {
	if _, err := s.authorizeProvider(ctx, actor, providerID, authz.ActionScheduleRead); err != nil {
		return nil, err
	}
	return s.commitments.ListForDay(ctx, actor.TenantID, providerID, day)
}

// MarkInService transitions a scheduled appointment to in_service
func (s *ScheduleService) MarkInService(ctx context.Context, actor entities.Actor, appointmentID string) (*entities.Appointment, error) {
	return s.transitionAppointment(ctx, actor, appointmentID, entities.AppointmentStatusInService, entities.AppointmentStatusScheduled)
}

// MarkDone transitions an active appointment to done
func (s *ScheduleService) MarkDone(ctx context.Context, actor entities.Actor, appointmentID string) (*entities.Appointment, error) {
	return s.transitionAppointment(ctx, actor, appointmentID, entities.AppointmentStatusDone,
		entities.AppointmentStatusScheduled, entities.AppointmentStatusInService)
}

// MarkNoShow transitions an active appointment to no_show
func (s *ScheduleService) MarkNoShow(ctx context.Context, actor entities.Actor, appointmentID string) (*entities.Appointment, error) {
	return s.transitionAppointment(ctx, actor, appointmentID, entities.AppointmentStatusNoShow,
		entities.AppointmentStatusScheduled, entities.AppointmentStatusInService)
}

func (s *ScheduleService) transitionAppointment(ctx context.Context, actor entities.Actor, appointmentID string, to entities.AppointmentStatus, from ...entities.AppointmentStatus) (*entities.Appointment, error) {
	appointment, _, err := s.commitments.FindAppointmentWithPayment(ctx, actor.TenantID, appointmentID)
	if err != nil {
		return nil, err
	}

	if _, err := s.authorizeProvider(ctx, actor, appointment.ProviderID, authz.ActionScheduleWrite); err != nil {
		return nil, err
	}

	legal := false
	for _, status := range from {
		if appointment.Status == status {
			legal = true
			break
		}
	}
	if !legal {
		return nil, apperrors.NewConflictError(
			fmt.Sprintf("appointment %s cannot move from %s to %s", appointmentID, appointment.Status, to),
		)
	}

	err = s.commitments.InTx(ctx, actor.TenantID, appointment.ProviderID, func(tx repositories.CommitmentTx) error {
		return tx.UpdateAppointmentStatus(ctx, actor.TenantID, appointmentID, to, "")
	})
	if err != nil {
		return nil, err
	}
	appointment.Status = to

	s.notifier.CommitmentUpdated(ctx, actor, appointment, appointment.StartAt, appointment.EndAt)
	return appointment, nil
}

// authorizeProvider loads the target provider and applies the access policy
func (s *ScheduleService) authorizeProvider(ctx context.Context, actor entities.Actor, providerID string, action authz.Action) (*entities.Provider, error) {
	provider, err := s.providerRepo.GetByID(ctx, actor.TenantID, providerID)
	if err != nil {
		return nil, err
	}
	if decision := authz.Authorize(actor, actor.TenantID, provider, action); !decision.Allowed {
		return nil, decision.Reason
	}
	return provider, nil
}

// rejectOnConflict loads overlapping active commitments and rejects the
// proposal when any remain. The in-memory overlap predicate is authoritative;
// the store's range query is only a prefilter. A block conflict is reported
// over an appointment conflict, though either alone rejects.
func (s *ScheduleService) rejectOnConflict(ctx context.Context, tx repositories.CommitmentTx, tenantID, providerID string, span timespan.Span, excludeID string) error {
	candidates, err := tx.FindOverlapping(ctx, tenantID, providerID, span, excludeID)
	if err != nil {
		return err
	}

	var conflict entities.Commitment
	for _, candidate := range candidates {
		if !span.Overlaps(candidate.Span()) {
			continue
		}
		if candidate.CommitmentKind() == entities.CommitmentKindBlock {
			conflict = candidate
			break
		}
		if conflict == nil {
			conflict = candidate
		}
	}
	if conflict == nil {
		return nil
	}

	s.countConflict()
	if conflict.CommitmentKind() == entities.CommitmentKindBlock {
		return apperrors.NewBlockConflictError(
			fmt.Sprintf("interval overlaps block %s", conflict.CommitmentID()),
		)
	}
	return apperrors.NewAppointmentConflictError(
		fmt.Sprintf("interval overlaps appointment %s", conflict.CommitmentID()),
	)
}

func (s *ScheduleService) countConflict() {
	if s.metrics == nil {
		return
	}
	s.metrics.ConflictCount.Add(context.Background(), 1)
}
