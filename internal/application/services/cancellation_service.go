package services

import (
	"context"
	"fmt"
	"time"

	"github.com/attenda/scheduling/internal/domain/authz"
	"github.com/attenda/scheduling/internal/domain/entities"
	"github.com/attenda/scheduling/internal/domain/providers"
	"github.com/attenda/scheduling/internal/domain/repositories"
	"github.com/attenda/scheduling/internal/infrastructure/observability"
	apperrors "github.com/attenda/scheduling/pkg/errors"
)

// CancelResult is the outcome of a cancel-and-refund call. Replay marks an
// invocation that found the work already complete and changed nothing.
type CancelResult struct {
	Replay      bool
	Appointment *entities.Appointment
	Payment     *entities.Payment
}

// CancellationService drives appointment cancellation combined with an
// idempotent refund. The refund is two-phase: the cancellation and a durable
// refund_requested mark commit first, then the gateway is called, then
// refunded is committed. A crash or gateway failure between the phases
// leaves a state a retry completes safely; it never double-refunds.
type CancellationService struct {
	commitments  repositories.CommitmentStore
	providerRepo repositories.ProviderRepository
	payments     providers.PaymentProvider
	notifier     *NotificationService
}

// NewCancellationService creates a new cancellation service
func NewCancellationService(
	commitments repositories.CommitmentStore,
	providerRepo repositories.ProviderRepository,
	payments providers.PaymentProvider,
	notifier *NotificationService,
) *CancellationService {
	return &CancellationService{
		commitments:  commitments,
		providerRepo: providerRepo,
		payments:     payments,
		notifier:     notifier,
	}
}

// CancelAndRefund cancels an appointment and refunds its payment, exactly
// once across any number of invocations
func (s *CancellationService) CancelAndRefund(ctx context.Context, actor entities.Actor, appointmentID, reason string) (*CancelResult, error) {
	appointment, payment, err := s.commitments.FindAppointmentWithPayment(ctx, actor.TenantID, appointmentID)
	if err != nil {
		return nil, err
	}

	provider, err := s.providerRepo.GetByID(ctx, actor.TenantID, appointment.ProviderID)
	if err != nil {
		return nil, err
	}
	if decision := authz.Authorize(actor, actor.TenantID, provider, authz.ActionAppointmentCancel); !decision.Allowed {
		return nil, decision.Reason
	}

	logger := observability.LoggerFromContext(ctx)

	// Replay: everything this operation would do has already happened.
	if appointment.Status == entities.AppointmentStatusCancelled && refundSettled(payment) {
		logger.Info().
			Str("tenant_id", actor.TenantID).
			Str("appointment_id", appointmentID).
			Msg("cancel replayed, no work left")
		return &CancelResult{Replay: true, Appointment: appointment, Payment: payment}, nil
	}

	if appointment.Status == entities.AppointmentStatusDone || appointment.Status == entities.AppointmentStatusNoShow {
		return nil, apperrors.NewNotCancellableError(
			fmt.Sprintf("appointment %s is %s and cannot be cancelled", appointmentID, appointment.Status),
		)
	}

	// Phase one: cancel the appointment and durably mark the refund as
	// requested, in one transaction. On a retry after a failed refund this
	// is already done and skipped.
	needCancel := appointment.Status != entities.AppointmentStatusCancelled
	needMark := payment != nil && payment.Status == entities.PaymentStatusPaid
	if needCancel || needMark {
		err = s.commitments.InTx(ctx, actor.TenantID, appointment.ProviderID, func(tx repositories.CommitmentTx) error {
			if needCancel {
				if err := tx.UpdateAppointmentStatus(ctx, actor.TenantID, appointmentID, entities.AppointmentStatusCancelled, reason); err != nil {
					return err
				}
			}
			if needMark {
				if err := tx.UpdatePaymentStatus(ctx, actor.TenantID, payment.ID, entities.PaymentStatusRefundRequested, nil); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		if needCancel {
			appointment.Status = entities.AppointmentStatusCancelled
			if reason != "" {
				appointment.CancelledReason = reason
			}
		}
		if needMark {
			payment.Status = entities.PaymentStatusRefundRequested
		}
	}

	// Phase two: issue the refund and durably mark it as done. The gateway
	// deduplicates by payment id, so re-running this after a crash between
	// the call and the commit reports already_refunded and converges.
	if payment != nil && payment.Status == entities.PaymentStatusRefundRequested {
		result, err := s.payments.Refund(ctx, payment.ID, payment.AmountCents)
		if err != nil {
			logger.Warn().Err(err).
				Str("tenant_id", actor.TenantID).
				Str("payment_id", payment.ID).
				Msg("refund failed, cancellation stays pending refund")
			return nil, err
		}
		if result.AlreadyRefunded {
			logger.Info().
				Str("payment_id", payment.ID).
				Msg("gateway reports refund already issued")
		}

		refundedAt := time.Now().UTC()
		err = s.commitments.InTx(ctx, actor.TenantID, appointment.ProviderID, func(tx repositories.CommitmentTx) error {
			return tx.UpdatePaymentStatus(ctx, actor.TenantID, payment.ID, entities.PaymentStatusRefunded, &refundedAt)
		})
		if err != nil {
			return nil, err
		}
		payment.Status = entities.PaymentStatusRefunded
		payment.RefundedAt = &refundedAt
	}

	logger.Info().
		Str("tenant_id", actor.TenantID).
		Str("appointment_id", appointmentID).
		Msg("appointment cancelled")
	s.notifier.AppointmentCancelled(ctx, actor, appointment, payment)

	return &CancelResult{Replay: false, Appointment: appointment, Payment: payment}, nil
}

// refundSettled reports whether no refund work remains for the payment. A
// pending payment was never charged, so there is nothing to refund.
func refundSettled(payment *entities.Payment) bool {
	return payment == nil ||
		payment.Status == entities.PaymentStatusRefunded ||
		payment.Status == entities.PaymentStatusPending
}
