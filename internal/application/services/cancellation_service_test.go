package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/attenda/scheduling/internal/application/services"
	"github.com/attenda/scheduling/internal/domain/entities"
	"github.com/attenda/scheduling/internal/domain/providers"
	apperrors "github.com/attenda/scheduling/pkg/errors"
)

func paidAppointment() (*entities.Appointment, *entities.Payment) {
	appointment := &entities.Appointment{
		ID:         "appt-1",
		TenantID:   "tenant-1",
		ProviderID: "prov-1",
		LocationID: "loc-1",
		ClientName: "Ama",
		StartAt:    day(10, 0),
		EndAt:      day(11, 0),
		Status:     entities.AppointmentStatusScheduled,
	}
	payment := &entities.Payment{
		ID:            "pay-1",
		TenantID:      "tenant-1",
		AppointmentID: "appt-1",
		AmountCents:   15000,
		Currency:      "GHS",
		Status:        entities.PaymentStatusPaid,
	}
	return appointment, payment
}

func newCancellationService(store *MockCommitmentStore, providerRepo *MockProviderRepository, payments *MockPaymentProvider) (*services.CancellationService, *stubEventBus) {
	bus := newStubEventBus()
	notifier := services.NewNotificationService(bus)
	return services.NewCancellationService(store, providerRepo, payments, notifier), bus
}

func TestCancellationService_CancelAndRefund(t *testing.T) {
	ctx := context.Background()
	actor := adminActor()

	t.Run("cancels and refunds a paid appointment", func(t *testing.T) {
		appointment, payment := paidAppointment()
		tx := new(MockCommitmentTx)
		store := NewMockCommitmentStore(tx)
		providerRepo := new(MockProviderRepository)
		paymentProvider := new(MockPaymentProvider)
		service, bus := newCancellationService(store, providerRepo, paymentProvider)

		store.On("FindAppointmentWithPayment", ctx, "tenant-1", "appt-1").Return(appointment, payment, nil)
		providerRepo.On("GetByID", ctx, "tenant-1", "prov-1").Return(testProvider(), nil)
		store.On("InTx", ctx, "tenant-1", "prov-1").Return(nil)
		tx.On("UpdateAppointmentStatus", ctx, "tenant-1", "appt-1", entities.AppointmentStatusCancelled, "client request").Return(nil)
		tx.On("UpdatePaymentStatus", ctx, "tenant-1", "pay-1", entities.PaymentStatusRefundRequested, (*time.Time)(nil)).Return(nil)
		paymentProvider.On("Refund", ctx, "pay-1", int64(15000)).
			Return(&providers.RefundResult{Reference: "ref-1"}, nil)
		tx.On("UpdatePaymentStatus", ctx, "tenant-1", "pay-1", entities.PaymentStatusRefunded, mock.AnythingOfType("*time.Time")).Return(nil)

		result, err := service.CancelAndRefund(ctx, actor, "appt-1", "client request")

		require.NoError(t, err)
		assert.False(t, result.Replay)
		assert.Equal(t, entities.AppointmentStatusCancelled, result.Appointment.Status)
		assert.Equal(t, "client request", result.Appointment.CancelledReason)
		assert.Equal(t, entities.PaymentStatusRefunded, result.Payment.Status)
		require.NotNil(t, result.Payment.RefundedAt)

		published, ok := bus.wait(time.Second)
		require.True(t, ok)
		assert.Equal(t, entities.ScheduleEventAppointmentCancelled, published.event.Kind)

		paymentProvider.AssertNumberOfCalls(t, "Refund", 1)
		tx.AssertExpectations(t)
	})

	t.Run("replays a completed cancellation without touching anything", func(t *testing.T) {
		appointment, payment := paidAppointment()
		appointment.Status = entities.AppointmentStatusCancelled
		refundedAt := time.Now().UTC()
		payment.Status = entities.PaymentStatusRefunded
		payment.RefundedAt = &refundedAt

		tx := new(MockCommitmentTx)
		store := NewMockCommitmentStore(tx)
		providerRepo := new(MockProviderRepository)
		paymentProvider := new(MockPaymentProvider)
		service, _ := newCancellationService(store, providerRepo, paymentProvider)

		store.On("FindAppointmentWithPayment", ctx, "tenant-1", "appt-1").Return(appointment, payment, nil)
		providerRepo.On("GetByID", ctx, "tenant-1", "prov-1").Return(testProvider(), nil)

		result, err := service.CancelAndRefund(ctx, actor, "appt-1", "client request")

		require.NoError(t, err)
		assert.True(t, result.Replay)
		assert.Equal(t, entities.PaymentStatusRefunded, result.Payment.Status)
		store.AssertNotCalled(t, "InTx", mock.Anything, mock.Anything, mock.Anything)
		paymentProvider.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("cancels an unpaid appointment without calling the gateway", func(t *testing.T) {
		appointment, _ := paidAppointment()
		tx := new(MockCommitmentTx)
		store := NewMockCommitmentStore(tx)
		providerRepo := new(MockProviderRepository)
		paymentProvider := new(MockPaymentProvider)
		service, _ := newCancellationService(store, providerRepo, paymentProvider)

		store.On("FindAppointmentWithPayment", ctx, "tenant-1", "appt-1").Return(appointment, nil, nil)
		providerRepo.On("GetByID", ctx, "tenant-1", "prov-1").Return(testProvider(), nil)
		store.On("InTx", ctx, "tenant-1", "prov-1").Return(nil)
		tx.On("UpdateAppointmentStatus", ctx, "tenant-1", "appt-1", entities.AppointmentStatusCancelled, "no show fee waived").Return(nil)

		result, err := service.CancelAndRefund(ctx, actor, "appt-1", "no show fee waived")

		require.NoError(t, err)
		assert.False(t, result.Replay)
		assert.Nil(t, result.Payment)
		paymentProvider.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything, mock.Anything)
		tx.AssertNotCalled(t, "UpdatePaymentStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("refuses to cancel a done appointment", func(t *testing.T) {
		appointment, payment := paidAppointment()
		appointment.Status = entities.AppointmentStatusDone

		tx := new(MockCommitmentTx)
		store := NewMockCommitmentStore(tx)
		providerRepo := new(MockProviderRepository)
		paymentProvider := new(MockPaymentProvider)
		service, _ := newCancellationService(store, providerRepo, paymentProvider)

		store.On("FindAppointmentWithPayment", ctx, "tenant-1", "appt-1").Return(appointment, payment, nil)
		providerRepo.On("GetByID", ctx, "tenant-1", "prov-1").Return(testProvider(), nil)

		_, err := service.CancelAndRefund(ctx, actor, "appt-1", "")

		require.Error(t, err)
		assert.Equal(t, apperrors.CodeNotCancellable, apperrors.CodeOf(err))
		store.AssertNotCalled(t, "InTx", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("keeps a failed refund retryable", func(t *testing.T) {
		appointment, payment := paidAppointment()
		tx := new(MockCommitmentTx)
		store := NewMockCommitmentStore(tx)
		providerRepo := new(MockProviderRepository)
		paymentProvider := new(MockPaymentProvider)
		service, _ := newCancellationService(store, providerRepo, paymentProvider)

		store.On("FindAppointmentWithPayment", ctx, "tenant-1", "appt-1").Return(appointment, payment, nil)
		providerRepo.On("GetByID", ctx, "tenant-1", "prov-1").Return(testProvider(), nil)
		store.On("InTx", ctx, "tenant-1", "prov-1").Return(nil)
		tx.On("UpdateAppointmentStatus", ctx, "tenant-1", "appt-1", entities.AppointmentStatusCancelled, "").Return(nil)
		tx.On("UpdatePaymentStatus", ctx, "tenant-1", "pay-1", entities.PaymentStatusRefundRequested, (*time.Time)(nil)).Return(nil)
		paymentProvider.On("Refund", ctx, "pay-1", int64(15000)).
			Return(nil, apperrors.NewExternalError("gateway unavailable", nil))

		_, err := service.CancelAndRefund(ctx, actor, "appt-1", "")

		require.Error(t, err)
		// Phase one committed, so the appointment stays cancelled with the
		// refund durably marked as requested.
		assert.Equal(t, entities.AppointmentStatusCancelled, appointment.Status)
		assert.Equal(t, entities.PaymentStatusRefundRequested, payment.Status)
		tx.AssertNotCalled(t, "UpdatePaymentStatus",
			mock.Anything, mock.Anything, mock.Anything, entities.PaymentStatusRefunded, mock.Anything)
	})

	t.Run("completes a retry after a failed refund without re-cancelling", func(t *testing.T) {
		appointment, payment := paidAppointment()
		appointment.Status = entities.AppointmentStatusCancelled
		payment.Status = entities.PaymentStatusRefundRequested

		tx := new(MockCommitmentTx)
		store := NewMockCommitmentStore(tx)
		providerRepo := new(MockProviderRepository)
		paymentProvider := new(MockPaymentProvider)
		service, _ := newCancellationService(store, providerRepo, paymentProvider)

		store.On("FindAppointmentWithPayment", ctx, "tenant-1", "appt-1").Return(appointment, payment, nil)
		providerRepo.On("GetByID", ctx, "tenant-1", "prov-1").Return(testProvider(), nil)
		store.On("InTx", ctx, "tenant-1", "prov-1").Return(nil)
		paymentProvider.On("Refund", ctx, "pay-1", int64(15000)).
			Return(&providers.RefundResult{AlreadyRefunded: true}, nil)
		tx.On("UpdatePaymentStatus", ctx, "tenant-1", "pay-1", entities.PaymentStatusRefunded, mock.AnythingOfType("*time.Time")).Return(nil)

		result, err := service.CancelAndRefund(ctx, actor, "appt-1", "")

		require.NoError(t, err)
		assert.False(t, result.Replay)
		assert.Equal(t, entities.PaymentStatusRefunded, result.Payment.Status)
		tx.AssertNotCalled(t, "UpdateAppointmentStatus",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("treats a cancelled appointment with an uncharged payment as replay", func(t *testing.T) {
		appointment, payment := paidAppointment()
		appointment.Status = entities.AppointmentStatusCancelled
		payment.Status = entities.PaymentStatusPending

		tx := new(MockCommitmentTx)
		store := NewMockCommitmentStore(tx)
		providerRepo := new(MockProviderRepository)
		paymentProvider := new(MockPaymentProvider)
		service, _ := newCancellationService(store, providerRepo, paymentProvider)

		store.On("FindAppointmentWithPayment", ctx, "tenant-1", "appt-1").Return(appointment, payment, nil)
		providerRepo.On("GetByID", ctx, "tenant-1", "prov-1").Return(testProvider(), nil)

		result, err := service.CancelAndRefund(ctx, actor, "appt-1", "")

		require.NoError(t, err)
		assert.True(t, result.Replay)
		paymentProvider.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("denies an attendant-owned provider mismatch", func(t *testing.T) {
		appointment, payment := paidAppointment()
		tx := new(MockCommitmentTx)
		store := NewMockCommitmentStore(tx)
		providerRepo := new(MockProviderRepository)
		paymentProvider := new(MockPaymentProvider)
		service, _ := newCancellationService(store, providerRepo, paymentProvider)

		store.On("FindAppointmentWithPayment", ctx, "tenant-1", "appt-1").Return(appointment, payment, nil)
		providerRepo.On("GetByID", ctx, "tenant-1", "prov-1").Return(testProvider(), nil)
		actor := entities.Actor{ID: "user-prov-2", Role: entities.RoleProvider, TenantID: "tenant-1"}

		_, err := service.CancelAndRefund(ctx, actor, "appt-1", "")

		require.Error(t, err)
		assert.Equal(t, apperrors.CodeForbiddenOwnership, apperrors.CodeOf(err))
		store.AssertNotCalled(t, "InTx", mock.Anything, mock.Anything, mock.Anything)
	})
}
