package services_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/attenda/scheduling/internal/domain/entities"
	"github.com/attenda/scheduling/internal/domain/providers"
	"github.com/attenda/scheduling/internal/domain/repositories"
	"github.com/attenda/scheduling/internal/domain/timespan"
)

// Mocks shared by the service tests.

type MockCommitmentStore struct {
	mock.Mock
	tx *MockCommitmentTx
}

func NewMockCommitmentStore(tx *MockCommitmentTx) *MockCommitmentStore {
	return &MockCommitmentStore{tx: tx}
}

func (m *MockCommitmentStore) GetCommitment(ctx context.Context, tenantID, commitmentID string) (entities.Commitment, error) {
	args := m.Called(ctx, tenantID, commitmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(entities.Commitment), args.Error(1)
}

func (m *MockCommitmentStore) ListForDay(ctx context.Context, tenantID, providerID string, day time.Time) ([]entities.Commitment, error) {
	args := m.Called(ctx, tenantID, providerID, day)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.Commitment), args.Error(1)
}

func (m *MockCommitmentStore) FindAppointmentWithPayment(ctx context.Context, tenantID, appointmentID string) (*entities.Appointment, *entities.Payment, error) {
	args := m.Called(ctx, tenantID, appointmentID)
	var appointment *entities.Appointment
	if args.Get(0) != nil {
		appointment = args.Get(0).(*entities.Appointment)
	}
	var payment *entities.Payment
	if args.Get(1) != nil {
		payment = args.Get(1).(*entities.Payment)
	}
	return appointment, payment, args.Error(2)
}

// InTx records the call, then runs fn against the store's mock transaction
// unless an error was stubbed.
func (m *MockCommitmentStore) InTx(ctx context.Context, tenantID, providerID string, fn func(tx repositories.CommitmentTx) error) error {
	args := m.Called(ctx, tenantID, providerID)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn(m.tx)
}

type MockCommitmentTx struct {
	mock.Mock
}

func (m *MockCommitmentTx) FindOverlapping(ctx context.Context, tenantID, providerID string, span timespan.Span, excludeID string) ([]entities.Commitment, error) {
	args := m.Called(ctx, tenantID, providerID, span, excludeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.Commitment), args.Error(1)
}

func (m *MockCommitmentTx) InsertBlock(ctx context.Context, block *entities.Block) error {
	args := m.Called(ctx, block)
	return args.Error(0)
}

func (m *MockCommitmentTx) InsertAppointment(ctx context.Context, appointment *entities.Appointment) error {
	args := m.Called(ctx, appointment)
	return args.Error(0)
}

func (m *MockCommitmentTx) UpdateCommitmentSpan(ctx context.Context, tenantID, commitmentID string, span timespan.Span) error {
	args := m.Called(ctx, tenantID, commitmentID, span)
	return args.Error(0)
}

func (m *MockCommitmentTx) DeleteCommitment(ctx context.Context, tenantID, commitmentID string) error {
	args := m.Called(ctx, tenantID, commitmentID)
	return args.Error(0)
}

func (m *MockCommitmentTx) UpdateAppointmentStatus(ctx context.Context, tenantID, appointmentID string, status entities.AppointmentStatus, cancelledReason string) error {
	args := m.Called(ctx, tenantID, appointmentID, status, cancelledReason)
	return args.Error(0)
}

func (m *MockCommitmentTx) UpdatePaymentStatus(ctx context.Context, tenantID, paymentID string, status entities.PaymentStatus, refundedAt *time.Time) error {
	args := m.Called(ctx, tenantID, paymentID, status, refundedAt)
	return args.Error(0)
}

type MockProviderRepository struct {
	mock.Mock
}

func (m *MockProviderRepository) GetByID(ctx context.Context, tenantID, providerID string) (*entities.Provider, error) {
	args := m.Called(ctx, tenantID, providerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Provider), args.Error(1)
}

func (m *MockProviderRepository) ListByTenant(ctx context.Context, tenantID string) ([]*entities.Provider, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Provider), args.Error(1)
}

type MockPaymentProvider struct {
	mock.Mock
}

func (m *MockPaymentProvider) Refund(ctx context.Context, paymentID string, amountCents int64) (*providers.RefundResult, error) {
	args := m.Called(ctx, paymentID, amountCents)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.RefundResult), args.Error(1)
}

// stubEventBus captures published events on a buffered channel so tests can
// wait for the asynchronous emission without racing it.
type publishedEvent struct {
	channel string
	event   *entities.ScheduleEvent
}

type stubEventBus struct {
	published chan publishedEvent
}

func newStubEventBus() *stubEventBus {
	return &stubEventBus{published: make(chan publishedEvent, 16)}
}

func (b *stubEventBus) Publish(ctx context.Context, channel string, event *entities.ScheduleEvent) error {
	select {
	case b.published <- publishedEvent{channel: channel, event: event}:
	default:
	}
	return nil
}

func (b *stubEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.ScheduleEvent, error) {
	return nil, nil
}

func (b *stubEventBus) Close() error { return nil }

func (b *stubEventBus) wait(timeout time.Duration) (publishedEvent, bool) {
	select {
	case p := <-b.published:
		return p, true
	case <-time.After(timeout):
		return publishedEvent{}, false
	}
}
