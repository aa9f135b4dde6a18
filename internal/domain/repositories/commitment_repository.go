package repositories

import (
	"context"
	"time"

	"github.com/attenda/scheduling/internal/domain/entities"
	"github.com/attenda/scheduling/internal/domain/timespan"
)

// CommitmentStore is the persistence gateway for both commitment kinds,
// always scoped by tenant. Mutations happen only inside InTx so the conflict
// check and the write commit as one serializable unit per provider.
type CommitmentStore interface {
	// GetCommitment returns a block or appointment by id
	GetCommitment(ctx context.Context, tenantID, commitmentID string) (entities.Commitment, error)

	// ListForDay returns every commitment whose interval intersects the UTC
	// calendar day containing day, ordered by start ascending
	ListForDay(ctx context.Context, tenantID, providerID string, day time.Time) ([]entities.Commitment, error)

	// FindAppointmentWithPayment loads an appointment together with its
	// payment record, if one exists
	FindAppointmentWithPayment(ctx context.Context, tenantID, appointmentID string) (*entities.Appointment, *entities.Payment, error)

	// InTx runs fn inside a transaction serialized per (tenant, provider).
	// Two concurrent transactions for the same provider never interleave a
	// conflict check with another's insert; disjoint providers do not block
	// each other.
	InTx(ctx context.Context, tenantID, providerID string, fn func(tx CommitmentTx) error) error
}

// CommitmentTx is the write surface available inside a provider-scoped
// transaction.
type CommitmentTx interface {
	// FindOverlapping returns the active commitments of the provider whose
	// interval overlaps span, excluding excludeID when non-empty. Active
	// means every block plus appointments in scheduled or in_service.
	FindOverlapping(ctx context.Context, tenantID, providerID string, span timespan.Span, excludeID string) ([]entities.Commitment, error)

	InsertBlock(ctx context.Context, block *entities.Block) error
	InsertAppointment(ctx context.Context, appointment *entities.Appointment) error

	// UpdateCommitmentSpan moves or resizes a commitment of either kind
	UpdateCommitmentSpan(ctx context.Context, tenantID, commitmentID string, span timespan.Span) error

	DeleteCommitment(ctx context.Context, tenantID, commitmentID string) error

	UpdateAppointmentStatus(ctx context.Context, tenantID, appointmentID string, status entities.AppointmentStatus, cancelledReason string) error

	UpdatePaymentStatus(ctx context.Context, tenantID, paymentID string, status entities.PaymentStatus, refundedAt *time.Time) error
}
