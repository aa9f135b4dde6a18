package entities

import (
	"time"

	"github.com/attenda/scheduling/internal/domain/timespan"
)

// CommitmentKind distinguishes the two commitment variants
type CommitmentKind string

const (
	CommitmentKindBlock       CommitmentKind = "block"
	CommitmentKindAppointment CommitmentKind = "appointment"
)

// Commitment is a time interval on a provider's schedule. Blocks and
// appointments both satisfy it so the conflict engine can treat them
// uniformly.
type Commitment interface {
	CommitmentID() string
	CommitmentTenantID() string
	CommitmentProviderID() string
	CommitmentKind() CommitmentKind
	Span() timespan.Span
}

// Block is manually reserved unavailability on a provider's schedule
type Block struct {
	ID         string    `json:"id" db:"id"`
	TenantID   string    `json:"tenant_id" db:"tenant_id"`
	ProviderID string    `json:"provider_id" db:"provider_id"`
	StartAt    time.Time `json:"start_at" db:"start_at"`
	EndAt      time.Time `json:"end_at" db:"end_at"`
	Reason     string    `json:"reason,omitempty" db:"reason"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

func (b *Block) CommitmentID() string           { return b.ID }
func (b *Block) CommitmentTenantID() string     { return b.TenantID }
func (b *Block) CommitmentProviderID() string   { return b.ProviderID }
func (b *Block) CommitmentKind() CommitmentKind { return CommitmentKindBlock }
func (b *Block) Span() timespan.Span            { return timespan.Span{Start: b.StartAt, End: b.EndAt} }

// AppointmentStatus represents the status of an appointment
type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusInService AppointmentStatus = "in_service"
	AppointmentStatusDone      AppointmentStatus = "done"
	AppointmentStatusNoShow    AppointmentStatus = "no_show"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
)

// Active reports whether the status keeps the appointment in the
// per-provider non-overlap set.
func (s AppointmentStatus) Active() bool {
	return s == AppointmentStatusScheduled || s == AppointmentStatusInService
}

// Terminal reports whether the status permits no further transitions
// other than the cancellation replay path.
func (s AppointmentStatus) Terminal() bool {
	return s == AppointmentStatusDone || s == AppointmentStatusNoShow || s == AppointmentStatusCancelled
}

// Appointment is a client booking on a provider's schedule
type Appointment struct {
	ID              string            `json:"id" db:"id"`
	TenantID        string            `json:"tenant_id" db:"tenant_id"`
	ProviderID      string            `json:"provider_id" db:"provider_id"`
	LocationID      string            `json:"location_id" db:"location_id"`
	ClientName      string            `json:"client_name" db:"client_name"`
	StartAt         time.Time         `json:"start_at" db:"start_at"`
	EndAt           time.Time         `json:"end_at" db:"end_at"`
	Status          AppointmentStatus `json:"status" db:"status"`
	CancelledReason string            `json:"cancelled_reason,omitempty" db:"cancelled_reason"`
	CreatedAt       time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at" db:"updated_at"`
}

func (a *Appointment) CommitmentID() string           { return a.ID }
func (a *Appointment) CommitmentTenantID() string     { return a.TenantID }
func (a *Appointment) CommitmentProviderID() string   { return a.ProviderID }
func (a *Appointment) CommitmentKind() CommitmentKind { return CommitmentKindAppointment }
func (a *Appointment) Span() timespan.Span {
	return timespan.Span{Start: a.StartAt, End: a.EndAt}
}

// PaymentStatus represents the lifecycle state of a payment
type PaymentStatus string

const (
	PaymentStatusPending         PaymentStatus = "pending"
	PaymentStatusPaid            PaymentStatus = "paid"
	PaymentStatusRefundRequested PaymentStatus = "refund_requested"
	PaymentStatusRefunded        PaymentStatus = "refunded"
)

// Payment is the money record attached to a paid appointment. Amount is in
// the smallest currency unit to avoid floating-point rounding. Refunded is
// terminal and only ever reached through the cancellation orchestrator.
type Payment struct {
	ID            string        `json:"id" db:"id"`
	TenantID      string        `json:"tenant_id" db:"tenant_id"`
	AppointmentID string        `json:"appointment_id" db:"appointment_id"`
	AmountCents   int64         `json:"amount_cents" db:"amount_cents"`
	Currency      string        `json:"currency" db:"currency"`
	Status        PaymentStatus `json:"status" db:"status"`
	RefundedAt    *time.Time    `json:"refunded_at,omitempty" db:"refunded_at"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" db:"updated_at"`
}
