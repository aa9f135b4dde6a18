package entities

import (
	"time"
)

// ScheduleEventKind identifies the state transition an event announces
type ScheduleEventKind string

const (
	ScheduleEventCommitmentCreated    ScheduleEventKind = "commitment.created"
	ScheduleEventCommitmentUpdated    ScheduleEventKind = "commitment.updated"
	ScheduleEventCommitmentRemoved    ScheduleEventKind = "commitment.removed"
	ScheduleEventAppointmentCancelled ScheduleEventKind = "appointment.cancelled"
)

// ScheduleEvent is the fire-and-forget signal raised after a schedule
// mutation commits. Delivery is the notification collaborator's problem;
// the core only guarantees the event is raised after the transaction, never
// before.
type ScheduleEvent struct {
	ID         string            `json:"id"`
	TenantID   string            `json:"tenant_id"`
	ProviderID string            `json:"provider_id"`
	ActorID    string            `json:"actor_id"`
	Kind       ScheduleEventKind `json:"kind"`
	Payload    map[string]string `json:"payload,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}
