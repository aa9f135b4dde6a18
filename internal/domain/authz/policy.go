// Package authz resolves whether an actor may act on a provider's schedule
// within a tenant. It is a pure policy: callers load the target provider and
// pass it in, and persistence never happens here.
package authz

import (
	"fmt"

	"github.com/attenda/scheduling/internal/domain/entities"
	apperrors "github.com/attenda/scheduling/pkg/errors"
)

// Action names the schedule operation being authorized
type Action string

const (
	ActionScheduleRead      Action = "schedule.read"
	ActionScheduleWrite     Action = "schedule.write"
	ActionAppointmentCancel Action = "appointment.cancel"
)

// Decision is the outcome of an authorization check
type Decision struct {
	Allowed bool
	Reason  error
}

// Allow is the positive decision
var Allow = Decision{Allowed: true}

// Deny builds a negative decision carrying its typed reason
func Deny(reason error) Decision {
	return Decision{Reason: reason}
}

// Authorize applies the schedule access rules in order:
//
//  1. The target provider must belong to the tenant.
//  2. Owner, admin and attendant act on any provider within their tenant.
//  3. A provider-role actor acts only on the provider it owns.
//  4. Every other role is denied.
func Authorize(actor entities.Actor, tenantID string, provider *entities.Provider, action Action) Decision {
	if provider == nil || provider.TenantID != tenantID || actor.TenantID != tenantID {
		return Deny(apperrors.NewInvalidProviderError("provider does not belong to tenant"))
	}

	switch actor.Role {
	case entities.RoleOwner, entities.RoleAdmin, entities.RoleAttendant:
		return Allow
	case entities.RoleProvider:
		if actor.ID == provider.UserID {
			return Allow
		}
		return Deny(apperrors.NewForbiddenOwnershipError(
			fmt.Sprintf("actor %s does not own provider %s", actor.ID, provider.ID),
		))
	default:
		return Deny(apperrors.NewForbiddenRoleError(
			fmt.Sprintf("role %q cannot perform %s", actor.Role, action),
		))
	}
}
