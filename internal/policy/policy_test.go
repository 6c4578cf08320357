package policy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/policy"
)

var (
	resident      = domain.Actor{ID: "resident-1", Role: domain.RoleResident}
	otherResident = domain.Actor{ID: "resident-2", Role: domain.RoleResident}
	staff         = domain.Actor{ID: "staff-1", Role: domain.RoleStaff}
	otherStaff    = domain.Actor{ID: "staff-2", Role: domain.RoleStaff}
	admin         = domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}
)

func ticket(status domain.TicketStatus) *domain.Ticket {
	tk := &domain.Ticket{ID: "tck-1", CreatedBy: resident.ID, Status: status}
	if status.RequiresAssignee() {
		assignee := staff.ID
		tk.AssignedStaff = &assignee
	}
	return tk
}

func TestCanPerform(t *testing.T) {
	tests := []struct {
		name   string
		actor  domain.Actor
		action policy.Action
		status domain.TicketStatus
		want   policy.Decision
	}{
		{"resident creates", resident, policy.ActionCreate, "", policy.Decision{Allowed: true}},
		{"staff cannot create", staff, policy.ActionCreate, "", policy.Decision{Reason: policy.ReasonRoleForbidden}},
		{"admin cannot create", admin, policy.ActionCreate, "", policy.Decision{Reason: policy.ReasonRoleForbidden}},

		{"owner views", resident, policy.ActionView, domain.TicketStatusOpen, policy.Decision{Allowed: true}},
		{"other resident cannot view", otherResident, policy.ActionView, domain.TicketStatusOpen, policy.Decision{Reason: policy.ReasonNotOwner}},
		{"assigned staff views", staff, policy.ActionView, domain.TicketStatusAssigned, policy.Decision{Allowed: true}},
		{"unassigned staff cannot view", otherStaff, policy.ActionView, domain.TicketStatusAssigned, policy.Decision{Reason: policy.ReasonNotAssigned}},
		{"admin views anything", admin, policy.ActionView, domain.TicketStatusCancelled, policy.Decision{Allowed: true}},

		{"admin assigns", admin, policy.ActionAssign, domain.TicketStatusOpen, policy.Decision{Allowed: true}},
		{"staff cannot assign", staff, policy.ActionAssign, domain.TicketStatusOpen, policy.Decision{Reason: policy.ReasonRoleForbidden}},
		{"resident cannot assign", resident, policy.ActionAssign, domain.TicketStatusOpen, policy.Decision{Reason: policy.ReasonRoleForbidden}},

		{"assigned staff adds work update", staff, policy.ActionAddWorkUpdate, domain.TicketStatusInProgress, policy.Decision{Allowed: true}},
		{"other staff cannot add work update", otherStaff, policy.ActionAddWorkUpdate, domain.TicketStatusInProgress, policy.Decision{Reason: policy.ReasonNotAssigned}},
		{"admin cannot add work update", admin, policy.ActionAddWorkUpdate, domain.TicketStatusInProgress, policy.Decision{Reason: policy.ReasonRoleForbidden}},

		{"admin updates status", admin, policy.ActionUpdateStatus, domain.TicketStatusInProgress, policy.Decision{Allowed: true}},
		{"staff cannot update status", staff, policy.ActionUpdateStatus, domain.TicketStatusInProgress, policy.Decision{Reason: policy.ReasonRoleForbidden}},

		{"owner rates resolved", resident, policy.ActionRate, domain.TicketStatusResolved, policy.Decision{Allowed: true}},
		{"owner rates closed", resident, policy.ActionRate, domain.TicketStatusClosed, policy.Decision{Allowed: true}},
		{"owner cannot rate open", resident, policy.ActionRate, domain.TicketStatusOpen, policy.Decision{Reason: policy.ReasonInvalidStateForAction}},
		{"non owner cannot rate", otherResident, policy.ActionRate, domain.TicketStatusClosed, policy.Decision{Reason: policy.ReasonNotOwner}},
		{"admin cannot rate", admin, policy.ActionRate, domain.TicketStatusClosed, policy.Decision{Reason: policy.ReasonRoleForbidden}},

		{"owner reopens closed", resident, policy.ActionReopen, domain.TicketStatusClosed, policy.Decision{Allowed: true}},
		{"owner reopens resolved", resident, policy.ActionReopen, domain.TicketStatusResolved, policy.Decision{Allowed: true}},
		{"owner cannot reopen cancelled", resident, policy.ActionReopen, domain.TicketStatusCancelled, policy.Decision{Reason: policy.ReasonInvalidStateForAction}},
		{"admin cannot reopen", admin, policy.ActionReopen, domain.TicketStatusClosed, policy.Decision{Reason: policy.ReasonRoleForbidden}},

		{"owner closes resolved", resident, policy.ActionClose, domain.TicketStatusResolved, policy.Decision{Allowed: true}},
		{"owner cannot close in progress", resident, policy.ActionClose, domain.TicketStatusInProgress, policy.Decision{Reason: policy.ReasonInvalidStateForAction}},
		{"admin closes", admin, policy.ActionClose, domain.TicketStatusResolved, policy.Decision{Allowed: true}},
		{"staff cannot close", staff, policy.ActionClose, domain.TicketStatusResolved, policy.Decision{Reason: policy.ReasonRoleForbidden}},

		{"owner cancels open", resident, policy.ActionCancel, domain.TicketStatusOpen, policy.Decision{Allowed: true}},
		{"owner cannot cancel assigned", resident, policy.ActionCancel, domain.TicketStatusAssigned, policy.Decision{Reason: policy.ReasonInvalidStateForAction}},
		{"admin cancels in progress", admin, policy.ActionCancel, domain.TicketStatusInProgress, policy.Decision{Allowed: true}},
		{"admin cannot cancel closed", admin, policy.ActionCancel, domain.TicketStatusClosed, policy.Decision{Reason: policy.ReasonInvalidStateForAction}},
		{"staff cannot cancel", staff, policy.ActionCancel, domain.TicketStatusAssigned, policy.Decision{Reason: policy.ReasonRoleForbidden}},

		{"owner comments", resident, policy.ActionAddComment, domain.TicketStatusAssigned, policy.Decision{Allowed: true}},
		{"assigned staff comments", staff, policy.ActionAddComment, domain.TicketStatusAssigned, policy.Decision{Allowed: true}},
		{"unassigned staff cannot comment", otherStaff, policy.ActionAddComment, domain.TicketStatusAssigned, policy.Decision{Reason: policy.ReasonNotAssigned}},
		{"admin comments", admin, policy.ActionAddComment, domain.TicketStatusOpen, policy.Decision{Allowed: true}},

		{"admin adds media", admin, policy.ActionAddAdminMedia, domain.TicketStatusOpen, policy.Decision{Allowed: true}},
		{"staff cannot add media", staff, policy.ActionAddAdminMedia, domain.TicketStatusAssigned, policy.Decision{Reason: policy.ReasonRoleForbidden}},
		{"admin adds note", admin, policy.ActionAddInternalNote, domain.TicketStatusOpen, policy.Decision{Allowed: true}},
		{"assigned staff cannot add note", staff, policy.ActionAddInternalNote, domain.TicketStatusAssigned, policy.Decision{Reason: policy.ReasonRoleForbidden}},
		{"admin updates priority", admin, policy.ActionUpdatePriority, domain.TicketStatusOpen, policy.Decision{Allowed: true}},
		{"resident cannot update priority", resident, policy.ActionUpdatePriority, domain.TicketStatusOpen, policy.Decision{Reason: policy.ReasonRoleForbidden}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tk *domain.Ticket
			if tt.status != "" {
				tk = ticket(tt.status)
			}
			assert.Equal(t, tt.want, policy.CanPerform(tt.actor, tt.action, tk))
		})
	}
}

func TestCanPerform_RejectsAnonymousAndUnknown(t *testing.T) {
	anonymous := domain.Actor{Role: domain.RoleAdmin}
	assert.Equal(t, policy.ReasonRoleForbidden, policy.CanPerform(anonymous, policy.ActionView, ticket(domain.TicketStatusOpen)).Reason)

	assert.False(t, policy.CanPerform(admin, policy.Action("delete"), ticket(domain.TicketStatusOpen)).Allowed)

	ghost := domain.Actor{ID: "x", Role: domain.Role("JANITOR")}
	assert.False(t, policy.CanPerform(ghost, policy.ActionView, ticket(domain.TicketStatusOpen)).Allowed)
}
