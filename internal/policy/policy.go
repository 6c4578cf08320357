// Package policy holds the single role/ownership/state authorization table for complaints.
package policy

import "github.com/spec-kit/complaint-service/internal/domain"

// Action is an operation an actor attempts on a ticket.
type Action string

const (
	ActionCreate          Action = "create"
	ActionView            Action = "view"
	ActionList            Action = "list"
	ActionAssign          Action = "assign"
	ActionAddWorkUpdate   Action = "add_work_update"
	ActionUpdateStatus    Action = "update_status"
	ActionRate            Action = "rate"
	ActionReopen          Action = "reopen"
	ActionClose           Action = "close"
	ActionCancel          Action = "cancel"
	ActionAddComment      Action = "add_comment"
	ActionAddAdminMedia   Action = "add_admin_media"
	ActionAddInternalNote Action = "add_internal_note"
	ActionUpdatePriority  Action = "update_priority"
)

// Reason explains a denial.
type Reason string

const (
	ReasonNotOwner              Reason = "NOT_OWNER"
	ReasonNotAssigned           Reason = "NOT_ASSIGNED"
	ReasonRoleForbidden         Reason = "ROLE_FORBIDDEN"
	ReasonInvalidStateForAction Reason = "INVALID_STATE_FOR_ACTION"
)

// Decision is the outcome of a policy check.
type Decision struct {
	Allowed bool
	Reason  Reason
}

var allow = Decision{Allowed: true}

func deny(reason Reason) Decision {
	return Decision{Reason: reason}
}

// rule evaluates one role's access to one action. ticket is nil for create/list.
type rule func(actor domain.Actor, ticket *domain.Ticket) Decision

type grants map[domain.Role]rule

var table = map[Action]grants{
	ActionCreate: {
		domain.RoleResident: always,
	},
	ActionList: {
		domain.RoleResident: always,
		domain.RoleStaff:    always,
		domain.RoleAdmin:    always,
	},
	ActionView: {
		domain.RoleResident: owner,
		domain.RoleStaff:    assigned,
		domain.RoleAdmin:    always,
	},
	ActionAssign: {
		domain.RoleAdmin: always,
	},
	ActionAddWorkUpdate: {
		domain.RoleStaff: assigned,
	},
	ActionUpdateStatus: {
		domain.RoleAdmin: always,
	},
	ActionRate: {
		domain.RoleResident: ownerIn(domain.TicketStatusResolved, domain.TicketStatusClosed),
	},
	ActionReopen: {
		domain.RoleResident: ownerIn(domain.TicketStatusClosed, domain.TicketStatusResolved),
	},
	ActionClose: {
		domain.RoleResident: ownerIn(domain.TicketStatusResolved),
		domain.RoleAdmin:    always,
	},
	ActionCancel: {
		domain.RoleResident: ownerIn(domain.TicketStatusOpen),
		domain.RoleAdmin:    nonTerminal,
	},
	ActionAddComment: {
		domain.RoleResident: owner,
		domain.RoleStaff:    assigned,
		domain.RoleAdmin:    always,
	},
	ActionAddAdminMedia: {
		domain.RoleAdmin: always,
	},
	ActionAddInternalNote: {
		domain.RoleAdmin: always,
	},
	ActionUpdatePriority: {
		domain.RoleAdmin: always,
	},
}

// CanPerform decides whether actor may perform action on ticket.
func CanPerform(actor domain.Actor, action Action, ticket *domain.Ticket) Decision {
	byRole, ok := table[action]
	if !ok {
		return deny(ReasonRoleForbidden)
	}
	check, ok := byRole[actor.Role]
	if !ok || actor.ID == "" {
		return deny(ReasonRoleForbidden)
	}
	return check(actor, ticket)
}

func always(domain.Actor, *domain.Ticket) Decision {
	return allow
}

func owner(actor domain.Actor, ticket *domain.Ticket) Decision {
	if ticket == nil || !ticket.IsOwnedBy(actor.ID) {
		return deny(ReasonNotOwner)
	}
	return allow
}

func assigned(actor domain.Actor, ticket *domain.Ticket) Decision {
	if ticket == nil || !ticket.IsAssignedTo(actor.ID) {
		return deny(ReasonNotAssigned)
	}
	return allow
}

func ownerIn(statuses ...domain.TicketStatus) rule {
	return func(actor domain.Actor, ticket *domain.Ticket) Decision {
		if d := owner(actor, ticket); !d.Allowed {
			return d
		}
		for _, s := range statuses {
			if ticket.Status == s {
				return allow
			}
		}
		return deny(ReasonInvalidStateForAction)
	}
}

func nonTerminal(_ domain.Actor, ticket *domain.Ticket) Decision {
	if ticket == nil || ticket.Status.IsTerminal() {
		return deny(ReasonInvalidStateForAction)
	}
	return allow
}
