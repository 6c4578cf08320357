package events

import (
	"time"

	"github.com/spec-kit/complaint-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated         EventType = "ticket_created"
	EventTicketStatusChanged   EventType = "ticket_status_changed"
	EventTicketAssigned        EventType = "ticket_assigned"
	EventTicketPriorityChanged EventType = "ticket_priority_changed"
	EventTicketWorkUpdated     EventType = "ticket_work_updated"
	EventTicketCommented       EventType = "ticket_commented"
	EventTicketRated           EventType = "ticket_rated"
	EventTicketNoteAdded       EventType = "ticket_note_added"
	EventTicketMediaAdded      EventType = "ticket_media_added"
)

// TypeFor classifies a lifecycle event for subscribers.
func TypeFor(event domain.Event) EventType {
	switch event {
	case domain.EventCreate:
		return EventTicketCreated
	case domain.EventAssign:
		return EventTicketAssigned
	case domain.EventUpdatePriority:
		return EventTicketPriorityChanged
	case domain.EventAddWorkUpdate:
		return EventTicketWorkUpdated
	case domain.EventAddComment:
		return EventTicketCommented
	case domain.EventRate:
		return EventTicketRated
	case domain.EventAddInternalNote:
		return EventTicketNoteAdded
	case domain.EventAddAdminMedia:
		return EventTicketMediaAdded
	default:
		return EventTicketStatusChanged
	}
}

// StaffOnly reports whether residents must not receive this event.
func (t EventType) StaffOnly() bool {
	return t == EventTicketNoteAdded || t == EventTicketMediaAdded
}

// Event represents a domain event emitted after a ticket write is committed.
type Event struct {
	ID            string              `json:"id"`
	Type          EventType           `json:"type"`
	TicketID      string              `json:"ticket_id"`
	ExternalKey   string              `json:"external_key"`
	Event         domain.Event        `json:"event"`
	ActorID       string              `json:"actor_id"`
	ActorRole     domain.Role         `json:"actor_role"`
	FromState     domain.TicketStatus `json:"from_state,omitempty"`
	ToState       domain.TicketStatus `json:"to_state"`
	OwnerID       string              `json:"owner_id"`
	AssignedStaff string              `json:"assigned_staff,omitempty"`
	// Assignee is who holds the ticket after the write; empty once resolved or cancelled.
	// AssignedStaff may still name the last holder so they hear about the outcome.
	Assignee string `json:"assignee,omitempty"`
	// Visibility is STAFF for comments residents cannot see.
	Visibility domain.CommentVisibility `json:"visibility,omitempty"`
	Timestamp  time.Time                `json:"timestamp"`
}
