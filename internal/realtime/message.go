// Package realtime pushes complaint events to websocket clients grouped into rooms.
package realtime

import (
	"context"

	"github.com/spec-kit/complaint-service/internal/events"
)

// AdminRoom receives every event.
const AdminRoom = "role:ADMIN"

// TicketRoom is joined by clients watching one complaint.
func TicketRoom(ticketID string) string { return "ticket:" + ticketID }

// TicketStaffRoom carries the staff-only events of one complaint.
func TicketStaffRoom(ticketID string) string { return "ticket:" + ticketID + ":staff" }

// UserRoom is joined automatically by every connection of a user.
func UserRoom(userID string) string { return "user:" + userID }

// Server to client message types.
const (
	TypeTicketEvent  = "ticket_event"
	TypeSubscribed   = "subscribed"
	TypeUnsubscribed = "unsubscribed"
	TypeError        = "error"
	TypePong         = "pong"
)

// Message is what clients receive.
type Message struct {
	Type     string        `json:"type"`
	TicketID string        `json:"ticketId,omitempty"`
	Event    *events.Event `json:"event,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// Envelope carries a message and its target rooms across instances.
type Envelope struct {
	Rooms   []string `json:"rooms"`
	Message Message  `json:"message"`
}

// Publisher delivers a message to every client in any of rooms.
type Publisher interface {
	Publish(ctx context.Context, rooms []string, msg Message) error
}

// clientRequest is what clients send.
type clientRequest struct {
	Action   string `json:"action"`
	TicketID string `json:"ticketId"`
}
