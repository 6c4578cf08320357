package realtime

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/complaint-service/internal/domain"
)

// Hub tracks connected clients and the rooms they joined.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}
	logger  *zap.Logger
}

var _ Publisher = (*Hub)(nil)

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		rooms:   make(map[string]map[*Client]struct{}),
		logger:  logger.With(zap.String("component", "realtime_hub")),
	}
}

// Register adds a client and joins it to rooms.
func (h *Hub) Register(c *Client, rooms ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	for _, room := range rooms {
		h.joinLocked(c, room)
	}
	h.logger.Debug("client registered", zap.String("user_id", c.actor.ID), zap.Int("clients", len(h.clients)))
}

// Unregister removes a client from every room and closes its send queue.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	for room := range c.rooms {
		h.leaveLocked(c, room)
	}
	c.closeSend()
	h.logger.Debug("client unregistered", zap.String("user_id", c.actor.ID), zap.Int("clients", len(h.clients)))
}

// Join subscribes a registered client to room.
func (h *Hub) Join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		h.joinLocked(c, room)
	}
}

// Leave unsubscribes a client from room.
func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, room)
}

func (h *Hub) joinLocked(c *Client, room string) {
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
}

func (h *Hub) leaveLocked(c *Client, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(c.rooms, room)
}

// Publish queues msg once for every client in any of rooms.
// Staff who no longer hold the ticket are dropped from its rooms first.
// Clients whose queue is full are disconnected.
func (h *Hub) Publish(_ context.Context, rooms []string, msg Message) error {
	h.mu.Lock()
	revoked := h.revokeStaleStaffLocked(msg)
	targets := make(map[*Client]struct{})
	for _, room := range rooms {
		for c := range h.rooms[room] {
			targets[c] = struct{}{}
		}
	}
	var slow []*Client
	for c := range targets {
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	for _, c := range revoked {
		select {
		case c.send <- Message{Type: TypeUnsubscribed, TicketID: msg.Event.TicketID}:
		default:
		}
	}
	h.mu.Unlock()

	for _, c := range slow {
		h.logger.Warn("client send buffer full, disconnecting", zap.String("user_id", c.actor.ID))
		h.Unregister(c)
	}
	return nil
}

// revokeStaleStaffLocked removes staff clients from a ticket's rooms once the
// ticket event shows someone else, or nobody, holding it.
func (h *Hub) revokeStaleStaffLocked(msg Message) []*Client {
	if msg.Type != TypeTicketEvent || msg.Event == nil || msg.Event.TicketID == "" {
		return nil
	}
	seen := make(map[*Client]struct{})
	var revoked []*Client
	for _, room := range []string{TicketRoom(msg.Event.TicketID), TicketStaffRoom(msg.Event.TicketID)} {
		for c := range h.rooms[room] {
			if c.actor.Role != domain.RoleStaff || c.actor.ID == msg.Event.Assignee {
				continue
			}
			h.leaveLocked(c, room)
			if _, ok := seen[c]; !ok {
				seen[c] = struct{}{}
				revoked = append(revoked, c)
			}
		}
	}
	for _, c := range revoked {
		h.logger.Debug("ticket room access revoked",
			zap.String("user_id", c.actor.ID),
			zap.String("ticket_id", msg.Event.TicketID))
	}
	return revoked
}

// direct queues msg for one registered client, dropping it when the queue is full.
func (h *Hub) direct(c *Client, msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomSize returns how many clients joined room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
