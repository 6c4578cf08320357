package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/spec-kit/complaint-service/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	authzTimeout   = 5 * time.Second
)

// Client is one websocket connection. rooms is guarded by the hub's lock.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	actor     domain.Actor
	authz     Authorizer
	send      chan Message
	rooms     map[string]struct{}
	closeOnce sync.Once
	logger    *zap.Logger
}

func newClient(hub *Hub, conn *websocket.Conn, actor domain.Actor, authz Authorizer, buffer int, logger *zap.Logger) *Client {
	if buffer <= 0 {
		buffer = 64
	}
	return &Client{
		hub:    hub,
		conn:   conn,
		actor:  actor,
		authz:  authz,
		send:   make(chan Message, buffer),
		rooms:  make(map[string]struct{}),
		logger: logger.With(zap.String("user_id", actor.ID)),
	}
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() { close(c.send) })
}

func (c *Client) reply(msg Message) {
	c.hub.direct(c, msg)
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}
		c.handle(data)
	}
}

func (c *Client) handle(data []byte) {
	var req clientRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.reply(Message{Type: TypeError, Error: "malformed message"})
		return
	}

	switch req.Action {
	case "subscribe":
		if req.TicketID == "" {
			c.reply(Message{Type: TypeError, Error: "ticketId is required"})
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), authzTimeout)
		err := c.authz.AuthorizeTicketRoom(ctx, c.actor, req.TicketID)
		cancel()
		if err != nil {
			c.reply(Message{Type: TypeError, TicketID: req.TicketID, Error: err.Error()})
			return
		}
		c.hub.Join(c, TicketRoom(req.TicketID))
		if c.actor.Role != domain.RoleResident {
			c.hub.Join(c, TicketStaffRoom(req.TicketID))
		}
		c.reply(Message{Type: TypeSubscribed, TicketID: req.TicketID})
	case "unsubscribe":
		c.hub.Leave(c, TicketRoom(req.TicketID))
		c.hub.Leave(c, TicketStaffRoom(req.TicketID))
		c.reply(Message{Type: TypeUnsubscribed, TicketID: req.TicketID})
	case "ping":
		c.reply(Message{Type: TypePong})
	default:
		c.reply(Message{Type: TypeError, Error: "unknown action"})
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
