package realtime

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/events"
)

type fakeAuthn map[string]domain.Actor

func (f fakeAuthn) Authenticate(_ context.Context, token string) (domain.Actor, error) {
	actor, ok := f[token]
	if !ok {
		return domain.Actor{}, errors.New("bad token")
	}
	return actor, nil
}

// fakeAuthz lets owners watch their own tickets only.
type fakeAuthz map[string]string

func (f fakeAuthz) AuthorizeTicketRoom(_ context.Context, actor domain.Actor, ticketID string) error {
	if f[ticketID] != actor.ID {
		return errors.New("NOT_OWNER")
	}
	return nil
}

func startGateway(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub(zap.NewNop())
	authn := fakeAuthn{
		"tok-res":   {ID: "res-1", Role: domain.RoleResident},
		"tok-admin": {ID: "admin-1", Role: domain.RoleAdmin},
	}
	handler := NewHandler(hub, authn, fakeAuthz{"t1": "res-1"}, Options{SendBuffer: 8}, zap.NewNop())
	srv := httptest.NewServer(NewRouter(handler))
	t.Cleanup(srv.Close)
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestGateway_RejectsMissingOrBadToken(t *testing.T) {
	_, url := startGateway(t)

	for _, target := range []string{url, url + "?token=nope"} {
		_, resp, err := websocket.DefaultDialer.Dial(target, nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		_ = resp.Body.Close()
	}
}

func TestGateway_SubscribeAndReceive(t *testing.T) {
	hub, url := startGateway(t)
	conn := dial(t, url+"?token=tok-res")

	require.NoError(t, conn.WriteJSON(clientRequest{Action: "subscribe", TicketID: "t1"}))
	ack := readMessage(t, conn)
	assert.Equal(t, TypeSubscribed, ack.Type)
	assert.Equal(t, "t1", ack.TicketID)

	require.NoError(t, hub.Publish(context.Background(), []string{TicketRoom("t1")},
		Message{Type: TypeTicketEvent, Event: &events.Event{ID: "e1", TicketID: "t1", Event: domain.EventAssign}}))
	got := readMessage(t, conn)
	assert.Equal(t, TypeTicketEvent, got.Type)
	require.NotNil(t, got.Event)
	assert.Equal(t, domain.EventAssign, got.Event.Event)
}

func TestGateway_SubscribeDenied(t *testing.T) {
	hub, url := startGateway(t)
	conn := dial(t, url+"?token=tok-admin")

	require.NoError(t, conn.WriteJSON(clientRequest{Action: "subscribe", TicketID: "t9"}))
	got := readMessage(t, conn)
	assert.Equal(t, TypeError, got.Type)
	assert.Equal(t, "NOT_OWNER", got.Error)
	assert.Zero(t, hub.RoomSize(TicketRoom("t9")))

	assert.Eventually(t, func() bool { return hub.RoomSize(AdminRoom) == 1 }, time.Second, 10*time.Millisecond,
		"admins auto-join the admin room")
}

func TestGateway_Ping(t *testing.T) {
	_, url := startGateway(t)
	conn := dial(t, url+"?token=tok-res")
	require.NoError(t, conn.WriteJSON(clientRequest{Action: "ping"}))
	assert.Equal(t, TypePong, readMessage(t, conn).Type)
}
