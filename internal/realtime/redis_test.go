package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/events"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test skipped in -short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisRelay_FansOutToLocalHub(t *testing.T) {
	client := startRedis(t)
	hub := NewHub(zap.NewNop())
	c := testClient(hub, "res-1", domain.RoleResident, 8)
	hub.Register(c, UserRoom("res-1"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- Relay(ctx, client, "complaints:test", hub, zap.NewNop(), ready) }()

	select {
	case <-ready:
	case <-time.After(5 * time.Second):
		t.Fatal("relay did not subscribe")
	}

	pub := NewRedisPublisher(client, "complaints:test")
	msg := Message{Type: TypeTicketEvent, Event: &events.Event{ID: "e1", TicketID: "t1"}}
	require.NoError(t, pub.Publish(ctx, []string{UserRoom("res-1")}, msg))
	require.NoError(t, pub.Publish(ctx, []string{UserRoom("someone-else")}, msg))

	select {
	case got := <-c.send:
		require.NotNil(t, got.Event)
		assert.Equal(t, "e1", got.Event.ID)
	case <-time.After(5 * time.Second):
		t.Fatal("no message relayed")
	}

	cancel()
	assert.NoError(t, <-done)
	assert.Empty(t, drain(c))
}
