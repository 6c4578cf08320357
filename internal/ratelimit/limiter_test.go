package ratelimit

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestLocalLimiter_DeniesAfterBurst(t *testing.T) {
	clk := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := NewLocalLimiter(3, time.Minute)
	l.now = clk.now
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := l.Allow(ctx, "user:1")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d", i)
	}
	d, err := l.Allow(ctx, "user:1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.InDelta(t, (20 * time.Second).Seconds(), d.RetryAfter.Seconds(), 0.5)

	other, err := l.Allow(ctx, "user:2")
	require.NoError(t, err)
	assert.True(t, other.Allowed, "keys are independent")

	clk.advance(20 * time.Second)
	d, err = l.Allow(ctx, "user:1")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "a token refills after window/requests")
}

func TestLocalLimiter_EvictIdle(t *testing.T) {
	clk := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := NewLocalLimiter(1, time.Second)
	l.now = clk.now
	_, _ = l.Allow(context.Background(), "a")
	clk.advance(10 * time.Minute)
	_, _ = l.Allow(context.Background(), "b")

	l.evictIdle(5 * time.Minute)
	assert.NotContains(t, l.limiters, "a")
	assert.Contains(t, l.limiters, "b")
}

func TestRedisLimiter_FixedWindow(t *testing.T) {
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

	clk := &clock{t: time.Date(2026, 1, 1, 12, 0, 10, 0, time.UTC)}
	l := NewRedisLimiter(client, "rl", 2, time.Minute)
	l.now = clk.now

	for i := 0; i < 2; i++ {
		d, err := l.Allow(ctx, "res-1")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 1-i, d.Remaining)
	}
	d, err := l.Allow(ctx, "res-1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 50*time.Second, d.RetryAfter)

	ttl, err := client.TTL(ctx, "rl:res-1:"+strconv.FormatInt(clk.t.Truncate(time.Minute).Unix(), 10)).Result()
	require.NoError(t, err)
	assert.Positive(t, ttl)

	clk.advance(time.Minute)
	d, err = l.Allow(ctx, "res-1")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "a new window starts fresh")
}
