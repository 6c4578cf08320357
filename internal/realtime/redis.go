package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisPublisher fans messages out to every instance through a pub/sub channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

var _ Publisher = (*RedisPublisher)(nil)

// NewRedisPublisher publishes on channel.
func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, rooms []string, msg Message) error {
	payload, err := json.Marshal(Envelope{Rooms: rooms, Message: msg})
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	return p.client.Publish(ctx, p.channel, payload).Err()
}

// Relay delivers envelopes from channel to the local hub until ctx is done.
// ready, if non-nil, is closed once the subscription is confirmed.
func Relay(ctx context.Context, client *redis.Client, channel string, hub *Hub, logger *zap.Logger, ready chan<- struct{}) error {
	sub := client.Subscribe(ctx, channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}
	if ready != nil {
		close(ready)
	}
	logger = logger.With(zap.String("component", "realtime_relay"), zap.String("channel", channel))
	logger.Info("relay subscribed")

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-messages:
			if !ok {
				return nil
			}
			var env Envelope
			if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
				logger.Warn("dropping malformed envelope", zap.Error(err))
				continue
			}
			_ = hub.Publish(ctx, env.Rooms, env.Message)
		}
	}
}
