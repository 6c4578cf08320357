package worker

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/complaint-service/internal/realtime"
	"github.com/spec-kit/complaint-service/internal/service"
)

const (
	relayMinBackoff = 500 * time.Millisecond
	relayMaxBackoff = 30 * time.Second
)

// StartNotificationWorker registers notification handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}

// StartRealtimeRelay feeds the local hub from the shared redis channel until ctx
// is cancelled, resubscribing with backoff when the subscription drops.
// The returned channel is closed once the relay has stopped.
func StartRealtimeRelay(ctx context.Context, client *redis.Client, channel string, hub *realtime.Hub, logger *zap.Logger) <-chan struct{} {
	done := make(chan struct{})
	logger = logger.With(zap.String("component", "relay_worker"))

	go func() {
		defer close(done)
		backoff := relayMinBackoff
		for {
			started := time.Now()
			err := realtime.Relay(ctx, client, channel, hub, logger, nil)
			if ctx.Err() != nil {
				return
			}
			if time.Since(started) > relayMaxBackoff {
				backoff = relayMinBackoff
			}
			logger.Warn("relay stopped, resubscribing", zap.Error(err), zap.Duration("backoff", backoff))

			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > relayMaxBackoff {
				backoff = relayMaxBackoff
			}
		}
	}()
	return done
}
