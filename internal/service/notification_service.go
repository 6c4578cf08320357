package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/complaint-service/internal/config"
	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/events"
	"github.com/spec-kit/complaint-service/internal/observability"
	"github.com/spec-kit/complaint-service/internal/realtime"
)

const defaultPublishTimeout = 2 * time.Second

// NotificationService pushes committed ticket events to realtime rooms.
type NotificationService struct {
	dispatcher events.Dispatcher
	publisher  realtime.Publisher
	metrics    *observability.Metrics
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, publisher realtime.Publisher, metrics *observability.Metrics, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = defaultPublishTimeout
	}
	return &NotificationService{
		dispatcher: dispatcher,
		publisher:  publisher,
		metrics:    metrics,
		logger:     logger.With(zap.String("component", "notifications")),
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil || n.publisher == nil {
		return
	}
	n.dispatcher.SubscribeAll(n.handleTicketEvent)
}

func (n *NotificationService) handleTicketEvent(ctx context.Context, event events.Event) error {
	// Delivery outlives the request that produced the event, but not by much.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.cfg.PublishTimeout)
	defer cancel()

	rooms := RoomsFor(event)
	msg := realtime.Message{Type: realtime.TypeTicketEvent, TicketID: event.TicketID, Event: &event}
	if err := n.publisher.Publish(ctx, rooms, msg); err != nil {
		n.metrics.RecordNotificationFailure()
		n.logger.Warn("notification delivery failed",
			zap.String("ticket_id", event.TicketID),
			zap.String("event_type", string(event.Type)),
			zap.Strings("rooms", rooms),
			zap.Error(err))
		return nil
	}
	n.logger.Debug("notification delivered",
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)),
		zap.Strings("rooms", rooms))
	return nil
}

// RoomsFor lists the rooms an event is delivered to. Staff-only events skip
// every room a resident can be in, and reach a former assignee only while they
// still hold the ticket.
func RoomsFor(event events.Event) []string {
	rooms := []string{realtime.TicketStaffRoom(event.TicketID), realtime.AdminRoom}
	staffOnly := event.Type.StaffOnly() || event.Visibility == domain.VisibilityStaff
	if !staffOnly {
		rooms = append(rooms, realtime.TicketRoom(event.TicketID))
		if event.OwnerID != "" {
			rooms = append(rooms, realtime.UserRoom(event.OwnerID))
		}
	}
	if event.AssignedStaff != "" && (!staffOnly || event.AssignedStaff == event.Assignee) {
		rooms = append(rooms, realtime.UserRoom(event.AssignedStaff))
	}
	return rooms
}
