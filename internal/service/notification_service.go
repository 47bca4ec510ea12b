package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/support-relay/internal/domain"
	"github.com/spec-kit/support-relay/internal/events"
	"github.com/spec-kit/support-relay/internal/repository"
)

// NotificationService turns ticket lifecycle events into audit log lines and
// keeps the mirrored message log.
type NotificationService struct {
	dispatcher events.Dispatcher
	messages   repository.MirroredMessageRepository
	logger     *zap.Logger
}

// NewNotificationService creates the service. messages may be nil.
func NewNotificationService(dispatcher events.Dispatcher, messages repository.MirroredMessageRepository, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		messages:   messages,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketOpened, n.handleTicketOpened)
	n.dispatcher.Subscribe(events.EventTicketClosed, n.handleTicketClosed)
	n.dispatcher.Subscribe(events.EventMessageMirrored, n.handleMessageMirrored)
}

func (n *NotificationService) handleTicketOpened(ctx context.Context, event events.Event) error {
	fields := []zap.Field{zap.Int64("user_id", event.UserID), zap.Int64("thread_id", event.ThreadID)}
	if payload, ok := event.Payload.(events.TicketOpenedPayload); ok {
		fields = append(fields, zap.String("source", payload.Source))
		if payload.PreviousThreadID != 0 {
			fields = append(fields, zap.Int64("previous_thread_id", payload.PreviousThreadID))
		}
	}
	n.logger.Info("TicketOpened", fields...)
	return nil
}

func (n *NotificationService) handleTicketClosed(ctx context.Context, event events.Event) error {
	fields := []zap.Field{zap.Int64("user_id", event.UserID), zap.Int64("thread_id", event.ThreadID)}
	if payload, ok := event.Payload.(events.TicketClosedPayload); ok {
		fields = append(fields, zap.Bool("explicit", payload.Explicit), zap.Bool("user_notified", payload.UserNotified))
	}
	n.logger.Info("TicketClosed", fields...)
	return nil
}

// handleMessageMirrored appends to the copy log. A failed insert is
// returned to the dispatcher, which logs it; the copy itself already happened.
func (n *NotificationService) handleMessageMirrored(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.MessageMirroredPayload)
	if !ok {
		return nil
	}
	n.logger.Debug("MessageMirrored",
		zap.Int64("user_id", event.UserID),
		zap.Int64("thread_id", event.ThreadID),
		zap.String("direction", string(payload.Direction)),
		zap.Int64("message_id", payload.MessageID))
	if n.messages == nil {
		return nil
	}
	return n.messages.Create(ctx, &domain.MirroredMessage{
		UserID:          event.UserID,
		ThreadID:        event.ThreadID,
		Direction:       payload.Direction,
		SourceMessageID: payload.MessageID,
	})
}
