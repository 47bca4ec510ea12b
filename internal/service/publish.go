package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/support-relay/internal/domain"
	"github.com/spec-kit/support-relay/internal/events"
	"github.com/spec-kit/support-relay/internal/repository"
)

func publishEvent(ctx context.Context, dispatcher events.Dispatcher, logger *zap.Logger, event events.Event) {
	if dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if err := dispatcher.Publish(ctx, event); err != nil {
		logger.Warn("event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.Int64("user_id", event.UserID),
			zap.Error(err))
	}
}

// recordHistory is best-effort: the audit trail never fails a routing step.
func recordHistory(ctx context.Context, history repository.TicketHistoryRepository, logger *zap.Logger, entry *domain.TicketHistory) {
	if history == nil {
		return
	}
	if err := history.Create(ctx, entry); err != nil {
		logger.Warn("failed to record ticket history",
			zap.Int64("user_id", entry.UserID),
			zap.Int64("thread_id", entry.ThreadID),
			zap.String("change_type", string(entry.ChangeType)),
			zap.Error(err))
	}
}

func ticketSnapshot(t *domain.Ticket) map[string]any {
	return map[string]any{
		"status":       string(t.Status),
		"source":       t.Source,
		"display_name": t.DisplayName,
	}
}
