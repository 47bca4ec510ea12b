package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-relay/internal/domain"
	"github.com/spec-kit/support-relay/internal/events"
	"github.com/spec-kit/support-relay/internal/repository"
	apperrors "github.com/spec-kit/support-relay/pkg/util/errorutil"
)

// LifecycleController closes tickets on operator command or when the hub
// topic is closed from the platform UI.
type LifecycleController struct {
	tickets      repository.TicketRepository
	history      repository.TicketHistoryRepository
	transport    Transport
	dispatcher   events.Dispatcher
	logger       *zap.Logger
	hubChatID    int64
	closeAckText string
	closedNotice string
	now          func() time.Time
}

// LifecycleDependencies bundles collaborators for the controller.
type LifecycleDependencies struct {
	TicketRepo       repository.TicketRepository
	HistoryRepo      repository.TicketHistoryRepository
	Transport        Transport
	Dispatcher       events.Dispatcher
	Logger           *zap.Logger
	HubChatID        int64
	CloseAckText     string
	ClosedNoticeText string
	Now              func() time.Time
}

// NewLifecycleController constructs the controller.
func NewLifecycleController(deps LifecycleDependencies) *LifecycleController {
	c := &LifecycleController{
		tickets:      deps.TicketRepo,
		history:      deps.HistoryRepo,
		transport:    deps.Transport,
		dispatcher:   deps.Dispatcher,
		logger:       deps.Logger,
		hubChatID:    deps.HubChatID,
		closeAckText: deps.CloseAckText,
		closedNotice: deps.ClosedNoticeText,
		now:          deps.Now,
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// CloseExplicit handles an operator's close command inside a hub thread:
// close the ticket, acknowledge in the thread, then tell the user. Neither
// message can undo the close.
func (c *LifecycleController) CloseExplicit(ctx context.Context, threadID int64) error {
	ticket, changed, err := c.close(ctx, threadID)
	if err != nil {
		return err
	}

	if err := c.transport.SendText(ctx, c.hubChatID, c.closeAckText, threadID); err != nil {
		c.logger.Warn("failed to acknowledge close in thread", zap.Int64("thread_id", threadID), zap.Error(err))
	}

	if ticket == nil {
		c.logger.Debug("close command in thread without ticket", zap.Int64("thread_id", threadID))
		return nil
	}
	if !changed {
		return nil
	}

	notified := true
	if err := c.transport.SendText(ctx, ticket.UserID, c.closedNotice, 0); err != nil {
		notified = false
		c.logger.Warn("failed to notify user about closing",
			zap.Int64("user_id", ticket.UserID),
			zap.Int64("thread_id", threadID),
			zap.Error(err))
	}
	c.publishClosed(ctx, ticket, threadID, true, notified)
	return nil
}

// CloseImplicit handles the platform's topic-closed service event. The user
// is not notified.
func (c *LifecycleController) CloseImplicit(ctx context.Context, threadID int64) error {
	ticket, changed, err := c.close(ctx, threadID)
	if err != nil {
		return err
	}
	if ticket == nil || !changed {
		return nil
	}
	c.publishClosed(ctx, ticket, threadID, false, false)
	return nil
}

// close flips the ticket on threadID to closed. It returns a nil ticket for
// unknown threads and changed=false when the ticket was already closed.
func (c *LifecycleController) close(ctx context.Context, threadID int64) (*domain.Ticket, bool, error) {
	details := map[string]any{"thread_id": threadID}

	ticket, err := c.tickets.GetByThreadID(ctx, threadID)
	if errors.Is(err, repository.ErrTicketNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperrors.NewStoreError("load ticket by thread", err, details)
	}

	now := c.now()
	changed, err := c.tickets.Close(ctx, ticket.UserID, threadID, now)
	if err != nil {
		details["user_id"] = ticket.UserID
		return nil, false, apperrors.NewStoreError("close ticket", err, details)
	}
	if changed {
		ticket.Status = domain.TicketStatusClosed
		ticket.UpdatedAt = now
	}
	return ticket, changed, nil
}

func (c *LifecycleController) publishClosed(ctx context.Context, ticket *domain.Ticket, threadID int64, explicit, notified bool) {
	snapshot := ticketSnapshot(ticket)
	snapshot["explicit"] = explicit
	recordHistory(ctx, c.history, c.logger, &domain.TicketHistory{
		UserID:     ticket.UserID,
		ThreadID:   threadID,
		ChangeType: domain.ChangeTypeTicketClosed,
		Snapshot:   snapshot,
	})
	publishEvent(ctx, c.dispatcher, c.logger, events.Event{
		Type:     events.EventTicketClosed,
		UserID:   ticket.UserID,
		ThreadID: threadID,
		Payload:  events.TicketClosedPayload{Explicit: explicit, UserNotified: notified},
	})
}
