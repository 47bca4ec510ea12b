package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-relay/internal/domain"
	"github.com/spec-kit/support-relay/internal/service"
	"github.com/spec-kit/support-relay/internal/telegram"
)

const (
	minBackoff = time.Second
	maxBackoff = 30 * time.Second
)

// UpdateSource is the long-polling side of the bot API.
type UpdateSource interface {
	GetUpdates(ctx context.Context, offset int64, pollTimeout time.Duration) ([]telegram.Update, error)
	DeleteWebhook(ctx context.Context) error
}

// EventHandler consumes one inbound event.
type EventHandler interface {
	Handle(ctx context.Context, ev domain.Event) service.Decision
}

// UpdatePoller pulls updates and hands them to the relay one at a time, in
// delivery order.
type UpdatePoller struct {
	source      UpdateSource
	handler     EventHandler
	pollTimeout time.Duration
	logger      *zap.Logger
	offset      int64
}

// NewUpdatePoller builds a poller.
func NewUpdatePoller(source UpdateSource, handler EventHandler, pollTimeout time.Duration, logger *zap.Logger) *UpdatePoller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UpdatePoller{
		source:      source,
		handler:     handler,
		pollTimeout: pollTimeout,
		logger:      logger,
	}
}

// Run polls until ctx is cancelled. An update's offset is acknowledged
// after it has been handled, whatever the outcome.
func (p *UpdatePoller) Run(ctx context.Context) error {
	if err := p.source.DeleteWebhook(ctx); err != nil {
		p.logger.Warn("failed to delete webhook before polling", zap.Error(err))
	}
	p.logger.Info("update poller started", zap.Duration("poll_timeout", p.pollTimeout))

	backoff := minBackoff
	for {
		if ctx.Err() != nil {
			p.logger.Info("update poller stopped")
			return nil
		}

		updates, err := p.source.GetUpdates(ctx, p.offset, p.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			wait := backoff
			var apiErr *telegram.APIError
			if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
				wait = time.Duration(apiErr.RetryAfter) * time.Second
			}
			p.logger.Warn("getUpdates failed", zap.Error(err), zap.Duration("retry_in", wait))
			if !sleep(ctx, wait) {
				continue
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = minBackoff

		for _, update := range updates {
			p.dispatch(ctx, update)
			p.offset = update.UpdateID + 1
		}
	}
}

func (p *UpdatePoller) dispatch(ctx context.Context, update telegram.Update) {
	ev, ok := telegram.ToEvent(update)
	if !ok {
		p.logger.Debug("skipping unsupported update", zap.Int64("update_id", update.UpdateID))
		return
	}
	p.handler.Handle(ctx, ev)
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
