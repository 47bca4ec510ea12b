package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-relay/internal/domain"
	"github.com/spec-kit/support-relay/internal/events"
	"github.com/spec-kit/support-relay/internal/locker"
	"github.com/spec-kit/support-relay/internal/repository"
	apperrors "github.com/spec-kit/support-relay/pkg/util/errorutil"
)

// TicketResolver finds or opens the hub thread for a user.
type TicketResolver struct {
	tickets       repository.TicketRepository
	history       repository.TicketHistoryRepository
	transport     Transport
	locker        locker.Locker
	dispatcher    events.Dispatcher
	logger        *zap.Logger
	hubChatID     int64
	defaultSource string
	now           func() time.Time
}

// ResolverDependencies bundles collaborators for the resolver.
type ResolverDependencies struct {
	TicketRepo    repository.TicketRepository
	HistoryRepo   repository.TicketHistoryRepository
	Transport     Transport
	Locker        locker.Locker
	Dispatcher    events.Dispatcher
	Logger        *zap.Logger
	HubChatID     int64
	DefaultSource string
	Now           func() time.Time
}

// NewTicketResolver constructs the resolver.
func NewTicketResolver(deps ResolverDependencies) *TicketResolver {
	r := &TicketResolver{
		tickets:       deps.TicketRepo,
		history:       deps.HistoryRepo,
		transport:     deps.Transport,
		locker:        deps.Locker,
		dispatcher:    deps.Dispatcher,
		logger:        deps.Logger,
		hubChatID:     deps.HubChatID,
		defaultSource: deps.DefaultSource,
		now:           deps.Now,
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// Resolve returns the user's open ticket, opening a new hub thread when the
// user has no ticket, a closed one, or one without a thread. A non-empty
// source replaces the stored one; an empty source keeps it.
func (r *TicketResolver) Resolve(ctx context.Context, profile domain.Profile, source string) (*domain.Ticket, error) {
	unlock := r.lockUser(ctx, profile.UserID)
	defer unlock()

	existing, err := r.tickets.GetByUserID(ctx, profile.UserID)
	if err != nil && !errors.Is(err, repository.ErrTicketNotFound) {
		return nil, apperrors.NewStoreError("load ticket", err, userDetails(profile.UserID))
	}

	source = strings.TrimSpace(source)
	now := r.now()

	if existing.IsActive() {
		existing.Profile = profile
		if existing.DisplayName == "" {
			existing.DisplayName = domain.FormatDisplayName(profile)
		}
		if source != "" {
			existing.Source = source
		}
		existing.UpdatedAt = now
		if err := r.tickets.Refresh(ctx, existing); err != nil {
			return nil, apperrors.NewStoreError("refresh ticket", err, userDetails(profile.UserID))
		}
		return existing, nil
	}

	return r.openThread(ctx, existing, profile, source, now)
}

func (r *TicketResolver) openThread(ctx context.Context, previous *domain.Ticket, profile domain.Profile, source string, now time.Time) (*domain.Ticket, error) {
	label := domain.FormatDisplayName(profile)

	threadID, err := r.transport.CreateThread(ctx, r.hubChatID, domain.ThreadTitle(label))
	if err != nil {
		return nil, apperrors.NewTransportError("create thread", err, userDetails(profile.UserID))
	}

	if source == "" && previous != nil {
		source = previous.Source
	}
	if source == "" {
		source = r.defaultSource
	}

	ticket := &domain.Ticket{
		UserID:      profile.UserID,
		ThreadID:    &threadID,
		Status:      domain.TicketStatusOpen,
		DisplayName: label,
		Source:      source,
		Profile:     profile,
		UpdatedAt:   now,
	}
	if err := r.tickets.UpsertOpen(ctx, ticket); err != nil {
		details := userDetails(profile.UserID)
		details["thread_id"] = threadID
		return nil, apperrors.NewStoreError("upsert ticket", err, details)
	}

	recordHistory(ctx, r.history, r.logger, &domain.TicketHistory{
		UserID:     ticket.UserID,
		ThreadID:   threadID,
		ChangeType: domain.ChangeTypeThreadOpened,
		Snapshot:   ticketSnapshot(ticket),
	})

	payload := events.TicketOpenedPayload{DisplayName: label, Source: source}
	if previous != nil {
		payload.PreviousThreadID = previous.Thread()
	}
	publishEvent(ctx, r.dispatcher, r.logger, events.Event{
		Type:     events.EventTicketOpened,
		UserID:   ticket.UserID,
		ThreadID: threadID,
		Payload:  payload,
	})
	return ticket, nil
}

// lockUser serializes resolution per user. When the lock is unavailable the
// caller proceeds unlocked; the atomic upsert still keeps one row per user.
func (r *TicketResolver) lockUser(ctx context.Context, userID int64) func() {
	if r.locker == nil {
		return func() {}
	}
	unlock, err := r.locker.Lock(ctx, "ticket:"+strconv.FormatInt(userID, 10))
	if err != nil {
		r.logger.Warn("resolving without user lock", zap.Int64("user_id", userID), zap.Error(err))
		return func() {}
	}
	return unlock
}

func userDetails(userID int64) map[string]any {
	return map[string]any{"user_id": userID}
}
