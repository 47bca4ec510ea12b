package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/support-relay/internal/domain"
	"github.com/spec-kit/support-relay/internal/events"
	"github.com/spec-kit/support-relay/internal/locker"
)

const (
	hubChatID     = int64(-1001)
	autoReplyText = "Thanks, we will answer here."
	closeAckText  = "Dialog closed ✅"
	closedNotice  = "Your dialog was closed."
)

type harness struct {
	tickets   *memoryTickets
	history   *memoryHistory
	transport *fakeTransport
	resolver  *TicketResolver
	lifecycle *LifecycleController
	router    *Router

	mu        sync.Mutex
	published []events.Event
	clock     time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		tickets:   newMemoryTickets(),
		history:   &memoryHistory{},
		transport: newFakeTransport(),
		clock:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	now := func() time.Time {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.clock = h.clock.Add(time.Second)
		return h.clock
	}

	dispatcher := events.NewInMemoryDispatcher()
	record := func(_ context.Context, e events.Event) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.published = append(h.published, e)
		return nil
	}
	dispatcher.Subscribe(events.EventTicketOpened, record)
	dispatcher.Subscribe(events.EventTicketClosed, record)
	dispatcher.Subscribe(events.EventMessageMirrored, record)

	h.resolver = NewTicketResolver(ResolverDependencies{
		TicketRepo:    h.tickets,
		HistoryRepo:   h.history,
		Transport:     h.transport,
		Locker:        locker.NewMemoryLocker(time.Second),
		Dispatcher:    dispatcher,
		HubChatID:     hubChatID,
		DefaultSource: "app",
		Now:           now,
	})
	h.lifecycle = NewLifecycleController(LifecycleDependencies{
		TicketRepo:       h.tickets,
		HistoryRepo:      h.history,
		Transport:        h.transport,
		Dispatcher:       dispatcher,
		HubChatID:        hubChatID,
		CloseAckText:     closeAckText,
		ClosedNoticeText: closedNotice,
		Now:              now,
	})
	h.router = NewRouter(RouterConfig{
		HubChatID:     hubChatID,
		AutoReplyText: autoReplyText,
		BotUsername:   "relay_bot",
	}, RouterDependencies{
		Resolver:   h.resolver,
		Lifecycle:  h.lifecycle,
		TicketRepo: h.tickets,
		Transport:  h.transport,
		Dispatcher: dispatcher,
	})
	return h
}

func (h *harness) emitted(kind events.EventType) []events.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []events.Event
	for _, e := range h.published {
		if e.Type == kind {
			out = append(out, e)
		}
	}
	return out
}

func ada() domain.Profile {
	return domain.Profile{UserID: 42, FirstName: "Ada", LastName: "Lovelace", Username: "ada"}
}

func privateText(updateID, messageID int64, from domain.Profile, text string) domain.Event {
	return domain.Event{
		UpdateID:   updateID,
		ChatID:     from.UserID,
		ChatType:   domain.ChatTypePrivate,
		MessageID:  messageID,
		Sender:     from,
		HasSender:  true,
		Text:       text,
		HasContent: true,
	}
}

func privateMedia(updateID, messageID int64, from domain.Profile) domain.Event {
	return privateText(updateID, messageID, from, "")
}

func hubText(updateID, messageID, threadID int64, text string) domain.Event {
	return domain.Event{
		UpdateID:   updateID,
		ChatID:     hubChatID,
		ChatType:   domain.ChatTypeSupergroup,
		ThreadID:   threadID,
		MessageID:  messageID,
		Sender:     domain.Profile{UserID: 7, FirstName: "Operator"},
		HasSender:  true,
		Text:       text,
		HasContent: true,
	}
}

func topicClosed(updateID, threadID int64) domain.Event {
	return domain.Event{
		UpdateID:    updateID,
		ChatID:      hubChatID,
		ChatType:    domain.ChatTypeSupergroup,
		ThreadID:    threadID,
		Sender:      domain.Profile{UserID: 7, FirstName: "Operator"},
		HasSender:   true,
		TopicClosed: true,
	}
}
