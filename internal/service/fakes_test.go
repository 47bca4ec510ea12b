package service

import (
	"context"
	"sync"
	"time"

	"github.com/spec-kit/support-relay/internal/domain"
	"github.com/spec-kit/support-relay/internal/repository"
)

type memoryTickets struct {
	mu      sync.Mutex
	byUser  map[int64]domain.Ticket
	failGet error
	failPut error
}

func newMemoryTickets() *memoryTickets {
	return &memoryTickets{byUser: make(map[int64]domain.Ticket)}
}

func cloneTicket(t domain.Ticket) *domain.Ticket {
	if t.ThreadID != nil {
		id := *t.ThreadID
		t.ThreadID = &id
	}
	return &t
}

func (m *memoryTickets) GetByUserID(ctx context.Context, userID int64) (*domain.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet != nil {
		return nil, m.failGet
	}
	t, ok := m.byUser[userID]
	if !ok {
		return nil, repository.ErrTicketNotFound
	}
	return cloneTicket(t), nil
}

func (m *memoryTickets) GetByThreadID(ctx context.Context, threadID int64) (*domain.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet != nil {
		return nil, m.failGet
	}
	for _, t := range m.byUser {
		if t.ThreadID != nil && *t.ThreadID == threadID {
			return cloneTicket(t), nil
		}
	}
	return nil, repository.ErrTicketNotFound
}

func (m *memoryTickets) Refresh(ctx context.Context, ticket *domain.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPut != nil {
		return m.failPut
	}
	stored, ok := m.byUser[ticket.UserID]
	if !ok {
		return repository.ErrTicketNotFound
	}
	stored.DisplayName = ticket.DisplayName
	stored.Source = ticket.Source
	stored.Profile = ticket.Profile
	stored.UpdatedAt = ticket.UpdatedAt
	m.byUser[ticket.UserID] = stored
	return nil
}

func (m *memoryTickets) UpsertOpen(ctx context.Context, ticket *domain.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPut != nil {
		return m.failPut
	}
	ticket.Status = domain.TicketStatusOpen
	if stored, ok := m.byUser[ticket.UserID]; ok {
		ticket.CreatedAt = stored.CreatedAt
	} else {
		ticket.CreatedAt = ticket.UpdatedAt
	}
	m.byUser[ticket.UserID] = *cloneTicket(*ticket)
	return nil
}

func (m *memoryTickets) Close(ctx context.Context, userID, threadID int64, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPut != nil {
		return false, m.failPut
	}
	stored, ok := m.byUser[userID]
	if !ok || stored.Thread() != threadID || stored.Status != domain.TicketStatusOpen {
		return false, nil
	}
	stored.Status = domain.TicketStatusClosed
	stored.UpdatedAt = at
	m.byUser[userID] = stored
	return true, nil
}

func (m *memoryTickets) get(userID int64) (domain.Ticket, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byUser[userID]
	return t, ok
}

func (m *memoryTickets) put(t domain.Ticket) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byUser[t.UserID] = *cloneTicket(t)
}

type memoryHistory struct {
	mu      sync.Mutex
	entries []domain.TicketHistory
}

func (m *memoryHistory) Create(ctx context.Context, history *domain.TicketHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *history)
	return nil
}

func (m *memoryHistory) ListByUser(ctx context.Context, userID int64) ([]domain.TicketHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.TicketHistory
	for _, e := range m.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

type sentText struct {
	ChatID   int64
	Text     string
	ThreadID int64
}

type copiedMessage struct {
	To, From, MessageID, ThreadID int64
}

// fakeTransport records calls. The *Fn fields override the default
// success behavior.
type fakeTransport struct {
	mu       sync.Mutex
	nextID   int64
	texts    []sentText
	copies   []copiedMessage
	titles   []string
	sendFn   func(chatID int64, text string, threadID int64) error
	copyFn   func(to, from, messageID, threadID int64) error
	createFn func(title string) (int64, error)
	// createDelay widens the race window in concurrency tests.
	createDelay time.Duration
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{nextID: 100}
}

func (f *fakeTransport) SendText(ctx context.Context, chatID int64, text string, threadID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendFn != nil {
		if err := f.sendFn(chatID, text, threadID); err != nil {
			return err
		}
	}
	f.texts = append(f.texts, sentText{ChatID: chatID, Text: text, ThreadID: threadID})
	return nil
}

func (f *fakeTransport) CopyMessage(ctx context.Context, toChatID, fromChatID, messageID, threadID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.copyFn != nil {
		if err := f.copyFn(toChatID, fromChatID, messageID, threadID); err != nil {
			return err
		}
	}
	f.copies = append(f.copies, copiedMessage{To: toChatID, From: fromChatID, MessageID: messageID, ThreadID: threadID})
	return nil
}

func (f *fakeTransport) CreateThread(ctx context.Context, hubChatID int64, title string) (int64, error) {
	if f.createDelay > 0 {
		time.Sleep(f.createDelay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createFn != nil {
		return f.createFn(title)
	}
	f.nextID++
	f.titles = append(f.titles, title)
	return f.nextID, nil
}

func (f *fakeTransport) calls() (texts []sentText, copies []copiedMessage, titles []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentText(nil), f.texts...), append([]copiedMessage(nil), f.copies...), append([]string(nil), f.titles...)
}
