package events

import (
	"time"

	"github.com/spec-kit/support-relay/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketOpened    EventType = "ticket_opened"
	EventTicketClosed    EventType = "ticket_closed"
	EventMessageMirrored EventType = "message_mirrored"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	UserID    int64       `json:"user_id"`
	ThreadID  int64       `json:"thread_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketOpenedPayload payload.
type TicketOpenedPayload struct {
	DisplayName      string `json:"display_name"`
	Source           string `json:"source"`
	PreviousThreadID int64  `json:"previous_thread_id,omitempty"`
}

// TicketClosedPayload payload.
type TicketClosedPayload struct {
	Explicit     bool `json:"explicit"`
	UserNotified bool `json:"user_notified"`
}

// MessageMirroredPayload payload.
type MessageMirroredPayload struct {
	Direction domain.MirrorDirection `json:"direction"`
	MessageID int64                  `json:"message_id"`
}
