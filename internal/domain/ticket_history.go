package domain

import "time"

// TicketChangeType captures what changed in a history entry.
type TicketChangeType string

const (
	ChangeTypeThreadOpened TicketChangeType = "THREAD_OPENED"
	ChangeTypeTicketClosed TicketChangeType = "TICKET_CLOSED"
)

// TicketHistory is an immutable audit trail entry. Closed threads stay
// discoverable here after the ticket row points at a newer thread.
type TicketHistory struct {
	ID         string
	UserID     int64
	ThreadID   int64
	ChangeType TicketChangeType
	Snapshot   map[string]any
	CreatedAt  time.Time
}
