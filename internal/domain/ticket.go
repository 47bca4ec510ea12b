package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen   TicketStatus = "open"
	TicketStatusClosed TicketStatus = "closed"
)

// Ticket maps one end user to their current hub thread. There is at most
// one Ticket per UserID; a closed ticket is superseded by the next open one.
type Ticket struct {
	UserID      int64
	ThreadID    *int64
	Status      TicketStatus
	DisplayName string
	Source      string
	Profile     Profile
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsActive reports whether the ticket still routes to its thread.
func (t *Ticket) IsActive() bool {
	return t != nil && t.ThreadID != nil && t.Status != TicketStatusClosed
}

// Thread returns the thread id or zero when none is assigned.
func (t *Ticket) Thread() int64 {
	if t == nil || t.ThreadID == nil {
		return 0
	}
	return *t.ThreadID
}
