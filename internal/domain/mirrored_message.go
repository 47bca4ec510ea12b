package domain

import "time"

// MirrorDirection says which side of the bridge received a copy.
type MirrorDirection string

const (
	MirrorToHub  MirrorDirection = "to_hub"
	MirrorToUser MirrorDirection = "to_user"
)

// MirroredMessage logs one message copied across the bridge. Content is not
// stored; SourceMessageID points at the original in its chat.
type MirroredMessage struct {
	ID              int64
	UserID          int64
	ThreadID        int64
	Direction       MirrorDirection
	SourceMessageID int64
	CreatedAt       time.Time
}
