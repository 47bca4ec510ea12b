package domain

// ChatType mirrors the platform's chat kinds.
type ChatType string

const (
	ChatTypePrivate    ChatType = "private"
	ChatTypeGroup      ChatType = "group"
	ChatTypeSupergroup ChatType = "supergroup"
	ChatTypeChannel    ChatType = "channel"
)

// Event is a platform-neutral inbound message or service notification.
type Event struct {
	UpdateID    int64
	ChatID      int64
	ChatType    ChatType
	ThreadID    int64
	MessageID   int64
	Sender      Profile
	HasSender   bool
	Text        string
	HasContent  bool
	TopicClosed bool
}

// IsPrivate reports whether the event came from a one-to-one user chat.
func (e Event) IsPrivate() bool {
	return e.ChatType == ChatTypePrivate
}
