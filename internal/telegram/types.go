package telegram

import "encoding/json"

// Update is one inbound Bot API update. Only message updates are routed.
type Update struct {
	UpdateID      int64    `json:"update_id"`
	Message       *Message `json:"message,omitempty"`
	EditedMessage *Message `json:"edited_message,omitempty"`
}

// User is a Telegram account.
type User struct {
	ID           int64  `json:"id"`
	IsBot        bool   `json:"is_bot"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
}

// Chat is the conversation a message belongs to.
type Chat struct {
	ID      int64  `json:"id"`
	Type    string `json:"type"`
	Title   string `json:"title,omitempty"`
	IsForum bool   `json:"is_forum,omitempty"`
}

// Message carries the fields the relay inspects. Media payloads are kept
// raw since the relay copies messages by id and only needs their presence.
type Message struct {
	MessageID        int64           `json:"message_id"`
	MessageThreadID  int64           `json:"message_thread_id,omitempty"`
	IsTopicMessage   bool            `json:"is_topic_message,omitempty"`
	From             *User           `json:"from,omitempty"`
	Chat             Chat            `json:"chat"`
	Date             int64           `json:"date"`
	Text             string          `json:"text,omitempty"`
	Caption          string          `json:"caption,omitempty"`
	Photo            json.RawMessage `json:"photo,omitempty"`
	Document         json.RawMessage `json:"document,omitempty"`
	Audio            json.RawMessage `json:"audio,omitempty"`
	Video            json.RawMessage `json:"video,omitempty"`
	Voice            json.RawMessage `json:"voice,omitempty"`
	Sticker          json.RawMessage `json:"sticker,omitempty"`
	Animation        json.RawMessage `json:"animation,omitempty"`
	ForumTopicClosed *struct{}       `json:"forum_topic_closed,omitempty"`
}

// HasContent reports whether the message carries anything a user would see.
func (m *Message) HasContent() bool {
	if m.Text != "" || m.Caption != "" {
		return true
	}
	for _, raw := range []json.RawMessage{m.Photo, m.Document, m.Audio, m.Video, m.Voice, m.Sticker, m.Animation} {
		if present(raw) {
			return true
		}
	}
	return false
}

func present(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

// ForumTopic is the result of createForumTopic.
type ForumTopic struct {
	MessageThreadID int64  `json:"message_thread_id"`
	Name            string `json:"name"`
}

// MessageID is the result of copyMessage.
type MessageID struct {
	MessageID int64 `json:"message_id"`
}

type apiResponse struct {
	OK          bool                `json:"ok"`
	Result      json.RawMessage     `json:"result,omitempty"`
	ErrorCode   int                 `json:"error_code,omitempty"`
	Description string              `json:"description,omitempty"`
	Parameters  *responseParameters `json:"parameters,omitempty"`
}

type responseParameters struct {
	RetryAfter int `json:"retry_after,omitempty"`
}
