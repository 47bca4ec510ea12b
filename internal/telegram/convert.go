package telegram

import "github.com/spec-kit/support-relay/internal/domain"

// ToEvent converts an update into a routing event. Updates without a new
// message (edits, callbacks, membership changes) report false.
func ToEvent(u Update) (domain.Event, bool) {
	msg := u.Message
	if msg == nil {
		return domain.Event{UpdateID: u.UpdateID}, false
	}

	ev := domain.Event{
		UpdateID:    u.UpdateID,
		ChatID:      msg.Chat.ID,
		ChatType:    domain.ChatType(msg.Chat.Type),
		MessageID:   msg.MessageID,
		Text:        msg.Text,
		HasContent:  msg.HasContent(),
		TopicClosed: msg.ForumTopicClosed != nil,
	}
	if msg.IsTopicMessage || msg.ForumTopicClosed != nil {
		ev.ThreadID = msg.MessageThreadID
	}
	if msg.From != nil {
		ev.HasSender = true
		ev.Sender = domain.Profile{
			UserID:       msg.From.ID,
			FirstName:    msg.From.FirstName,
			LastName:     msg.From.LastName,
			Username:     msg.From.Username,
			LanguageCode: msg.From.LanguageCode,
			IsBot:        msg.From.IsBot,
		}
	}
	return ev, true
}
