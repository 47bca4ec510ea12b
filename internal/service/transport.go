package service

import "context"

// Transport is the subset of the messaging platform the relay drives.
// A zero threadID means "no thread".
type Transport interface {
	SendText(ctx context.Context, chatID int64, text string, threadID int64) error
	CopyMessage(ctx context.Context, toChatID, fromChatID, messageID, threadID int64) error
	CreateThread(ctx context.Context, hubChatID int64, title string) (int64, error)
}
