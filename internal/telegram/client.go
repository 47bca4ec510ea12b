package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Client calls the Telegram Bot API over HTTPS.
type Client struct {
	endpoint string
	timeout  time.Duration
}

// NewClient builds a client for the bot identified by token. apiURL is the
// Bot API root, normally https://api.telegram.org.
func NewClient(apiURL, token string, timeout time.Duration) *Client {
	return &Client{
		endpoint: fmt.Sprintf("%s/bot%s", apiURL, token),
		timeout:  timeout,
	}
}

// GetMe returns the bot's own account and doubles as a credential check.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var me User
	if err := c.call(ctx, "getMe", struct{}{}, &me, 0); err != nil {
		return nil, err
	}
	return &me, nil
}

// SendText posts a plain text message. A non-zero threadID targets a forum topic.
func (c *Client) SendText(ctx context.Context, chatID int64, text string, threadID int64) error {
	payload := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	if threadID != 0 {
		payload["message_thread_id"] = threadID
	}
	return c.call(ctx, "sendMessage", payload, nil, 0)
}

// CopyMessage copies a message verbatim without the forwarded-from header.
func (c *Client) CopyMessage(ctx context.Context, toChatID, fromChatID, messageID, threadID int64) error {
	payload := map[string]any{
		"chat_id":      toChatID,
		"from_chat_id": fromChatID,
		"message_id":   messageID,
	}
	if threadID != 0 {
		payload["message_thread_id"] = threadID
	}
	var copied MessageID
	return c.call(ctx, "copyMessage", payload, &copied, 0)
}

// CreateThread opens a forum topic in the hub chat and returns its thread id.
func (c *Client) CreateThread(ctx context.Context, hubChatID int64, title string) (int64, error) {
	var topic ForumTopic
	payload := map[string]any{
		"chat_id": hubChatID,
		"name":    title,
	}
	if err := c.call(ctx, "createForumTopic", payload, &topic, 0); err != nil {
		return 0, err
	}
	if topic.MessageThreadID == 0 {
		return 0, errors.New("telegram createForumTopic: empty message_thread_id")
	}
	return topic.MessageThreadID, nil
}

// GetUpdates long-polls for updates starting at offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, pollTimeout time.Duration) ([]Update, error) {
	payload := map[string]any{
		"offset":          offset,
		"timeout":         int(pollTimeout / time.Second),
		"allowed_updates": []string{"message"},
	}
	var updates []Update
	if err := c.call(ctx, "getUpdates", payload, &updates, pollTimeout); err != nil {
		return nil, err
	}
	return updates, nil
}

// SetWebhook registers the public URL Telegram should post updates to.
func (c *Client) SetWebhook(ctx context.Context, url, secret string) error {
	payload := map[string]any{
		"url":             url,
		"allowed_updates": []string{"message"},
	}
	if secret != "" {
		payload["secret_token"] = secret
	}
	return c.call(ctx, "setWebhook", payload, nil, 0)
}

// DeleteWebhook switches the bot back to getUpdates delivery.
func (c *Client) DeleteWebhook(ctx context.Context) error {
	return c.call(ctx, "deleteWebhook", map[string]any{"drop_pending_updates": false}, nil, 0)
}

// call posts payload as JSON to method and decodes the result into out.
// extra extends the request timeout, used by long polling.
func (c *Client) call(ctx context.Context, method string, payload any, out any, extra time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	agent := fiber.Post(c.endpoint + "/" + method)
	agent.JSON(payload)
	if timeout := c.requestTimeout(ctx, extra); timeout > 0 {
		agent.Timeout(timeout)
	}
	if err := agent.Parse(); err != nil {
		// Struct releases the agent; a failed Parse never gets there.
		fiber.ReleaseAgent(agent)
		return fmt.Errorf("telegram %s: %w", method, err)
	}

	var resp apiResponse
	status, _, errs := agent.Struct(&resp)
	if len(errs) > 0 {
		return fmt.Errorf("telegram %s: %w", method, errors.Join(errs...))
	}
	if !resp.OK {
		apiErr := &APIError{Method: method, Code: resp.ErrorCode, Description: resp.Description}
		if apiErr.Code == 0 {
			apiErr.Code = status
		}
		if resp.Parameters != nil {
			apiErr.RetryAfter = resp.Parameters.RetryAfter
		}
		return apiErr
	}
	if out == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("telegram %s: decode result: %w", method, err)
	}
	return nil
}

func (c *Client) requestTimeout(ctx context.Context, extra time.Duration) time.Duration {
	timeout := c.timeout
	if timeout > 0 {
		timeout += extra
	}
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if timeout == 0 || remaining < timeout {
			timeout = remaining
		}
	}
	return timeout
}
