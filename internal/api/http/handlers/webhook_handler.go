package handlers

import (
	"context"
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/support-relay/internal/domain"
	"github.com/spec-kit/support-relay/internal/service"
	"github.com/spec-kit/support-relay/internal/telegram"
	apperrors "github.com/spec-kit/support-relay/pkg/util/errorutil"
)

// SecretHeader carries the token registered with setWebhook.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// EventHandler consumes one inbound event.
type EventHandler interface {
	Handle(ctx context.Context, ev domain.Event) service.Decision
}

// WebhookHandler receives pushed updates.
type WebhookHandler struct {
	relay  EventHandler
	secret string
	logger *zap.Logger
}

// NewWebhookHandler builds the handler. An empty secret disables the check.
func NewWebhookHandler(relay EventHandler, secret string, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{relay: relay, secret: secret, logger: logger}
}

// Receive handles one update. Once the update is accepted the response is
// always 200 so the platform does not redeliver it; routing failures are
// logged by the relay.
func (h *WebhookHandler) Receive(c *fiber.Ctx) error {
	if h.secret != "" {
		got := c.Get(SecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			return apperrors.NewUnauthorized("invalid webhook secret")
		}
	}

	var update telegram.Update
	if err := c.BodyParser(&update); err != nil {
		return apperrors.NewValidationError("invalid update payload", nil)
	}

	ev, ok := telegram.ToEvent(update)
	if !ok {
		h.logger.Debug("skipping unsupported update", zap.Int64("update_id", update.UpdateID))
		return c.SendStatus(fiber.StatusOK)
	}
	decision := h.relay.Handle(c.UserContext(), ev)
	return c.JSON(fiber.Map{"ok": true, "decision": decision.Kind})
}
