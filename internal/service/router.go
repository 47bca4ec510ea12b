package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/spec-kit/support-relay/internal/domain"
	"github.com/spec-kit/support-relay/internal/events"
	"github.com/spec-kit/support-relay/internal/repository"
	apperrors "github.com/spec-kit/support-relay/pkg/util/errorutil"
)

// DecisionKind names what the relay does with one inbound event.
type DecisionKind string

const (
	DecisionResolveAndAnnounce DecisionKind = "resolve_and_announce"
	DecisionMirrorToHub        DecisionKind = "mirror_to_hub"
	DecisionMirrorToUser       DecisionKind = "mirror_to_user"
	DecisionCloseExplicit      DecisionKind = "close_explicit"
	DecisionCloseImplicit      DecisionKind = "close_implicit"
	DecisionIgnore             DecisionKind = "ignore"
)

// Reasons attached to DecisionIgnore.
const (
	ReasonCommand         = "command"
	ReasonNoSender        = "no_sender"
	ReasonForeignChat     = "foreign_chat"
	ReasonNoThread        = "no_thread"
	ReasonOrphanThread    = "orphan_thread"
	ReasonTicketClosed    = "ticket_closed"
	ReasonAutomatedSender = "automated_sender"
	ReasonNoContent       = "no_content"
	ReasonDuplicate       = "duplicate_update"
	ReasonUnsupported     = "unsupported_update"
)

const (
	commandStart = "start"
	commandClose = "close"
)

// Decision is the outcome of classifying an event.
type Decision struct {
	Kind     DecisionKind
	Reason   string
	Source   string
	ThreadID int64
}

func ignore(reason string) Decision {
	return Decision{Kind: DecisionIgnore, Reason: reason}
}

// RouterConfig holds the routing knobs.
type RouterConfig struct {
	HubChatID     int64
	AutoReplyText string
	CommandPrefix string
	// BotUsername, when set, makes "/cmd@OtherBot" count as a foreign command.
	BotUsername string
}

// Router classifies inbound events and performs the matching action.
type Router struct {
	cfg        RouterConfig
	resolver   *TicketResolver
	lifecycle  *LifecycleController
	tickets    repository.TicketRepository
	transport  Transport
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// RouterDependencies bundles collaborators for the router.
type RouterDependencies struct {
	Resolver   *TicketResolver
	Lifecycle  *LifecycleController
	TicketRepo repository.TicketRepository
	Transport  Transport
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewRouter constructs the router.
func NewRouter(cfg RouterConfig, deps RouterDependencies) *Router {
	if cfg.CommandPrefix == "" {
		cfg.CommandPrefix = "/"
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		cfg:        cfg,
		resolver:   deps.Resolver,
		lifecycle:  deps.Lifecycle,
		tickets:    deps.TicketRepo,
		transport:  deps.Transport,
		dispatcher: deps.Dispatcher,
		logger:     logger,
	}
}

// Classify decides what to do with ev without any I/O. Hub messages that
// pass classification may still be ignored by Route once the ticket for the
// thread is looked up.
func (r *Router) Classify(ev domain.Event) Decision {
	if ev.IsPrivate() {
		if !ev.HasSender {
			return ignore(ReasonNoSender)
		}
		if name, arg, ok := r.parseCommand(ev.Text); ok {
			if name == commandStart {
				return Decision{Kind: DecisionResolveAndAnnounce, Source: arg}
			}
			return ignore(ReasonCommand)
		}
		return Decision{Kind: DecisionMirrorToHub}
	}

	if ev.ChatID != r.cfg.HubChatID {
		return ignore(ReasonForeignChat)
	}

	if ev.TopicClosed {
		if ev.ThreadID == 0 {
			return ignore(ReasonNoThread)
		}
		return Decision{Kind: DecisionCloseImplicit, ThreadID: ev.ThreadID}
	}

	// Only /close is consumed in the hub; any other text starting with the
	// prefix is an ordinary operator reply.
	if name, _, ok := r.parseCommand(ev.Text); ok && name == commandClose {
		if ev.ThreadID == 0 {
			return ignore(ReasonNoThread)
		}
		return Decision{Kind: DecisionCloseExplicit, ThreadID: ev.ThreadID}
	}

	if ev.ThreadID == 0 {
		return ignore(ReasonNoThread)
	}
	if ev.HasSender && ev.Sender.IsBot {
		return ignore(ReasonAutomatedSender)
	}
	if !ev.HasContent {
		return ignore(ReasonNoContent)
	}
	return Decision{Kind: DecisionMirrorToUser, ThreadID: ev.ThreadID}
}

// Route classifies ev and performs the decided action. The returned
// Decision reflects the final outcome, including late ignores.
func (r *Router) Route(ctx context.Context, ev domain.Event) (Decision, error) {
	return r.Execute(ctx, ev, r.Classify(ev))
}

// Execute performs a decision previously returned by Classify for ev.
func (r *Router) Execute(ctx context.Context, ev domain.Event, decision Decision) (Decision, error) {
	var err error
	switch decision.Kind {
	case DecisionResolveAndAnnounce:
		err = r.startDialog(ctx, ev, decision.Source)
	case DecisionMirrorToHub:
		err = r.mirrorToHub(ctx, ev)
	case DecisionMirrorToUser:
		decision, err = r.mirrorToUser(ctx, ev, decision)
	case DecisionCloseExplicit:
		err = r.lifecycle.CloseExplicit(ctx, decision.ThreadID)
	case DecisionCloseImplicit:
		err = r.lifecycle.CloseImplicit(ctx, decision.ThreadID)
	}
	return decision, err
}

func (r *Router) startDialog(ctx context.Context, ev domain.Event, source string) error {
	ticket, err := r.resolver.Resolve(ctx, ev.Sender, source)
	if err != nil {
		return err
	}

	var errs []error
	if err := r.transport.SendText(ctx, ev.ChatID, r.cfg.AutoReplyText, 0); err != nil {
		errs = append(errs, apperrors.NewTransportError("send auto-reply", err, userDetails(ticket.UserID)))
	}
	if err := r.transport.SendText(ctx, r.cfg.HubChatID, announcement(ev.Sender, ticket.Source), ticket.Thread()); err != nil {
		details := userDetails(ticket.UserID)
		details["thread_id"] = ticket.Thread()
		errs = append(errs, apperrors.NewTransportError("announce dialog", err, details))
	}
	return errors.Join(errs...)
}

func (r *Router) mirrorToHub(ctx context.Context, ev domain.Event) error {
	ticket, err := r.resolver.Resolve(ctx, ev.Sender, "")
	if err != nil {
		return err
	}
	threadID := ticket.Thread()
	if err := r.transport.CopyMessage(ctx, r.cfg.HubChatID, ev.ChatID, ev.MessageID, threadID); err != nil {
		details := userDetails(ticket.UserID)
		details["thread_id"] = threadID
		return apperrors.NewTransportError("copy message to hub", err, details)
	}
	r.publishMirrored(ctx, ticket.UserID, threadID, ev.MessageID, domain.MirrorToHub)
	return nil
}

func (r *Router) mirrorToUser(ctx context.Context, ev domain.Event, decision Decision) (Decision, error) {
	ticket, err := r.tickets.GetByThreadID(ctx, decision.ThreadID)
	if errors.Is(err, repository.ErrTicketNotFound) {
		return ignore(ReasonOrphanThread), nil
	}
	if err != nil {
		return decision, apperrors.NewStoreError("load ticket by thread", err, map[string]any{"thread_id": decision.ThreadID})
	}
	if !ticket.IsActive() || ticket.Thread() != decision.ThreadID {
		return ignore(ReasonTicketClosed), nil
	}

	if err := r.transport.CopyMessage(ctx, ticket.UserID, r.cfg.HubChatID, ev.MessageID, 0); err != nil {
		details := userDetails(ticket.UserID)
		details["thread_id"] = decision.ThreadID
		return decision, apperrors.NewTransportError("copy message to user", err, details)
	}
	r.publishMirrored(ctx, ticket.UserID, decision.ThreadID, ev.MessageID, domain.MirrorToUser)
	return decision, nil
}

func (r *Router) publishMirrored(ctx context.Context, userID, threadID, messageID int64, direction domain.MirrorDirection) {
	publishEvent(ctx, r.dispatcher, r.logger, events.Event{
		Type:     events.EventMessageMirrored,
		UserID:   userID,
		ThreadID: threadID,
		Payload:  events.MessageMirroredPayload{Direction: direction, MessageID: messageID},
	})
}

// parseCommand splits "/name@bot arg..." into name and arg. ok is true for
// any text starting with the prefix; commands addressed to another bot come
// back with an empty name.
func (r *Router) parseCommand(text string) (name, arg string, ok bool) {
	if !strings.HasPrefix(text, r.cfg.CommandPrefix) {
		return "", "", false
	}
	head, rest := strings.TrimPrefix(text, r.cfg.CommandPrefix), ""
	if i := strings.IndexFunc(head, unicode.IsSpace); i >= 0 {
		head, rest = head[:i], head[i:]
	}
	name, target, addressed := strings.Cut(head, "@")
	if addressed && r.cfg.BotUsername != "" && !strings.EqualFold(target, r.cfg.BotUsername) {
		return "", "", true
	}
	return strings.ToLower(name), strings.TrimSpace(rest), true
}

// announcement is the hub-side header posted when a user starts a dialog.
func announcement(p domain.Profile, source string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🆕 New dialog: %s\n", domain.FormatDisplayName(p))
	fmt.Fprintf(&b, "ID: %d", p.UserID)
	if p.Username != "" {
		fmt.Fprintf(&b, " | @%s", p.Username)
	}
	fmt.Fprintf(&b, "\nSource: %s", source)
	return b.String()
}
