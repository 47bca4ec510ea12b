package service

import (
	"context"
	"fmt"
	"runtime/debug"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/spec-kit/support-relay/internal/domain"
	"github.com/spec-kit/support-relay/internal/observability"
	apperrors "github.com/spec-kit/support-relay/pkg/util/errorutil"
)

// Deduper remembers delivered update ids.
type Deduper interface {
	MarkSeen(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Relay is the per-event boundary: every failure inside one event is logged
// and counted here, and never reaches the delivery loop.
type Relay struct {
	router   *Router
	dedup    Deduper
	dedupTTL time.Duration
	metrics  *observability.Metrics
	tracer   trace.Tracer
	logger   *zap.Logger
}

// RelayDependencies bundles collaborators for the relay.
type RelayDependencies struct {
	Router   *Router
	Deduper  Deduper
	DedupTTL time.Duration
	Metrics  *observability.Metrics
	Tracer   trace.Tracer
	Logger   *zap.Logger
}

// NewRelay constructs the relay.
func NewRelay(deps RelayDependencies) *Relay {
	r := &Relay{
		router:   deps.Router,
		dedup:    deps.Deduper,
		dedupTTL: deps.DedupTTL,
		metrics:  deps.Metrics,
		tracer:   deps.Tracer,
		logger:   deps.Logger,
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.tracer == nil {
		r.tracer = observability.Tracer()
	}
	return r
}

// Handle routes one event and reports the decision taken. It never fails:
// errors and panics are logged with the user and thread involved and the
// event is dropped.
func (r *Relay) Handle(ctx context.Context, ev domain.Event) (decision Decision) {
	ctx, span := r.tracer.Start(ctx, "relay.handle", trace.WithAttributes(
		attribute.Int64("relay.update_id", ev.UpdateID),
		attribute.Int64("relay.chat_id", ev.ChatID),
		attribute.Int64("relay.thread_id", ev.ThreadID),
	))
	defer span.End()

	fields := eventFields(ev)

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("panic while handling event",
				append(fields, zap.Any("panic", rec), zap.ByteString("stack", debug.Stack()))...)
			r.metrics.RecordFailure(string(decision.Kind), apperrors.CodeInternal)
			span.SetStatus(codes.Error, fmt.Sprint(rec))
		}
	}()

	if r.isDuplicate(ctx, ev, fields) {
		r.metrics.RecordDuplicate()
		return ignore(ReasonDuplicate)
	}

	decision = r.router.Classify(ev)
	decision, err := r.router.Execute(ctx, ev, decision)
	span.SetAttributes(attribute.String("relay.decision", string(decision.Kind)))
	r.metrics.RecordDecision(string(decision.Kind))
	fields = append(fields, zap.String("decision", string(decision.Kind)))

	if err != nil {
		domainErr := apperrors.ToDomainError(err)
		for key, value := range domainErr.Details {
			fields = append(fields, zap.Any("detail_"+key, value))
		}
		r.logger.Error("event dropped", append(fields, zap.String("code", domainErr.Code), zap.Error(err))...)
		r.metrics.RecordFailure(string(decision.Kind), domainErr.Code)
		span.RecordError(err)
		span.SetStatus(codes.Error, domainErr.Code)
		return decision
	}

	if decision.Kind == DecisionIgnore {
		r.logger.Debug("event ignored", append(fields, zap.String("reason", decision.Reason))...)
	}
	return decision
}

func (r *Relay) isDuplicate(ctx context.Context, ev domain.Event, fields []zap.Field) bool {
	if r.dedup == nil || ev.UpdateID == 0 {
		return false
	}
	first, err := r.dedup.MarkSeen(ctx, "relay:update:"+strconv.FormatInt(ev.UpdateID, 10), r.dedupTTL)
	if err != nil {
		r.logger.Warn("update dedup unavailable", append(fields, zap.Error(err))...)
		return false
	}
	return !first
}

func eventFields(ev domain.Event) []zap.Field {
	fields := []zap.Field{
		zap.Int64("update_id", ev.UpdateID),
		zap.Int64("chat_id", ev.ChatID),
	}
	if ev.ThreadID != 0 {
		fields = append(fields, zap.Int64("thread_id", ev.ThreadID))
	}
	if ev.HasSender {
		fields = append(fields, zap.Int64("user_id", ev.Sender.UserID))
	}
	return fields
}
