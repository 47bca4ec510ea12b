package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/support-relay/internal/config"
	"github.com/spec-kit/support-relay/internal/observability"
	"github.com/spec-kit/support-relay/internal/persistence"
	apperrors "github.com/spec-kit/support-relay/pkg/util/errorutil"
)

func newTestRedis(t *testing.T) *persistence.Redis {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return &persistence.Redis{Client: client}
}

func TestRelaySkipsDuplicateUpdates(t *testing.T) {
	h := newHarness(t)
	metrics := observability.NewMetrics()
	relay := NewRelay(RelayDependencies{
		Router:   h.router,
		Deduper:  newTestRedis(t),
		DedupTTL: time.Hour,
		Metrics:  metrics,
	})
	ctx := context.Background()
	ev := privateText(77, 1, ada(), "hello")

	if d := relay.Handle(ctx, ev); d.Kind != DecisionMirrorToHub {
		t.Fatalf("first delivery: %+v", d)
	}
	if d := relay.Handle(ctx, ev); d.Reason != ReasonDuplicate {
		t.Fatalf("redelivery: %+v", d)
	}
	if _, copies, _ := h.transport.calls(); len(copies) != 1 {
		t.Fatalf("expected one copy, got %d", len(copies))
	}
	if snap := metrics.Snapshot(); snap.Duplicates != 1 || snap.Decisions[string(DecisionMirrorToHub)] != 1 {
		t.Fatalf("unexpected metrics %+v", snap)
	}
}

func TestRelayWithoutRedisHandlesEveryDelivery(t *testing.T) {
	h := newHarness(t)
	dedup := persistence.NewRedis(config.RedisConfig{}, zap.NewNop())
	relay := NewRelay(RelayDependencies{Router: h.router, Deduper: dedup})
	ev := privateText(77, 1, ada(), "hello")

	relay.Handle(context.Background(), ev)
	relay.Handle(context.Background(), ev)
	if _, copies, _ := h.transport.calls(); len(copies) != 2 {
		t.Fatalf("expected both deliveries mirrored, got %d", len(copies))
	}
}

func TestRelayCountsFailuresAndKeepsGoing(t *testing.T) {
	h := newHarness(t)
	metrics := observability.NewMetrics()
	relay := NewRelay(RelayDependencies{Router: h.router, Metrics: metrics})
	h.transport.createFn = func(string) (int64, error) { return 0, errors.New("not enough rights") }

	d := relay.Handle(context.Background(), privateText(1, 1, ada(), "hello"))
	if d.Kind != DecisionMirrorToHub {
		t.Fatalf("unexpected decision %+v", d)
	}
	key := string(DecisionMirrorToHub) + "|" + apperrors.CodeTransport
	if got := metrics.Snapshot().Failures[key]; got != 1 {
		t.Fatalf("expected failure counted under %s, got %d", key, got)
	}

	h.transport.createFn = nil
	if d := relay.Handle(context.Background(), privateText(2, 2, ada(), "again")); d.Kind != DecisionMirrorToHub {
		t.Fatalf("relay stuck after failure: %+v", d)
	}
	if _, copies, _ := h.transport.calls(); len(copies) != 1 {
		t.Fatalf("second message not mirrored: %+v", copies)
	}
}

func TestRelayRecoversPanics(t *testing.T) {
	metrics := observability.NewMetrics()
	relay := NewRelay(RelayDependencies{Router: NewRouter(RouterConfig{HubChatID: hubChatID}, RouterDependencies{}), Metrics: metrics})

	// A router without a lifecycle controller panics on close.
	relay.Handle(context.Background(), hubText(1, 1, 500, "/close"))
	if got := metrics.Snapshot().Failures[string(DecisionCloseExplicit)+"|"+apperrors.CodeInternal]; got != 1 {
		t.Fatalf("panic not counted: %+v", metrics.Snapshot().Failures)
	}
}
