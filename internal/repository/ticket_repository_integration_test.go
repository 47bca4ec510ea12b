package repository

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/spec-kit/support-relay/internal/domain"
	"github.com/spec-kit/support-relay/internal/persistence"
)

func setupTestPool(t *testing.T, ctx context.Context) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	if err := persistence.RunMigrations(ctx, pool, filepath.Join("..", "..", "migrations"), zap.NewNop()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return pool
}

func TestTicketRepositoryLifecycle(t *testing.T) {
	ctx := context.Background()
	pool := setupTestPool(t, ctx)
	repo := NewTicketRepository(pool)
	history := NewTicketHistoryRepository(pool)

	userID := rand.Int63n(1<<40) + 1
	threadA := rand.Int63n(1<<40) + 1
	threadB := threadA + 1
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM tickets WHERE user_id=$1`, userID)
		_, _ = pool.Exec(context.Background(), `DELETE FROM ticket_history WHERE user_id=$1`, userID)
	})

	if _, err := repo.GetByUserID(ctx, userID); !errors.Is(err, ErrTicketNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	first := time.Now().UTC().Truncate(time.Millisecond)
	ticket := &domain.Ticket{
		UserID:      userID,
		ThreadID:    &threadA,
		DisplayName: "Ada",
		Source:      "landing",
		Profile:     domain.Profile{UserID: userID, FirstName: "Ada"},
		UpdatedAt:   first,
	}
	if err := repo.UpsertOpen(ctx, ticket); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	createdAt := ticket.CreatedAt

	closed, err := repo.Close(ctx, userID, threadA, first.Add(time.Second))
	if err != nil || !closed {
		t.Fatalf("close: %v %v", closed, err)
	}
	again, err := repo.Close(ctx, userID, threadA, first.Add(2*time.Second))
	if err != nil || again {
		t.Fatalf("second close should be a no-op: %v %v", again, err)
	}
	if err := history.Create(ctx, &domain.TicketHistory{UserID: userID, ThreadID: threadA, ChangeType: domain.ChangeTypeTicketClosed}); err != nil {
		t.Fatalf("history: %v", err)
	}

	reopened := &domain.Ticket{
		UserID:      userID,
		ThreadID:    &threadB,
		DisplayName: "Ada",
		Source:      "landing",
		Profile:     domain.Profile{UserID: userID, FirstName: "Ada", Username: "ada"},
		UpdatedAt:   first.Add(3 * time.Second),
	}
	if err := repo.UpsertOpen(ctx, reopened); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if !reopened.CreatedAt.Equal(createdAt) {
		t.Fatalf("created_at overwritten: %v != %v", reopened.CreatedAt, createdAt)
	}

	got, err := repo.GetByThreadID(ctx, threadB)
	if err != nil {
		t.Fatalf("get by thread: %v", err)
	}
	if got.UserID != userID || got.Status != domain.TicketStatusOpen || got.Profile.Username != "ada" {
		t.Fatalf("unexpected ticket %+v", got)
	}

	entries, err := history.ListByUser(ctx, userID)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(entries) != 1 || entries[0].ThreadID != threadA {
		t.Fatalf("unexpected history %+v", entries)
	}
}

func TestMirroredMessageRepository(t *testing.T) {
	ctx := context.Background()
	pool := setupTestPool(t, ctx)
	repo := NewMirroredMessageRepository(pool)

	threadID := rand.Int63n(1<<40) + 1
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM mirrored_messages WHERE thread_id=$1`, threadID)
	})

	for i, dir := range []domain.MirrorDirection{domain.MirrorToHub, domain.MirrorToUser} {
		msg := &domain.MirroredMessage{UserID: 1, ThreadID: threadID, Direction: dir, SourceMessageID: int64(i + 1)}
		if err := repo.Create(ctx, msg); err != nil {
			t.Fatalf("create: %v", err)
		}
		if msg.ID == 0 || msg.CreatedAt.IsZero() {
			t.Fatalf("returning columns not scanned: %+v", msg)
		}
	}

	got, err := repo.ListByThread(ctx, threadID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].Direction != domain.MirrorToHub || got[1].SourceMessageID != 2 {
		t.Fatalf("unexpected log %+v", got)
	}
}
