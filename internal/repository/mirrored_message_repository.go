package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-relay/internal/domain"
)

// MirroredMessageRepository keeps the per-thread copy log.
type MirroredMessageRepository interface {
	Create(ctx context.Context, msg *domain.MirroredMessage) error
	ListByThread(ctx context.Context, threadID int64) ([]domain.MirroredMessage, error)
}

type mirroredMessageRepository struct {
	pool *pgxpool.Pool
}

// NewMirroredMessageRepository builds repository.
func NewMirroredMessageRepository(pool *pgxpool.Pool) MirroredMessageRepository {
	return &mirroredMessageRepository{pool: pool}
}

func (r *mirroredMessageRepository) Create(ctx context.Context, msg *domain.MirroredMessage) error {
	const query = `
        INSERT INTO mirrored_messages (user_id, thread_id, direction, source_message_id)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		msg.UserID,
		msg.ThreadID,
		msg.Direction,
		msg.SourceMessageID,
	).Scan(&msg.ID, &msg.CreatedAt)
}

func (r *mirroredMessageRepository) ListByThread(ctx context.Context, threadID int64) ([]domain.MirroredMessage, error) {
	const query = `
        SELECT id, user_id, thread_id, direction, source_message_id, created_at
        FROM mirrored_messages WHERE thread_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, threadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.MirroredMessage
	for rows.Next() {
		var msg domain.MirroredMessage
		if err := rows.Scan(
			&msg.ID,
			&msg.UserID,
			&msg.ThreadID,
			&msg.Direction,
			&msg.SourceMessageID,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}
