package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-relay/internal/domain"
)

// TicketHistoryRepository stores audit entries.
type TicketHistoryRepository interface {
	Create(ctx context.Context, history *domain.TicketHistory) error
	ListByUser(ctx context.Context, userID int64) ([]domain.TicketHistory, error)
}

type ticketHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewTicketHistoryRepository builds repository.
func NewTicketHistoryRepository(pool *pgxpool.Pool) TicketHistoryRepository {
	return &ticketHistoryRepository{pool: pool}
}

func (r *ticketHistoryRepository) Create(ctx context.Context, history *domain.TicketHistory) error {
	if history.ID == "" {
		history.ID = uuid.NewString()
	}
	if history.Snapshot == nil {
		history.Snapshot = map[string]any{}
	}
	const query = `
        INSERT INTO ticket_history (id, user_id, thread_id, change_type, snapshot)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING created_at`
	return r.pool.QueryRow(ctx, query,
		history.ID,
		history.UserID,
		history.ThreadID,
		history.ChangeType,
		history.Snapshot,
	).Scan(&history.CreatedAt)
}

func (r *ticketHistoryRepository) ListByUser(ctx context.Context, userID int64) ([]domain.TicketHistory, error) {
	const query = `
        SELECT id, user_id, thread_id, change_type, snapshot, created_at
        FROM ticket_history WHERE user_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketHistory
	for rows.Next() {
		var history domain.TicketHistory
		if err := rows.Scan(
			&history.ID,
			&history.UserID,
			&history.ThreadID,
			&history.ChangeType,
			&history.Snapshot,
			&history.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, history)
	}
	return result, rows.Err()
}
