package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-relay/internal/domain"
)

// ErrTicketNotFound is returned when no ticket matches the lookup key.
var ErrTicketNotFound = errors.New("ticket not found")

// TicketRepository encapsulates ticket persistence. One row per user.
type TicketRepository interface {
	GetByUserID(ctx context.Context, userID int64) (*domain.Ticket, error)
	GetByThreadID(ctx context.Context, threadID int64) (*domain.Ticket, error)
	// Refresh rewrites the cached profile and source of an existing ticket.
	Refresh(ctx context.Context, ticket *domain.Ticket) error
	// UpsertOpen points the user's ticket at a new open thread. CreatedAt is
	// only written when the row is inserted.
	UpsertOpen(ctx context.Context, ticket *domain.Ticket) error
	// Close flips an open ticket on threadID to closed and reports whether
	// a transition happened.
	Close(ctx context.Context, userID, threadID int64, at time.Time) (bool, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `user_id, thread_id, status, display_name, source,
               first_name, last_name, username, language_code, created_at, updated_at`

func (r *ticketRepository) GetByUserID(ctx context.Context, userID int64) (*domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM tickets WHERE user_id=$1`
	return r.fetchSingle(ctx, query, userID)
}

func (r *ticketRepository) GetByThreadID(ctx context.Context, threadID int64) (*domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + `
        FROM tickets WHERE thread_id=$1
        ORDER BY (status = 'open') DESC, updated_at DESC
        LIMIT 1`
	return r.fetchSingle(ctx, query, threadID)
}

func (r *ticketRepository) Refresh(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET display_name=$2, source=$3, first_name=$4, last_name=$5,
            username=$6, language_code=$7, updated_at=GREATEST($8, created_at)
        WHERE user_id=$1
        RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query,
		ticket.UserID,
		ticket.DisplayName,
		ticket.Source,
		ticket.Profile.FirstName,
		ticket.Profile.LastName,
		ticket.Profile.Username,
		ticket.Profile.LanguageCode,
		ticket.UpdatedAt,
	).Scan(&ticket.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrTicketNotFound
	}
	return err
}

func (r *ticketRepository) UpsertOpen(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (user_id, thread_id, status, display_name, source,
            first_name, last_name, username, language_code, created_at, updated_at)
        VALUES ($1,$2,'open',$3,$4,$5,$6,$7,$8,$9,$9)
        ON CONFLICT (user_id) DO UPDATE SET
            thread_id=EXCLUDED.thread_id,
            status='open',
            display_name=EXCLUDED.display_name,
            source=EXCLUDED.source,
            first_name=EXCLUDED.first_name,
            last_name=EXCLUDED.last_name,
            username=EXCLUDED.username,
            language_code=EXCLUDED.language_code,
            updated_at=GREATEST(EXCLUDED.updated_at, tickets.created_at)
        RETURNING created_at, updated_at`
	ticket.Status = domain.TicketStatusOpen
	return r.pool.QueryRow(ctx, query,
		ticket.UserID,
		ticket.ThreadID,
		ticket.DisplayName,
		ticket.Source,
		ticket.Profile.FirstName,
		ticket.Profile.LastName,
		ticket.Profile.Username,
		ticket.Profile.LanguageCode,
		ticket.UpdatedAt,
	).Scan(&ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) Close(ctx context.Context, userID, threadID int64, at time.Time) (bool, error) {
	const query = `
        UPDATE tickets SET status='closed', updated_at=GREATEST($3, created_at)
        WHERE user_id=$1 AND thread_id=$2 AND status='open'`
	cmd, err := r.pool.Exec(ctx, query, userID, threadID, at)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&ticket.UserID,
		&ticket.ThreadID,
		&ticket.Status,
		&ticket.DisplayName,
		&ticket.Source,
		&ticket.Profile.FirstName,
		&ticket.Profile.LastName,
		&ticket.Profile.Username,
		&ticket.Profile.LanguageCode,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}
	ticket.Profile.UserID = ticket.UserID
	return &ticket, nil
}
