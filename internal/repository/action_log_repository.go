package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/curator-desk/internal/domain"
)

type actionLogRepository struct {
	pool *pgxpool.Pool
}

// NewActionLogRepository builds repository.
func NewActionLogRepository(pool *pgxpool.Pool) ActionLogRepository {
	return &actionLogRepository{pool: pool}
}

// Append inserts only while the ticket's highest seq equals expectedSeq; the
// (ticket_id, seq) primary key rejects a concurrent writer that passed the
// same check. created_at never goes backwards within a ticket.
func (r *actionLogRepository) Append(ctx context.Context, entry *domain.ActionLogEntry, expectedSeq int64) error {
	const query = `
        INSERT INTO action_log (id, ticket_id, seq, curator_id, action, prior_curator_id, target_curator_id, request_key, created_at)
        SELECT $1, $2, $3, $4, $5, $6, $7, $8,
               GREATEST(clock_timestamp(), COALESCE(MAX(created_at), '-infinity'::timestamptz))
        FROM action_log WHERE ticket_id = $2
        HAVING COALESCE(MAX(seq), 0) = $9
        RETURNING created_at`

	id := uuid.NewString()
	seq := expectedSeq + 1
	err := r.pool.QueryRow(ctx, query,
		id,
		entry.TicketID,
		seq,
		entry.CuratorID,
		entry.Action,
		entry.PriorCuratorID,
		entry.TargetCuratorID,
		entry.RequestKey,
		expectedSeq,
	).Scan(&entry.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAppendConflict
		}
		if pgErr, ok := pgError(err); ok {
			switch {
			case pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == constraintActionRequestKey:
				return ErrDuplicateRequest
			case pgErr.Code == pgUniqueViolation:
				return ErrAppendConflict
			case pgErr.Code == pgForeignKeyViolation:
				return ErrNotFound
			}
		}
		return err
	}
	entry.ID = id
	entry.Seq = seq
	return nil
}

func (r *actionLogRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.ActionLogEntry, error) {
	const query = `
        SELECT id, ticket_id, seq, curator_id, action, prior_curator_id, target_curator_id, request_key, created_at
        FROM action_log WHERE ticket_id=$1 ORDER BY seq ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ActionLogEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *entry)
	}
	return result, rows.Err()
}

func (r *actionLogRepository) GetByRequestKey(ctx context.Context, key string) (*domain.ActionLogEntry, error) {
	const query = `
        SELECT id, ticket_id, seq, curator_id, action, prior_curator_id, target_curator_id, request_key, created_at
        FROM action_log WHERE request_key=$1`
	entry, err := scanEntry(r.pool.QueryRow(ctx, query, key))
	if err != nil {
		return nil, notFound(err)
	}
	return entry, nil
}

func scanEntry(row pgx.Row) (*domain.ActionLogEntry, error) {
	var entry domain.ActionLogEntry
	if err := row.Scan(
		&entry.ID,
		&entry.TicketID,
		&entry.Seq,
		&entry.CuratorID,
		&entry.Action,
		&entry.PriorCuratorID,
		&entry.TargetCuratorID,
		&entry.RequestKey,
		&entry.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &entry, nil
}
