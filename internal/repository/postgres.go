package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"

	constraintActionSeq        = "action_log_ticket_seq_key"
	constraintActionRequestKey = "action_log_request_key_key"
)

// NewPostgresStore builds the pgx-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *Store {
	return &Store{
		Tickets:  NewTicketRepository(pool),
		Actions:  NewActionLogRepository(pool),
		Messages: NewMessageRepository(pool),
		Curators: NewCuratorRepository(pool),
		Ping: func(ctx context.Context) error {
			if pool == nil {
				return errors.New("postgres pool not configured")
			}
			return pool.Ping(ctx)
		},
	}
}

func pgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
