package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/curator-desk/internal/domain"
)

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket, first *domain.Message) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const insertTicket = `
        INSERT INTO tickets (id, chat_id, student_id, student_name, request_key)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING created_at`
		if err := tx.QueryRow(ctx, insertTicket,
			ticket.ID,
			ticket.ChatID,
			ticket.StudentID,
			ticket.StudentName,
			ticket.RequestKey,
		).Scan(&ticket.CreatedAt); err != nil {
			if pgErr, ok := pgError(err); ok && pgErr.Code == pgUniqueViolation {
				return ErrTicketExists
			}
			return fmt.Errorf("insert ticket: %w", err)
		}
		if first == nil {
			return nil
		}
		first.TicketID = ticket.ID
		if err := insertMessage(ctx, tx, first); err != nil {
			return fmt.Errorf("insert first message: %w", err)
		}
		return nil
	})
}

const selectTicket = `
        SELECT id, chat_id, student_id, student_name, request_key, card_message_id, created_at
        FROM tickets`

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	return r.get(ctx, selectTicket+` WHERE id=$1`, id)
}

func (r *ticketRepository) GetByRequestKey(ctx context.Context, key string) (*domain.Ticket, error) {
	return r.get(ctx, selectTicket+` WHERE request_key=$1`, key)
}

func (r *ticketRepository) get(ctx context.Context, query string, arg string) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&ticket.ID,
		&ticket.ChatID,
		&ticket.StudentID,
		&ticket.StudentName,
		&ticket.RequestKey,
		&ticket.CardMessageID,
		&ticket.CreatedAt,
	); err != nil {
		return nil, notFound(err)
	}
	return &ticket, nil
}

func (r *ticketRepository) SetCardMessage(ctx context.Context, ticketID, messageID string) error {
	const query = `UPDATE tickets SET card_message_id=$1 WHERE id=$2`
	cmd, err := r.pool.Exec(ctx, query, messageID, ticketID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
