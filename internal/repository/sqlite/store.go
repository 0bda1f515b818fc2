// Package sqlite implements the repositories on modernc.org/sqlite for
// single-instance deployments. The database must be opened with a single
// connection; appends run in a transaction that re-checks the latest seq.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/spec-kit/curator-desk/internal/domain"
	"github.com/spec-kit/curator-desk/internal/repository"
)

// NewStore builds the sqlite-backed store.
func NewStore(db *sql.DB) *repository.Store {
	return &repository.Store{
		Tickets:  &ticketStore{db: db},
		Actions:  &actionStore{db: db},
		Messages: &messageStore{db: db},
		Curators: &curatorStore{db: db},
		Ping:     db.PingContext,
	}
}

func nowMs() int64 { return time.Now().UTC().UnixMilli() }

func fromMs(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func constraintErr(err error) (int, string, bool) {
	var sqlErr *msqlite.Error
	if errors.As(err, &sqlErr) {
		return sqlErr.Code(), sqlErr.Error(), true
	}
	return 0, "", false
}

// isUnique matches unique and primary key violations, optionally on a given
// "table.column" appearing in the sqlite message.
func isUnique(err error, column string) bool {
	code, msg, ok := constraintErr(err)
	if !ok || code&0xff != sqlite3.SQLITE_CONSTRAINT {
		return false
	}
	if !strings.Contains(msg, "UNIQUE constraint failed") {
		return false
	}
	return column == "" || strings.Contains(msg, column)
}

func isForeignKey(err error) bool {
	code, msg, ok := constraintErr(err)
	return ok && code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(msg, "FOREIGN KEY constraint failed")
}

type ticketStore struct {
	db *sql.DB
}

func (s *ticketStore) Create(ctx context.Context, ticket *domain.Ticket, first *domain.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	created := nowMs()
	if _, err := tx.ExecContext(ctx, `
INSERT INTO tickets(id, chat_id, student_id, student_name, request_key, created_at_ms)
VALUES (?, ?, ?, ?, ?, ?);
`, ticket.ID, ticket.ChatID, ticket.StudentID, ticket.StudentName, ticket.RequestKey, created); err != nil {
		if isUnique(err, "tickets.") {
			return repository.ErrTicketExists
		}
		return fmt.Errorf("insert ticket: %w", err)
	}
	if first != nil {
		first.TicketID = ticket.ID
		if err := insertMessage(ctx, tx, first, created); err != nil {
			return fmt.Errorf("insert first message: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ticket: %w", err)
	}
	ticket.CreatedAt = fromMs(created)
	return nil
}

func (s *ticketStore) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	return s.get(ctx, `WHERE id = ?`, id)
}

func (s *ticketStore) GetByRequestKey(ctx context.Context, key string) (*domain.Ticket, error) {
	return s.get(ctx, `WHERE request_key = ?`, key)
}

func (s *ticketStore) get(ctx context.Context, where string, arg string) (*domain.Ticket, error) {
	var (
		ticket  domain.Ticket
		key     sql.NullString
		card    sql.NullString
		created int64
	)
	err := s.db.QueryRowContext(ctx, `
SELECT id, chat_id, student_id, student_name, request_key, card_message_id, created_at_ms
FROM tickets `+where+`;
`, arg).Scan(&ticket.ID, &ticket.ChatID, &ticket.StudentID, &ticket.StudentName, &key, &card, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	if key.Valid {
		ticket.RequestKey = &key.String
	}
	if card.Valid {
		ticket.CardMessageID = &card.String
	}
	ticket.CreatedAt = fromMs(created)
	return &ticket, nil
}

func (s *ticketStore) SetCardMessage(ctx context.Context, ticketID, messageID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE tickets SET card_message_id = ? WHERE id = ?;`, messageID, ticketID)
	if err != nil {
		return fmt.Errorf("set card message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

type actionStore struct {
	db *sql.DB
}

func (s *actionStore) Append(ctx context.Context, entry *domain.ActionLogEntry, expectedSeq int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		latest   int64
		latestAt int64
	)
	if err := tx.QueryRowContext(ctx, `
SELECT COALESCE(MAX(seq), 0), COALESCE(MAX(created_at_ms), 0)
FROM action_log WHERE ticket_id = ?;
`, entry.TicketID).Scan(&latest, &latestAt); err != nil {
		return fmt.Errorf("read latest seq: %w", err)
	}
	if latest != expectedSeq {
		return repository.ErrAppendConflict
	}

	at := nowMs()
	if at < latestAt {
		at = latestAt
	}
	id := uuid.NewString()
	seq := expectedSeq + 1
	if _, err := tx.ExecContext(ctx, `
INSERT INTO action_log(id, ticket_id, seq, curator_id, action, prior_curator_id, target_curator_id, request_key, created_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);
`, id, entry.TicketID, seq, entry.CuratorID, string(entry.Action), entry.PriorCuratorID, entry.TargetCuratorID, entry.RequestKey, at); err != nil {
		switch {
		case isUnique(err, "action_log.request_key"):
			return repository.ErrDuplicateRequest
		case isUnique(err, ""):
			return repository.ErrAppendConflict
		case isForeignKey(err):
			return repository.ErrNotFound
		}
		return fmt.Errorf("insert action: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit action: %w", err)
	}

	entry.ID = id
	entry.Seq = seq
	entry.CreatedAt = fromMs(at)
	return nil
}

const selectEntry = `
SELECT id, ticket_id, seq, curator_id, action, prior_curator_id, target_curator_id, request_key, created_at_ms
FROM action_log`

func (s *actionStore) ListByTicket(ctx context.Context, ticketID string) ([]domain.ActionLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, selectEntry+` WHERE ticket_id = ? ORDER BY seq ASC;`, ticketID)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	defer rows.Close()

	var out []domain.ActionLogEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *entry)
	}
	return out, rows.Err()
}

func (s *actionStore) GetByRequestKey(ctx context.Context, key string) (*domain.ActionLogEntry, error) {
	entry, err := scanEntry(s.db.QueryRowContext(ctx, selectEntry+` WHERE request_key = ?;`, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	return entry, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*domain.ActionLogEntry, error) {
	var (
		entry                          domain.ActionLogEntry
		action                         string
		curator, prior, target, reqKey sql.NullString
		created                        int64
	)
	if err := row.Scan(&entry.ID, &entry.TicketID, &entry.Seq, &curator, &action, &prior, &target, &reqKey, &created); err != nil {
		return nil, err
	}
	entry.Action = domain.ActionType(action)
	entry.CuratorID = nullable(curator)
	entry.PriorCuratorID = nullable(prior)
	entry.TargetCuratorID = nullable(target)
	entry.RequestKey = nullable(reqKey)
	entry.CreatedAt = fromMs(created)
	return &entry, nil
}

func nullable(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

type messageStore struct {
	db *sql.DB
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertMessage(ctx context.Context, db execer, msg *domain.Message, at int64) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if _, err := db.ExecContext(ctx, `
INSERT INTO messages(id, ticket_id, sender_id, sender_role, body, created_at_ms)
VALUES (?, ?, ?, ?, ?, ?);
`, msg.ID, msg.TicketID, msg.SenderID, string(msg.SenderRole), msg.Body, at); err != nil {
		return err
	}
	msg.CreatedAt = fromMs(at)
	return nil
}

func (s *messageStore) Create(ctx context.Context, msg *domain.Message) error {
	if err := insertMessage(ctx, s.db, msg, nowMs()); err != nil {
		if isForeignKey(err) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *messageStore) ListByTicket(ctx context.Context, ticketID string) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, ticket_id, sender_id, sender_role, body, created_at_ms
FROM messages WHERE ticket_id = ? ORDER BY created_at_ms ASC, rowid ASC;
`, ticketID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		var (
			msg     domain.Message
			role    string
			created int64
		)
		if err := rows.Scan(&msg.ID, &msg.TicketID, &msg.SenderID, &role, &msg.Body, &created); err != nil {
			return nil, err
		}
		msg.SenderRole = domain.SenderRole(role)
		msg.CreatedAt = fromMs(created)
		out = append(out, msg)
	}
	return out, rows.Err()
}

func (s *messageStore) FirstMessageAt(ctx context.Context, ticketID string) (*time.Time, error) {
	var first sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MIN(created_at_ms) FROM messages WHERE ticket_id = ?;`, ticketID).Scan(&first); err != nil {
		return nil, fmt.Errorf("first message: %w", err)
	}
	if !first.Valid {
		return nil, nil
	}
	t := fromMs(first.Int64)
	return &t, nil
}

type curatorStore struct {
	db *sql.DB
}

func (s *curatorStore) Upsert(ctx context.Context, curator *domain.Curator) error {
	active := 0
	if curator.Active {
		active = 1
	}
	var created int64
	if err := s.db.QueryRowContext(ctx, `
INSERT INTO curators(id, display_name, active, created_at_ms)
VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET display_name = excluded.display_name, active = excluded.active
RETURNING created_at_ms;
`, curator.ID, curator.DisplayName, active, nowMs()).Scan(&created); err != nil {
		return fmt.Errorf("upsert curator: %w", err)
	}
	curator.CreatedAt = fromMs(created)
	return nil
}

func (s *curatorStore) GetByID(ctx context.Context, id string) (*domain.Curator, error) {
	curator, err := scanCurator(s.db.QueryRowContext(ctx, `
SELECT id, display_name, active, created_at_ms FROM curators WHERE id = ?;
`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	return curator, err
}

func (s *curatorStore) List(ctx context.Context, activeOnly bool) ([]domain.Curator, error) {
	query := `SELECT id, display_name, active, created_at_ms FROM curators`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	rows, err := s.db.QueryContext(ctx, query+` ORDER BY display_name ASC;`)
	if err != nil {
		return nil, fmt.Errorf("list curators: %w", err)
	}
	defer rows.Close()

	var out []domain.Curator
	for rows.Next() {
		curator, err := scanCurator(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *curator)
	}
	return out, rows.Err()
}

func scanCurator(row scanner) (*domain.Curator, error) {
	var (
		curator domain.Curator
		active  int
		created int64
	)
	if err := row.Scan(&curator.ID, &curator.DisplayName, &active, &created); err != nil {
		return nil, err
	}
	curator.Active = active == 1
	curator.CreatedAt = fromMs(created)
	return &curator, nil
}
