package repository

import (
	"context"
	"errors"
	"time"

	"github.com/spec-kit/curator-desk/internal/domain"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrAppendConflict is returned when another entry was appended after the
	// one the caller observed.
	ErrAppendConflict = errors.New("repository: action log moved past expected entry")
	// ErrDuplicateRequest is returned when an entry with the same request key
	// was already recorded.
	ErrDuplicateRequest = errors.New("repository: request key already recorded")
	// ErrTicketExists is returned when a ticket id or request key is
	// registered twice.
	ErrTicketExists = errors.New("repository: ticket already exists")
)

// TicketRepository stores ticket identity. Status is never stored here.
type TicketRepository interface {
	// Create persists the ticket together with its first message atomically.
	Create(ctx context.Context, ticket *domain.Ticket, first *domain.Message) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetByRequestKey(ctx context.Context, key string) (*domain.Ticket, error)
	SetCardMessage(ctx context.Context, ticketID, messageID string) error
}

// ActionLogRepository is the append-only assignment trail.
type ActionLogRepository interface {
	// Append writes entry at expectedSeq+1 only if the ticket's latest entry
	// is still expectedSeq. It fills entry.ID, entry.Seq and entry.CreatedAt.
	Append(ctx context.Context, entry *domain.ActionLogEntry, expectedSeq int64) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.ActionLogEntry, error)
	GetByRequestKey(ctx context.Context, key string) (*domain.ActionLogEntry, error)
}

// MessageRepository manages thread messages.
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Message, error)
	// FirstMessageAt returns nil when the ticket has no recorded messages.
	FirstMessageAt(ctx context.Context, ticketID string) (*time.Time, error)
}

// CuratorRepository is the persistent curator directory.
type CuratorRepository interface {
	Upsert(ctx context.Context, curator *domain.Curator) error
	GetByID(ctx context.Context, id string) (*domain.Curator, error)
	List(ctx context.Context, activeOnly bool) ([]domain.Curator, error)
}

// Store bundles the repositories of one backend.
type Store struct {
	Tickets  TicketRepository
	Actions  ActionLogRepository
	Messages MessageRepository
	Curators CuratorRepository
	// Ping checks backend reachability; nil means always reachable.
	Ping func(ctx context.Context) error
}

// Healthy runs the store's ping when configured.
func (s *Store) Healthy(ctx context.Context) error {
	if s == nil {
		return errors.New("store not configured")
	}
	if s.Ping == nil {
		return nil
	}
	return s.Ping(ctx)
}
