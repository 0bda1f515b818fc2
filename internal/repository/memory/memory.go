// Package memory provides in-memory repositories with the same append
// semantics as the SQL stores. It is intended for tests and dev runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/curator-desk/internal/domain"
	"github.com/spec-kit/curator-desk/internal/repository"
)

// Store holds every table behind a single mutex.
type Store struct {
	mu       sync.Mutex
	now      func() time.Time
	tickets  map[string]domain.Ticket
	opened   map[string]string
	entries  map[string][]domain.ActionLogEntry
	keys     map[string]domain.ActionLogEntry
	messages map[string][]domain.Message
	curators map[string]domain.Curator
}

// NewStore returns an empty store. now defaults to time.Now.
func NewStore(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		now:      now,
		tickets:  make(map[string]domain.Ticket),
		opened:   make(map[string]string),
		entries:  make(map[string][]domain.ActionLogEntry),
		keys:     make(map[string]domain.ActionLogEntry),
		messages: make(map[string][]domain.Message),
		curators: make(map[string]domain.Curator),
	}
}

// Repositories exposes the store through the repository interfaces.
func (s *Store) Repositories() *repository.Store {
	return &repository.Store{
		Tickets:  ticketRepo{s},
		Actions:  actionRepo{s},
		Messages: messageRepo{s},
		Curators: curatorRepo{s},
	}
}

type ticketRepo struct{ s *Store }

func (r ticketRepo) Create(_ context.Context, ticket *domain.Ticket, first *domain.Message) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tickets[ticket.ID]; exists {
		return repository.ErrTicketExists
	}
	if ticket.RequestKey != nil {
		if _, exists := s.opened[*ticket.RequestKey]; exists {
			return repository.ErrTicketExists
		}
		s.opened[*ticket.RequestKey] = ticket.ID
	}
	ticket.CreatedAt = s.now()
	s.tickets[ticket.ID] = *ticket
	if first != nil {
		first.TicketID = ticket.ID
		s.appendMessageLocked(first)
	}
	return nil
}

func (r ticketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &ticket, nil
}

func (r ticketRepo) GetByRequestKey(_ context.Context, key string) (*domain.Ticket, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[s.opened[key]]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &ticket, nil
}

func (r ticketRepo) SetCardMessage(_ context.Context, ticketID, messageID string) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[ticketID]
	if !ok {
		return repository.ErrNotFound
	}
	ticket.CardMessageID = &messageID
	s.tickets[ticketID] = ticket
	return nil
}

type actionRepo struct{ s *Store }

func (r actionRepo) Append(_ context.Context, entry *domain.ActionLogEntry, expectedSeq int64) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tickets[entry.TicketID]; !ok {
		return repository.ErrNotFound
	}
	if entry.RequestKey != nil {
		if _, dup := s.keys[*entry.RequestKey]; dup {
			return repository.ErrDuplicateRequest
		}
	}
	log := s.entries[entry.TicketID]
	if int64(len(log)) != expectedSeq {
		return repository.ErrAppendConflict
	}

	at := s.now()
	if n := len(log); n > 0 && at.Before(log[n-1].CreatedAt) {
		at = log[n-1].CreatedAt
	}
	entry.ID = uuid.NewString()
	entry.Seq = expectedSeq + 1
	entry.CreatedAt = at
	s.entries[entry.TicketID] = append(log, *entry)
	if entry.RequestKey != nil {
		s.keys[*entry.RequestKey] = *entry
	}
	return nil
}

func (r actionRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.ActionLogEntry, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	log := s.entries[ticketID]
	out := make([]domain.ActionLogEntry, len(log))
	copy(out, log)
	return out, nil
}

func (r actionRepo) GetByRequestKey(_ context.Context, key string) (*domain.ActionLogEntry, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.keys[key]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &entry, nil
}

type messageRepo struct{ s *Store }

func (r messageRepo) Create(_ context.Context, msg *domain.Message) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tickets[msg.TicketID]; !ok {
		return repository.ErrNotFound
	}
	s.appendMessageLocked(msg)
	return nil
}

func (s *Store) appendMessageLocked(msg *domain.Message) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.CreatedAt = s.now()
	s.messages[msg.TicketID] = append(s.messages[msg.TicketID], *msg)
}

func (r messageRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Message, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages[ticketID]
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (r messageRepo) FirstMessageAt(_ context.Context, ticketID string) (*time.Time, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages[ticketID]
	if len(msgs) == 0 {
		return nil, nil
	}
	first := msgs[0].CreatedAt
	for _, msg := range msgs[1:] {
		if msg.CreatedAt.Before(first) {
			first = msg.CreatedAt
		}
	}
	return &first, nil
}

type curatorRepo struct{ s *Store }

func (r curatorRepo) Upsert(_ context.Context, curator *domain.Curator) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.curators[curator.ID]; ok {
		curator.CreatedAt = existing.CreatedAt
	} else {
		curator.CreatedAt = s.now()
	}
	s.curators[curator.ID] = *curator
	return nil
}

func (r curatorRepo) GetByID(_ context.Context, id string) (*domain.Curator, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	curator, ok := s.curators[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &curator, nil
}

func (r curatorRepo) List(_ context.Context, activeOnly bool) ([]domain.Curator, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Curator, 0, len(s.curators))
	for _, curator := range s.curators {
		if activeOnly && !curator.Active {
			continue
		}
		out = append(out, curator)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayName < out[j].DisplayName })
	return out, nil
}

// InjectEntry appends entry without any check. Test-only helper used to
// build logs that the engine itself would never write.
func (s *Store) InjectEntry(entry domain.ActionLogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.TicketID] = append(s.entries[entry.TicketID], entry)
}
