package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/curator-desk/internal/domain"
	"github.com/spec-kit/curator-desk/internal/events"
	"github.com/spec-kit/curator-desk/internal/gateway"
	"github.com/spec-kit/curator-desk/internal/observability"
	"github.com/spec-kit/curator-desk/internal/repository"
	"github.com/spec-kit/curator-desk/internal/repository/memory"
	apperrors "github.com/spec-kit/curator-desk/pkg/util/errorutil"
)

const (
	alice = "100"
	bob   = "200"
	carol = "300"
)

type sentText struct {
	To   string
	Text string
}

type fakeGateway struct {
	mu        sync.Mutex
	nextID    int
	threads   []string
	cards     map[string]gateway.Card
	posts     []string
	edits     []string
	closed    []string
	directs   []sentText
	notices   []sentText
	editErr   error
	postErr   error
	closeErr  error
	threadErr error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{nextID: 1000, cards: make(map[string]gateway.Card)}
}

func (g *fakeGateway) id() string {
	g.nextID++
	return fmt.Sprint(g.nextID)
}

func (g *fakeGateway) CreateThread(_ context.Context, _ string, title string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.threadErr != nil {
		return "", gateway.TransportError("createForumTopic", g.threadErr)
	}
	id := g.id()
	g.threads = append(g.threads, title)
	return id, nil
}

func (g *fakeGateway) PostCard(_ context.Context, threadID string, card gateway.Card) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.postErr != nil {
		return "", gateway.TransportError("sendMessage", g.postErr)
	}
	id := g.id()
	g.cards[id] = card
	g.posts = append(g.posts, threadID)
	return id, nil
}

func (g *fakeGateway) EditCard(_ context.Context, messageID string, card gateway.Card) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.editErr != nil {
		return gateway.TransportError("editMessageText", g.editErr)
	}
	g.cards[messageID] = card
	g.edits = append(g.edits, messageID)
	return nil
}

func (g *fakeGateway) CloseThread(_ context.Context, threadID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closeErr != nil {
		return gateway.TransportError("closeForumTopic", g.closeErr)
	}
	g.closed = append(g.closed, threadID)
	return nil
}

func (g *fakeGateway) SendDirect(_ context.Context, userID, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.directs = append(g.directs, sentText{To: userID, Text: text})
	return nil
}

func (g *fakeGateway) PostNotice(_ context.Context, threadID, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.notices = append(g.notices, sentText{To: threadID, Text: text})
	return nil
}

func (g *fakeGateway) card(messageID string) gateway.Card {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cards[messageID]
}

func (g *fakeGateway) setEditErr(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.editErr = err
}

type fakeQueue struct {
	mu      sync.Mutex
	tickets []string
}

func (q *fakeQueue) Enqueue(_ context.Context, ticketID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tickets = append(q.tickets, ticketID)
	return nil
}

func (q *fakeQueue) queued() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.tickets...)
}

type harness struct {
	mem           *memory.Store
	store         *repository.Store
	gateway       *fakeGateway
	queue         *fakeQueue
	metrics       *observability.Metrics
	directory     *DirectoryService
	assignments   *AssignmentService
	notifications *NotificationService
	router        *RouterService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mem := memory.NewStore(nil)
	return newHarnessWithStore(t, mem, mem.Repositories())
}

func newHarnessWithStore(t *testing.T, mem *memory.Store, store *repository.Store) *harness {
	t.Helper()
	h := &harness{
		mem:     mem,
		store:   store,
		gateway: newFakeGateway(),
		queue:   &fakeQueue{},
		metrics: observability.NewMetrics(),
	}
	dispatcher := events.NewInMemoryDispatcher()
	h.directory = NewDirectoryService(DirectoryDependencies{CuratorRepo: store.Curators})
	h.assignments = NewAssignmentService(AssignmentDependencies{
		Store:      store,
		Directory:  h.directory,
		Dispatcher: dispatcher,
		Metrics:    h.metrics,
	})
	h.notifications = NewNotificationService(NotificationDependencies{
		Dispatcher: dispatcher,
		Gateway:    h.gateway,
		Store:      store,
		States:     h.assignments,
		Directory:  h.directory,
		Retries:    h.queue,
		Metrics:    h.metrics,
	})
	h.notifications.RegisterHandlers()
	h.router = NewRouterService(RouterDependencies{
		Assignments: h.assignments,
		Gateway:     h.gateway,
		Store:       store,
		Directory:   h.directory,
		ChatID:      "-1001",
	})

	ctx := context.Background()
	for id, name := range map[string]string{alice: "Alice", bob: "Bob", carol: "Carol"} {
		_, err := h.directory.Register(ctx, id, name, true)
		require.NoError(t, err)
	}
	return h
}

func (h *harness) newTicket(t *testing.T, id string) *domain.Ticket {
	t.Helper()
	ticket, err := h.assignments.Create(context.Background(), NewTicketInput{
		TicketID:    id,
		ChatID:      "-1001",
		StudentID:   "900",
		StudentName: "Sam Student",
		Body:        "Need help",
	})
	require.NoError(t, err)
	return ticket
}

func (h *harness) history(t *testing.T, ticketID string) []domain.ActionLogEntry {
	t.Helper()
	entries, err := h.store.Actions.ListByTicket(context.Background(), ticketID)
	require.NoError(t, err)
	return entries
}

func (h *harness) cardMessageID(t *testing.T, ticketID string) string {
	t.Helper()
	ticket, err := h.store.Tickets.GetByID(context.Background(), ticketID)
	require.NoError(t, err)
	require.NotNil(t, ticket.CardMessageID)
	return *ticket.CardMessageID
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, apperrors.HasCode(err, code), "want %s, got %v", code, err)
}
