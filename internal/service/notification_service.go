package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/curator-desk/internal/domain"
	"github.com/spec-kit/curator-desk/internal/events"
	"github.com/spec-kit/curator-desk/internal/gateway"
	"github.com/spec-kit/curator-desk/internal/lifecycle"
	"github.com/spec-kit/curator-desk/internal/observability"
	"github.com/spec-kit/curator-desk/internal/repository"
)

// StateReader returns the derived state of a ticket.
type StateReader interface {
	State(ctx context.Context, ticketID string) (lifecycle.State, error)
}

// CardRefreshQueue schedules a card to be rendered again later.
type CardRefreshQueue interface {
	Enqueue(ctx context.Context, ticketID string) error
}

// NotificationService relays engine events to the chat transport. It never
// changes ticket state; a failed delivery leaves the committed action intact.
type NotificationService struct {
	dispatcher events.Dispatcher
	gateway    gateway.MessageGateway
	tickets    repository.TicketRepository
	messages   repository.MessageRepository
	states     StateReader
	directory  CuratorDirectory
	retries    CardRefreshQueue
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NotificationDependencies bundles collaborators. Retries may be nil.
type NotificationDependencies struct {
	Dispatcher events.Dispatcher
	Gateway    gateway.MessageGateway
	Store      *repository.Store
	States     StateReader
	Directory  CuratorDirectory
	Retries    CardRefreshQueue
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: deps.Dispatcher,
		gateway:    deps.Gateway,
		tickets:    deps.Store.Tickets,
		messages:   deps.Store.Messages,
		states:     deps.States,
		directory:  deps.Directory,
		retries:    deps.Retries,
		metrics:    deps.Metrics,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketActionApplied, n.handleActionApplied)
	n.dispatcher.Subscribe(events.EventReassignRequested, n.handleReassignRequested)
}

// RefreshCard renders the card from the current log. A ticket whose card
// was never posted gets one now.
func (n *NotificationService) RefreshCard(ctx context.Context, ticketID string) error {
	ticket, err := n.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return fmt.Errorf("load ticket %s: %w", ticketID, err)
	}
	state, err := n.states.State(ctx, ticketID)
	var conflict *lifecycle.StateConflictError
	if err != nil && !errors.As(err, &conflict) {
		return fmt.Errorf("derive ticket %s: %w", ticketID, err)
	}
	card := RenderCard(n.view(ctx, *ticket, state))

	if ticket.CardMessageID == nil {
		return n.postCard(ctx, *ticket, card)
	}
	return n.gateway.EditCard(ctx, *ticket.CardMessageID, card)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	state := lifecycle.State{TicketID: payload.Ticket.ID, Status: domain.TicketStatusPending}
	view := CardView{Ticket: payload.Ticket, State: state, Excerpt: payload.FirstMessage.Body}

	if err := n.postCard(ctx, payload.Ticket, RenderCard(view)); err != nil {
		n.scheduleRefresh(ctx, payload.Ticket.ID, err)
		return err
	}
	return nil
}

func (n *NotificationService) handleActionApplied(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ActionAppliedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	ticket, entry := payload.Ticket, payload.Entry
	n.logger.Info("relaying ticket action",
		zap.String("ticket_id", ticket.ID),
		zap.String("action", string(entry.Action)),
		zap.String("curator_id", entry.Actor()))

	var errs []error
	if err := n.editCard(ctx, ticket, n.currentState(ctx, ticket.ID, payload.State)); err != nil {
		n.scheduleRefresh(ctx, ticket.ID, err)
		errs = append(errs, err)
	}

	switch entry.Action {
	case domain.ActionHold:
		errs = append(errs, n.direct(ctx, entry.Actor(),
			"The request is on hold. Resume it from the card when you are ready."))
	case domain.ActionReassign:
		from, _ := n.directory.NameOf(ctx, entry.Actor())
		if from == "" {
			from = entry.Actor()
		}
		errs = append(errs, n.direct(ctx, derefString(entry.TargetCuratorID),
			fmt.Sprintf("%s handed you the request from %s.", from, studentLabel(ticket))))
	case domain.ActionClose:
		if err := n.gateway.CloseThread(ctx, ticket.ID); err != nil {
			n.logger.Warn("close thread failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
			errs = append(errs, err)
		}
		if err := n.gateway.PostNotice(ctx, ticket.ID, "The discussion was closed by the curator."); err != nil {
			n.logger.Warn("close notice failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// currentState re-derives the ticket from the log so a relay that runs late
// does not paint an older state over a newer one. committed is used only
// when the log cannot be read.
func (n *NotificationService) currentState(ctx context.Context, ticketID string, committed lifecycle.State) lifecycle.State {
	state, err := n.states.State(ctx, ticketID)
	var conflict *lifecycle.StateConflictError
	if err != nil && !errors.As(err, &conflict) {
		n.logger.Warn("rendering committed state", zap.String("ticket_id", ticketID), zap.Error(err))
		return committed
	}
	return state
}

func (n *NotificationService) handleReassignRequested(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ReassignRequestedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	ticket := payload.Ticket
	if ticket.CardMessageID == nil {
		n.scheduleRefresh(ctx, ticket.ID, errors.New("card not posted"))
		return nil
	}
	state, err := n.states.State(ctx, ticket.ID)
	var conflict *lifecycle.StateConflictError
	if err != nil && !errors.As(err, &conflict) {
		return err
	}
	card := RenderPicker(n.view(ctx, ticket, state), payload.Candidates)
	if err := n.gateway.EditCard(ctx, *ticket.CardMessageID, card); err != nil {
		n.logger.Warn("picker render failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
		return err
	}
	return nil
}

func (n *NotificationService) postCard(ctx context.Context, ticket domain.Ticket, card gateway.Card) error {
	messageID, err := n.gateway.PostCard(ctx, ticket.ID, card)
	if err != nil {
		return err
	}
	if err := n.tickets.SetCardMessage(ctx, ticket.ID, messageID); err != nil {
		n.logger.Error("card message id not stored",
			zap.String("ticket_id", ticket.ID),
			zap.String("message_id", messageID),
			zap.Error(err))
		return err
	}
	return nil
}

func (n *NotificationService) editCard(ctx context.Context, ticket domain.Ticket, state lifecycle.State) error {
	if ticket.CardMessageID == nil {
		return errors.New("card not posted yet")
	}
	card := RenderCard(n.view(ctx, ticket, state))
	return n.gateway.EditCard(ctx, *ticket.CardMessageID, card)
}

func (n *NotificationService) view(ctx context.Context, ticket domain.Ticket, state lifecycle.State) CardView {
	view := CardView{Ticket: ticket, State: state}
	if owner := state.Owner(); owner != "" {
		if name, err := n.directory.NameOf(ctx, owner); err == nil {
			view.OwnerName = name
		}
	}
	if msgs, err := n.messages.ListByTicket(ctx, ticket.ID); err == nil && len(msgs) > 0 {
		view.Excerpt = msgs[0].Body
	}
	return view
}

func (n *NotificationService) direct(ctx context.Context, userID, text string) error {
	if userID == "" {
		return nil
	}
	if err := n.gateway.SendDirect(ctx, userID, text); err != nil {
		n.logger.Warn("direct message failed", zap.String("user_id", userID), zap.Error(err))
		return err
	}
	return nil
}

func (n *NotificationService) scheduleRefresh(ctx context.Context, ticketID string, cause error) {
	n.logger.Warn("card render failed",
		zap.String("ticket_id", ticketID),
		zap.Error(cause))
	if n.retries == nil {
		return
	}
	if err := n.retries.Enqueue(ctx, ticketID); err != nil {
		n.logger.Error("card refresh not queued", zap.String("ticket_id", ticketID), zap.Error(err))
		return
	}
	n.metrics.RecordRetryQueued()
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
