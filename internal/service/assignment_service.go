package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/curator-desk/internal/domain"
	"github.com/spec-kit/curator-desk/internal/events"
	"github.com/spec-kit/curator-desk/internal/lifecycle"
	"github.com/spec-kit/curator-desk/internal/observability"
	"github.com/spec-kit/curator-desk/internal/repository"
	apperrors "github.com/spec-kit/curator-desk/pkg/util/errorutil"
)

// appendAttempts is the first try plus one retry on fresh state.
const appendAttempts = 2

// AssignmentService owns every ticket mutation. Each mutation reads the log,
// validates the action against the derived state and appends conditioned
// on the log not having moved; the append is the only commit point.
type AssignmentService struct {
	tickets    repository.TicketRepository
	actions    repository.ActionLogRepository
	messages   repository.MessageRepository
	directory  CuratorDirectory
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// AssignmentDependencies bundles repositories and collaborators.
type AssignmentDependencies struct {
	Store      *repository.Store
	Directory  CuratorDirectory
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		tickets:    deps.Store.Tickets,
		actions:    deps.Store.Actions,
		messages:   deps.Store.Messages,
		directory:  deps.Directory,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
	}
}

// NewTicketInput describes the first message of a new request. RequestKey
// names the inbound message; a second Create with the same key returns the
// ticket it already opened.
type NewTicketInput struct {
	TicketID    string
	ChatID      string
	StudentID   string
	StudentName string
	Body        string
	RequestKey  string
}

// Outcome is the result of a committed (or replayed) action.
type Outcome struct {
	Ticket domain.Ticket
	Entry  domain.ActionLogEntry
	State  lifecycle.State
	// Latency is set for take only; nil means the first message time is unknown.
	Latency *time.Duration
	// Replayed is true when the request key had already been applied.
	Replayed bool
	// NotifyErr reports rendering failures after the commit. The action
	// itself stands.
	NotifyErr error
}

// TicketView is the read model of one ticket.
type TicketView struct {
	Ticket   domain.Ticket
	State    lifecycle.State
	History  []domain.ActionLogEntry
	Messages []domain.Message
	Conflict error
}

// Create registers a ticket and its first message. The ticket starts
// Pending; no log entry is written. A repeated Create for the same id or
// request key returns the existing ticket without publishing again.
func (s *AssignmentService) Create(ctx context.Context, in NewTicketInput) (*domain.Ticket, error) {
	if strings.TrimSpace(in.TicketID) == "" || strings.TrimSpace(in.StudentID) == "" {
		return nil, apperrors.NewValidationError("ticket id and student id required", nil)
	}
	ticket := &domain.Ticket{
		ID:          in.TicketID,
		ChatID:      in.ChatID,
		StudentID:   in.StudentID,
		StudentName: in.StudentName,
	}
	if in.RequestKey != "" {
		key := in.RequestKey
		ticket.RequestKey = &key
	}
	first := &domain.Message{
		SenderID:   in.StudentID,
		SenderRole: domain.SenderRoleStudent,
		Body:       in.Body,
	}

	err := s.tickets.Create(ctx, ticket, first)
	if errors.Is(err, repository.ErrTicketExists) {
		s.logger.Info("ticket already registered",
			zap.String("ticket_id", in.TicketID),
			zap.String("request_key", in.RequestKey))
		if existing, err := s.TicketByRequestKey(ctx, in.RequestKey); existing != nil || err != nil {
			return existing, err
		}
		return s.loadTicket(ctx, in.TicketID)
	}
	if err != nil {
		return nil, s.storeError("create ticket", in.TicketID, err)
	}

	s.logger.Info("ticket created",
		zap.String("ticket_id", ticket.ID),
		zap.String("student_id", ticket.StudentID))
	s.publish(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		ActorID:  ticket.StudentID,
		Payload:  events.TicketCreatedPayload{Ticket: *ticket, FirstMessage: *first},
	})
	return ticket, nil
}

// TicketByRequestKey returns the ticket opened by the inbound message key,
// or nil when there is none.
func (s *AssignmentService) TicketByRequestKey(ctx context.Context, key string) (*domain.Ticket, error) {
	if key == "" {
		return nil, nil
	}
	ticket, err := s.tickets.GetByRequestKey(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, s.storeError("get ticket by request key", "", err)
	}
	return ticket, nil
}

// Claim makes curatorID the owner of a Pending ticket.
func (s *AssignmentService) Claim(ctx context.Context, ticketID, curatorID, requestKey string) (*Outcome, error) {
	return s.apply(ctx, ticketID, lifecycle.Command{Action: domain.ActionTake, ActorID: curatorID, RequestKey: requestKey})
}

// Hold pauses a ticket; the owner keeps it.
func (s *AssignmentService) Hold(ctx context.Context, ticketID, curatorID, requestKey string) (*Outcome, error) {
	return s.apply(ctx, ticketID, lifecycle.Command{Action: domain.ActionHold, ActorID: curatorID, RequestKey: requestKey})
}

// Resume continues a held ticket.
func (s *AssignmentService) Resume(ctx context.Context, ticketID, curatorID, requestKey string) (*Outcome, error) {
	return s.apply(ctx, ticketID, lifecycle.Command{Action: domain.ActionResume, ActorID: curatorID, RequestKey: requestKey})
}

// Close terminates a ticket.
func (s *AssignmentService) Close(ctx context.Context, ticketID, curatorID, requestKey string) (*Outcome, error) {
	return s.apply(ctx, ticketID, lifecycle.Command{Action: domain.ActionClose, ActorID: curatorID, RequestKey: requestKey})
}

// Reassign hands an owned ticket to another curator.
func (s *AssignmentService) Reassign(ctx context.Context, ticketID, curatorID, targetID, requestKey string) (*Outcome, error) {
	return s.apply(ctx, ticketID, lifecycle.Command{
		Action:     domain.ActionReassign,
		ActorID:    curatorID,
		TargetID:   targetID,
		RequestKey: requestKey,
	})
}

// ReassignCandidates checks that curatorID owns the open ticket and returns
// the other active curators. It publishes an event so the card turns into a
// picker; the log is not touched.
func (s *AssignmentService) ReassignCandidates(ctx context.Context, ticketID, curatorID string) ([]domain.Curator, error) {
	if err := s.requireCurator(ctx, curatorID); err != nil {
		return nil, err
	}
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	_, state, err := s.derive(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if state.Closed() {
		return nil, apperrors.NewAlreadyClosed(ticketID)
	}
	if !state.OwnedBy(curatorID) {
		return nil, apperrors.NewNotOwner(ticketID)
	}

	curators, err := s.directory.List(ctx)
	if err != nil {
		return nil, err
	}
	candidates := make([]domain.Curator, 0, len(curators))
	for _, curator := range curators {
		if curator.ID != curatorID {
			candidates = append(candidates, curator)
		}
	}
	if err := s.publish(ctx, events.Event{
		Type:     events.EventReassignRequested,
		TicketID: ticketID,
		ActorID:  curatorID,
		Payload:  events.ReassignRequestedPayload{Ticket: *ticket, Candidates: candidates},
	}); err != nil {
		return candidates, apperrors.NewTransportError(err)
	}
	return candidates, nil
}

// Inspect returns the ticket with its derived state, history and messages.
// Conflicting log entries are reported in TicketView.Conflict.
func (s *AssignmentService) Inspect(ctx context.Context, ticketID string) (*TicketView, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	history, err := s.actions.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, s.storeError("list actions", ticketID, err)
	}
	messages, err := s.messages.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, s.storeError("list messages", ticketID, err)
	}
	state, conflict := lifecycle.Derive(ticketID, history)
	return &TicketView{Ticket: *ticket, State: state, History: history, Messages: messages, Conflict: conflict}, nil
}

// State returns the derived state of a ticket. The state is returned even
// when the log holds conflicting entries; the error then wraps
// *lifecycle.StateConflictError.
func (s *AssignmentService) State(ctx context.Context, ticketID string) (lifecycle.State, error) {
	if _, err := s.loadTicket(ctx, ticketID); err != nil {
		return lifecycle.State{}, err
	}
	history, err := s.actions.ListByTicket(ctx, ticketID)
	if err != nil {
		return lifecycle.State{}, s.storeError("list actions", ticketID, err)
	}
	return lifecycle.Derive(ticketID, history)
}

func (s *AssignmentService) apply(ctx context.Context, ticketID string, cmd lifecycle.Command) (*Outcome, error) {
	outcome, err := s.applyOnce(ctx, ticketID, cmd)
	result := "ok"
	if err != nil {
		result = apperrors.ToDomainError(err).Code
	} else if outcome.Replayed {
		result = "replayed"
	}
	s.metrics.RecordAssignment(string(cmd.Action), result)
	return outcome, err
}

func (s *AssignmentService) applyOnce(ctx context.Context, ticketID string, cmd lifecycle.Command) (*Outcome, error) {
	if err := s.requireCurator(ctx, cmd.ActorID); err != nil {
		return nil, err
	}
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	targetChecked := cmd.Action != domain.ActionReassign

	for attempt := 1; attempt <= appendAttempts; attempt++ {
		if cmd.RequestKey != "" {
			if outcome, err := s.replay(ctx, ticket, cmd); outcome != nil || err != nil {
				return outcome, err
			}
		}

		history, state, err := s.derive(ctx, ticketID)
		if err != nil {
			return nil, err
		}
		entry, err := lifecycle.Decide(state, cmd)
		if err != nil {
			return nil, s.describe(ctx, err)
		}
		// The target is checked once the state allows the handover, so a
		// closed ticket reports AlreadyClosed whatever the target.
		if !targetChecked {
			if err := s.requireTarget(ctx, cmd.TargetID); err != nil {
				return nil, err
			}
			targetChecked = true
		}

		err = s.actions.Append(ctx, entry, state.Seq)
		switch {
		case err == nil:
			return s.committed(ctx, ticket, history, entry), nil
		case errors.Is(err, repository.ErrAppendConflict):
			s.metrics.RecordAppendConflict()
			observability.WithTicket(s.logger, ticketID, cmd.ActorID).Info("append lost race",
				zap.String("action", string(cmd.Action)),
				zap.Int("attempt", attempt))
			continue
		case errors.Is(err, repository.ErrDuplicateRequest):
			if outcome, err := s.replay(ctx, ticket, cmd); outcome != nil || err != nil {
				return outcome, err
			}
			continue
		default:
			return nil, s.storeError("append action", ticketID, err)
		}
	}
	return nil, apperrors.NewConflict("", map[string]any{"ticket_id": ticketID})
}

// committed builds the outcome of a fresh append and notifies subscribers.
// Notification runs detached from the caller's cancellation: the entry is
// already durable.
func (s *AssignmentService) committed(ctx context.Context, ticket *domain.Ticket, history []domain.ActionLogEntry, entry *domain.ActionLogEntry) *Outcome {
	state, _ := lifecycle.Derive(ticket.ID, append(history, *entry))
	outcome := &Outcome{Ticket: *ticket, Entry: *entry, State: state}
	if entry.Action == domain.ActionTake {
		outcome.Latency = s.latency(ctx, ticket.ID, entry.CreatedAt)
	}

	observability.WithTicket(s.logger, ticket.ID, entry.Actor()).Info("ticket action applied",
		zap.String("action", string(entry.Action)),
		zap.Int64("seq", entry.Seq),
		zap.String("status", string(state.Status)))

	outcome.NotifyErr = s.publish(context.WithoutCancel(ctx), events.Event{
		Type:     events.EventTicketActionApplied,
		TicketID: ticket.ID,
		ActorID:  entry.Actor(),
		Payload: events.ActionAppliedPayload{
			Ticket:  *ticket,
			Entry:   *entry,
			State:   state,
			Latency: outcome.Latency,
		},
	})
	return outcome
}

// replay returns the recorded outcome when cmd.RequestKey was already
// applied, or (nil, nil) when the key is new.
func (s *AssignmentService) replay(ctx context.Context, ticket *domain.Ticket, cmd lifecycle.Command) (*Outcome, error) {
	entry, err := s.actions.GetByRequestKey(ctx, cmd.RequestKey)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, s.storeError("lookup request key", ticket.ID, err)
	}
	if entry.TicketID != ticket.ID || entry.Action != cmd.Action || entry.Actor() != cmd.ActorID {
		return nil, apperrors.NewValidationError("request key already used for another action",
			map[string]any{"request_key": cmd.RequestKey})
	}

	history, err := s.actions.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, s.storeError("list actions", ticket.ID, err)
	}
	upTo := make([]domain.ActionLogEntry, 0, len(history))
	for _, h := range history {
		if h.Seq <= entry.Seq {
			upTo = append(upTo, h)
		}
	}
	state, _ := lifecycle.Derive(ticket.ID, upTo)
	outcome := &Outcome{Ticket: *ticket, Entry: *entry, State: state, Replayed: true}
	if entry.Action == domain.ActionTake {
		outcome.Latency = s.latency(ctx, ticket.ID, entry.CreatedAt)
	}
	s.logger.Info("duplicate request replayed",
		zap.String("ticket_id", ticket.ID),
		zap.String("request_key", cmd.RequestKey))
	return outcome, nil
}

func (s *AssignmentService) derive(ctx context.Context, ticketID string) ([]domain.ActionLogEntry, lifecycle.State, error) {
	history, err := s.actions.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, lifecycle.State{}, s.storeError("list actions", ticketID, err)
	}
	state, conflict := lifecycle.Derive(ticketID, history)
	if conflict != nil {
		s.logger.Error("ticket log holds conflicting entries",
			zap.String("ticket_id", ticketID),
			zap.Error(conflict))
	}
	return history, state, nil
}

func (s *AssignmentService) latency(ctx context.Context, ticketID string, at time.Time) *time.Duration {
	first, err := s.messages.FirstMessageAt(ctx, ticketID)
	if err != nil {
		s.logger.Warn("first message lookup failed", zap.String("ticket_id", ticketID), zap.Error(err))
		return nil
	}
	if first == nil {
		return nil
	}
	d := at.Sub(*first)
	if d < 0 {
		d = 0
	}
	return &d
}

func (s *AssignmentService) requireCurator(ctx context.Context, userID string) error {
	ok, err := s.directory.IsCurator(ctx, userID)
	if err != nil {
		s.logger.Error("curator lookup failed", zap.String("user_id", userID), zap.Error(err))
		return err
	}
	if !ok {
		return apperrors.NewPermissionDenied(userID)
	}
	return nil
}

func (s *AssignmentService) requireTarget(ctx context.Context, targetID string) error {
	ok, err := s.directory.IsCurator(ctx, targetID)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NewUnknownCurator(targetID)
	}
	return nil
}

func (s *AssignmentService) loadTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	if err != nil {
		return nil, s.storeError("get ticket", ticketID, err)
	}
	return ticket, nil
}

// describe adds the owner's display name to AlreadyClaimed rejections.
func (s *AssignmentService) describe(ctx context.Context, err error) error {
	de := apperrors.ToDomainError(err)
	if de.Code != apperrors.CodeAlreadyClaimed {
		return err
	}
	ticketID, _ := de.Details["ticket_id"].(string)
	owner, _ := de.Details["curator_id"].(string)
	name, lookupErr := s.directory.NameOf(ctx, owner)
	if lookupErr != nil || name == "" {
		return err
	}
	return apperrors.NewAlreadyClaimed(ticketID, owner, name)
}

func (s *AssignmentService) storeError(op, ticketID string, err error) error {
	s.logger.Error("store operation failed",
		zap.String("op", op),
		zap.String("ticket_id", ticketID),
		zap.Error(err))
	return apperrors.NewStoreUnavailable(err)
}

func (s *AssignmentService) publish(ctx context.Context, event events.Event) error {
	if s.dispatcher == nil {
		return nil
	}
	event.ID = uuid.NewString()
	event.Timestamp = time.Now()
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Error("notification failed",
			zap.String("ticket_id", event.TicketID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
		return err
	}
	return nil
}
