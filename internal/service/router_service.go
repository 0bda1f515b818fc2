package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/spec-kit/curator-desk/internal/domain"
	"github.com/spec-kit/curator-desk/internal/gateway"
	"github.com/spec-kit/curator-desk/internal/repository"
	apperrors "github.com/spec-kit/curator-desk/pkg/util/errorutil"
)

const (
	greetingText        = "Hi! Send me your question and I will open a discussion thread for it."
	acknowledgementText = "✅ Your request was sent to the curators."
	failureNoticePrefix = "⚠ "
	zeroWidthSpace      = '\u200b'

	failureNoticeTimeout = 5 * time.Second
)

// InboundMessage is a chat message as seen by the router. ThreadID is empty
// for messages posted outside any ticket thread. MessageID is stable across
// redeliveries of the same message.
type InboundMessage struct {
	ChatID      string
	MessageID   string
	ThreadID    string
	SenderID    string
	SenderName  string
	SenderIsBot bool
	Text        string
}

// RouteKind classifies what the router did with a message.
type RouteKind string

const (
	RouteNewTicket RouteKind = "new_ticket"
	RouteAppended  RouteKind = "appended"
	RouteIgnored   RouteKind = "ignored"
	RouteGreeted   RouteKind = "greeted"
)

// RouterOutcome reports the routing decision. TicketID is set for
// RouteNewTicket and RouteAppended. Replayed marks a redelivered message
// whose ticket already existed.
type RouterOutcome struct {
	Kind     RouteKind
	TicketID string
	Replayed bool
}

// RouterService turns inbound chat messages into tickets and thread messages.
type RouterService struct {
	assignments *AssignmentService
	gateway     gateway.MessageGateway
	tickets     repository.TicketRepository
	messages    repository.MessageRepository
	directory   CuratorDirectory
	chatID      string
	logger      *zap.Logger
}

// RouterDependencies bundles collaborators. ChatID is the forum the bot
// serves; messages from other chats are ignored and a message without a
// chat id is routed there.
type RouterDependencies struct {
	Assignments *AssignmentService
	Gateway     gateway.MessageGateway
	Store       *repository.Store
	Directory   CuratorDirectory
	ChatID      string
	Logger      *zap.Logger
}

// NewRouterService creates the service.
func NewRouterService(deps RouterDependencies) *RouterService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RouterService{
		assignments: deps.Assignments,
		gateway:     deps.Gateway,
		tickets:     deps.Store.Tickets,
		messages:    deps.Store.Messages,
		directory:   deps.Directory,
		chatID:      deps.ChatID,
		logger:      logger,
	}
}

// Route handles one inbound message. Infrastructure failures are also
// reported in the sender's thread, or the general topic outside one.
func (s *RouterService) Route(ctx context.Context, msg InboundMessage) (RouterOutcome, error) {
	outcome, err := s.route(ctx, msg)
	if err != nil && apperrors.IsInfrastructure(err) {
		s.reportFailure(ctx, msg, err)
	}
	return outcome, err
}

func (s *RouterService) route(ctx context.Context, msg InboundMessage) (RouterOutcome, error) {
	if msg.SenderIsBot || blank(msg.Text) {
		return RouterOutcome{Kind: RouteIgnored}, nil
	}
	if s.chatID != "" && msg.ChatID != "" && msg.ChatID != s.chatID {
		s.logger.Debug("message from foreign chat", zap.String("chat_id", msg.ChatID))
		return RouterOutcome{Kind: RouteIgnored}, nil
	}
	if msg.ThreadID == "" {
		if isStartCommand(msg.Text) {
			return s.greet(ctx, msg)
		}
		return s.openTicket(ctx, msg)
	}

	ticket, err := s.tickets.GetByID(ctx, msg.ThreadID)
	if errors.Is(err, repository.ErrNotFound) {
		s.logger.Debug("message in unknown thread", zap.String("thread_id", msg.ThreadID))
		return RouterOutcome{Kind: RouteIgnored}, nil
	}
	if err != nil {
		return RouterOutcome{}, apperrors.NewStoreUnavailable(err)
	}

	isCurator, err := s.directory.IsCurator(ctx, msg.SenderID)
	if err != nil {
		return RouterOutcome{}, err
	}
	role := domain.SenderRoleStudent
	if isCurator {
		role = domain.SenderRoleCurator
	}

	if role == domain.SenderRoleStudent {
		state, err := s.assignments.State(ctx, ticket.ID)
		if err != nil && !apperrors.HasCode(err, apperrors.CodeStateConflict) {
			return RouterOutcome{}, err
		}
		if state.Closed() {
			return s.openTicket(ctx, msg)
		}
	}

	message := &domain.Message{
		TicketID:   ticket.ID,
		SenderID:   msg.SenderID,
		SenderRole: role,
		Body:       msg.Text,
	}
	if err := s.messages.Create(ctx, message); err != nil {
		s.logger.Error("message not stored",
			zap.String("ticket_id", ticket.ID),
			zap.String("sender_id", msg.SenderID),
			zap.Error(err))
		return RouterOutcome{}, apperrors.NewStoreUnavailable(err)
	}
	return RouterOutcome{Kind: RouteAppended, TicketID: ticket.ID}, nil
}

func (s *RouterService) greet(ctx context.Context, msg InboundMessage) (RouterOutcome, error) {
	if err := s.gateway.PostNotice(ctx, "", greetingText); err != nil {
		s.logger.Warn("greeting failed", zap.String("sender_id", msg.SenderID), zap.Error(err))
		return RouterOutcome{}, apperrors.NewTransportError(err)
	}
	return RouterOutcome{Kind: RouteGreeted}, nil
}

func (s *RouterService) openTicket(ctx context.Context, msg InboundMessage) (RouterOutcome, error) {
	chatID := s.chatID
	if chatID == "" {
		chatID = msg.ChatID
	}
	name := strings.TrimSpace(msg.SenderName)
	if name == "" {
		name = msg.SenderID
	}
	key := requestKey(chatID, msg)

	existing, err := s.assignments.TicketByRequestKey(ctx, key)
	if err != nil {
		return RouterOutcome{}, err
	}
	if existing != nil {
		s.logger.Info("message already opened a ticket",
			zap.String("ticket_id", existing.ID),
			zap.String("request_key", key))
		return RouterOutcome{Kind: RouteNewTicket, TicketID: existing.ID, Replayed: true}, nil
	}

	threadID, err := s.gateway.CreateThread(ctx, chatID, "Request from "+name)
	if err != nil {
		s.logger.Error("thread not created", zap.String("sender_id", msg.SenderID), zap.Error(err))
		return RouterOutcome{}, apperrors.NewTransportError(err)
	}

	ticket, err := s.assignments.Create(ctx, NewTicketInput{
		TicketID:    threadID,
		ChatID:      chatID,
		StudentID:   msg.SenderID,
		StudentName: name,
		Body:        msg.Text,
		RequestKey:  key,
	})
	if err != nil {
		return RouterOutcome{}, err
	}
	if ticket.ID != threadID {
		// A concurrent delivery of the same message won the insert.
		s.logger.Warn("duplicate thread opened",
			zap.String("ticket_id", ticket.ID),
			zap.String("thread_id", threadID),
			zap.String("request_key", key))
		if err := s.gateway.CloseThread(ctx, threadID); err != nil {
			s.logger.Warn("duplicate thread not closed", zap.String("thread_id", threadID), zap.Error(err))
		}
		return RouterOutcome{Kind: RouteNewTicket, TicketID: ticket.ID, Replayed: true}, nil
	}

	if err := s.gateway.PostNotice(ctx, "", acknowledgementText); err != nil {
		s.logger.Warn("acknowledgement failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}
	return RouterOutcome{Kind: RouteNewTicket, TicketID: ticket.ID}, nil
}

// reportFailure posts the generic failure text for the sender. It runs on a
// context detached from the request, which may already be expired.
func (s *RouterService) reportFailure(ctx context.Context, msg InboundMessage, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureNoticeTimeout)
	defer cancel()

	text := failureNoticePrefix + apperrors.UserMessage(cause)
	if err := s.gateway.PostNotice(ctx, msg.ThreadID, text); err != nil {
		s.logger.Warn("failure notice not posted",
			zap.String("thread_id", msg.ThreadID),
			zap.String("sender_id", msg.SenderID),
			zap.Error(err))
	}
}

// requestKey identifies an inbound message as "<chat_id>:<message_id>".
// Messages without an id get no key.
func requestKey(chatID string, msg InboundMessage) string {
	if msg.MessageID == "" {
		return ""
	}
	return chatID + ":" + msg.MessageID
}

// blank reports bodies made only of whitespace and zero-width spaces.
func blank(text string) bool {
	return strings.TrimFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || r == zeroWidthSpace
	}) == ""
}

// isStartCommand matches "/start", "/start@bot" and "/start payload".
func isStartCommand(text string) bool {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return false
	}
	cmd, _, _ := strings.Cut(fields[0], "@")
	return cmd == "/start"
}
