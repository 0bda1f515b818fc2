package handlers

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/curator-desk/internal/api/dto"
	"github.com/spec-kit/curator-desk/internal/callback"
	"github.com/spec-kit/curator-desk/internal/domain"
	"github.com/spec-kit/curator-desk/internal/lifecycle"
	"github.com/spec-kit/curator-desk/internal/service"
	apperrors "github.com/spec-kit/curator-desk/pkg/util/errorutil"
)

const (
	answerTimeout    = 5 * time.Second
	notifyFailedNote = " ⚠ The chat could not be fully updated."
)

// CallbackAnswerer acknowledges button presses.
type CallbackAnswerer interface {
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error
}

// WebhookHandler receives Telegram updates.
type WebhookHandler struct {
	router      *service.RouterService
	assignments *service.AssignmentService
	answerer    CallbackAnswerer
	botUserID   string
	logger      *zap.Logger
}

// NewWebhookHandler constructs handler.
func NewWebhookHandler(router *service.RouterService, assignments *service.AssignmentService, answerer CallbackAnswerer, botUserID string, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{
		router:      router,
		assignments: assignments,
		answerer:    answerer,
		botUserID:   botUserID,
		logger:      logger,
	}
}

// Handle processes one update. Telegram redelivers on non-2xx answers, so
// rule violations and transport failures are acknowledged with 200 once they
// have been reported to the user.
func (h *WebhookHandler) Handle(c *fiber.Ctx) error {
	var update dto.Update
	if err := c.BodyParser(&update); err != nil {
		return apperrors.NewValidationError("invalid update", nil)
	}
	ctx := c.UserContext()

	switch {
	case update.Message != nil:
		h.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		h.handleCallback(ctx, update.CallbackQuery)
	}
	return c.JSON(fiber.Map{"ok": true})
}

func (h *WebhookHandler) handleMessage(ctx context.Context, msg *dto.Message) {
	if msg.From == nil {
		return
	}
	outcome, err := h.router.Route(ctx, service.InboundMessage{
		ChatID:      fmt.Sprint(msg.Chat.ID),
		MessageID:   strconv.FormatInt(msg.MessageID, 10),
		ThreadID:    msg.ThreadID(),
		SenderID:    msg.From.IDString(),
		SenderName:  msg.From.FullName(),
		SenderIsBot: msg.From.IsBot || msg.From.IDString() == h.botUserID,
		Text:        msg.Text,
	})
	if err != nil {
		h.logger.Error("message routing failed",
			zap.Int64("message_id", msg.MessageID),
			zap.String("thread_id", msg.ThreadID()),
			zap.Error(err))
		return
	}
	h.logger.Debug("message routed",
		zap.String("outcome", string(outcome.Kind)),
		zap.String("ticket_id", outcome.TicketID))
}

func (h *WebhookHandler) handleCallback(ctx context.Context, query *dto.CallbackQuery) {
	text, err := h.dispatch(ctx, query)
	alert := false
	if err != nil {
		text = apperrors.UserMessage(err)
		alert = true
		if apperrors.IsInfrastructure(err) {
			h.logger.Error("card action failed",
				zap.String("callback_id", query.ID),
				zap.String("data", query.Data),
				zap.Error(err))
		}
	}
	if h.answerer == nil {
		return
	}
	// The request context may have expired with the action; the user still
	// needs the answer.
	answerCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), answerTimeout)
	defer cancel()
	if err := h.answerer.AnswerCallback(answerCtx, query.ID, text, alert); err != nil {
		h.logger.Warn("callback answer failed", zap.String("callback_id", query.ID), zap.Error(err))
	}
}

// dispatch runs the card action and returns the confirmation text. The
// callback query id doubles as the idempotency key, so a redelivered
// update is answered without appending twice.
func (h *WebhookHandler) dispatch(ctx context.Context, query *dto.CallbackQuery) (string, error) {
	action, err := callback.Parse(query.Data)
	if err != nil {
		return "", err
	}
	curatorID := query.From.IDString()
	key := query.ID

	var outcome *service.Outcome
	switch action.Kind {
	case callback.KindTake:
		outcome, err = h.assignments.Claim(ctx, action.TicketID, curatorID, key)
	case callback.KindHold:
		outcome, err = h.assignments.Hold(ctx, action.TicketID, curatorID, key)
	case callback.KindResume:
		outcome, err = h.assignments.Resume(ctx, action.TicketID, curatorID, key)
	case callback.KindClose:
		outcome, err = h.assignments.Close(ctx, action.TicketID, curatorID, key)
	case callback.KindReassignTo:
		outcome, err = h.assignments.Reassign(ctx, action.TicketID, curatorID, action.TargetID, key)
	case callback.KindReassign:
		candidates, err := h.assignments.ReassignCandidates(ctx, action.TicketID, curatorID)
		if err != nil {
			return "", err
		}
		if len(candidates) == 0 {
			return "No other curator is available.", nil
		}
		return "Choose a curator on the card.", nil
	}
	if err != nil {
		return "", err
	}
	return confirmation(outcome), nil
}

// confirmation describes a committed action. A failed card or message
// update is mentioned; the action itself stands.
func confirmation(outcome *service.Outcome) string {
	text := actionConfirmation(outcome)
	if outcome.NotifyErr != nil {
		text += notifyFailedNote
	}
	return text
}

func actionConfirmation(outcome *service.Outcome) string {
	switch outcome.Entry.Action {
	case domain.ActionTake:
		if outcome.Latency == nil {
			return "You took the request. Response time: unavailable"
		}
		return fmt.Sprintf("You took the request. Response time: %s", outcome.Latency.Round(time.Second))
	case domain.ActionReassign:
		return "✅ The request was reassigned."
	case domain.ActionClose:
		return "The discussion was closed."
	default:
		return "Status changed: " + lifecycle.StatusLabel(outcome.State.Status)
	}
}
