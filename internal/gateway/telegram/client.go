// Package telegram implements gateway.MessageGateway on the Telegram Bot
// API. Tickets live as forum topics in a single supergroup.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/curator-desk/internal/gateway"
)

// Config holds Bot API access values.
type Config struct {
	BaseURL string
	Token   string
	ChatID  string
	Timeout time.Duration
}

// Client talks to the Bot API.
type Client struct {
	baseURL string
	token   string
	chatID  string
	timeout time.Duration
	logger  *zap.Logger
}

var _ gateway.MessageGateway = (*Client)(nil)

// NewClient creates a Bot API client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		chatID:  cfg.ChatID,
		timeout: timeout,
		logger:  logger,
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
	ErrorCode   int             `json:"error_code"`
}

type inlineKeyboard struct {
	InlineKeyboard [][]gateway.Button `json:"inline_keyboard"`
}

// CreateThread opens a forum topic in contextID (the configured chat when
// empty) and returns its message_thread_id.
func (c *Client) CreateThread(ctx context.Context, contextID, title string) (string, error) {
	if contextID == "" {
		contextID = c.chatID
	}
	var topic struct {
		MessageThreadID int64 `json:"message_thread_id"`
	}
	err := c.call(ctx, "createForumTopic", map[string]any{
		"chat_id": contextID,
		"name":    truncate(title, 128),
	}, &topic)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(topic.MessageThreadID, 10), nil
}

// PostCard sends the card into a topic and returns the message id.
func (c *Client) PostCard(ctx context.Context, threadID string, card gateway.Card) (string, error) {
	payload := map[string]any{
		"chat_id":      c.chatID,
		"text":         card.Text,
		"reply_markup": keyboard(card),
	}
	if err := setThread(payload, threadID); err != nil {
		return "", gateway.TransportError("sendMessage", err)
	}
	return c.send(ctx, payload)
}

// EditCard replaces text and keyboard of a posted card.
func (c *Client) EditCard(ctx context.Context, messageID string, card gateway.Card) error {
	id, err := strconv.ParseInt(messageID, 10, 64)
	if err != nil {
		return gateway.TransportError("editMessageText", fmt.Errorf("message id %q: %w", messageID, err))
	}
	err = c.call(ctx, "editMessageText", map[string]any{
		"chat_id":      c.chatID,
		"message_id":   id,
		"text":         card.Text,
		"reply_markup": keyboard(card),
	}, nil)
	if err != nil && strings.Contains(err.Error(), "message is not modified") {
		return nil
	}
	return err
}

// CloseThread closes the forum topic.
func (c *Client) CloseThread(ctx context.Context, threadID string) error {
	payload := map[string]any{"chat_id": c.chatID}
	if err := setThread(payload, threadID); err != nil {
		return gateway.TransportError("closeForumTopic", err)
	}
	err := c.call(ctx, "closeForumTopic", payload, nil)
	if err != nil && strings.Contains(err.Error(), "TOPIC_NOT_MODIFIED") {
		return nil
	}
	return err
}

// SendDirect writes to the user's private chat. It fails when the user never
// started a conversation with the bot.
func (c *Client) SendDirect(ctx context.Context, userID, text string) error {
	_, err := c.send(ctx, map[string]any{"chat_id": userID, "text": text})
	return err
}

// PostNotice posts plain text into a topic, or the general topic when
// threadID is empty.
func (c *Client) PostNotice(ctx context.Context, threadID, text string) error {
	payload := map[string]any{"chat_id": c.chatID, "text": text}
	if threadID != "" {
		if err := setThread(payload, threadID); err != nil {
			return gateway.TransportError("sendMessage", err)
		}
	}
	_, err := c.send(ctx, payload)
	return err
}

// AnswerCallback acknowledges a button press; alert shows a modal instead of
// a toast.
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error {
	return c.call(ctx, "answerCallbackQuery", map[string]any{
		"callback_query_id": callbackID,
		"text":              truncate(text, 200),
		"show_alert":        alert,
	}, nil)
}

func (c *Client) send(ctx context.Context, payload map[string]any) (string, error) {
	var msg struct {
		MessageID int64 `json:"message_id"`
	}
	if err := c.call(ctx, "sendMessage", payload, &msg); err != nil {
		return "", err
	}
	return strconv.FormatInt(msg.MessageID, 10), nil
}

func (c *Client) call(ctx context.Context, method string, payload any, result any) error {
	if err := ctx.Err(); err != nil {
		return gateway.TransportError(method, err)
	}
	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}

	agent := fiber.Post(c.baseURL + "/bot" + c.token + "/" + method)
	agent.JSON(payload)
	agent.Timeout(timeout)
	if err := agent.Parse(); err != nil {
		return gateway.TransportError(method, err)
	}

	var resp apiResponse
	status, _, errs := agent.Struct(&resp)
	if len(errs) > 0 {
		c.logger.Warn("bot api call failed", zap.String("method", method), zap.Error(errors.Join(errs...)))
		return gateway.TransportError(method, errors.Join(errs...))
	}
	if !resp.OK {
		c.logger.Warn("bot api rejected call",
			zap.String("method", method),
			zap.Int("status", status),
			zap.Int("error_code", resp.ErrorCode),
			zap.String("description", resp.Description))
		return gateway.TransportError(method, fmt.Errorf("bot api %d: %s", resp.ErrorCode, resp.Description))
	}
	if result == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return gateway.TransportError(method, err)
	}
	return nil
}

func keyboard(card gateway.Card) inlineKeyboard {
	rows := card.Rows
	if rows == nil {
		rows = [][]gateway.Button{}
	}
	return inlineKeyboard{InlineKeyboard: rows}
}

func setThread(payload map[string]any, threadID string) error {
	id, err := strconv.ParseInt(threadID, 10, 64)
	if err != nil {
		return fmt.Errorf("thread id %q: %w", threadID, err)
	}
	payload["message_thread_id"] = id
	return nil
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
