// Package gateway defines the chat transport the core talks to. Ticket cards
// are rendered elsewhere; the gateway only delivers them.
package gateway

import (
	"context"
	"errors"
	"fmt"
)

// ErrTransport marks failures of the chat transport.
var ErrTransport = errors.New("chat transport unavailable")

// Button is one interactive card action; Data carries a callback token.
type Button struct {
	Text string `json:"text"`
	Data string `json:"callback_data"`
}

// Card is the text and keyboard of a ticket card.
type Card struct {
	Text string
	Rows [][]Button
}

// MessageGateway delivers messages and cards. An empty threadID in
// PostNotice addresses the general thread of the context.
type MessageGateway interface {
	CreateThread(ctx context.Context, contextID, title string) (string, error)
	PostCard(ctx context.Context, threadID string, card Card) (string, error)
	EditCard(ctx context.Context, messageID string, card Card) error
	CloseThread(ctx context.Context, threadID string) error
	SendDirect(ctx context.Context, userID, text string) error
	PostNotice(ctx context.Context, threadID, text string) error
}

// TransportError wraps a failed transport call so errors.Is(err, ErrTransport) holds.
func TransportError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrTransport, err)
}
