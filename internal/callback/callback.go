// Package callback encodes and parses the action tokens carried by ticket
// card buttons: take:<ticket>, hold:<ticket>, resume:<ticket>,
// close:<ticket>, reassign:<ticket> and reassign-to:<curator>:<ticket>.
package callback

import (
	"strings"

	"github.com/spec-kit/curator-desk/internal/domain"
	apperrors "github.com/spec-kit/curator-desk/pkg/util/errorutil"
)

// Kind identifies what a button asks for.
type Kind string

const (
	KindTake       Kind = "take"
	KindHold       Kind = "hold"
	KindResume     Kind = "resume"
	KindClose      Kind = "close"
	KindReassign   Kind = "reassign"
	KindReassignTo Kind = "reassign-to"
)

// Telegram limits callback_data to 64 bytes.
const maxTokenLen = 64

// Action is a parsed card token.
type Action struct {
	Kind     Kind
	TicketID string
	// TargetID is set for KindReassignTo only.
	TargetID string
}

// Parse decodes a token. Malformed tokens yield an INVALID_ACTION error.
func Parse(token string) (Action, error) {
	if token == "" || len(token) > maxTokenLen {
		return Action{}, apperrors.NewInvalidAction(token)
	}
	parts := strings.Split(token, ":")
	kind := Kind(parts[0])

	switch kind {
	case KindTake, KindHold, KindResume, KindClose, KindReassign:
		if len(parts) != 2 || !validID(parts[1]) {
			return Action{}, apperrors.NewInvalidAction(token)
		}
		return Action{Kind: kind, TicketID: parts[1]}, nil
	case KindReassignTo:
		if len(parts) != 3 || !validID(parts[1]) || !validID(parts[2]) {
			return Action{}, apperrors.NewInvalidAction(token)
		}
		return Action{Kind: kind, TargetID: parts[1], TicketID: parts[2]}, nil
	default:
		return Action{}, apperrors.NewInvalidAction(token)
	}
}

// String encodes the action back into its wire token.
func (a Action) String() string {
	if a.Kind == KindReassignTo {
		return string(a.Kind) + ":" + a.TargetID + ":" + a.TicketID
	}
	return string(a.Kind) + ":" + a.TicketID
}

// For builds the token for a lifecycle action on a ticket.
func For(action domain.ActionType, ticketID string) string {
	return Action{Kind: Kind(action), TicketID: ticketID}.String()
}

// ReassignTo builds the picker token selecting targetID.
func ReassignTo(targetID, ticketID string) string {
	return Action{Kind: KindReassignTo, TargetID: targetID, TicketID: ticketID}.String()
}

// ActionType maps the token kind to the log action it requests. The picker
// kind KindReassign requests no log action and reports false.
func (a Action) ActionType() (domain.ActionType, bool) {
	switch a.Kind {
	case KindTake:
		return domain.ActionTake, true
	case KindHold:
		return domain.ActionHold, true
	case KindResume:
		return domain.ActionResume, true
	case KindClose:
		return domain.ActionClose, true
	case KindReassignTo:
		return domain.ActionReassign, true
	default:
		return "", false
	}
}

func validID(id string) bool {
	if id == "" {
		return false
	}
	for _, r := range id {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
