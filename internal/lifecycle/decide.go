package lifecycle

import (
	"strings"

	"github.com/spec-kit/curator-desk/internal/domain"
)

// Command is a request by a curator to change a ticket.
type Command struct {
	Action     domain.ActionType
	ActorID    string
	TargetID   string
	RequestKey string
}

// Decide validates cmd against state and returns the entry to append at
// state.Seq+1. The returned entry has no ID or CreatedAt yet.
func Decide(state State, cmd Command) (*domain.ActionLogEntry, error) {
	var prior *string
	if cmd.Action == domain.ActionReassign && state.OwnerID != nil {
		owner := state.Owner()
		prior = &owner
	}
	if _, err := transition(state, cmd.Action, cmd.ActorID, cmd.TargetID, prior); err != nil {
		return nil, err
	}

	actor := cmd.ActorID
	entry := &domain.ActionLogEntry{
		TicketID:       state.TicketID,
		Seq:            state.Seq + 1,
		CuratorID:      &actor,
		Action:         cmd.Action,
		PriorCuratorID: prior,
	}
	if cmd.Action == domain.ActionReassign {
		target := cmd.TargetID
		entry.TargetCuratorID = &target
	}
	if key := strings.TrimSpace(cmd.RequestKey); key != "" {
		entry.RequestKey = &key
	}
	return entry, nil
}

// AvailableActions lists the card actions that make sense for a status.
func AvailableActions(status domain.TicketStatus) []domain.ActionType {
	switch status {
	case domain.TicketStatusPending:
		return []domain.ActionType{domain.ActionTake}
	case domain.TicketStatusInProgress:
		return []domain.ActionType{domain.ActionHold, domain.ActionReassign, domain.ActionClose}
	case domain.TicketStatusOnHold:
		return []domain.ActionType{domain.ActionResume, domain.ActionReassign, domain.ActionClose}
	default:
		return nil
	}
}

// StatusLabel renders a status for humans.
func StatusLabel(status domain.TicketStatus) string {
	switch status {
	case domain.TicketStatusPending:
		return "pending"
	case domain.TicketStatusInProgress:
		return "in progress"
	case domain.TicketStatusOnHold:
		return "on hold"
	case domain.TicketStatusClosed:
		return "closed"
	default:
		return strings.ToLower(string(status))
	}
}
