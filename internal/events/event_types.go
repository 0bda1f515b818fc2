package events

import (
	"time"

	"github.com/spec-kit/curator-desk/internal/domain"
	"github.com/spec-kit/curator-desk/internal/lifecycle"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketActionApplied EventType = "ticket_action_applied"
	EventReassignRequested   EventType = "ticket_reassign_requested"
)

// Event represents a domain event emitted after a commit.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	ActorID   string      `json:"actor_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Ticket       domain.Ticket  `json:"ticket"`
	FirstMessage domain.Message `json:"first_message"`
}

// ActionAppliedPayload carries the committed entry and the state derived
// right after it.
type ActionAppliedPayload struct {
	Ticket  domain.Ticket         `json:"ticket"`
	Entry   domain.ActionLogEntry `json:"entry"`
	State   lifecycle.State       `json:"state"`
	Latency *time.Duration        `json:"latency,omitempty"`
}

// ReassignRequestedPayload lists curators the owner may hand the ticket to.
type ReassignRequestedPayload struct {
	Ticket     domain.Ticket    `json:"ticket"`
	Candidates []domain.Curator `json:"candidates"`
}
