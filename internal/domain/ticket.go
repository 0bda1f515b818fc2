package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets. It is never stored;
// it is derived from the action log.
type TicketStatus string

const (
	TicketStatusPending    TicketStatus = "PENDING"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusOnHold     TicketStatus = "ON_HOLD"
	TicketStatusClosed     TicketStatus = "CLOSED"
)

// Ticket is a single student request. ID equals the forum thread identifier.
// RequestKey identifies the inbound message that opened it.
type Ticket struct {
	ID            string
	ChatID        string
	StudentID     string
	StudentName   string
	RequestKey    *string
	CardMessageID *string
	CreatedAt     time.Time
}
