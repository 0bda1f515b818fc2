package domain

import "time"

// SenderRole indicates who authored a message.
type SenderRole string

const (
	SenderRoleStudent SenderRole = "student"
	SenderRoleCurator SenderRole = "curator"
)

// Message captures a single message posted in a ticket thread.
type Message struct {
	ID         string
	TicketID   string
	SenderID   string
	SenderRole SenderRole
	Body       string
	CreatedAt  time.Time
}
