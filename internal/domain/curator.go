package domain

import "time"

// Curator models an operator permitted to own tickets.
type Curator struct {
	ID          string
	DisplayName string
	Active      bool
	CreatedAt   time.Time
}
