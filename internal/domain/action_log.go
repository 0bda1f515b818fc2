package domain

import "time"

// ActionType enumerates ownership-changing actions.
type ActionType string

const (
	ActionTake     ActionType = "take"
	ActionHold     ActionType = "hold"
	ActionResume   ActionType = "resume"
	ActionClose    ActionType = "close"
	ActionReassign ActionType = "reassign"
)

// Valid reports whether the action is one of the known action types.
func (a ActionType) Valid() bool {
	switch a {
	case ActionTake, ActionHold, ActionResume, ActionClose, ActionReassign:
		return true
	}
	return false
}

// ActionLogEntry is an immutable assignment trail entry. Seq is the 1-based
// position of the entry within its ticket's log; CreatedAt is assigned by the
// store.
type ActionLogEntry struct {
	ID              string
	TicketID        string
	Seq             int64
	CuratorID       *string
	Action          ActionType
	PriorCuratorID  *string
	TargetCuratorID *string
	RequestKey      *string
	CreatedAt       time.Time
}

// Actor returns the acting curator id or an empty string for system entries.
func (e ActionLogEntry) Actor() string {
	if e.CuratorID == nil {
		return ""
	}
	return *e.CuratorID
}
