// Package lifecycle derives a ticket's status and owner from its action log
// and decides which entry, if any, a requested action may append.
package lifecycle

import (
	"fmt"
	"sort"
	"time"

	"github.com/spec-kit/curator-desk/internal/domain"
	apperrors "github.com/spec-kit/curator-desk/pkg/util/errorutil"
)

// State is the derived view of a ticket. Seq is the position of the last
// entry in the log, valid or not, so the next append always lands at Seq+1.
type State struct {
	TicketID  string
	Status    domain.TicketStatus
	OwnerID   *string
	Seq       int64
	UpdatedAt *time.Time
}

// Owner returns the current owner id or an empty string.
func (s State) Owner() string {
	if s.OwnerID == nil {
		return ""
	}
	return *s.OwnerID
}

// OwnedBy reports whether curatorID is the current owner.
func (s State) OwnedBy(curatorID string) bool {
	return curatorID != "" && s.Owner() == curatorID
}

// Closed reports whether the ticket reached its terminal state.
func (s State) Closed() bool {
	return s.Status == domain.TicketStatusClosed
}

// StateConflictError lists log entries that Derive had to skip because they
// violate the transition rules (for example a second take by another curator
// without an intervening close).
type StateConflictError struct {
	TicketID string
	Rejected []domain.ActionLogEntry
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("ticket %s: %d conflicting log entries", e.TicketID, len(e.Rejected))
}

// Unwrap exposes the DomainError form of the conflict.
func (e *StateConflictError) Unwrap() error {
	seqs := make([]int64, 0, len(e.Rejected))
	for _, entry := range e.Rejected {
		seqs = append(seqs, entry.Seq)
	}
	return apperrors.NewStateConflict(e.TicketID, seqs)
}

// Derive folds history in Seq order. The earliest valid entry always wins;
// illegal entries are skipped and reported through a *StateConflictError
// alongside the folded state, which stays usable.
func Derive(ticketID string, history []domain.ActionLogEntry) (State, error) {
	entries := make([]domain.ActionLogEntry, len(history))
	copy(entries, history)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Seq < entries[j].Seq })

	state := State{TicketID: ticketID, Status: domain.TicketStatusPending}
	var rejected []domain.ActionLogEntry
	for _, entry := range entries {
		if entry.Seq > state.Seq {
			state.Seq = entry.Seq
		}
		next, err := transition(state, entry.Action, entry.Actor(), deref(entry.TargetCuratorID), entry.PriorCuratorID)
		if err != nil {
			rejected = append(rejected, entry)
			continue
		}
		at := entry.CreatedAt
		next.UpdatedAt = &at
		state = next
	}
	if len(rejected) > 0 {
		return state, &StateConflictError{TicketID: ticketID, Rejected: rejected}
	}
	return state, nil
}

// transition applies one action to state. Seq is left untouched.
func transition(state State, action domain.ActionType, actor, target string, prior *string) (State, error) {
	if state.Closed() {
		return state, apperrors.NewAlreadyClosed(state.TicketID)
	}
	next := state
	switch action {
	case domain.ActionTake:
		if state.Status != domain.TicketStatusPending {
			return state, apperrors.NewAlreadyClaimed(state.TicketID, state.Owner(), "")
		}
		if actor == "" {
			return state, apperrors.NewPermissionDenied(actor)
		}
		next.Status = domain.TicketStatusInProgress
		next.OwnerID = &actor
	case domain.ActionHold:
		if !state.OwnedBy(actor) {
			return state, apperrors.NewNotOwner(state.TicketID)
		}
		if state.Status != domain.TicketStatusInProgress {
			return state, invalid(state, action)
		}
		next.Status = domain.TicketStatusOnHold
	case domain.ActionResume:
		if !state.OwnedBy(actor) {
			return state, apperrors.NewNotOwner(state.TicketID)
		}
		if state.Status != domain.TicketStatusOnHold {
			return state, invalid(state, action)
		}
		next.Status = domain.TicketStatusInProgress
	case domain.ActionClose:
		if !state.OwnedBy(actor) {
			return state, apperrors.NewNotOwner(state.TicketID)
		}
		next.Status = domain.TicketStatusClosed
	case domain.ActionReassign:
		if !state.OwnedBy(actor) {
			return state, apperrors.NewNotOwner(state.TicketID)
		}
		if prior != nil && *prior != state.Owner() {
			return state, apperrors.NewNotOwner(state.TicketID)
		}
		if target == "" {
			return state, apperrors.NewUnknownCurator(target)
		}
		if target == actor {
			return state, invalid(state, action)
		}
		next.Status = domain.TicketStatusInProgress
		next.OwnerID = &target
	default:
		return state, apperrors.NewInvalidAction(string(action))
	}
	return next, nil
}

func invalid(state State, action domain.ActionType) error {
	return apperrors.NewInvalidTransition(state.TicketID, StatusLabel(state.Status), string(action))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
