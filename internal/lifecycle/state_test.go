package lifecycle

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/curator-desk/internal/domain"
	apperrors "github.com/spec-kit/curator-desk/pkg/util/errorutil"
)

var base = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func entry(seq int64, action domain.ActionType, actor string) domain.ActionLogEntry {
	a := actor
	return domain.ActionLogEntry{
		TicketID:  "T1",
		Seq:       seq,
		CuratorID: &a,
		Action:    action,
		CreatedAt: base.Add(time.Duration(seq) * time.Second),
	}
}

func reassign(seq int64, actor, prior, target string) domain.ActionLogEntry {
	e := entry(seq, domain.ActionReassign, actor)
	e.PriorCuratorID = &prior
	e.TargetCuratorID = &target
	return e
}

func TestDerive_EmptyHistoryIsPending(t *testing.T) {
	state, err := Derive("T1", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusPending, state.Status)
	assert.Nil(t, state.OwnerID)
	assert.Equal(t, int64(0), state.Seq)
	assert.Nil(t, state.UpdatedAt)
}

func TestDerive_IsPure(t *testing.T) {
	history := []domain.ActionLogEntry{
		entry(1, domain.ActionTake, "x"),
		entry(2, domain.ActionHold, "x"),
		reassign(3, "x", "x", "y"),
	}

	first, err1 := Derive("T1", history)
	second, err2 := Derive("T1", history)

	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, first, second)
	assert.Equal(t, domain.TicketStatusInProgress, first.Status)
	assert.Equal(t, "y", first.Owner())
}

func TestDerive_FoldsBySeqNotSliceOrder(t *testing.T) {
	history := []domain.ActionLogEntry{
		entry(2, domain.ActionHold, "x"),
		entry(1, domain.ActionTake, "x"),
	}

	state, err := Derive("T1", history)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOnHold, state.Status)
	assert.Equal(t, int64(2), state.Seq)
}

func TestDerive_HoldResumeHold(t *testing.T) {
	history := []domain.ActionLogEntry{
		entry(1, domain.ActionTake, "x"),
		entry(2, domain.ActionHold, "x"),
		entry(3, domain.ActionResume, "x"),
		entry(4, domain.ActionHold, "x"),
	}

	state, err := Derive("T1", history)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOnHold, state.Status)
	assert.Equal(t, "x", state.Owner())
	require.NotNil(t, state.UpdatedAt)
	assert.Equal(t, base.Add(4*time.Second), *state.UpdatedAt)
}

func TestDerive_SecondTakeIsSurfacedAsConflict(t *testing.T) {
	history := []domain.ActionLogEntry{
		entry(1, domain.ActionTake, "x"),
		entry(2, domain.ActionTake, "y"),
	}

	state, err := Derive("T1", history)
	require.Error(t, err)

	var conflict *StateConflictError
	require.True(t, errors.As(err, &conflict))
	require.Len(t, conflict.Rejected, 1)
	assert.Equal(t, int64(2), conflict.Rejected[0].Seq)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStateConflict))

	assert.Equal(t, domain.TicketStatusInProgress, state.Status)
	assert.Equal(t, "x", state.Owner())
	assert.Equal(t, int64(2), state.Seq, "seq must include rejected entries")
}

func TestDerive_CloseIsTerminal(t *testing.T) {
	history := []domain.ActionLogEntry{
		entry(1, domain.ActionTake, "x"),
		entry(2, domain.ActionClose, "x"),
		entry(3, domain.ActionResume, "x"),
	}

	state, err := Derive("T1", history)
	require.Error(t, err)
	assert.Equal(t, domain.TicketStatusClosed, state.Status)
	assert.Equal(t, "x", state.Owner())
}

func TestDerive_ReassignWithStalePriorIsRejected(t *testing.T) {
	history := []domain.ActionLogEntry{
		entry(1, domain.ActionTake, "x"),
		reassign(2, "x", "x", "y"),
		reassign(3, "x", "x", "z"),
	}

	state, err := Derive("T1", history)
	require.Error(t, err)
	assert.Equal(t, "y", state.Owner())
}
