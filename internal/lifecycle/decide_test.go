package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/curator-desk/internal/domain"
	apperrors "github.com/spec-kit/curator-desk/pkg/util/errorutil"
)

func stateOf(t *testing.T, history ...domain.ActionLogEntry) State {
	t.Helper()
	state, err := Derive("T1", history)
	require.NoError(t, err)
	return state
}

func TestDecide(t *testing.T) {
	pending := stateOf(t)
	inProgress := stateOf(t, entry(1, domain.ActionTake, "x"))
	onHold := stateOf(t, entry(1, domain.ActionTake, "x"), entry(2, domain.ActionHold, "x"))
	closed := stateOf(t, entry(1, domain.ActionTake, "x"), entry(2, domain.ActionClose, "x"))

	tests := []struct {
		name    string
		state   State
		cmd     Command
		errCode string
	}{
		{"take pending", pending, Command{Action: domain.ActionTake, ActorID: "x"}, ""},
		{"take owned by other", inProgress, Command{Action: domain.ActionTake, ActorID: "y"}, apperrors.CodeAlreadyClaimed},
		{"take closed", closed, Command{Action: domain.ActionTake, ActorID: "y"}, apperrors.CodeAlreadyClosed},
		{"hold pending", pending, Command{Action: domain.ActionHold, ActorID: "x"}, apperrors.CodeNotOwner},
		{"hold by owner", inProgress, Command{Action: domain.ActionHold, ActorID: "x"}, ""},
		{"hold by other", inProgress, Command{Action: domain.ActionHold, ActorID: "y"}, apperrors.CodeNotOwner},
		{"hold twice", onHold, Command{Action: domain.ActionHold, ActorID: "x"}, apperrors.CodeInvalidTransition},
		{"resume in progress", inProgress, Command{Action: domain.ActionResume, ActorID: "x"}, apperrors.CodeInvalidTransition},
		{"resume on hold", onHold, Command{Action: domain.ActionResume, ActorID: "x"}, ""},
		{"close on hold", onHold, Command{Action: domain.ActionClose, ActorID: "x"}, ""},
		{"close by other", inProgress, Command{Action: domain.ActionClose, ActorID: "y"}, apperrors.CodeNotOwner},
		{"close closed", closed, Command{Action: domain.ActionClose, ActorID: "x"}, apperrors.CodeAlreadyClosed},
		{"reassign", inProgress, Command{Action: domain.ActionReassign, ActorID: "x", TargetID: "y"}, ""},
		{"reassign to self", inProgress, Command{Action: domain.ActionReassign, ActorID: "x", TargetID: "x"}, apperrors.CodeInvalidTransition},
		{"reassign without target", inProgress, Command{Action: domain.ActionReassign, ActorID: "x"}, apperrors.CodeUnknownCurator},
		{"reassign closed", closed, Command{Action: domain.ActionReassign, ActorID: "x", TargetID: "y"}, apperrors.CodeAlreadyClosed},
		{"unknown action", inProgress, Command{Action: "escalate", ActorID: "x"}, apperrors.CodeInvalidAction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decide(tt.state, tt.cmd)
			if tt.errCode != "" {
				require.Error(t, err)
				assert.True(t, apperrors.HasCode(err, tt.errCode), "got %v", err)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.state.Seq+1, got.Seq)
			assert.Equal(t, tt.cmd.Action, got.Action)
			assert.Equal(t, tt.cmd.ActorID, got.Actor())
		})
	}
}

func TestDecide_ReassignRecordsPriorAndTarget(t *testing.T) {
	state := stateOf(t, entry(1, domain.ActionTake, "x"))

	got, err := Decide(state, Command{Action: domain.ActionReassign, ActorID: "x", TargetID: "y", RequestKey: " cb-1 "})
	require.NoError(t, err)
	require.NotNil(t, got.PriorCuratorID)
	require.NotNil(t, got.TargetCuratorID)
	require.NotNil(t, got.RequestKey)
	assert.Equal(t, "x", *got.PriorCuratorID)
	assert.Equal(t, "y", *got.TargetCuratorID)
	assert.Equal(t, "cb-1", *got.RequestKey)

	next, err := Derive("T1", []domain.ActionLogEntry{entry(1, domain.ActionTake, "x"), *got})
	require.NoError(t, err)
	assert.Equal(t, "y", next.Owner())
}

func TestAvailableActions(t *testing.T) {
	assert.Equal(t, []domain.ActionType{domain.ActionTake}, AvailableActions(domain.TicketStatusPending))
	assert.Contains(t, AvailableActions(domain.TicketStatusOnHold), domain.ActionResume)
	assert.Empty(t, AvailableActions(domain.TicketStatusClosed))
}
