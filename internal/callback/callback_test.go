package callback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/curator-desk/internal/domain"
	apperrors "github.com/spec-kit/curator-desk/pkg/util/errorutil"
)

func TestParse_Valid(t *testing.T) {
	tests := []struct {
		token string
		want  Action
	}{
		{"take:42", Action{Kind: KindTake, TicketID: "42"}},
		{"hold:42", Action{Kind: KindHold, TicketID: "42"}},
		{"resume:42", Action{Kind: KindResume, TicketID: "42"}},
		{"close:42", Action{Kind: KindClose, TicketID: "42"}},
		{"reassign:42", Action{Kind: KindReassign, TicketID: "42"}},
		{"reassign-to:1001:42", Action{Kind: KindReassignTo, TargetID: "1001", TicketID: "42"}},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, err := Parse(tt.token)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.token, got.String())
		})
	}
}

func TestParse_RejectsMalformed(t *testing.T) {
	tokens := []string{
		"",
		"take",
		"take:",
		"take:42:extra",
		"take_42",
		"reassign-to:42",
		"reassign-to::42",
		"reassign_to_1_42",
		"escalate:42",
		"take:4 2",
		"take:" + string(make([]byte, 80)),
	}

	for _, token := range tokens {
		t.Run(token, func(t *testing.T) {
			_, err := Parse(token)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidAction))
		})
	}
}

func TestActionType(t *testing.T) {
	a, _ := Parse("reassign-to:7:42")
	got, ok := a.ActionType()
	assert.True(t, ok)
	assert.Equal(t, domain.ActionReassign, got)

	picker, _ := Parse("reassign:42")
	_, ok = picker.ActionType()
	assert.False(t, ok)
}

func TestFor(t *testing.T) {
	assert.Equal(t, "close:42", For(domain.ActionClose, "42"))
	assert.Equal(t, "reassign-to:7:42", ReassignTo("7", "42"))
}
