package service

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/curator-desk/internal/domain"
	"github.com/spec-kit/curator-desk/internal/lifecycle"
)

func TestRenderCard_ButtonsFollowStatus(t *testing.T) {
	cases := []struct {
		status domain.TicketStatus
		want   []string
	}{
		{domain.TicketStatusPending, []string{"take:42"}},
		{domain.TicketStatusInProgress, []string{"hold:42", "reassign:42", "close:42"}},
		{domain.TicketStatusOnHold, []string{"resume:42", "reassign:42", "close:42"}},
		{domain.TicketStatusClosed, nil},
	}
	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			card := RenderCard(CardView{
				Ticket: domain.Ticket{ID: "42", StudentID: "7"},
				State:  lifecycle.State{TicketID: "42", Status: tc.status},
			})
			assert.Equal(t, tc.want, buttonData(card))
		})
	}
}

func TestRenderCard_IsPureProjection(t *testing.T) {
	owner := "100"
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	view := CardView{
		Ticket:    domain.Ticket{ID: "42", StudentID: "7", StudentName: "Sam"},
		State:     lifecycle.State{TicketID: "42", Status: domain.TicketStatusInProgress, OwnerID: &owner, Seq: 1, UpdatedAt: &at},
		OwnerName: "Alice",
		Excerpt:   "Need help",
	}
	first := RenderCard(view)
	assert.Equal(t, first, RenderCard(view))
	assert.Equal(t, "Request from Sam\n\nNeed help\n\nStatus: 🟢 in progress\nCurator: Alice\nUpdated: 2026-03-01 09:30 UTC", first.Text)
}

func TestRenderCard_FallsBackToIDs(t *testing.T) {
	owner := "100"
	card := RenderCard(CardView{
		Ticket: domain.Ticket{ID: "42", StudentID: "7"},
		State:  lifecycle.State{Status: domain.TicketStatusOnHold, OwnerID: &owner},
	})
	assert.Contains(t, card.Text, "Request from 7")
	assert.Contains(t, card.Text, "Curator: 100")
}

func TestRenderCard_TruncatesLongExcerpt(t *testing.T) {
	card := RenderCard(CardView{
		Ticket:  domain.Ticket{ID: "42", StudentID: "7"},
		State:   lifecycle.State{Status: domain.TicketStatusPending},
		Excerpt: strings.Repeat("я", excerptLimit+20),
	})
	assert.Contains(t, card.Text, strings.Repeat("я", excerptLimit)+"…")
	assert.NotContains(t, card.Text, strings.Repeat("я", excerptLimit+1))
}

func TestRenderPicker_NoCandidatesKeepsActions(t *testing.T) {
	owner := "100"
	view := CardView{
		Ticket: domain.Ticket{ID: "42", StudentID: "7"},
		State:  lifecycle.State{Status: domain.TicketStatusInProgress, OwnerID: &owner},
	}
	card := RenderPicker(view, nil)
	assert.Contains(t, card.Text, "No other curator")
	assert.Equal(t, []string{"hold:42", "reassign:42", "close:42"}, buttonData(card))

	card = RenderPicker(view, []domain.Curator{{ID: "200", DisplayName: "Bob"}})
	assert.Equal(t, []string{"reassign-to:200:42"}, buttonData(card))
	assert.Equal(t, "Bob", card.Rows[0][0].Text)
}
