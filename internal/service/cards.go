package service

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/spec-kit/curator-desk/internal/callback"
	"github.com/spec-kit/curator-desk/internal/domain"
	"github.com/spec-kit/curator-desk/internal/gateway"
	"github.com/spec-kit/curator-desk/internal/lifecycle"
)

const (
	excerptLimit   = 500
	buttonsPerRow  = 2
	cardTimeLayout = "2006-01-02 15:04"
)

// CardView is everything a ticket card shows.
type CardView struct {
	Ticket    domain.Ticket
	State     lifecycle.State
	OwnerName string
	Excerpt   string
}

var statusMarks = map[domain.TicketStatus]string{
	domain.TicketStatusPending:    "⏳",
	domain.TicketStatusInProgress: "🟢",
	domain.TicketStatusOnHold:     "🟡",
	domain.TicketStatusClosed:     "❌",
}

var actionLabels = map[domain.ActionType]string{
	domain.ActionTake:     "✅ Take",
	domain.ActionHold:     "⏸ Hold",
	domain.ActionResume:   "▶ Resume",
	domain.ActionReassign: "🔄 Reassign",
	domain.ActionClose:    "❌ Close",
}

// RenderCard projects a ticket and its derived state onto a card. The
// output depends on the view only.
func RenderCard(view CardView) gateway.Card {
	return gateway.Card{Text: cardText(view), Rows: actionRows(view)}
}

// RenderPicker renders the card with one reassign-to button per candidate.
func RenderPicker(view CardView, candidates []domain.Curator) gateway.Card {
	text := cardText(view) + "\n\nChoose the curator to hand this request to:"
	rows := make([][]gateway.Button, 0, len(candidates))
	for _, curator := range candidates {
		rows = append(rows, []gateway.Button{{
			Text: curator.DisplayName,
			Data: callback.ReassignTo(curator.ID, view.Ticket.ID),
		}})
	}
	if len(candidates) == 0 {
		text = cardText(view) + "\n\nNo other curator is available."
		rows = actionRows(view)
	}
	return gateway.Card{Text: text, Rows: rows}
}

func cardText(view CardView) string {
	var b strings.Builder
	b.WriteString("Request from ")
	b.WriteString(studentLabel(view.Ticket))
	b.WriteString("\n")
	if view.Excerpt != "" {
		b.WriteString("\n")
		b.WriteString(excerpt(view.Excerpt))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Status: %s %s\n", statusMarks[view.State.Status], lifecycle.StatusLabel(view.State.Status))
	if owner := view.State.Owner(); owner != "" {
		name := view.OwnerName
		if name == "" {
			name = owner
		}
		fmt.Fprintf(&b, "Curator: %s\n", name)
	}
	updated := view.Ticket.CreatedAt
	if view.State.UpdatedAt != nil {
		updated = *view.State.UpdatedAt
	}
	if !updated.IsZero() {
		fmt.Fprintf(&b, "Updated: %s UTC", updated.UTC().Format(cardTimeLayout))
	}
	return strings.TrimRight(b.String(), "\n")
}

func actionRows(view CardView) [][]gateway.Button {
	actions := lifecycle.AvailableActions(view.State.Status)
	var rows [][]gateway.Button
	var row []gateway.Button
	for _, action := range actions {
		row = append(row, gateway.Button{
			Text: actionLabels[action],
			Data: callback.For(action, view.Ticket.ID),
		})
		if len(row) == buttonsPerRow {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return rows
}

func studentLabel(ticket domain.Ticket) string {
	if name := strings.TrimSpace(ticket.StudentName); name != "" {
		return name
	}
	return ticket.StudentID
}

func excerpt(body string) string {
	body = strings.TrimSpace(body)
	if utf8.RuneCountInString(body) <= excerptLimit {
		return body
	}
	runes := []rune(body)
	return string(runes[:excerptLimit]) + "…"
}
