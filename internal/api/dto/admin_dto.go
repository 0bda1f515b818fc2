package dto

import (
	"time"

	"github.com/spec-kit/curator-desk/internal/domain"
	"github.com/spec-kit/curator-desk/internal/lifecycle"
	"github.com/spec-kit/curator-desk/internal/service"
	apperrors "github.com/spec-kit/curator-desk/pkg/util/errorutil"
)

// RegisterCuratorRequest payload.
type RegisterCuratorRequest struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Active      *bool  `json:"active"`
}

// CuratorResponse represents a directory entry.
type CuratorResponse struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// StateResponse is the derived ticket state.
type StateResponse struct {
	Status    domain.TicketStatus `json:"status"`
	OwnerID   *string             `json:"owner_id"`
	Seq       int64               `json:"seq"`
	UpdatedAt *time.Time          `json:"updated_at"`
}

// ActionLogEntryResponse is one history entry.
type ActionLogEntryResponse struct {
	Seq             int64             `json:"seq"`
	Action          domain.ActionType `json:"action"`
	CuratorID       *string           `json:"curator_id"`
	PriorCuratorID  *string           `json:"prior_curator_id,omitempty"`
	TargetCuratorID *string           `json:"target_curator_id,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}

// MessageResponse is one thread message.
type MessageResponse struct {
	SenderID   string            `json:"sender_id"`
	SenderRole domain.SenderRole `json:"sender_role"`
	Body       string            `json:"body"`
	CreatedAt  time.Time         `json:"created_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	ID            string                   `json:"id"`
	ChatID        string                   `json:"chat_id"`
	StudentID     string                   `json:"student_id"`
	StudentName   string                   `json:"student_name"`
	CardMessageID *string                  `json:"card_message_id"`
	CreatedAt     time.Time                `json:"created_at"`
	State         StateResponse            `json:"state"`
	History       []ActionLogEntryResponse `json:"history"`
	Messages      []MessageResponse        `json:"messages"`
	// ConflictingSeqs lists log entries skipped while deriving the state.
	ConflictingSeqs []int64 `json:"conflicting_seqs,omitempty"`
}

// NewCuratorResponse maps a curator.
func NewCuratorResponse(c domain.Curator) CuratorResponse {
	return CuratorResponse{ID: c.ID, DisplayName: c.DisplayName, Active: c.Active, CreatedAt: c.CreatedAt}
}

// NewStateResponse maps a derived state.
func NewStateResponse(s lifecycle.State) StateResponse {
	return StateResponse{Status: s.Status, OwnerID: s.OwnerID, Seq: s.Seq, UpdatedAt: s.UpdatedAt}
}

// NewTicketDetailResponse maps a ticket view.
func NewTicketDetailResponse(view *service.TicketView) TicketDetailResponse {
	resp := TicketDetailResponse{
		ID:            view.Ticket.ID,
		ChatID:        view.Ticket.ChatID,
		StudentID:     view.Ticket.StudentID,
		StudentName:   view.Ticket.StudentName,
		CardMessageID: view.Ticket.CardMessageID,
		CreatedAt:     view.Ticket.CreatedAt,
		State:         NewStateResponse(view.State),
		History:       make([]ActionLogEntryResponse, 0, len(view.History)),
		Messages:      make([]MessageResponse, 0, len(view.Messages)),
	}
	for _, e := range view.History {
		resp.History = append(resp.History, ActionLogEntryResponse{
			Seq:             e.Seq,
			Action:          e.Action,
			CuratorID:       e.CuratorID,
			PriorCuratorID:  e.PriorCuratorID,
			TargetCuratorID: e.TargetCuratorID,
			CreatedAt:       e.CreatedAt,
		})
	}
	for _, m := range view.Messages {
		resp.Messages = append(resp.Messages, MessageResponse{
			SenderID:   m.SenderID,
			SenderRole: m.SenderRole,
			Body:       m.Body,
			CreatedAt:  m.CreatedAt,
		})
	}
	if de := apperrors.ToDomainError(view.Conflict); de != nil {
		if seqs, ok := de.Details["entries"].([]int64); ok {
			resp.ConflictingSeqs = seqs
		}
	}
	return resp
}
