package errorutil

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
)

// Error codes shared by the HTTP layer, the webhook answers and the CLI.
const (
	CodeValidation        = "VALIDATION_FAILED"
	CodeNotFound          = "NOT_FOUND"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeConflict          = "CONFLICT"
	CodeInternal          = "INTERNAL_ERROR"
	CodeNotOwner          = "NOT_OWNER"
	CodeAlreadyClaimed    = "ALREADY_CLAIMED"
	CodeAlreadyClosed     = "ALREADY_CLOSED"
	CodeUnknownCurator    = "UNKNOWN_CURATOR"
	CodeInvalidAction     = "INVALID_ACTION"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodePermissionDenied  = "PERMISSION_DENIED"
	CodeTransport         = "TRANSPORT_ERROR"
	CodeStoreUnavailable  = "STORE_UNAVAILABLE"
	CodeStateConflict     = "STATE_CONFLICT"
)

const serviceUnavailableMessage = "service temporarily unavailable, please try again later"

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches another DomainError by code so errors.Is(err, &DomainError{Code: ...}) works.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

// NewConflict reports a lost compare-and-append race. The caller should look
// at the ticket again; the system does not retry on their behalf.
func NewConflict(message string, details map[string]any) error {
	if message == "" {
		message = "another curator changed this ticket at the same moment, please try again"
	}
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewAlreadyClaimed reports that byWhom already owns the ticket.
func NewAlreadyClaimed(ticketID, byWhom, byName string) error {
	name := byName
	if name == "" {
		name = byWhom
	}
	return NewDomainError(CodeAlreadyClaimed,
		fmt.Sprintf("this request is already being handled by %s", name),
		http.StatusConflict,
		map[string]any{"ticket_id": ticketID, "curator_id": byWhom})
}

func NewNotOwner(ticketID string) error {
	return NewDomainError(CodeNotOwner,
		"you cannot do this: the request is handled by another curator",
		http.StatusForbidden,
		map[string]any{"ticket_id": ticketID})
}

func NewAlreadyClosed(ticketID string) error {
	return NewDomainError(CodeAlreadyClosed,
		"this request is already closed",
		http.StatusConflict,
		map[string]any{"ticket_id": ticketID})
}

func NewUnknownCurator(curatorID string) error {
	return NewDomainError(CodeUnknownCurator,
		"curator not found",
		http.StatusUnprocessableEntity,
		map[string]any{"curator_id": curatorID})
}

func NewInvalidAction(token string) error {
	return NewDomainError(CodeInvalidAction,
		"invalid data format",
		http.StatusBadRequest,
		map[string]any{"token": token})
}

func NewInvalidTransition(ticketID, status, action string) error {
	return NewDomainError(CodeInvalidTransition,
		fmt.Sprintf("cannot %s a request that is %s", action, status),
		http.StatusConflict,
		map[string]any{"ticket_id": ticketID, "status": status, "action": action})
}

func NewPermissionDenied(userID string) error {
	return NewDomainError(CodePermissionDenied,
		"you are not a curator of this chat",
		http.StatusForbidden,
		map[string]any{"user_id": userID})
}

// NewStateConflict reports a ticket log holding entries that violate the
// transition rules.
func NewStateConflict(ticketID string, seqs []int64) error {
	return NewDomainError(CodeStateConflict,
		"ticket history contains conflicting entries",
		http.StatusConflict,
		map[string]any{"ticket_id": ticketID, "entries": seqs})
}

func NewTransportError(err error) error {
	return &DomainError{
		Code:       CodeTransport,
		Message:    serviceUnavailableMessage,
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

func NewStoreUnavailable(err error) error {
	return &DomainError{
		Code:       CodeStoreUnavailable,
		Message:    serviceUnavailableMessage,
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

// HasCode reports whether err is a DomainError carrying code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// IsInfrastructure reports whether err stems from the store or the transport
// rather than from a rule violation by the acting user.
func IsInfrastructure(err error) bool {
	de := ToDomainError(err)
	if de == nil {
		return false
	}
	return de.HTTPStatus >= http.StatusInternalServerError
}

// UserMessage returns the text shown to the acting user for err.
func UserMessage(err error) string {
	de := ToDomainError(err)
	if de == nil {
		return ""
	}
	if de.HTTPStatus >= http.StatusInternalServerError {
		return serviceUnavailableMessage
	}
	return de.Message
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, sql.ErrNoRows) {
		if de, ok := NewNotFound("resource", nil).(*DomainError); ok {
			return de
		}
	}
	if de, ok := NewInternalError(err).(*DomainError); ok {
		return de
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}
