package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "this request is already being handled by Alice", UserMessage(NewAlreadyClaimed("7", "100", "Alice")))
	assert.Equal(t, "this request is already being handled by 100", UserMessage(NewAlreadyClaimed("7", "100", "")))
	assert.Equal(t, serviceUnavailableMessage, UserMessage(NewStoreUnavailable(errors.New("conn refused"))))
	assert.Equal(t, serviceUnavailableMessage, UserMessage(errors.New("boom")))
	assert.Empty(t, UserMessage(nil))
}

func TestClassification(t *testing.T) {
	wrapped := fmt.Errorf("claim: %w", NewNotOwner("7"))
	assert.True(t, HasCode(wrapped, CodeNotOwner))
	assert.False(t, HasCode(wrapped, CodeAlreadyClosed))
	assert.True(t, errors.Is(wrapped, &DomainError{Code: CodeNotOwner}))

	assert.True(t, IsInfrastructure(NewTransportError(errors.New("timeout"))))
	assert.True(t, IsInfrastructure(NewStoreUnavailable(nil)))
	assert.False(t, IsInfrastructure(NewPermissionDenied("5")))
	assert.False(t, IsInfrastructure(nil))
}

func TestToDomainError(t *testing.T) {
	de := ToDomainError(NewStateConflict("7", []int64{3, 4}))
	assert.Equal(t, CodeStateConflict, de.Code)
	assert.Equal(t, []int64{3, 4}, de.Details["entries"])

	de = ToDomainError(errors.New("raw"))
	assert.Equal(t, CodeInternal, de.Code)
	assert.Equal(t, http.StatusInternalServerError, de.HTTPStatus)
}
