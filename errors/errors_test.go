package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/johnquangdev/meeting-copilot/internal/domain/entities"
)

func TestFromDomain(t *testing.T) {
	tests := []struct {
		err      error
		wantHTTP int
		wantCode ErrorCode
	}{
		{entities.ErrCompanyNotFound, http.StatusNotFound, ErrorCode_COMPANY_NOT_FOUND},
		{fmt.Errorf("load: %w", entities.ErrMeetingNotFound), http.StatusNotFound, ErrorCode_MEETING_NOT_FOUND},
		{entities.ErrActionNotFound, http.StatusNotFound, ErrorCode_ACTION_NOT_FOUND},
		{entities.ErrInvalidStatus, http.StatusBadRequest, ErrorCode_INVALID_STATUS},
		{entities.ErrSessionClosed, http.StatusConflict, ErrorCode_SESSION_CLOSED},
		{fmt.Errorf("%w: \"de\"", entities.ErrUnsupportedLang), http.StatusBadRequest, ErrorCode_UNSUPPORTED_LANGUAGE},
		{entities.ErrServiceUnreachable, http.StatusServiceUnavailable, ErrorCode_AI_SERVICE_UNAVAILABLE},
		{stdErrors.New("disk full"), http.StatusInternalServerError, ErrorCode_INTERNAL},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			got := FromDomain(tt.err)
			assert.Equal(t, tt.wantHTTP, got.HTTPCode)
			assert.Equal(t, tt.wantCode, got.Code)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestFromDomainKeepsAppError(t *testing.T) {
	original := ErrSessionNotFound("abc")
	wrapped := fmt.Errorf("handler: %w", original)

	got := FromDomain(wrapped)
	assert.Equal(t, ErrorCode_SESSION_NOT_FOUND, got.Code)
	assert.Equal(t, "abc", got.Details["session_id"])
}

func TestAppErrorMessage(t *testing.T) {
	assert.Equal(t, "[NOT_FOUND] meeting not found", ErrNotFound("meeting").Error())
	assert.Equal(t, "[INTERNAL] Internal server error: boom", ErrInternal(stdErrors.New("boom")).Error())
	assert.Equal(t, "ErrorCode(77)", ErrorCode(77).String())
}
