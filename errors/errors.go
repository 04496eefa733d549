package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/johnquangdev/meeting-copilot/internal/domain/entities"
)

// ErrorCode identifies an application error in API responses
type ErrorCode int

const (
	ErrorCode_HTTP_OK          ErrorCode = 0
	ErrorCode_INTERNAL         ErrorCode = 1000
	ErrorCode_INVALID_ARGUMENT ErrorCode = 1001
	ErrorCode_NOT_FOUND        ErrorCode = 1002
	ErrorCode_INVALID_PAYLOAD  ErrorCode = 1003

	ErrorCode_COMPANY_NOT_FOUND ErrorCode = 2000
	ErrorCode_MEETING_NOT_FOUND ErrorCode = 2001
	ErrorCode_ACTION_NOT_FOUND  ErrorCode = 2002
	ErrorCode_INVALID_STATUS    ErrorCode = 2003
	ErrorCode_CASCADE_PARTIAL   ErrorCode = 2004

	ErrorCode_SESSION_NOT_FOUND    ErrorCode = 3000
	ErrorCode_SESSION_CLOSED       ErrorCode = 3001
	ErrorCode_UNSUPPORTED_LANGUAGE ErrorCode = 3002

	ErrorCode_AI_SERVICE_UNAVAILABLE     ErrorCode = 4000
	ErrorCode_INTEGRATION_STORAGE_FAILED ErrorCode = 4001
)

var codeNames = map[ErrorCode]string{
	ErrorCode_HTTP_OK:                    "HTTP_OK",
	ErrorCode_INTERNAL:                   "INTERNAL",
	ErrorCode_INVALID_ARGUMENT:           "INVALID_ARGUMENT",
	ErrorCode_NOT_FOUND:                  "NOT_FOUND",
	ErrorCode_INVALID_PAYLOAD:            "INVALID_PAYLOAD",
	ErrorCode_COMPANY_NOT_FOUND:          "COMPANY_NOT_FOUND",
	ErrorCode_MEETING_NOT_FOUND:          "MEETING_NOT_FOUND",
	ErrorCode_ACTION_NOT_FOUND:           "ACTION_NOT_FOUND",
	ErrorCode_INVALID_STATUS:             "INVALID_STATUS",
	ErrorCode_CASCADE_PARTIAL:            "CASCADE_PARTIAL",
	ErrorCode_SESSION_NOT_FOUND:          "SESSION_NOT_FOUND",
	ErrorCode_SESSION_CLOSED:             "SESSION_CLOSED",
	ErrorCode_UNSUPPORTED_LANGUAGE:       "UNSUPPORTED_LANGUAGE",
	ErrorCode_AI_SERVICE_UNAVAILABLE:     "AI_SERVICE_UNAVAILABLE",
	ErrorCode_INTEGRATION_STORAGE_FAILED: "INTEGRATION_STORAGE_FAILED",
}

func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ErrorCode(%d)", int(c))
}

// AppError is the error type handlers turn into JSON responses
type AppError struct {
	Raw       error
	HTTPCode  int
	Code      ErrorCode
	Message   string
	Details   map[string]string
	Timestamp time.Time
}

// Error implements error interface
func (e AppError) Error() string {
	if e.Raw != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code.String(), e.Message, e.Raw)
	}
	return fmt.Sprintf("[%s] %s", e.Code.String(), e.Message)
}

func (e AppError) Unwrap() error { return e.Raw }

// WithDetail adds a detail to the error
func (e AppError) WithDetail(key, value string) AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// General Errors
func ErrInternal(err error) AppError {
	return AppError{
		Raw:      err,
		HTTPCode: http.StatusInternalServerError,
		Code:     ErrorCode_INTERNAL,
		Message:  "Internal server error",
	}
}

func ErrInvalidArgument(message string) AppError {
	return AppError{
		HTTPCode: http.StatusBadRequest,
		Code:     ErrorCode_INVALID_ARGUMENT,
		Message:  message,
	}
}

func ErrNotFound(resource string) AppError {
	return AppError{
		HTTPCode: http.StatusNotFound,
		Code:     ErrorCode_NOT_FOUND,
		Message:  fmt.Sprintf("%s not found", resource),
	}
}

func ErrInvalidPayload(err error) AppError {
	return AppError{
		Raw:      err,
		HTTPCode: http.StatusBadRequest,
		Code:     ErrorCode_INVALID_PAYLOAD,
		Message:  "Invalid payload",
	}
}

// Document Errors
func ErrCompanyNotFound(companyID int64) AppError {
	return AppError{
		HTTPCode: http.StatusNotFound,
		Code:     ErrorCode_COMPANY_NOT_FOUND,
		Message:  "Company not found",
	}.WithDetail("company_id", fmt.Sprint(companyID))
}

func ErrMeetingNotFound(meetingID int64) AppError {
	return AppError{
		HTTPCode: http.StatusNotFound,
		Code:     ErrorCode_MEETING_NOT_FOUND,
		Message:  "Meeting not found",
	}.WithDetail("meeting_id", fmt.Sprint(meetingID))
}

func ErrActionNotFound(actionID int64) AppError {
	return AppError{
		HTTPCode: http.StatusNotFound,
		Code:     ErrorCode_ACTION_NOT_FOUND,
		Message:  "Action not found",
	}.WithDetail("action_id", fmt.Sprint(actionID))
}

func ErrInvalidStatus(status string) AppError {
	return AppError{
		HTTPCode: http.StatusBadRequest,
		Code:     ErrorCode_INVALID_STATUS,
		Message:  "Invalid status",
	}.WithDetail("status", status)
}

// ErrCascadePartial reports a company deletion that left some meetings behind
func ErrCascadePartial(companyID int64, err error) AppError {
	return AppError{
		Raw:      err,
		HTTPCode: http.StatusMultiStatus,
		Code:     ErrorCode_CASCADE_PARTIAL,
		Message:  "Company deleted but some meetings could not be removed",
	}.WithDetail("company_id", fmt.Sprint(companyID))
}

// Live Session Errors
func ErrSessionNotFound(sessionID string) AppError {
	return AppError{
		HTTPCode: http.StatusNotFound,
		Code:     ErrorCode_SESSION_NOT_FOUND,
		Message:  "Session not found",
	}.WithDetail("session_id", sessionID)
}

func ErrSessionClosed(sessionID string) AppError {
	return AppError{
		HTTPCode: http.StatusConflict,
		Code:     ErrorCode_SESSION_CLOSED,
		Message:  "Session is closed",
	}.WithDetail("session_id", sessionID)
}

func ErrUnsupportedLanguage(language string) AppError {
	return AppError{
		HTTPCode: http.StatusBadRequest,
		Code:     ErrorCode_UNSUPPORTED_LANGUAGE,
		Message:  "Unsupported language",
	}.WithDetail("language", language)
}

// Integration Errors
func ErrAIServiceUnavailable(err error) AppError {
	return AppError{
		Raw:      err,
		HTTPCode: http.StatusServiceUnavailable,
		Code:     ErrorCode_AI_SERVICE_UNAVAILABLE,
		Message:  "Completion service temporarily unavailable",
	}
}

func ErrStorageFailed(operation string, err error) AppError {
	return AppError{
		Raw:      err,
		HTTPCode: http.StatusInternalServerError,
		Code:     ErrorCode_INTEGRATION_STORAGE_FAILED,
		Message:  fmt.Sprintf("Storage operation failed: %s", operation),
	}
}

// FromDomain maps a domain error to its AppError. Errors that are already
// AppErrors pass through; anything unknown becomes an internal error.
func FromDomain(err error) AppError {
	var appErr AppError
	if stdErrors.As(err, &appErr) {
		return appErr
	}

	switch {
	case stdErrors.Is(err, entities.ErrCompanyNotFound):
		return AppError{Raw: err, HTTPCode: http.StatusNotFound, Code: ErrorCode_COMPANY_NOT_FOUND, Message: "Company not found"}
	case stdErrors.Is(err, entities.ErrMeetingNotFound):
		return AppError{Raw: err, HTTPCode: http.StatusNotFound, Code: ErrorCode_MEETING_NOT_FOUND, Message: "Meeting not found"}
	case stdErrors.Is(err, entities.ErrActionNotFound):
		return AppError{Raw: err, HTTPCode: http.StatusNotFound, Code: ErrorCode_ACTION_NOT_FOUND, Message: "Action not found"}
	case stdErrors.Is(err, entities.ErrAudioNotFound):
		return AppError{Raw: err, HTTPCode: http.StatusNotFound, Code: ErrorCode_NOT_FOUND, Message: "Audio not found"}
	case stdErrors.Is(err, entities.ErrInvalidStatus):
		return AppError{Raw: err, HTTPCode: http.StatusBadRequest, Code: ErrorCode_INVALID_STATUS, Message: "Invalid status"}
	case stdErrors.Is(err, entities.ErrSessionNotFound):
		return AppError{Raw: err, HTTPCode: http.StatusNotFound, Code: ErrorCode_SESSION_NOT_FOUND, Message: "Session not found"}
	case stdErrors.Is(err, entities.ErrSessionClosed):
		return AppError{Raw: err, HTTPCode: http.StatusConflict, Code: ErrorCode_SESSION_CLOSED, Message: "Session is closed"}
	case stdErrors.Is(err, entities.ErrUnsupportedLang):
		return AppError{Raw: err, HTTPCode: http.StatusBadRequest, Code: ErrorCode_UNSUPPORTED_LANGUAGE, Message: "Unsupported language"}
	case stdErrors.Is(err, entities.ErrServiceUnreachable):
		return ErrAIServiceUnavailable(err)
	case stdErrors.Is(err, entities.ErrInvalidRequest):
		return AppError{Raw: err, HTTPCode: http.StatusBadRequest, Code: ErrorCode_INVALID_ARGUMENT, Message: "Invalid request"}
	}
	return ErrInternal(err)
}
