package entities

import "errors"

// Domain errors
var (
	// Document errors
	ErrCompanyNotFound = errors.New("company not found")
	ErrMeetingNotFound = errors.New("meeting not found")
	ErrActionNotFound  = errors.New("action not found")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrAudioNotFound   = errors.New("audio not found")

	// Live session errors
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionClosed      = errors.New("session closed")
	ErrUnsupportedLang    = errors.New("unsupported language")
	ErrServiceUnreachable = errors.New("completion service unreachable")

	// Generic errors
	ErrInvalidRequest = errors.New("invalid request")
)
