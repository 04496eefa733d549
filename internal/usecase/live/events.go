package live

import (
	"context"
	"time"

	"github.com/johnquangdev/meeting-copilot/internal/domain/entities"
)

// EventType names a pipeline notification for the rendering side
type EventType string

const (
	EventQuestionCreated   EventType = "question.created"
	EventAnswerToken       EventType = "question.answer_token"
	EventAnswerFinalized   EventType = "question.answer_finalized"
	EventActionDetected    EventType = "action.detected"
	EventAnalysisStatus    EventType = "analysis.status"
	EventMeetingSaved      EventType = "meeting.saved"
	EventMeetingSaveFailed EventType = "meeting.save_failed"
)

// AnalysisStatus is the phase of the end-of-meeting analysis
type AnalysisStatus string

const (
	AnalysisIdle        AnalysisStatus = ""
	AnalysisStarted     AnalysisStatus = "started"
	AnalysisActions     AnalysisStatus = "actions"
	AnalysisSummary     AnalysisStatus = "summary"
	AnalysisSkipped     AnalysisStatus = "skipped"
	AnalysisUnavailable AnalysisStatus = "unavailable"
	AnalysisDone        AnalysisStatus = "done"
)

// Event is one pipeline notification
type Event struct {
	Type      EventType          `json:"type"`
	SessionID string             `json:"session_id"`
	MeetingID int64              `json:"meeting_id,omitempty"`
	Question  *entities.Question `json:"question,omitempty"`
	Token     string             `json:"token,omitempty"`
	Action    string             `json:"action,omitempty"`
	Status    AnalysisStatus     `json:"status,omitempty"`
	Error     string             `json:"error,omitempty"`
	At        time.Time          `json:"at"`
}

// Publisher delivers events to observers. Publish must not block the pipeline
// for long and must not fail it; delivery errors are the publisher's concern.
type Publisher interface {
	Publish(ctx context.Context, evt Event)
}

// PublisherFunc adapts a function to Publisher
type PublisherFunc func(ctx context.Context, evt Event)

func (f PublisherFunc) Publish(ctx context.Context, evt Event) { f(ctx, evt) }

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) {}

// emitFunc is how queue components hand events to their session
type emitFunc func(evt Event)
