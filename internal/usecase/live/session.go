package live

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-copilot/internal/domain/entities"
)

// MeetingStore is the part of the document store a session needs
type MeetingStore interface {
	GetMeeting(ctx context.Context, id int64) (*entities.Meeting, error)
	SaveMeetingData(ctx context.Context, meetingID int64, payload entities.MeetingPayload) (*entities.Meeting, error)
}

// SessionState is the coarse lifecycle of a session
type SessionState string

const (
	SessionRecording SessionState = "recording"
	SessionStopped   SessionState = "stopped"
	SessionAnalyzing SessionState = "analyzing"
	SessionFinished  SessionState = "finished"
	SessionDiscarded SessionState = "discarded"
)

// SessionDeps are the collaborators shared by every session
type SessionDeps struct {
	LLM       Completer
	Store     MeetingStore
	Publisher Publisher
	Prompts   PromptCatalog
	Metrics   Metrics
	Logger    *zap.Logger
	Now       func() time.Time
}

func (d SessionDeps) withDefaults() SessionDeps {
	if d.Publisher == nil {
		d.Publisher = nopPublisher{}
	}
	if d.Prompts == nil {
		d.Prompts = DefaultPrompts()
	}
	if d.Metrics == nil {
		d.Metrics = nopMetrics{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// Session owns all live pipeline state of one meeting. Resetting a meeting
// means discarding its session and starting a new one.
type Session struct {
	id        string
	meetingID int64
	deps      SessionDeps
	logger    *zap.Logger
	startedAt time.Time
	done      chan struct{}
	doneOnce  sync.Once

	mu           sync.Mutex
	endedAt      time.Time
	language     string
	prompts      PromptSet
	sentences    []entities.Sentence
	speakerNames map[string]string
	tracker      FragmentTracker
	audioPath    string
	stopped      bool
	finalized    bool
	discarded    bool
	finished     bool
	phase        AnalysisStatus
	actions      []string
	summary      *entities.Summary
	saveErr      string

	board     *QuestionBoard
	answers   *AnswerQueue
	detector  *QuestionDetector
	analyzer  *Analyzer
	finishing sync.WaitGroup
}

// NewSession builds a session and starts its two queue workers.
// meetingID 0 runs the pipeline without persisting the result.
func NewSession(meetingID int64, language string, deps SessionDeps) (*Session, error) {
	deps = deps.withDefaults()
	prompts, err := deps.Prompts.For(language)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	s := &Session{
		id:           id,
		meetingID:    meetingID,
		deps:         deps,
		logger:       deps.Logger.With(zap.String("session_id", id), zap.Int64("meeting_id", meetingID)),
		startedAt:    deps.Now(),
		done:         make(chan struct{}),
		language:     language,
		prompts:      prompts,
		speakerNames: map[string]string{},
		board:        NewQuestionBoard(),
	}
	s.answers = NewAnswerQueue(deps.LLM, s.answerPrompt, s.board, s.emit, s.logger, deps.Metrics)
	s.detector = NewQuestionDetector(deps.LLM, prompts.Questions, s.board, s.answers, s.emit, s.logger, deps.Metrics)
	s.analyzer = NewAnalyzer(deps.LLM, s.emit, s.logger, deps.Metrics)

	// answers keep flowing until the detector can no longer produce questions
	go func() {
		s.detector.Wait()
		s.answers.Close()
	}()

	s.logger.Info("live session started", zap.String("language", language))
	return s, nil
}

func (s *Session) ID() string       { return s.id }
func (s *Session) MeetingID() int64 { return s.meetingID }

// Done is closed once the session has finished its analysis or was discarded
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) markDone() {
	s.doneOnce.Do(func() { close(s.done) })
}

// Detector exposes the question detector, mainly for inspection
func (s *Session) Detector() *QuestionDetector { return s.detector }

// HandleTranscript takes the recognizer's full current state. New sentences
// become one fragment for question detection; a final update starts the
// end-of-meeting analysis exactly once.
func (s *Session) HandleTranscript(update entities.TranscriptUpdate) error {
	if update.Type != "" && update.Type != entities.TranscriptMessageType {
		return nil
	}

	s.mu.Lock()
	if s.discarded {
		s.mu.Unlock()
		return entities.ErrSessionClosed
	}
	if s.finalized {
		s.mu.Unlock()
		return nil
	}

	s.sentences = append(s.sentences[:0:0], update.Sentences...)
	fragment := s.tracker.Next(s.sentences)
	text := ""
	if len(fragment) > 0 && !s.stopped {
		text = BuildSpeakerText(fragment, s.speakerNames)
		if strings.TrimSpace(text) == "" {
			text = joinSegments(fragment)
		}
	}

	final := update.Final
	if final {
		s.finalized = true
		s.stopped = true
		s.endedAt = s.deps.Now()
	}
	s.mu.Unlock()

	if text != "" {
		s.detector.Enqueue(text)
	}
	if final {
		s.detector.Close()
		s.finishing.Add(1)
		go s.finish(update.FullText)
	}
	return nil
}

// Stop stops feeding new fragments to question detection. Queued work and
// in-flight calls complete, and a later final update still runs the analysis.
func (s *Session) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	s.detector.Close()
	s.logger.Info("live session stopped")
}

// Discard drops pending queue items and silences the session. Calls already
// issued run to completion but their results go nowhere.
func (s *Session) Discard() {
	s.mu.Lock()
	s.discarded = true
	s.stopped = true
	s.mu.Unlock()

	s.detector.Discard()
	s.answers.Discard()
	s.markDone()
	s.logger.Info("live session discarded")
}

// Wait blocks until both queues have drained and any analysis has finished
func (s *Session) Wait() {
	s.detector.Wait()
	s.answers.Wait()
	s.finishing.Wait()
}

// Shutdown stops the session and waits for it within ctx
func (s *Session) Shutdown(ctx context.Context) error {
	s.Stop()
	done := make(chan struct{})
	go func() {
		s.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetLanguage switches prompts; question detection restarts its conversation
func (s *Session) SetLanguage(language string) error {
	prompts, err := s.deps.Prompts.For(language)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.discarded {
		s.mu.Unlock()
		return entities.ErrSessionClosed
	}
	changed := s.language != language
	s.language = language
	s.prompts = prompts
	s.mu.Unlock()

	if changed {
		s.detector.ResetHistory(prompts.Questions)
	}
	return nil
}

// SetSpeakerName names a diarized speaker; an empty name restores the placeholder
func (s *Session) SetSpeakerName(speakerID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name = strings.TrimSpace(name)
	if name == "" {
		delete(s.speakerNames, speakerID)
		return
	}
	s.speakerNames[speakerID] = name
}

// SetAudioPath records where the meeting audio was stored
func (s *Session) SetAudioPath(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audioPath = path
}

func (s *Session) answerPrompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prompts.Answer
}

func (s *Session) emit(evt Event) {
	s.mu.Lock()
	discarded := s.discarded
	if evt.Type == EventAnalysisStatus {
		s.phase = evt.Status
	}
	s.mu.Unlock()
	if discarded {
		return
	}

	evt.SessionID = s.id
	evt.MeetingID = s.meetingID
	evt.At = s.deps.Now().UTC()
	s.deps.Publisher.Publish(context.Background(), evt)
}

func (s *Session) finish(fullText string) {
	defer s.finishing.Done()
	defer s.markDone()
	ctx := context.Background()
	s.emit(Event{Type: EventAnalysisStatus, Status: AnalysisStarted})

	// the Q/A list given to the summary is complete only once both queues drained
	s.detector.Wait()
	s.answers.Wait()

	s.mu.Lock()
	sentences := append([]entities.Sentence(nil), s.sentences...)
	names := make(map[string]string, len(s.speakerNames))
	for k, v := range s.speakerNames {
		names[k] = v
	}
	prompts := s.prompts
	s.mu.Unlock()

	transcript := BuildSpeakerText(sentences, names)
	if strings.TrimSpace(transcript) == "" {
		transcript = fullText
	}

	result := s.analyzer.Run(ctx, AnalysisInput{
		Transcript: transcript,
		Questions:  s.board.Snapshot(),
		Prompts:    prompts,
	})

	s.mu.Lock()
	s.actions = result.Actions
	s.summary = result.Summary
	discarded := s.discarded
	audioPath := s.audioPath
	duration := int(s.endedAt.Sub(s.startedAt).Seconds())
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.finished = true
		s.mu.Unlock()
	}()

	if discarded || s.meetingID == 0 || s.deps.Store == nil {
		return
	}

	payload := entities.MeetingPayload{
		Sentences:       sentences,
		Questions:       s.board.Records(),
		Actions:         make([]entities.ActionRecord, 0, len(result.Actions)),
		DurationSeconds: duration,
		AudioPath:       audioPath,
		SpeakerNames:    names,
	}
	for _, a := range result.Actions {
		payload.Actions = append(payload.Actions, entities.ActionRecord{Text: a})
	}
	if result.Summary != nil {
		payload.Summary = result.Summary.SummaryText
		payload.NextSteps = result.Summary.NextSteps
	}

	if _, err := s.deps.Store.SaveMeetingData(ctx, s.meetingID, payload); err != nil {
		s.mu.Lock()
		s.saveErr = err.Error()
		s.mu.Unlock()
		s.logger.Error("failed to save meeting data", zap.Error(err))
		s.emit(Event{Type: EventMeetingSaveFailed, Error: err.Error()})
		return
	}
	s.logger.Info("meeting data saved", zap.Int("duration_seconds", duration))
	s.emit(Event{Type: EventMeetingSaved})
}

// SessionView is a point-in-time copy of a session for the API
type SessionView struct {
	ID           string              `json:"id"`
	MeetingID    int64               `json:"meeting_id,omitempty"`
	State        SessionState        `json:"state"`
	Language     string              `json:"language"`
	StartedAt    time.Time           `json:"started_at"`
	Sentences    int                 `json:"sentences"`
	Processed    int                 `json:"processed_sentences"`
	Questions    []entities.Question `json:"questions"`
	Actions      []string            `json:"actions"`
	Summary      *entities.Summary   `json:"summary,omitempty"`
	Analysis     AnalysisStatus      `json:"analysis,omitempty"`
	SpeakerNames map[string]string   `json:"speaker_names"`
	AudioPath    string              `json:"audio_path,omitempty"`
	SaveError    string              `json:"save_error,omitempty"`
}

// Snapshot copies the current session state
func (s *Session) Snapshot() SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make(map[string]string, len(s.speakerNames))
	for k, v := range s.speakerNames {
		names[k] = v
	}
	actions := append([]string{}, s.actions...)

	return SessionView{
		ID:           s.id,
		MeetingID:    s.meetingID,
		State:        s.stateLocked(),
		Language:     s.language,
		StartedAt:    s.startedAt,
		Sentences:    len(s.sentences),
		Processed:    s.tracker.Cursor(),
		Questions:    s.board.Snapshot(),
		Actions:      actions,
		Summary:      s.summary,
		Analysis:     s.phase,
		SpeakerNames: names,
		AudioPath:    s.audioPath,
		SaveError:    s.saveErr,
	}
}

func (s *Session) stateLocked() SessionState {
	switch {
	case s.discarded:
		return SessionDiscarded
	case s.finished:
		return SessionFinished
	case s.finalized:
		return SessionAnalyzing
	case s.stopped:
		return SessionStopped
	default:
		return SessionRecording
	}
}
