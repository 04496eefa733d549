package live

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-copilot/internal/domain/entities"
	"github.com/johnquangdev/meeting-copilot/pkg/ai"
)

func scriptedLLM(t *testing.T) *fakeLLM {
	t.Helper()
	prompts := analysisPrompts(t)
	return newFakeLLM(func(req ai.ChatRequest) (string, error) {
		switch req.Messages[0].Content {
		case prompts.Questions:
			if strings.Contains(req.Messages[len(req.Messages)-1].Content, "?") {
				return "QUESTION: Can we ship on Friday?", nil
			}
			return "NOTHING", nil
		case prompts.Answer:
			return "Only if QA signs off.", nil
		case prompts.Actions:
			return "ACTION: Confirm the ship date with QA\n", nil
		case prompts.Summary:
			return `{"summary":"Release timing discussed.","next_steps":"QA sign-off."}`, nil
		}
		return "", nil
	})
}

func newTestSession(t *testing.T, meetingID int64, llm *fakeLLM, store *memoryStore, events *eventRecorder) *Session {
	t.Helper()
	clock := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)
	s, err := NewSession(meetingID, "en", SessionDeps{
		LLM:       llm,
		Store:     store,
		Publisher: events,
		Logger:    zap.NewNop(),
		Now: func() time.Time {
			clock = clock.Add(30 * time.Second)
			return clock
		},
	})
	require.NoError(t, err)
	return s
}

func TestSessionEndToEnd(t *testing.T) {
	llm := scriptedLLM(t)
	store := newMemoryStore(7)
	events := &eventRecorder{}
	s := newTestSession(t, 7, llm, store, events)
	s.SetSpeakerName("SPEAKER_1", "Alice")
	s.SetAudioPath("audio/7/recording.webm")

	first := []entities.Sentence{
		{Text: "Morning all.", Speaker: "SPEAKER_0"},
		{Text: "Can we ship on Friday?", Speaker: "SPEAKER_1"},
	}
	require.NoError(t, s.HandleTranscript(entities.TranscriptUpdate{Type: "transcript", Sentences: first}))

	final := append(first, entities.Sentence{Text: "Let's check with QA.", Speaker: "SPEAKER_0"})
	require.NoError(t, s.HandleTranscript(entities.TranscriptUpdate{Type: "transcript", Sentences: final, Final: true}))
	s.Wait()

	payload, ok := store.payload(7)
	require.True(t, ok)
	assert.Len(t, payload.Sentences, 3)
	assert.Equal(t, []entities.QuestionRecord{{Text: "Can we ship on Friday?", Answer: "Only if QA signs off."}}, payload.Questions)
	assert.Equal(t, []entities.ActionRecord{{Text: "Confirm the ship date with QA"}}, payload.Actions)
	assert.Equal(t, "Release timing discussed.", payload.Summary)
	assert.Equal(t, "QA sign-off.", payload.NextSteps)
	assert.Equal(t, "audio/7/recording.webm", payload.AudioPath)
	assert.Equal(t, map[string]string{"SPEAKER_1": "Alice"}, payload.SpeakerNames)
	assert.Greater(t, payload.DurationSeconds, 0)

	// detection saw the first fragment with speaker labels and then only the new sentence
	prompts := analysisPrompts(t)
	detectCalls := llm.callsFor(prompts.Questions)
	require.Len(t, detectCalls, 2)
	assert.Equal(t, "[Speaker 1]: Morning all. \n[Alice]: Can we ship on Friday?", detectCalls[0].Messages[1].Content)
	assert.Equal(t, "[Speaker 1]: Let's check with QA.", detectCalls[1].Messages[3].Content)

	actionCalls := llm.callsFor(prompts.Actions)
	require.Len(t, actionCalls, 1)
	assert.Contains(t, actionCalls[0].Messages[1].Content, "[Alice]: Can we ship on Friday?")

	assert.Len(t, events.ofType(EventMeetingSaved), 1)
	for _, e := range events.ofType(EventQuestionCreated) {
		assert.Equal(t, s.ID(), e.SessionID)
		assert.Equal(t, int64(7), e.MeetingID)
	}

	view := s.Snapshot()
	assert.Equal(t, SessionFinished, view.State)
	assert.Equal(t, AnalysisDone, view.Analysis)
	assert.Equal(t, []AnalysisStatus{AnalysisStarted, AnalysisActions, AnalysisSummary, AnalysisDone}, events.statuses())
	assert.Equal(t, 3, view.Processed)
	assert.Equal(t, []string{"Confirm the ship date with QA"}, view.Actions)
}

func TestSessionFinalRunsOnce(t *testing.T) {
	llm := scriptedLLM(t)
	store := newMemoryStore(3)
	s := newTestSession(t, 3, llm, store, &eventRecorder{})

	update := entities.TranscriptUpdate{Sentences: sentences("We are done."), Final: true}
	require.NoError(t, s.HandleTranscript(update))
	require.NoError(t, s.HandleTranscript(update))
	s.Wait()

	assert.Len(t, llm.callsFor(analysisPrompts(t).Actions), 1)
}

func TestSessionEmptyFinalTranscript(t *testing.T) {
	llm := scriptedLLM(t)
	store := newMemoryStore(5)
	events := &eventRecorder{}
	s := newTestSession(t, 5, llm, store, events)

	require.NoError(t, s.HandleTranscript(entities.TranscriptUpdate{Final: true}))
	s.Wait()

	assert.Empty(t, llm.calls())
	payload, ok := store.payload(5)
	require.True(t, ok)
	assert.Empty(t, payload.Actions)
	assert.Empty(t, payload.Summary)
	assert.Equal(t, []AnalysisStatus{AnalysisStarted, AnalysisSkipped}, events.statuses())
}

func TestSessionDurationEndsAtFinalUpdate(t *testing.T) {
	var mu sync.Mutex
	clock := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)
	now := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return clock
	}
	advance := func(d time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(d)
	}

	prompts := analysisPrompts(t)
	llm := newFakeLLM(func(req ai.ChatRequest) (string, error) {
		if req.Messages[0].Content == prompts.Summary {
			advance(10 * time.Minute)
			return `{"summary":"Short meeting.","next_steps":"None."}`, nil
		}
		return "", nil
	})
	store := newMemoryStore(8)
	s, err := NewSession(8, "en", SessionDeps{LLM: llm, Store: store, Logger: zap.NewNop(), Now: now})
	require.NoError(t, err)

	advance(42 * time.Second)
	require.NoError(t, s.HandleTranscript(entities.TranscriptUpdate{Sentences: sentences("That is all."), Final: true}))
	s.Wait()

	payload, ok := store.payload(8)
	require.True(t, ok)
	assert.Equal(t, "Short meeting.", payload.Summary)
	assert.Equal(t, 42, payload.DurationSeconds)
}

func TestSessionStopSuppressesDetection(t *testing.T) {
	llm := scriptedLLM(t)
	s := newTestSession(t, 0, llm, nil, &eventRecorder{})

	s.Stop()
	require.NoError(t, s.HandleTranscript(entities.TranscriptUpdate{Sentences: sentences("Any questions?")}))
	assert.Equal(t, SessionStopped, s.Snapshot().State)

	require.NoError(t, s.HandleTranscript(entities.TranscriptUpdate{Sentences: sentences("Any questions?"), FullText: "Any questions?", Final: true}))
	s.Wait()

	prompts := analysisPrompts(t)
	assert.Empty(t, llm.callsFor(prompts.Questions))
	assert.Len(t, llm.callsFor(prompts.Actions), 1)
}

func TestSessionWithoutMeetingDoesNotSave(t *testing.T) {
	store := newMemoryStore(1)
	events := &eventRecorder{}
	s := newTestSession(t, 0, scriptedLLM(t), store, events)

	require.NoError(t, s.HandleTranscript(entities.TranscriptUpdate{Sentences: sentences("Hello."), Final: true}))
	s.Wait()

	assert.Empty(t, events.ofType(EventMeetingSaved))
	assert.Empty(t, events.ofType(EventMeetingSaveFailed))
	assert.Equal(t, SessionFinished, s.Snapshot().State)
}

func TestSessionSaveFailureIsReported(t *testing.T) {
	store := newMemoryStore(9)
	store.saveErr = errors.New("read-only file system")
	events := &eventRecorder{}
	s := newTestSession(t, 9, scriptedLLM(t), store, events)

	require.NoError(t, s.HandleTranscript(entities.TranscriptUpdate{Sentences: sentences("Bye."), Final: true}))
	s.Wait()

	failed := events.ofType(EventMeetingSaveFailed)
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0].Error, "read-only")
	assert.Equal(t, "read-only file system", s.Snapshot().SaveError)
}

func TestSessionDiscard(t *testing.T) {
	llm := scriptedLLM(t)
	events := &eventRecorder{}
	s := newTestSession(t, 0, llm, nil, events)

	s.Discard()
	err := s.HandleTranscript(entities.TranscriptUpdate{Sentences: sentences("Still there?")})
	assert.ErrorIs(t, err, entities.ErrSessionClosed)
	s.Wait()

	assert.Empty(t, llm.calls())
	assert.Empty(t, events.ofType(EventQuestionCreated))
	assert.Equal(t, SessionDiscarded, s.Snapshot().State)
}

func TestSessionSetLanguageResetsDetection(t *testing.T) {
	llm := scriptedLLM(t)
	s := newTestSession(t, 0, llm, nil, &eventRecorder{})

	assert.ErrorIs(t, s.SetLanguage("de"), entities.ErrUnsupportedLang)

	require.NoError(t, s.HandleTranscript(entities.TranscriptUpdate{Sentences: sentences("Hello.")}))
	require.NoError(t, s.SetLanguage("fr"))
	require.NoError(t, s.Shutdown(context.Background()))

	fr, err := DefaultPrompts().For("fr")
	require.NoError(t, err)
	assert.Equal(t, []ai.Message{{Role: ai.RoleSystem, Content: fr.Questions}}, s.Detector().History())
	assert.Equal(t, "fr", s.Snapshot().Language)
}

func TestSessionSpeakerNames(t *testing.T) {
	s := newTestSession(t, 0, scriptedLLM(t), nil, &eventRecorder{})
	defer s.Discard()

	s.SetSpeakerName("SPEAKER_0", "  Bob ")
	assert.Equal(t, map[string]string{"SPEAKER_0": "Bob"}, s.Snapshot().SpeakerNames)

	s.SetSpeakerName("SPEAKER_0", "")
	assert.Empty(t, s.Snapshot().SpeakerNames)
}

func TestManager(t *testing.T) {
	store := newMemoryStore(4)
	m := NewManager(SessionDeps{LLM: scriptedLLM(t), Store: store, Logger: zap.NewNop()})
	ctx := context.Background()

	_, err := m.Start(ctx, 99, "en")
	assert.ErrorIs(t, err, entities.ErrMeetingNotFound)

	_, err = m.Start(ctx, 4, "xx")
	assert.ErrorIs(t, err, entities.ErrUnsupportedLang)

	s, err := m.Start(ctx, 4, "en")
	require.NoError(t, err)

	got, err := m.Get(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)
	assert.Len(t, m.List(), 1)

	require.NoError(t, m.Shutdown(ctx))

	require.NoError(t, m.Discard(s.ID()))
	_, err = m.Get(s.ID())
	assert.ErrorIs(t, err, entities.ErrSessionNotFound)
	assert.ErrorIs(t, m.Discard(s.ID()), entities.ErrSessionNotFound)
}

type sessionTally struct {
	mu             sync.Mutex
	started, ended int
}

func (c *sessionTally) RecordSessionStart() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started++
}

func (c *sessionTally) RecordSessionEnd() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ended++
}

func (c *sessionTally) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started, c.ended
}

func TestManagerEndsAndEvictsSessions(t *testing.T) {
	tally := &sessionTally{}
	m := NewManager(SessionDeps{LLM: scriptedLLM(t), Store: newMemoryStore(4), Logger: zap.NewNop()},
		WithRetention(20*time.Millisecond), WithSessionCounter(tally))
	ctx := context.Background()

	finished, err := m.Start(ctx, 4, "en")
	require.NoError(t, err)
	discarded, err := m.Start(ctx, 0, "en")
	require.NoError(t, err)
	idle, err := m.Start(ctx, 0, "en")
	require.NoError(t, err)
	defer idle.Discard()

	require.NoError(t, finished.HandleTranscript(entities.TranscriptUpdate{Sentences: sentences("Let's wrap up."), Final: true}))
	require.NoError(t, m.Discard(discarded.ID()))

	require.Eventually(t, func() bool {
		started, ended := tally.counts()
		return started == 3 && ended == 2
	}, 5*time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		_, err := m.Get(finished.ID())
		return errors.Is(err, entities.ErrSessionNotFound)
	}, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, SessionFinished, finished.Snapshot().State)

	got, err := m.Get(idle.ID())
	require.NoError(t, err)
	assert.Same(t, idle, got)
	assert.Len(t, m.List(), 1)
}

func TestManagerKeepsFinishedSessionReadable(t *testing.T) {
	m := NewManager(SessionDeps{LLM: scriptedLLM(t), Store: newMemoryStore(4), Logger: zap.NewNop()})
	s, err := m.Start(context.Background(), 4, "en")
	require.NoError(t, err)

	require.NoError(t, s.HandleTranscript(entities.TranscriptUpdate{Sentences: sentences("Done here."), Final: true}))
	<-s.Done()

	got, err := m.Get(s.ID())
	require.NoError(t, err)
	assert.Equal(t, SessionFinished, got.Snapshot().State)
}
