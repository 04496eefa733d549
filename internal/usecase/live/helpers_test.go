package live

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/johnquangdev/meeting-copilot/internal/domain/entities"
	"github.com/johnquangdev/meeting-copilot/pkg/ai"
)

var errUnreachable = errors.New("dial tcp 127.0.0.1:1234: connect: connection refused")

// fakeLLM answers completion calls from a script keyed on the system prompt
type fakeLLM struct {
	mu       sync.Mutex
	probeErr error
	respond  func(req ai.ChatRequest) (string, error)
	probes   int
	requests []ai.ChatRequest
}

func newFakeLLM(respond func(req ai.ChatRequest) (string, error)) *fakeLLM {
	return &fakeLLM{respond: respond}
}

func (f *fakeLLM) Probe(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probes++
	if f.probeErr != nil {
		return "", f.probeErr
	}
	return "test-model", nil
}

func (f *fakeLLM) Stream(_ context.Context, req ai.ChatRequest) (*ai.StreamReader, error) {
	content, err := f.record(req)
	if err != nil {
		return nil, err
	}
	return ai.NewStreamReader(strings.NewReader(sseBody(content))), nil
}

func (f *fakeLLM) Complete(_ context.Context, req ai.ChatRequest) (string, error) {
	return f.record(req)
}

func (f *fakeLLM) record(req ai.ChatRequest) (string, error) {
	f.mu.Lock()
	msgs := make([]ai.Message, len(req.Messages))
	copy(msgs, req.Messages)
	req.Messages = msgs
	f.requests = append(f.requests, req)
	respond := f.respond
	f.mu.Unlock()

	if respond == nil {
		return "", nil
	}
	return respond(req)
}

func (f *fakeLLM) setProbeErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probeErr = err
}

func (f *fakeLLM) calls() []ai.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ai.ChatRequest(nil), f.requests...)
}

func (f *fakeLLM) probeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.probes
}

// callsFor returns the requests made with the given system prompt
func (f *fakeLLM) callsFor(system string) []ai.ChatRequest {
	var out []ai.ChatRequest
	for _, req := range f.calls() {
		if len(req.Messages) > 0 && req.Messages[0].Content == system {
			out = append(out, req)
		}
	}
	return out
}

// sseBody splits content into small tokens framed like a streaming server
func sseBody(content string) string {
	var b strings.Builder
	for len(content) > 0 {
		n := 5
		if n > len(content) {
			n = len(content)
		}
		chunk := map[string]any{
			"choices": []any{map[string]any{"delta": map[string]any{"content": content[:n]}}},
		}
		raw, _ := json.Marshal(chunk)
		b.WriteString("data: ")
		b.Write(raw)
		b.WriteString("\n\n")
		content = content[n:]
	}
	b.WriteString("data: [DONE]\n\n")
	return b.String()
}

// overlapLLM records, per system prompt, how many Stream calls were open at
// the same time. A call stays open until its reader is closed.
type overlapLLM struct {
	*fakeLLM

	mu      sync.Mutex
	open    map[string]int
	maxOpen map[string]int
}

func newOverlapLLM(inner *fakeLLM) *overlapLLM {
	return &overlapLLM{fakeLLM: inner, open: map[string]int{}, maxOpen: map[string]int{}}
}

func (o *overlapLLM) Stream(_ context.Context, req ai.ChatRequest) (*ai.StreamReader, error) {
	system := req.Messages[0].Content
	o.mu.Lock()
	o.open[system]++
	if o.open[system] > o.maxOpen[system] {
		o.maxOpen[system] = o.open[system]
	}
	o.mu.Unlock()

	// widen the window in which a second call could start
	time.Sleep(2 * time.Millisecond)

	content, err := o.record(req)
	if err != nil {
		o.release(system)
		return nil, err
	}
	body := &closingBody{Reader: strings.NewReader(sseBody(content)), onClose: func() { o.release(system) }}
	return ai.NewStreamReader(body), nil
}

func (o *overlapLLM) release(system string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.open[system]--
}

func (o *overlapLLM) maxOpenFor(system string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.maxOpen[system]
}

type closingBody struct {
	io.Reader
	once    sync.Once
	onClose func()
}

func (b *closingBody) Close() error {
	b.once.Do(b.onClose)
	return nil
}

// eventRecorder collects published events
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) Publish(_ context.Context, evt Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *eventRecorder) emit(evt Event) {
	r.Publish(context.Background(), evt)
}

func (r *eventRecorder) ofType(t EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (r *eventRecorder) statuses() []AnalysisStatus {
	var out []AnalysisStatus
	for _, e := range r.ofType(EventAnalysisStatus) {
		out = append(out, e.Status)
	}
	return out
}

// memoryStore is a MeetingStore that keeps the last saved payload
type memoryStore struct {
	mu       sync.Mutex
	meetings map[int64]*entities.Meeting
	saved    map[int64]entities.MeetingPayload
	saveErr  error
}

func newMemoryStore(ids ...int64) *memoryStore {
	s := &memoryStore{
		meetings: map[int64]*entities.Meeting{},
		saved:    map[int64]entities.MeetingPayload{},
	}
	for _, id := range ids {
		s.meetings[id] = &entities.Meeting{ID: id, Title: "Weekly sync"}
	}
	return s
}

func (s *memoryStore) GetMeeting(_ context.Context, id int64) (*entities.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[id]
	if !ok {
		return nil, entities.ErrMeetingNotFound
	}
	return m, nil
}

func (s *memoryStore) SaveMeetingData(_ context.Context, id int64, payload entities.MeetingPayload) (*entities.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return nil, s.saveErr
	}
	m, ok := s.meetings[id]
	if !ok {
		return nil, entities.ErrMeetingNotFound
	}
	s.saved[id] = payload
	return m, nil
}

func (s *memoryStore) payload(id int64) (entities.MeetingPayload, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.saved[id]
	return p, ok
}

func sentences(texts ...string) []entities.Sentence {
	out := make([]entities.Sentence, 0, len(texts))
	for i, t := range texts {
		out = append(out, entities.Sentence{Start: float64(i), End: float64(i) + 1, Text: t})
	}
	return out
}
