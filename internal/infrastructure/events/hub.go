// Package events delivers live pipeline events to observers: in-process
// subscribers (SSE), Redis pub/sub and Kafka.
package events

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-copilot/internal/usecase/live"
)

// Recorder counts deliveries per sink
type Recorder interface {
	RecordPublish(sink string, err error)
}

type nopRecorder struct{}

func (nopRecorder) RecordPublish(string, error) {}

const subscriberBuffer = 256

// Hub fans events out to in-process subscribers of a session. A subscriber
// that falls behind loses events instead of slowing the pipeline down.
type Hub struct {
	logger   *zap.Logger
	recorder Recorder

	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]chan live.Event
}

func NewHub(logger *zap.Logger, recorder Recorder) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Hub{
		logger:   logger,
		recorder: recorder,
		subs:     make(map[string]map[int]chan live.Event),
	}
}

// Subscribe registers for the events of sessionID. The returned cancel func
// must be called once; it closes the channel.
func (h *Hub) Subscribe(sessionID string) (<-chan live.Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan live.Event, subscriberBuffer)
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[int]chan live.Event)
	}
	h.subs[sessionID][id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[sessionID], id)
			if len(h.subs[sessionID]) == 0 {
				delete(h.subs, sessionID)
			}
			close(ch)
		})
	}
	return ch, cancel
}

// Subscribers is the number of subscribers of sessionID
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}

func (h *Hub) Publish(_ context.Context, evt live.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subs[evt.SessionID] {
		select {
		case ch <- evt:
			h.recorder.RecordPublish("hub", nil)
		default:
			h.recorder.RecordPublish("hub", errSubscriberBehind)
			h.logger.Warn("subscriber behind, event dropped",
				zap.String("session_id", evt.SessionID), zap.String("type", string(evt.Type)))
		}
	}
}

// Fanout publishes every event to each of its publishers in order
type Fanout []live.Publisher

func (f Fanout) Publish(ctx context.Context, evt live.Event) {
	for _, p := range f {
		p.Publish(ctx, evt)
	}
}
