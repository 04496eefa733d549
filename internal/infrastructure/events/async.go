package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-copilot/internal/usecase/live"
)

var (
	errSubscriberBehind = errors.New("subscriber behind")
	errSinkBehind       = errors.New("sink queue full")
)

// Sink delivers one event to an external system
type Sink interface {
	Name() string
	Send(ctx context.Context, evt live.Event) error
	Close() error
}

// Async decouples a network sink from the pipeline: Publish only enqueues and
// a single goroutine performs the sends in order.
type Async struct {
	sink     Sink
	logger   *zap.Logger
	recorder Recorder
	timeout  time.Duration

	mu     sync.RWMutex
	closed bool
	ch     chan live.Event
	done   chan struct{}
}

// NewAsync starts the delivery goroutine with room for buffer pending events
func NewAsync(sink Sink, buffer int, logger *zap.Logger, recorder Recorder) *Async {
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	a := &Async{
		sink:     sink,
		logger:   logger.With(zap.String("sink", sink.Name())),
		recorder: recorder,
		timeout:  5 * time.Second,
		ch:       make(chan live.Event, buffer),
		done:     make(chan struct{}),
	}
	go a.run()
	return a
}

// Publish enqueues evt without blocking. Events published after Close are dropped.
func (a *Async) Publish(_ context.Context, evt live.Event) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return
	}

	select {
	case a.ch <- evt:
	default:
		a.recorder.RecordPublish(a.sink.Name(), errSinkBehind)
		a.logger.Warn("event sink behind, event dropped", zap.String("type", string(evt.Type)))
	}
}

func (a *Async) run() {
	defer close(a.done)
	for evt := range a.ch {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		err := a.sink.Send(ctx, evt)
		cancel()

		a.recorder.RecordPublish(a.sink.Name(), err)
		if err != nil {
			a.logger.Error("failed to deliver event",
				zap.String("type", string(evt.Type)),
				zap.String("session_id", evt.SessionID),
				zap.Error(err))
		}
	}
}

// Close stops accepting events, delivers what is queued, then closes the sink
func (a *Async) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.ch)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return a.sink.Close()
}
