package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnquangdev/meeting-copilot/internal/usecase/live"
	"github.com/johnquangdev/meeting-copilot/pkg/config"
)

type countingRecorder struct {
	mu     sync.Mutex
	ok     map[string]int
	failed map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{ok: map[string]int{}, failed: map[string]int{}}
}

func (c *countingRecorder) RecordPublish(sink string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.failed[sink]++
		return
	}
	c.ok[sink]++
}

func TestHubDeliversPerSession(t *testing.T) {
	hub := NewHub(nil, nil)
	a, cancelA := hub.Subscribe("s1")
	b, cancelB := hub.Subscribe("s2")
	defer cancelB()

	hub.Publish(context.Background(), live.Event{Type: live.EventActionDetected, SessionID: "s1", Action: "Send deck"})

	select {
	case evt := <-a:
		assert.Equal(t, "Send deck", evt.Action)
	case <-time.After(time.Second):
		t.Fatal("subscriber of s1 got nothing")
	}
	assert.Empty(t, b)

	assert.Equal(t, 1, hub.Subscribers("s1"))
	cancelA()
	cancelA()
	assert.Equal(t, 0, hub.Subscribers("s1"))
	_, open := <-a
	assert.False(t, open)
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	rec := newCountingRecorder()
	hub := NewHub(nil, rec)
	_, cancel := hub.Subscribe("s1")
	defer cancel()

	for i := 0; i < subscriberBuffer+3; i++ {
		hub.Publish(context.Background(), live.Event{Type: live.EventAnswerToken, SessionID: "s1"})
	}

	assert.Equal(t, subscriberBuffer, rec.ok["hub"])
	assert.Equal(t, 3, rec.failed["hub"])
}

type memorySink struct {
	mu     sync.Mutex
	sent   []live.Event
	fail   bool
	closed bool
}

func (m *memorySink) Name() string { return "memory" }

func (m *memorySink) Send(_ context.Context, evt live.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("broker unavailable")
	}
	m.sent = append(m.sent, evt)
	return nil
}

func (m *memorySink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func TestAsyncDeliversInOrderAndDrainsOnClose(t *testing.T) {
	sink := &memorySink{}
	rec := newCountingRecorder()
	async := NewAsync(sink, 64, nil, rec)

	for i := 0; i < 10; i++ {
		async.Publish(context.Background(), live.Event{Type: live.EventAnswerToken, SessionID: "s1", Token: string(rune('a' + i))})
	}
	require.NoError(t, async.Close(context.Background()))

	require.Len(t, sink.sent, 10)
	for i, evt := range sink.sent {
		assert.Equal(t, string(rune('a'+i)), evt.Token)
	}
	assert.True(t, sink.closed)
	assert.Equal(t, 10, rec.ok["memory"])
}

func TestAsyncCountsFailures(t *testing.T) {
	sink := &memorySink{fail: true}
	rec := newCountingRecorder()
	async := NewAsync(sink, 4, nil, rec)

	async.Publish(context.Background(), live.Event{Type: live.EventMeetingSaved, SessionID: "s1"})
	require.NoError(t, async.Close(context.Background()))

	assert.Equal(t, 1, rec.failed["memory"])
	assert.Empty(t, sink.sent)
}

func TestFanout(t *testing.T) {
	var got []string
	f := Fanout{
		live.PublisherFunc(func(_ context.Context, e live.Event) { got = append(got, "first:"+string(e.Type)) }),
		live.PublisherFunc(func(_ context.Context, e live.Event) { got = append(got, "second:"+string(e.Type)) }),
	}

	f.Publish(context.Background(), live.Event{Type: live.EventMeetingSaved})

	assert.Equal(t, []string{"first:meeting.saved", "second:meeting.saved"}, got)
}

func TestKafkaSinkLogOnlyWhenDisabled(t *testing.T) {
	sink := NewKafkaSink(config.KafkaConfig{Enabled: false, Topic: "events"}, nil)

	assert.NoError(t, sink.Send(context.Background(), live.Event{Type: live.EventQuestionCreated, SessionID: "s1"}))
	assert.NoError(t, sink.Close())
}

func TestRedisSinkChannel(t *testing.T) {
	sink := NewRedisSink(nil, "copilot:events")
	assert.Equal(t, "copilot:events:abc", sink.Channel("abc"))
	assert.Equal(t, "redis", sink.Name())
}

func TestAsyncDropsAfterClose(t *testing.T) {
	sink := &memorySink{}
	rec := newCountingRecorder()
	async := NewAsync(sink, 4, nil, rec)
	require.NoError(t, async.Close(context.Background()))

	assert.NotPanics(t, func() {
		async.Publish(context.Background(), live.Event{Type: live.EventMeetingSaved, SessionID: "s1"})
	})
	require.NoError(t, async.Close(context.Background()))
	assert.Empty(t, sink.sent)
	assert.Zero(t, rec.ok["memory"]+rec.failed["memory"])
}
