package live

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// workQueue is an unbounded FIFO drained by exactly one worker goroutine,
// so handle never runs for two items at once.
type workQueue[T any] struct {
	name    string
	handle  func(T)
	onDepth func(int)
	logger  *zap.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	items   []T
	closed  bool
	busy    bool
	stopped chan struct{}
}

func newWorkQueue[T any](name string, logger *zap.Logger, onDepth func(int), handle func(T)) *workQueue[T] {
	if onDepth == nil {
		onDepth = func(int) {}
	}
	q := &workQueue[T]{
		name:    name,
		handle:  handle,
		onDepth: onDepth,
		logger:  logger,
		stopped: make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	go q.run()
	return q
}

// Push appends an item; it reports false once the queue is closed
func (q *workQueue[T]) Push(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.items = append(q.items, item)
	q.onDepth(len(q.items))
	q.cond.Signal()
	return true
}

// Close refuses new items; already queued items are still processed
func (q *workQueue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.cond.Broadcast()
}

// Discard closes the queue and drops everything not yet started
func (q *workQueue[T]) Discard() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.items = nil
	q.onDepth(0)
	q.cond.Broadcast()
}

// Wait blocks until the worker has exited
func (q *workQueue[T]) Wait() {
	<-q.stopped
}

// Done is closed when the worker has exited
func (q *workQueue[T]) Done() <-chan struct{} {
	return q.stopped
}

// Busy reports whether an item is being handled right now
func (q *workQueue[T]) Busy() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.busy
}

// Pending is the number of items waiting behind the current one
func (q *workQueue[T]) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *workQueue[T]) run() {
	defer close(q.stopped)
	for {
		item, ok := q.next()
		if !ok {
			return
		}
		q.process(item)
	}
}

func (q *workQueue[T]) next() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	item := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	q.busy = true
	q.onDepth(len(q.items))
	return item, true
}

func (q *workQueue[T]) process(item T) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("queue item panicked",
				zap.String("queue", q.name),
				zap.String("panic", fmt.Sprint(r)))
		}
		q.mu.Lock()
		q.busy = false
		q.mu.Unlock()
	}()
	q.handle(item)
}
