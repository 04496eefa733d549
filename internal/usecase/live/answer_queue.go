package live

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-copilot/pkg/ai"
)

// AnswerQueue answers detected questions one at a time. Each call is a fresh
// system + question exchange; tokens are appended to the answer as they arrive.
type AnswerQueue struct {
	llm     Completer
	board   *QuestionBoard
	prompt  func() string
	emit    emitFunc
	logger  *zap.Logger
	metrics Metrics

	queue *workQueue[int]
}

// NewAnswerQueue starts the answer worker. prompt is read for every call so a
// language change applies to the next question.
func NewAnswerQueue(llm Completer, prompt func() string, board *QuestionBoard, emit emitFunc, logger *zap.Logger, metrics Metrics) *AnswerQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if emit == nil {
		emit = func(Event) {}
	}
	a := &AnswerQueue{
		llm:     llm,
		board:   board,
		prompt:  prompt,
		emit:    emit,
		logger:  logger,
		metrics: metrics,
	}
	a.queue = newWorkQueue(stageAnswer, logger,
		func(n int) { metrics.SetQueueDepth(stageAnswer, n) },
		a.process)
	return a
}

// Enqueue schedules question idx; false once the queue is closed
func (a *AnswerQueue) Enqueue(idx int) bool {
	return a.queue.Push(idx)
}

func (a *AnswerQueue) Close()   { a.queue.Close() }
func (a *AnswerQueue) Discard() { a.queue.Discard() }
func (a *AnswerQueue) Wait()    { a.queue.Wait() }
func (a *AnswerQueue) Busy() bool {
	return a.queue.Busy()
}

func (a *AnswerQueue) process(idx int) {
	q, ok := a.board.Get(idx)
	if !ok {
		return
	}
	defer a.finish(idx)

	ctx := context.Background()
	start := time.Now()

	model, err := a.llm.Probe(ctx)
	if err != nil {
		a.metrics.ObserveCompletion(stageAnswer, outcomeUnreachable, time.Since(start))
		a.logger.Warn("completion service unreachable, question left unanswered",
			zap.Int("question_index", idx), zap.Error(err))
		return
	}

	reader, err := a.llm.Stream(ctx, answerSampling.request(model, []ai.Message{
		{Role: ai.RoleSystem, Content: a.prompt()},
		{Role: ai.RoleUser, Content: q.Text},
	}))
	if err != nil {
		a.metrics.ObserveCompletion(stageAnswer, outcomeError, time.Since(start))
		a.logger.Warn("answer generation failed", zap.Int("question_index", idx), zap.Error(err))
		return
	}
	defer reader.Close()

	for {
		token, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			a.metrics.ObserveCompletion(stageAnswer, outcomeError, time.Since(start))
			a.logger.Warn("answer stream interrupted", zap.Int("question_index", idx), zap.Error(err))
			return
		}
		updated := a.board.AppendAnswer(idx, token)
		a.emit(Event{Type: EventAnswerToken, Question: &updated, Token: token})
	}
	a.metrics.ObserveCompletion(stageAnswer, outcomeOK, time.Since(start))
}

func (a *AnswerQueue) finish(idx int) {
	done := a.board.Finish(idx)
	a.emit(Event{Type: EventAnswerFinalized, Question: &done})
}
