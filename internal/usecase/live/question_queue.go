package live

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-copilot/pkg/ai"
)

const questionPrefix = "QUESTION:"

// detectionTask is either a transcript fragment or a history reset
type detectionTask struct {
	fragment    string
	resetPrompt string
}

// QuestionDetector runs transcript fragments one at a time through a
// multi-turn completion so the model remembers what it already reported.
// History is only mutated by the queue worker; every user turn either gets
// its assistant turn or is rolled back.
type QuestionDetector struct {
	llm     Completer
	board   *QuestionBoard
	answers *AnswerQueue
	emit    emitFunc
	logger  *zap.Logger
	metrics Metrics

	histMu  sync.RWMutex
	history []ai.Message

	queue *workQueue[detectionTask]
}

// NewQuestionDetector starts the detection worker with history [system prompt]
func NewQuestionDetector(llm Completer, systemPrompt string, board *QuestionBoard, answers *AnswerQueue, emit emitFunc, logger *zap.Logger, metrics Metrics) *QuestionDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if emit == nil {
		emit = func(Event) {}
	}
	d := &QuestionDetector{
		llm:     llm,
		board:   board,
		answers: answers,
		emit:    emit,
		logger:  logger,
		metrics: metrics,
		history: []ai.Message{{Role: ai.RoleSystem, Content: systemPrompt}},
	}
	d.queue = newWorkQueue(stageQuestion, logger,
		func(n int) { metrics.SetQueueDepth(stageQuestion, n) },
		d.process)
	return d
}

// Enqueue schedules a fragment; false once the detector is closed
func (d *QuestionDetector) Enqueue(fragment string) bool {
	if strings.TrimSpace(fragment) == "" {
		return false
	}
	return d.queue.Push(detectionTask{fragment: fragment})
}

// ResetHistory replaces the conversation with a new system prompt once the
// items queued before it are done
func (d *QuestionDetector) ResetHistory(systemPrompt string) bool {
	return d.queue.Push(detectionTask{resetPrompt: systemPrompt})
}

// History returns a copy of the conversation
func (d *QuestionDetector) History() []ai.Message {
	d.histMu.RLock()
	defer d.histMu.RUnlock()

	out := make([]ai.Message, len(d.history))
	copy(out, d.history)
	return out
}

func (d *QuestionDetector) Close()   { d.queue.Close() }
func (d *QuestionDetector) Discard() { d.queue.Discard() }
func (d *QuestionDetector) Wait()    { d.queue.Wait() }
func (d *QuestionDetector) Busy() bool {
	return d.queue.Busy()
}

func (d *QuestionDetector) process(task detectionTask) {
	if task.resetPrompt != "" {
		d.histMu.Lock()
		d.history = []ai.Message{{Role: ai.RoleSystem, Content: task.resetPrompt}}
		d.histMu.Unlock()
		return
	}

	ctx := context.Background()
	start := time.Now()
	messages := d.pushTurn(ai.Message{Role: ai.RoleUser, Content: task.fragment})

	model, err := d.llm.Probe(ctx)
	if err != nil {
		d.popTurn()
		d.metrics.ObserveCompletion(stageQuestion, outcomeUnreachable, time.Since(start))
		d.logger.Warn("completion service unreachable, fragment dropped", zap.Error(err))
		return
	}

	full, err := d.stream(ctx, questionSampling.request(model, messages))
	if err != nil {
		d.popTurn()
		d.metrics.ObserveCompletion(stageQuestion, outcomeError, time.Since(start))
		d.logger.Warn("question detection failed", zap.Error(err))
		return
	}

	d.pushTurn(ai.Message{Role: ai.RoleAssistant, Content: full})
	d.metrics.ObserveCompletion(stageQuestion, outcomeOK, time.Since(start))
}

func (d *QuestionDetector) stream(ctx context.Context, req ai.ChatRequest) (string, error) {
	reader, err := d.llm.Stream(ctx, req)
	if err != nil {
		return "", err
	}
	defer reader.Close()
	return reader.Consume(d.handleLine)
}

func (d *QuestionDetector) handleLine(line string) {
	text, ok := cutPrefixFold(line, questionPrefix)
	if !ok || text == "" {
		return
	}
	q, added := d.board.Add(text)
	if !added {
		return
	}

	d.metrics.CountDetection(stageQuestion)
	d.logger.Info("question detected", zap.Int("question_index", q.Index), zap.String("text", q.Text))
	d.emit(Event{Type: EventQuestionCreated, Question: &q})
	if d.answers == nil || !d.answers.Enqueue(q.Index) {
		done := d.board.Finish(q.Index)
		d.emit(Event{Type: EventAnswerFinalized, Question: &done})
	}
}

// pushTurn appends a turn and returns a copy of the resulting history
func (d *QuestionDetector) pushTurn(m ai.Message) []ai.Message {
	d.histMu.Lock()
	defer d.histMu.Unlock()

	d.history = append(d.history, m)
	out := make([]ai.Message, len(d.history))
	copy(out, d.history)
	return out
}

func (d *QuestionDetector) popTurn() {
	d.histMu.Lock()
	defer d.histMu.Unlock()

	if len(d.history) > 1 {
		d.history = d.history[:len(d.history)-1]
	}
}

// cutPrefixFold trims line and, when it starts with prefix in any letter
// case, returns the trimmed remainder
func cutPrefixFold(line, prefix string) (string, bool) {
	t := strings.TrimSpace(line)
	if len(t) < len(prefix) || !strings.EqualFold(t[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(t[len(prefix):]), true
}
