package live

import (
	"context"
	"time"

	"github.com/johnquangdev/meeting-copilot/pkg/ai"
)

// Completer is the completion service as the pipeline sees it
type Completer interface {
	// Probe reports reachability and the model id to request
	Probe(ctx context.Context) (string, error)
	Stream(ctx context.Context, req ai.ChatRequest) (*ai.StreamReader, error)
	Complete(ctx context.Context, req ai.ChatRequest) (string, error)
}

var _ Completer = (*ai.CompletionClient)(nil)

type sampling struct {
	temperature float64
	maxTokens   int
}

var (
	questionSampling = sampling{temperature: 0.1, maxTokens: 256}
	answerSampling   = sampling{temperature: 0.3, maxTokens: 200}
	actionSampling   = sampling{temperature: 0.1, maxTokens: 512}
	summarySampling  = sampling{temperature: 0.2, maxTokens: 512}
)

func (s sampling) request(model string, messages []ai.Message) ai.ChatRequest {
	return ai.ChatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
	}
}

// Stage labels used for logging and metrics
const (
	stageQuestion = "question"
	stageAnswer   = "answer"
	stageActions  = "actions"
	stageSummary  = "summary"
)

// Call outcomes
const (
	outcomeOK          = "ok"
	outcomeUnreachable = "unreachable"
	outcomeError       = "error"
)

// Metrics receives pipeline measurements
type Metrics interface {
	ObserveCompletion(stage, outcome string, elapsed time.Duration)
	SetQueueDepth(queue string, depth int)
	CountDetection(kind string)
}

type nopMetrics struct{}

func (nopMetrics) ObserveCompletion(string, string, time.Duration) {}
func (nopMetrics) SetQueueDepth(string, int)                       {}
func (nopMetrics) CountDetection(string)                           {}
