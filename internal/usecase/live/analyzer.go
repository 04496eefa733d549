package live

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-copilot/internal/domain/entities"
	"github.com/johnquangdev/meeting-copilot/pkg/ai"
)

const actionPrefix = "ACTION:"

// AnalysisInput is what the end-of-meeting pass works from
type AnalysisInput struct {
	Transcript string
	Questions  []entities.Question
	Prompts    PromptSet
}

// AnalysisResult is what the end-of-meeting pass produced
type AnalysisResult struct {
	Actions []string
	Summary *entities.Summary
}

// Analyzer runs action extraction and then summary generation over a finished transcript
type Analyzer struct {
	llm     Completer
	emit    emitFunc
	logger  *zap.Logger
	metrics Metrics
}

func NewAnalyzer(llm Completer, emit emitFunc, logger *zap.Logger, metrics Metrics) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if emit == nil {
		emit = func(Event) {}
	}
	return &Analyzer{llm: llm, emit: emit, logger: logger, metrics: metrics}
}

// Run makes no completion call when the transcript is blank or the service
// is unreachable. A failed action pass still lets the summary run with what
// was collected; a failed or unparsable summary leaves Summary nil.
func (a *Analyzer) Run(ctx context.Context, in AnalysisInput) AnalysisResult {
	result := AnalysisResult{Actions: []string{}}

	if strings.TrimSpace(in.Transcript) == "" {
		a.status(AnalysisSkipped)
		return result
	}

	model, err := a.llm.Probe(ctx)
	if err != nil {
		a.metrics.ObserveCompletion(stageActions, outcomeUnreachable, 0)
		a.logger.Warn("completion service unreachable, analysis skipped", zap.Error(err))
		a.status(AnalysisUnavailable)
		return result
	}

	a.status(AnalysisActions)
	result.Actions = a.extractActions(ctx, model, in)

	a.status(AnalysisSummary)
	result.Summary = a.summarize(ctx, model, in, result.Actions)

	a.status(AnalysisDone)
	return result
}

func (a *Analyzer) extractActions(ctx context.Context, model string, in AnalysisInput) []string {
	start := time.Now()
	actions := []string{}
	seen := map[string]struct{}{}

	onLine := func(line string) {
		text, ok := cutPrefixFold(line, actionPrefix)
		if !ok || text == "" {
			return
		}
		if _, dup := seen[text]; dup {
			return
		}
		seen[text] = struct{}{}
		actions = append(actions, text)
		a.metrics.CountDetection(stageActions)
		a.emit(Event{Type: EventActionDetected, Action: text})
	}

	reader, err := a.llm.Stream(ctx, actionSampling.request(model, []ai.Message{
		{Role: ai.RoleSystem, Content: in.Prompts.Actions},
		{Role: ai.RoleUser, Content: in.Transcript},
	}))
	if err != nil {
		a.metrics.ObserveCompletion(stageActions, outcomeError, time.Since(start))
		a.logger.Warn("action extraction failed", zap.Error(err))
		return actions
	}
	defer reader.Close()

	if _, err := reader.Consume(onLine); err != nil {
		a.metrics.ObserveCompletion(stageActions, outcomeError, time.Since(start))
		a.logger.Warn("action stream interrupted", zap.Int("actions", len(actions)), zap.Error(err))
		return actions
	}
	a.metrics.ObserveCompletion(stageActions, outcomeOK, time.Since(start))
	return actions
}

func (a *Analyzer) summarize(ctx context.Context, model string, in AnalysisInput, actions []string) *entities.Summary {
	start := time.Now()
	raw, err := a.llm.Complete(ctx, summarySampling.request(model, []ai.Message{
		{Role: ai.RoleSystem, Content: in.Prompts.Summary},
		{Role: ai.RoleUser, Content: SummaryInput(in.Transcript, in.Questions, actions)},
	}))
	if err != nil {
		a.metrics.ObserveCompletion(stageSummary, outcomeError, time.Since(start))
		a.logger.Warn("summary generation failed", zap.Error(err))
		return nil
	}
	a.metrics.ObserveCompletion(stageSummary, outcomeOK, time.Since(start))

	summary := ParseSummary(raw)
	if summary == nil {
		a.logger.Warn("summary response had no usable JSON object", zap.Int("length", len(raw)))
	}
	return summary
}

func (a *Analyzer) status(s AnalysisStatus) {
	a.emit(Event{Type: EventAnalysisStatus, Status: s})
}

// SummaryInput lays out the transcript, the Q/A list and the action list as
// blank-line separated blocks, leaving out empty ones
func SummaryInput(transcript string, questions []entities.Question, actions []string) string {
	var blocks []string
	if transcript != "" {
		blocks = append(blocks, "TRANSCRIPTION:\n"+transcript)
	}
	if len(questions) > 0 {
		lines := make([]string, 0, len(questions))
		for i, q := range questions {
			answer := q.Answer
			if answer == "" {
				answer = "(no answer)"
			}
			lines = append(lines, fmt.Sprintf("Q%d: %s\nA: %s", i+1, q.Text, answer))
		}
		blocks = append(blocks, "QUESTIONS/ANSWERS:\n"+strings.Join(lines, "\n"))
	}
	if len(actions) > 0 {
		lines := make([]string, 0, len(actions))
		for i, action := range actions {
			lines = append(lines, fmt.Sprintf("%d. %s", i+1, action))
		}
		blocks = append(blocks, "ACTIONS:\n"+strings.Join(lines, "\n"))
	}
	return strings.Join(blocks, "\n\n")
}

// ParseSummary reads the first balanced JSON object found in raw.
// It returns nil when there is none or it carries no text.
func ParseSummary(raw string) *entities.Summary {
	span, ok := firstJSONObject(raw)
	if !ok {
		return nil
	}

	var doc struct {
		Summary      json.RawMessage `json:"summary"`
		NextSteps    json.RawMessage `json:"next_steps"`
		NextStepsAlt json.RawMessage `json:"nextSteps"`
	}
	if err := json.Unmarshal([]byte(span), &doc); err != nil {
		return nil
	}

	next := doc.NextSteps
	if len(next) == 0 {
		next = doc.NextStepsAlt
	}
	s := &entities.Summary{
		SummaryText: textOf(doc.Summary),
		NextSteps:   textOf(next),
	}
	if s.Empty() {
		return nil
	}
	return s
}

// textOf accepts a JSON string or a list of strings
func textOf(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.TrimSpace(strings.Join(list, "\n"))
	}
	return ""
}

// firstJSONObject returns the first {...} span whose braces balance, skipping
// braces inside JSON strings
func firstJSONObject(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return raw[start : i+1], true
			}
		}
	}
	return "", false
}
