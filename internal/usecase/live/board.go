package live

import (
	"sync"

	"github.com/johnquangdev/meeting-copilot/internal/domain/entities"
)

// QuestionBoard is the per-meeting list of detected questions.
// The detector adds to it, the answer queue fills answers in, and readers
// take copies.
type QuestionBoard struct {
	mu        sync.Mutex
	questions []entities.Question
	known     map[string]struct{}
}

func NewQuestionBoard() *QuestionBoard {
	return &QuestionBoard{known: make(map[string]struct{})}
}

// Add records text unless the exact same text is already on the board
func (b *QuestionBoard) Add(text string) (entities.Question, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, dup := b.known[text]; dup {
		return entities.Question{}, false
	}
	q := entities.Question{Index: len(b.questions), Text: text, Answering: true}
	b.questions = append(b.questions, q)
	b.known[text] = struct{}{}
	return q, true
}

// Get returns a copy of question idx
func (b *QuestionBoard) Get(idx int) (entities.Question, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if idx < 0 || idx >= len(b.questions) {
		return entities.Question{}, false
	}
	return b.questions[idx], true
}

// AppendAnswer adds a token to the answer of question idx
func (b *QuestionBoard) AppendAnswer(idx int, token string) entities.Question {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.questions[idx].Answer += token
	return b.questions[idx]
}

// Finish marks question idx as no longer being answered
func (b *QuestionBoard) Finish(idx int) entities.Question {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.questions[idx].Answering = false
	return b.questions[idx]
}

// Snapshot copies every question in detection order
func (b *QuestionBoard) Snapshot() []entities.Question {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]entities.Question, len(b.questions))
	copy(out, b.questions)
	return out
}

// Records converts the board to its persisted form
func (b *QuestionBoard) Records() []entities.QuestionRecord {
	snapshot := b.Snapshot()
	out := make([]entities.QuestionRecord, 0, len(snapshot))
	for _, q := range snapshot {
		out = append(out, entities.QuestionRecord{Text: q.Text, Answer: q.Answer})
	}
	return out
}
