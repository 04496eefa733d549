package live

import (
	"strconv"
	"strings"

	"github.com/johnquangdev/meeting-copilot/internal/domain/entities"
)

// FragmentTracker remembers how many sentences have already been handed out
type FragmentTracker struct {
	cursor int
}

// Next returns the sentences appended since the previous call and advances the cursor.
// If the list shrank below the cursor, the cursor is clamped and nothing is returned.
func (t *FragmentTracker) Next(all []entities.Sentence) []entities.Sentence {
	if t.cursor >= len(all) {
		t.cursor = len(all)
		return nil
	}
	fragment := make([]entities.Sentence, len(all)-t.cursor)
	copy(fragment, all[t.cursor:])
	t.cursor = len(all)
	return fragment
}

// Cursor is the number of sentences already processed
func (t *FragmentTracker) Cursor() int {
	return t.cursor
}

// BuildSpeakerText renders sentences as one block, starting a "[name]: " line
// whenever the speaker changes. Sentences without a speaker are appended to
// the current line, so unattributed input collapses to plain concatenation.
func BuildSpeakerText(sentences []entities.Sentence, names map[string]string) string {
	var b strings.Builder
	last := ""
	for _, s := range sentences {
		if name := SpeakerDisplayName(s.Speaker, names); name != "" && name != last {
			b.WriteString("\n[")
			b.WriteString(name)
			b.WriteString("]: ")
			last = name
		}
		b.WriteString(s.Text)
		b.WriteString(" ")
	}
	return strings.TrimSpace(b.String())
}

// SpeakerDisplayName returns the user-assigned name of a speaker, or a stable
// placeholder: "SPEAKER_0" becomes "Speaker 1".
func SpeakerDisplayName(id string, names map[string]string) string {
	if id == "" {
		return ""
	}
	if name := names[id]; name != "" {
		return name
	}
	if n, err := strconv.Atoi(strings.TrimPrefix(id, "SPEAKER_")); err == nil {
		return "Speaker " + strconv.Itoa(n+1)
	}
	return id
}

func joinSegments(sentences []entities.Sentence) string {
	parts := make([]string, 0, len(sentences))
	for _, s := range sentences {
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
