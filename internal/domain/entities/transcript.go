package entities

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Sentence is one timed transcript sentence produced by the speech recognizer
type Sentence struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"segment"`
	Speaker string  `json:"speaker,omitempty"`
}

// UnmarshalJSON accepts start/end either as numbers or as decimal strings ("12.34")
func (s *Sentence) UnmarshalJSON(data []byte) error {
	var raw struct {
		Start   json.RawMessage `json:"start"`
		End     json.RawMessage `json:"end"`
		Segment string          `json:"segment"`
		Text    string          `json:"text"`
		Speaker *string         `json:"speaker"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	start, err := flexibleFloat(raw.Start)
	if err != nil {
		return fmt.Errorf("invalid sentence start: %w", err)
	}
	end, err := flexibleFloat(raw.End)
	if err != nil {
		return fmt.Errorf("invalid sentence end: %w", err)
	}

	s.Start = start
	s.End = end
	s.Text = raw.Segment
	if s.Text == "" {
		s.Text = raw.Text
	}
	s.Speaker = ""
	if raw.Speaker != nil {
		s.Speaker = *raw.Speaker
	}
	return nil
}

func flexibleFloat(raw json.RawMessage) (float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, nil
	}
	if raw[0] == '"' {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return 0, err
		}
		if str == "" {
			return 0, nil
		}
		return strconv.ParseFloat(str, 64)
	}
	var f float64
	err := json.Unmarshal(raw, &f)
	return f, err
}

// TranscriptMessageType is the only frame type the ingress acts on
const TranscriptMessageType = "transcript"

// TranscriptUpdate is the full current transcript state pushed by the recognizer.
// Final marks the terminal signal for the meeting.
type TranscriptUpdate struct {
	Type      string     `json:"type,omitempty"`
	Sentences []Sentence `json:"sentences"`
	FullText  string     `json:"fullText"`
	Final     bool       `json:"final"`
}
