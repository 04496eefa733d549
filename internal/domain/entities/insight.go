package entities

// Question is a question detected during a live meeting
type Question struct {
	Index     int    `json:"index"`
	Text      string `json:"text"`
	Answer    string `json:"answer,omitempty"`
	Answering bool   `json:"answering"`
}

// Summary is the end-of-meeting synthesis
type Summary struct {
	SummaryText string `json:"summary"`
	NextSteps   string `json:"next_steps"`
}

// Empty reports whether the model produced nothing usable
func (s *Summary) Empty() bool {
	return s == nil || (s.SummaryText == "" && s.NextSteps == "")
}
