package session

// StartSessionRequest represents the request to open a live session.
// MeetingID 0 runs the pipeline without saving the result.
type StartSessionRequest struct {
	MeetingID int64  `json:"meeting_id" validate:"min=0"`
	Language  string `json:"language,omitempty" validate:"omitempty,oneof=en fr"`
}

// SetLanguageRequest represents the request to switch prompt language
type SetLanguageRequest struct {
	Language string `json:"language" validate:"required,oneof=en fr"`
}

// SetSpeakersRequest assigns display names to diarized speaker ids.
// An empty name restores the default placeholder.
type SetSpeakersRequest struct {
	Names map[string]string `json:"names" validate:"required,min=1,dive,keys,required,endkeys,max=100"`
}
