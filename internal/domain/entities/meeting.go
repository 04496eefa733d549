package entities

import "time"

// MeetingStatus is the lifecycle state of a meeting document
type MeetingStatus string

const (
	MeetingStatusRecording MeetingStatus = "recording"
	MeetingStatusDone      MeetingStatus = "done"
)

// ActionStatus is the follow-up state of a persisted action
type ActionStatus string

const (
	ActionStatusTodo ActionStatus = "todo"
	ActionStatusDone ActionStatus = "done"
)

// Valid reports whether s is a known action status
func (s ActionStatus) Valid() bool {
	return s == ActionStatusTodo || s == ActionStatusDone
}

// DefaultCompanyColor is used when a company is created without a color
const DefaultCompanyColor = "#ff7c00"

// Company groups meetings
type Company struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Color       string    `json:"color"`
	CreatedAt   time.Time `json:"created_at"`
}

// Meeting is the aggregate document for one recorded meeting
type Meeting struct {
	ID              int64             `json:"id"`
	CompanyID       int64             `json:"company_id"`
	Title           string            `json:"title"`
	Description     string            `json:"description"`
	Service         string            `json:"service"`
	RecordedAt      time.Time         `json:"recorded_at"`
	DurationSeconds int               `json:"duration_seconds"`
	AudioPath       string            `json:"audio_path"`
	Status          MeetingStatus     `json:"status"`
	CreatedAt       time.Time         `json:"created_at"`
	Sentences       []StoredSentence  `json:"sentences"`
	Questions       []StoredQuestion  `json:"questions"`
	Actions         []StoredAction    `json:"actions"`
	Summary         *StoredSummary    `json:"summary"`
	SpeakerNames    map[string]string `json:"speaker_names"`
	KeyPoints       []string          `json:"key_points,omitempty"`
}

// Header returns the meeting without its derived arrays, for listings
func (m *Meeting) Header() MeetingHeader {
	return MeetingHeader{
		ID:              m.ID,
		CompanyID:       m.CompanyID,
		Title:           m.Title,
		Description:     m.Description,
		Service:         m.Service,
		RecordedAt:      m.RecordedAt,
		DurationSeconds: m.DurationSeconds,
		AudioPath:       m.AudioPath,
		Status:          m.Status,
		CreatedAt:       m.CreatedAt,
	}
}

// MeetingHeader is the listing view of a meeting
type MeetingHeader struct {
	ID              int64         `json:"id"`
	CompanyID       int64         `json:"company_id"`
	Title           string        `json:"title"`
	Description     string        `json:"description"`
	Service         string        `json:"service"`
	RecordedAt      time.Time     `json:"recorded_at"`
	DurationSeconds int           `json:"duration_seconds"`
	AudioPath       string        `json:"audio_path"`
	Status          MeetingStatus `json:"status"`
	CreatedAt       time.Time     `json:"created_at"`
}

type StoredSentence struct {
	ID        int64   `json:"id"`
	MeetingID int64   `json:"meeting_id"`
	Idx       int     `json:"idx"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Segment   string  `json:"segment"`
	Speaker   string  `json:"speaker,omitempty"`
}

type StoredQuestion struct {
	ID        int64  `json:"id"`
	MeetingID int64  `json:"meeting_id"`
	Idx       int    `json:"idx"`
	Text      string `json:"text"`
	Answer    string `json:"answer"`
}

type StoredAction struct {
	ID        int64        `json:"id"`
	MeetingID int64        `json:"meeting_id"`
	Idx       int          `json:"idx"`
	Text      string       `json:"text"`
	Status    ActionStatus `json:"status"`
}

type StoredSummary struct {
	ID          int64     `json:"id"`
	MeetingID   int64     `json:"meeting_id"`
	SummaryText string    `json:"summary_text"`
	NextSteps   string    `json:"next_steps"`
	GeneratedAt time.Time `json:"generated_at"`
}

// MeetingPayload is the full replacement of a meeting's derived data
type MeetingPayload struct {
	Sentences       []Sentence        `json:"sentences"`
	Questions       []QuestionRecord  `json:"questions"`
	Actions         []ActionRecord    `json:"actions"`
	Summary         string            `json:"summary"`
	NextSteps       string            `json:"next_steps"`
	DurationSeconds int               `json:"duration_seconds"`
	AudioPath       string            `json:"audio_path"`
	SpeakerNames    map[string]string `json:"speaker_names,omitempty"`
	KeyPoints       []string          `json:"key_points,omitempty"`
}

// QuestionRecord is a question as submitted for persistence (text + answer only)
type QuestionRecord struct {
	Text   string `json:"text"`
	Answer string `json:"answer"`
}

// ActionRecord is an action as submitted for persistence; empty status means todo
type ActionRecord struct {
	Text   string       `json:"text"`
	Status ActionStatus `json:"status,omitempty"`
}

// CompanyPatch lists the company fields that may change after creation
type CompanyPatch struct {
	Name        *string
	Description *string
	Color       *string
}

// MeetingPatch lists the meeting fields that may change outside a bulk save
type MeetingPatch struct {
	Title           *string
	Description     *string
	Status          *MeetingStatus
	DurationSeconds *int
	AudioPath       *string
	RecordedAt      *time.Time
}
