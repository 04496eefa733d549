package library

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-copilot/internal/domain/entities"
	"github.com/johnquangdev/meeting-copilot/internal/domain/repositories"
)

// Service is the document store for companies and meetings.
//
// Identifiers come from one counter shared by every entity kind. The counter
// is seeded lazily from the highest identifier found in persisted documents
// and then only moves forward in memory, so an identifier is never handed out
// twice during the lifetime of the process.
type Service interface {
	AllocateID(ctx context.Context) (int64, error)

	ListCompanies(ctx context.Context) []entities.Company
	CreateCompany(ctx context.Context, in NewCompany) (*entities.Company, error)
	UpdateCompany(ctx context.Context, id int64, patch entities.CompanyPatch) (*entities.Company, error)
	DeleteCompany(ctx context.Context, id int64) (*CascadeReport, error)

	ListMeetings(ctx context.Context, companyID int64) []entities.MeetingHeader
	GetMeeting(ctx context.Context, id int64) (*entities.Meeting, error)
	CreateMeeting(ctx context.Context, in NewMeeting) (*entities.Meeting, error)
	UpdateMeeting(ctx context.Context, id int64, patch entities.MeetingPatch) (*entities.Meeting, error)
	DeleteMeeting(ctx context.Context, id int64) error

	SaveMeetingData(ctx context.Context, meetingID int64, payload entities.MeetingPayload) (*entities.Meeting, error)
	ToggleActionStatus(ctx context.Context, actionID int64, status entities.ActionStatus) (*entities.StoredAction, error)
}

// NewCompany holds the fields of a company to create
type NewCompany struct {
	Name        string
	Description string
	Color       string
}

// NewMeeting holds the fields of a meeting to create
type NewMeeting struct {
	CompanyID   int64
	Title       string
	Description string
	Service     string
}

// CascadeReport describes what a company deletion removed and what it could not
type CascadeReport struct {
	CompanyID       int64   `json:"company_id"`
	DeletedMeetings []int64 `json:"deleted_meetings"`
	Failures        []error `json:"-"`
}

// Err joins the per-meeting failures, nil when the cascade was clean
func (r *CascadeReport) Err() error {
	return errors.Join(r.Failures...)
}

type service struct {
	backend repositories.DocumentBackend
	logger  *zap.Logger
	now     func() time.Time

	mu     sync.Mutex
	nextID int64
	seeded bool
}

// NewService creates the document store on top of a raw document backend
func NewService(backend repositories.DocumentBackend, logger *zap.Logger) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{
		backend: backend,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *service) AllocateID(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allocate(ctx), nil
}

// allocate must be called with s.mu held
func (s *service) allocate(ctx context.Context) int64 {
	if !s.seeded {
		s.nextID = s.highestPersistedID(ctx) + 1
		s.seeded = true
		s.logger.Info("identifier counter seeded", zap.Int64("next_id", s.nextID))
	}
	id := s.nextID
	s.nextID++
	return id
}

func (s *service) highestPersistedID(ctx context.Context) int64 {
	var max int64
	bump := func(id int64) {
		if id > max {
			max = id
		}
	}

	companies, err := s.backend.LoadCompanies(ctx)
	if err != nil {
		s.logger.Warn("companies unreadable while seeding identifiers", zap.Error(err))
	}
	for _, c := range companies {
		bump(c.ID)
	}

	ids, err := s.backend.ListMeetingIDs(ctx)
	if err != nil {
		s.logger.Warn("meetings unreadable while seeding identifiers", zap.Error(err))
	}
	for _, id := range ids {
		bump(id)
		m, err := s.backend.LoadMeeting(ctx, id)
		if err != nil {
			s.logger.Warn("meeting unreadable while seeding identifiers", zap.Int64("meeting_id", id), zap.Error(err))
			continue
		}
		for _, e := range m.Sentences {
			bump(e.ID)
		}
		for _, q := range m.Questions {
			bump(q.ID)
		}
		for _, a := range m.Actions {
			bump(a.ID)
		}
		if m.Summary != nil {
			bump(m.Summary.ID)
		}
	}
	return max
}

// loadCompanies degrades to an empty list on read failure
func (s *service) loadCompanies(ctx context.Context) []entities.Company {
	companies, err := s.backend.LoadCompanies(ctx)
	if err != nil {
		s.logger.Warn("companies unreadable, using empty list", zap.Error(err))
		return []entities.Company{}
	}
	return companies
}

// loadMeeting degrades a corrupt document to "not found"
func (s *service) loadMeeting(ctx context.Context, id int64) (*entities.Meeting, error) {
	m, err := s.backend.LoadMeeting(ctx, id)
	if err != nil {
		if !errors.Is(err, entities.ErrMeetingNotFound) {
			s.logger.Warn("meeting unreadable", zap.Int64("meeting_id", id), zap.Error(err))
		}
		return nil, entities.ErrMeetingNotFound
	}
	return m, nil
}

func (s *service) ListCompanies(ctx context.Context) []entities.Company {
	s.mu.Lock()
	defer s.mu.Unlock()

	companies := s.loadCompanies(ctx)
	sort.SliceStable(companies, func(i, j int) bool { return companies[i].Name < companies[j].Name })
	return companies
}

func (s *service) CreateCompany(ctx context.Context, in NewCompany) (*entities.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	companies := s.loadCompanies(ctx)

	color := in.Color
	if color == "" {
		color = entities.DefaultCompanyColor
	}
	c := entities.Company{
		ID:          s.allocate(ctx),
		Name:        in.Name,
		Description: in.Description,
		Color:       color,
		CreatedAt:   s.now(),
	}
	companies = append(companies, c)
	if err := s.backend.SaveCompanies(ctx, companies); err != nil {
		return nil, fmt.Errorf("failed to save companies: %w", err)
	}
	return &c, nil
}

func (s *service) UpdateCompany(ctx context.Context, id int64, patch entities.CompanyPatch) (*entities.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	companies := s.loadCompanies(ctx)

	for i := range companies {
		if companies[i].ID != id {
			continue
		}
		if patch.Name != nil {
			companies[i].Name = *patch.Name
		}
		if patch.Description != nil {
			companies[i].Description = *patch.Description
		}
		if patch.Color != nil {
			companies[i].Color = *patch.Color
		}
		if err := s.backend.SaveCompanies(ctx, companies); err != nil {
			return nil, fmt.Errorf("failed to save companies: %w", err)
		}
		updated := companies[i]
		return &updated, nil
	}
	return nil, entities.ErrCompanyNotFound
}

// DeleteCompany removes the company and then every meeting that references it.
// Meeting failures do not stop the cascade; they are collected in the report.
func (s *service) DeleteCompany(ctx context.Context, id int64) (*CascadeReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	companies := s.loadCompanies(ctx)

	kept := make([]entities.Company, 0, len(companies))
	found := false
	for _, c := range companies {
		if c.ID == id {
			found = true
			continue
		}
		kept = append(kept, c)
	}
	if found {
		if err := s.backend.SaveCompanies(ctx, kept); err != nil {
			return nil, fmt.Errorf("failed to save companies: %w", err)
		}
	}

	report := &CascadeReport{CompanyID: id, DeletedMeetings: []int64{}}
	ids, err := s.backend.ListMeetingIDs(ctx)
	if err != nil {
		report.Failures = append(report.Failures, fmt.Errorf("failed to list meetings: %w", err))
	}
	for _, mid := range ids {
		m, err := s.backend.LoadMeeting(ctx, mid)
		if err != nil {
			report.Failures = append(report.Failures, fmt.Errorf("meeting %d: %w", mid, err))
			continue
		}
		if m.CompanyID != id {
			continue
		}
		if err := s.backend.DeleteMeeting(ctx, mid); err != nil {
			report.Failures = append(report.Failures, fmt.Errorf("meeting %d: %w", mid, err))
			continue
		}
		report.DeletedMeetings = append(report.DeletedMeetings, mid)
	}

	if len(report.Failures) > 0 {
		s.logger.Warn("company cascade incomplete",
			zap.Int64("company_id", id),
			zap.Int64s("deleted_meetings", report.DeletedMeetings),
			zap.Error(report.Err()))
	}

	if !found && len(report.DeletedMeetings) == 0 {
		return report, entities.ErrCompanyNotFound
	}
	return report, nil
}

func (s *service) ListMeetings(ctx context.Context, companyID int64) []entities.MeetingHeader {
	s.mu.Lock()
	defer s.mu.Unlock()

	headers := []entities.MeetingHeader{}
	ids, err := s.backend.ListMeetingIDs(ctx)
	if err != nil {
		s.logger.Warn("meetings unreadable, using empty list", zap.Error(err))
		return headers
	}
	for _, id := range ids {
		m, err := s.loadMeeting(ctx, id)
		if err != nil || m.CompanyID != companyID {
			continue
		}
		headers = append(headers, m.Header())
	}
	sort.SliceStable(headers, func(i, j int) bool { return headers[i].RecordedAt.After(headers[j].RecordedAt) })
	return headers
}

func (s *service) GetMeeting(ctx context.Context, id int64) (*entities.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadMeeting(ctx, id)
}

func (s *service) CreateMeeting(ctx context.Context, in NewMeeting) (*entities.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exists := false
	for _, c := range s.loadCompanies(ctx) {
		if c.ID == in.CompanyID {
			exists = true
			break
		}
	}
	if !exists {
		return nil, entities.ErrCompanyNotFound
	}

	now := s.now()
	m := &entities.Meeting{
		ID:           s.allocate(ctx),
		CompanyID:    in.CompanyID,
		Title:        in.Title,
		Description:  in.Description,
		Service:      in.Service,
		RecordedAt:   now,
		Status:       entities.MeetingStatusRecording,
		CreatedAt:    now,
		Sentences:    []entities.StoredSentence{},
		Questions:    []entities.StoredQuestion{},
		Actions:      []entities.StoredAction{},
		SpeakerNames: map[string]string{},
	}
	if err := s.backend.SaveMeeting(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to save meeting: %w", err)
	}
	return m, nil
}

func (s *service) UpdateMeeting(ctx context.Context, id int64, patch entities.MeetingPatch) (*entities.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.loadMeeting(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Title != nil {
		m.Title = *patch.Title
	}
	if patch.Description != nil {
		m.Description = *patch.Description
	}
	if patch.Status != nil {
		m.Status = *patch.Status
	}
	if patch.DurationSeconds != nil {
		m.DurationSeconds = *patch.DurationSeconds
	}
	if patch.AudioPath != nil {
		m.AudioPath = *patch.AudioPath
	}
	if patch.RecordedAt != nil {
		m.RecordedAt = patch.RecordedAt.UTC()
	}
	if err := s.backend.SaveMeeting(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to save meeting: %w", err)
	}
	return m, nil
}

// DeleteMeeting is best effort; a missing document is not an error
func (s *service) DeleteMeeting(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.DeleteMeeting(ctx, id); err != nil {
		s.logger.Warn("meeting delete failed", zap.Int64("meeting_id", id), zap.Error(err))
	}
	return nil
}

// SaveMeetingData replaces the derived data of a meeting in one write and marks it done.
// Sentences, questions and the summary get fresh identifiers. An action whose
// text matches an already persisted action keeps that action's identifier and
// status, so a toggle made before the save survives it.
func (s *service) SaveMeetingData(ctx context.Context, meetingID int64, payload entities.MeetingPayload) (*entities.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.loadMeeting(ctx, meetingID)
	if err != nil {
		return nil, err
	}

	sentences := make([]entities.StoredSentence, 0, len(payload.Sentences))
	for i, sent := range payload.Sentences {
		sentences = append(sentences, entities.StoredSentence{
			ID:        s.allocate(ctx),
			MeetingID: meetingID,
			Idx:       i,
			StartTime: sent.Start,
			EndTime:   sent.End,
			Segment:   sent.Text,
			Speaker:   sent.Speaker,
		})
	}

	questions := make([]entities.StoredQuestion, 0, len(payload.Questions))
	for i, q := range payload.Questions {
		questions = append(questions, entities.StoredQuestion{
			ID:        s.allocate(ctx),
			MeetingID: meetingID,
			Idx:       i,
			Text:      q.Text,
			Answer:    q.Answer,
		})
	}

	prior := make(map[string]entities.StoredAction, len(m.Actions))
	for _, a := range m.Actions {
		if _, dup := prior[a.Text]; !dup {
			prior[a.Text] = a
		}
	}
	actions := make([]entities.StoredAction, 0, len(payload.Actions))
	for i, a := range payload.Actions {
		stored := entities.StoredAction{MeetingID: meetingID, Idx: i, Text: a.Text, Status: a.Status}
		if p, ok := prior[a.Text]; ok {
			stored.ID = p.ID
			if stored.Status == "" {
				stored.Status = p.Status
			}
			delete(prior, a.Text)
		} else {
			stored.ID = s.allocate(ctx)
		}
		if !stored.Status.Valid() {
			stored.Status = entities.ActionStatusTodo
		}
		actions = append(actions, stored)
	}

	m.Sentences = sentences
	m.Questions = questions
	m.Actions = actions
	m.Summary = nil
	if payload.Summary != "" || payload.NextSteps != "" {
		m.Summary = &entities.StoredSummary{
			ID:          s.allocate(ctx),
			MeetingID:   meetingID,
			SummaryText: payload.Summary,
			NextSteps:   payload.NextSteps,
			GeneratedAt: s.now(),
		}
	}
	if payload.SpeakerNames != nil {
		m.SpeakerNames = payload.SpeakerNames
	}
	if payload.KeyPoints != nil {
		m.KeyPoints = payload.KeyPoints
	}
	m.Status = entities.MeetingStatusDone
	m.DurationSeconds = payload.DurationSeconds
	if payload.AudioPath != "" {
		m.AudioPath = payload.AudioPath
	}

	if err := s.backend.SaveMeeting(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to save meeting data: %w", err)
	}

	s.logger.Info("meeting data saved",
		zap.Int64("meeting_id", meetingID),
		zap.Int("sentences", len(sentences)),
		zap.Int("questions", len(questions)),
		zap.Int("actions", len(actions)),
		zap.Bool("summary", m.Summary != nil))
	return m, nil
}

// ToggleActionStatus rewrites only the meeting that owns the action
func (s *service) ToggleActionStatus(ctx context.Context, actionID int64, status entities.ActionStatus) (*entities.StoredAction, error) {
	if !status.Valid() {
		return nil, entities.ErrInvalidStatus
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.backend.ListMeetingIDs(ctx)
	if err != nil {
		s.logger.Warn("meetings unreadable while toggling action", zap.Error(err))
		return nil, entities.ErrActionNotFound
	}
	for _, id := range ids {
		m, err := s.loadMeeting(ctx, id)
		if err != nil {
			continue
		}
		for i := range m.Actions {
			if m.Actions[i].ID != actionID {
				continue
			}
			m.Actions[i].Status = status
			if err := s.backend.SaveMeeting(ctx, m); err != nil {
				return nil, fmt.Errorf("failed to save meeting: %w", err)
			}
			action := m.Actions[i]
			return &action, nil
		}
	}
	return nil, entities.ErrActionNotFound
}
