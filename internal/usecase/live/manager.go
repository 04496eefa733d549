package live

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-copilot/internal/domain/entities"
)

// DefaultRetention is how long a finished session stays readable
const DefaultRetention = 10 * time.Minute

// SessionCounter tracks how many sessions are live
type SessionCounter interface {
	RecordSessionStart()
	RecordSessionEnd()
}

type nopSessionCounter struct{}

func (nopSessionCounter) RecordSessionStart() {}
func (nopSessionCounter) RecordSessionEnd()   {}

// ManagerOption customizes a Manager
type ManagerOption func(*Manager)

// WithRetention sets how long finished sessions are kept before eviction
func WithRetention(d time.Duration) ManagerOption {
	return func(m *Manager) { m.retention = d }
}

// WithSessionCounter reports session starts and ends to c
func WithSessionCounter(c SessionCounter) ManagerOption {
	return func(m *Manager) {
		if c != nil {
			m.counter = c
		}
	}
}

// Manager keeps the live sessions of the running process. A session ends
// when its analysis finishes or it is discarded; finished sessions stay
// readable for the retention period and are then evicted.
type Manager struct {
	deps      SessionDeps
	logger    *zap.Logger
	retention time.Duration
	counter   SessionCounter

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(deps SessionDeps, opts ...ManagerOption) *Manager {
	deps = deps.withDefaults()
	m := &Manager{
		deps:      deps,
		logger:    deps.Logger,
		retention: DefaultRetention,
		counter:   nopSessionCounter{},
		sessions:  make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start opens a session for meetingID. A meeting id that does not resolve is
// rejected; 0 runs an unsaved session.
func (m *Manager) Start(ctx context.Context, meetingID int64, language string) (*Session, error) {
	if meetingID > 0 && m.deps.Store != nil {
		if _, err := m.deps.Store.GetMeeting(ctx, meetingID); err != nil {
			return nil, err
		}
	}

	s, err := NewSession(meetingID, language, m.deps)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	m.counter.RecordSessionStart()
	go m.watch(s)
	return s, nil
}

// watch ends the accounting of s once it is done and evicts it after the
// retention period
func (m *Manager) watch(s *Session) {
	<-s.Done()
	m.counter.RecordSessionEnd()

	timer := time.NewTimer(m.retention)
	defer timer.Stop()
	<-timer.C

	m.mu.Lock()
	if m.sessions[s.ID()] == s {
		delete(m.sessions, s.ID())
		m.logger.Debug("finished session evicted", zap.String("session_id", s.ID()))
	}
	m.mu.Unlock()
}

// Get returns a session by id
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, entities.ErrSessionNotFound
	}
	return s, nil
}

// List returns every known session
func (m *Manager) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// Discard drops a session and forgets it
func (m *Manager) Discard(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return entities.ErrSessionNotFound
	}
	s.Discard()
	return nil
}

// Shutdown stops every session and waits for them until ctx expires
func (m *Manager) Shutdown(ctx context.Context) error {
	var errs []error
	for _, s := range m.List() {
		if err := s.Shutdown(ctx); err != nil {
			m.logger.Warn("session did not drain before shutdown",
				zap.String("session_id", s.ID()), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
