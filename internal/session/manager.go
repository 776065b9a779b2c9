// Package session keeps the live upload-and-analyze flows of the service.
package session

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/quick-analysis/backend/internal/analysis"
	"github.com/quick-analysis/backend/internal/clock"
	"github.com/quick-analysis/backend/internal/flow"
	"github.com/quick-analysis/backend/internal/i18n"
	"github.com/quick-analysis/backend/internal/logger"
	"github.com/quick-analysis/backend/internal/models"
	"github.com/quick-analysis/backend/internal/staging"
	"github.com/quick-analysis/backend/internal/storage"
)

// DefaultMaxSessions limits concurrent flows to bound memory and timers.
const DefaultMaxSessions = 100

// DefaultMaxAge is how long an untouched session survives cleanup.
const DefaultMaxAge = 30 * time.Minute

// ExpiredReason is recorded on a pending analysis torn down by cleanup.
const ExpiredReason = "session expired"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrTooManySessions = errors.New("too many active sessions")
)

// Options configures the flows a Manager creates.
type Options struct {
	Catalog        *i18n.Catalog
	Clock          clock.Clock
	Store          storage.Store
	Analysis       analysis.Config
	Rules          staging.Rules
	ResetPolicy    staging.ResetPolicy
	AllowStartOver bool
	DefaultLocale  string
	MaxSessions    int
}

// Manager handles active flows.
type Manager struct {
	sessions map[string]*SessionState
	mu       sync.RWMutex
	opts     Options
}

// SessionState holds one flow and its bookkeeping.
type SessionState struct {
	Flow         *flow.Flow
	CreatedAt    time.Time
	LastAccessed time.Time
}

// NewManager creates a session manager.
func NewManager(opts Options) *Manager {
	if opts.Catalog == nil {
		opts.Catalog = i18n.Default()
	}
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = DefaultMaxSessions
	}
	return &Manager{
		sessions: make(map[string]*SessionState),
		opts:     opts,
	}
}

// Catalog returns the locale catalog shared by every flow.
func (m *Manager) Catalog() *i18n.Catalog {
	return m.opts.Catalog
}

// Store returns the file store, which may be nil.
func (m *Manager) Store() storage.Store {
	return m.opts.Store
}

// CreateSession starts a new idle flow. An empty locale selects the
// configured default.
func (m *Manager) CreateSession(locale string, darkMode bool) (*flow.Flow, error) {
	if err := m.cleanupOldSessionsIfNeeded(); err != nil {
		return nil, err
	}

	if locale == "" {
		locale = m.opts.DefaultLocale
	}
	id := uuid.New().String()
	f := flow.New(flow.Options{
		ID:             id,
		Catalog:        m.opts.Catalog,
		Clock:          m.opts.Clock,
		Analysis:       m.opts.Analysis,
		Rules:          m.opts.Rules,
		ResetPolicy:    m.opts.ResetPolicy,
		AllowStartOver: m.opts.AllowStartOver,
		Locale:         locale,
		DarkMode:       darkMode,
		Release:        m.releaseFunc(id),
	})

	now := m.opts.Clock.Now()
	m.mu.Lock()
	m.sessions[id] = &SessionState{Flow: f, CreatedAt: now, LastAccessed: now}
	m.mu.Unlock()

	logger.WithFields(logrus.Fields{"session": id, "locale": f.Snapshot().Locale}).Info("session created")
	return f, nil
}

func (m *Manager) releaseFunc(id string) func([]models.StagedFile) {
	if m.opts.Store == nil {
		return nil
	}
	return storage.ReleaseFunc(m.opts.Store, func(fileID string, err error) {
		logger.WithFields(logrus.Fields{"session": id, "file": fileID}).WithError(err).Warn("failed to release file")
	})
}

// cleanupOldSessionsIfNeeded evicts the least recently used flow that is not
// pending when at capacity.
func (m *Manager) cleanupOldSessionsIfNeeded() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) < m.opts.MaxSessions {
		return nil
	}

	var candidates []string
	for id, state := range m.sessions {
		if state.Flow.Snapshot().State.Phase != models.PhasePending {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) == 0 {
		return ErrTooManySessions
	}
	sort.Slice(candidates, func(i, j int) bool {
		return m.sessions[candidates[i]].LastAccessed.Before(m.sessions[candidates[j]].LastAccessed)
	})

	toFree := len(m.sessions) - m.opts.MaxSessions + 1
	if toFree > len(candidates) {
		return ErrTooManySessions
	}
	for _, id := range candidates[:toFree] {
		m.sessions[id].Flow.Close()
		delete(m.sessions, id)
		logger.WithFields(logrus.Fields{"session": id}).Info("evicted session to make room")
	}
	return nil
}

// CleanupOldSessions tears down sessions not accessed within maxAge and
// returns how many were removed. A pending analysis is failed first so
// subscribers see why it ended.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.opts.Clock.Now()
	cutoff := now.Add(-maxAge)
	removed := 0
	for id, state := range m.sessions {
		if !state.LastAccessed.Before(cutoff) {
			continue
		}
		state.Flow.Cancel(ExpiredReason)
		state.Flow.Close()
		delete(m.sessions, id)
		removed++
		logger.WithFields(logrus.Fields{
			"session": id,
			"idle":    now.Sub(state.LastAccessed).Round(time.Second).String(),
		}).Info("cleaned up aged session")
	}
	return removed
}

// GetSession returns a flow by ID and marks it accessed.
func (m *Manager) GetSession(id string) (*flow.Flow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	state.LastAccessed = m.opts.Clock.Now()
	return state.Flow, nil
}

// Snapshot returns the flow snapshot with the session's last access time.
func (m *Manager) Snapshot(id string) (models.FlowSnapshot, error) {
	m.mu.RLock()
	state, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return models.FlowSnapshot{}, ErrSessionNotFound
	}
	snap := state.Flow.Snapshot()
	m.mu.RLock()
	snap.LastAccess = state.LastAccessed
	m.mu.RUnlock()
	return snap, nil
}

// TouchSession updates the LastAccessed timestamp for a session.
// This should be called whenever a session is actively being used
// to prevent it from being cleaned up.
func (m *Manager) TouchSession(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return false
	}
	state.LastAccessed = m.opts.Clock.Now()
	return true
}

// DeleteSession tears a flow down.
func (m *Manager) DeleteSession(id string) error {
	m.mu.Lock()
	state, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	state.Flow.Close()
	logger.WithFields(logrus.Fields{"session": id}).Info("session deleted")
	return nil
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close tears every flow down.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, state := range m.sessions {
		state.Flow.Close()
		delete(m.sessions, id)
	}
}
