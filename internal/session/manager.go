// Package session hosts viewer sessions. Each session owns one viewer and
// serializes every event sent to it, so the viewer sees one event at a time
// while different sessions run in parallel.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ifc-viewer/backend/internal/loader"
	"github.com/ifc-viewer/backend/internal/models"
	"github.com/ifc-viewer/backend/internal/snapshot"
	"github.com/ifc-viewer/backend/internal/viewer"
)

// MaxSessions limits concurrent sessions to bound model memory.
const MaxSessions = 10

// SessionMaxAge is how long an idle session is kept before cleanup.
const SessionMaxAge = 30 * time.Minute

// SessionKeepAliveWindow is how long a recently used session is protected
// from cleanup.
const SessionKeepAliveWindow = 5 * time.Minute

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrTooManySessions   = errors.New("too many active sessions")
	ErrSnapshotsDisabled = errors.New("snapshot store not configured")
)

// Config configures a Manager.
type Config struct {
	Viewer      viewer.Options
	MaxSessions int
	Loader      *loader.Loader
	Snapshots   snapshot.Store
}

// Manager owns every viewer session.
type Manager struct {
	sessions     map[string]*State
	mu           sync.RWMutex
	cfg          Config
	requirements models.RequirementSet
}

// State is one session: its public record, its viewer and the load in flight.
type State struct {
	// mu serializes viewer access.
	mu     sync.Mutex
	viewer *viewer.Viewer
	cancel context.CancelFunc
	hub    *hub

	// Guarded by Manager.mu.
	Session      *models.ViewerSession
	LastAccessed time.Time
	createdAt    time.Time
}

// NewManager creates a manager. A nil Loader reads local files and HTTP(S).
func NewManager(cfg Config) *Manager {
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = MaxSessions
	}
	if cfg.Loader == nil {
		cfg.Loader = loader.New(loader.NewMux(), loader.Options{ProgressRate: 20})
	}
	return &Manager{
		sessions:     make(map[string]*State),
		cfg:          cfg,
		requirements: cfg.Viewer.Requirements,
	}
}

// CreateSession starts a viewer on a surface. A nil camera uses the default.
func (m *Manager) CreateSession(surface viewer.Surface, cam *viewer.Camera) (*models.ViewerSession, error) {
	m.cleanupOldSessionsIfNeeded()

	c := viewer.DefaultCamera()
	if cam != nil {
		c = *cam
	}

	id := uuid.New().String()
	state := &State{
		Session:      models.NewViewerSession(id),
		LastAccessed: time.Now(),
		createdAt:    time.Now(),
		hub:          newHub(),
	}

	m.mu.Lock()
	opts := m.cfg.Viewer
	opts.Requirements = m.requirements
	m.mu.Unlock()

	v := viewer.New(opts, viewer.Callbacks{
		OnSelect: func(it *models.Item) { state.hub.publish(Event{Type: EventSelect, Data: RefOf(it)}) },
		OnHover:  func(it *models.Item) { state.hub.publish(Event{Type: EventHover, Data: RefOf(it)}) },
	})
	if err := v.Initialize(surface, c); err != nil {
		return nil, err
	}
	v.Subscribe(func(ev viewer.CameraEvent) { state.hub.publish(Event{Type: EventCamera, Data: ev}) })
	state.viewer = v

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sessions) >= m.cfg.MaxSessions {
		return nil, ErrTooManySessions
	}
	m.sessions[id] = state
	fmt.Printf("[Session %s] Created (%gx%g)\n", shortID(id), surface.Width, surface.Height)
	copied := *state.Session
	return &copied, nil
}

// GetSession returns a copy of the session record.
func (m *Manager) GetSession(id string) (*models.ViewerSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	copied := *state.Session
	copied.Errors = append([]models.LoadError(nil), state.Session.Errors...)
	return &copied, true
}

// ListSessions returns copies of every session record, oldest first.
func (m *Manager) ListSessions() []*models.ViewerSession {
	m.mu.RLock()
	states := make([]*State, 0, len(m.sessions))
	for _, s := range m.sessions {
		states = append(states, s)
	}
	m.mu.RUnlock()

	sort.Slice(states, func(i, j int) bool { return states[i].createdAt.Before(states[j].createdAt) })
	out := make([]*models.ViewerSession, 0, len(states))
	for _, s := range states {
		if sess, ok := m.GetSession(s.Session.ID); ok {
			out = append(out, sess)
		}
	}
	return out
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// TouchSession marks a session as in use.
func (m *Manager) TouchSession(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return false
	}
	state.LastAccessed = time.Now()
	return true
}

// Do runs fn with exclusive access to the session's viewer.
func (m *Manager) Do(id string, fn func(v *viewer.Viewer) error) error {
	state, err := m.touch(id)
	if err != nil {
		return err
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	return fn(state.viewer)
}

// Subscribe streams the events of a session until the returned function is
// called or the session is deleted.
func (m *Manager) Subscribe(id string) (<-chan Event, func(), error) {
	state, err := m.lookup(id)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := state.hub.subscribe()
	return ch, cancel, nil
}

// Publish sends an event to the subscribers of a session.
func (m *Manager) Publish(id string, ev Event) {
	if state, err := m.lookup(id); err == nil {
		state.hub.publish(ev)
	}
}

// Requirements returns the requirement set new sessions start with.
func (m *Manager) Requirements() models.RequirementSet {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requirements
}

// SetRequirements replaces the requirement set of every session and
// reclassifies every loaded model. It returns how many were reclassified.
func (m *Manager) SetRequirements(rs models.RequirementSet) int {
	m.mu.Lock()
	m.requirements = rs
	states := make([]*State, 0, len(m.sessions))
	for _, s := range m.sessions {
		states = append(states, s)
	}
	m.mu.Unlock()

	n := 0
	for _, s := range states {
		s.mu.Lock()
		stats, ok := s.viewer.SetRequirements(rs)
		s.mu.Unlock()
		if !ok {
			continue
		}
		n++
		m.mu.Lock()
		s.Session.SelectableCount = stats.Selectable
		m.mu.Unlock()
	}
	fmt.Printf("[Manager] Requirements updated, reclassified %d sessions\n", n)
	return n
}

// DeleteSession cancels any load and releases the session's model.
func (m *Manager) DeleteSession(id string) error {
	m.mu.Lock()
	state, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	m.release(id, state)
	return nil
}

// Close releases every session.
func (m *Manager) Close() {
	m.mu.Lock()
	states := m.sessions
	m.sessions = make(map[string]*State)
	m.mu.Unlock()
	for id, s := range states {
		m.release(id, s)
	}
}

func (m *Manager) release(id string, state *State) {
	state.mu.Lock()
	if state.cancel != nil {
		state.cancel()
		state.cancel = nil
	}
	stats := state.viewer.Close()
	state.mu.Unlock()
	state.hub.close()
	fmt.Printf("[Session %s] Released %d items, %d geometries, %d materials\n",
		shortID(id), stats.Items, stats.Geometries, stats.Materials)
}

// cleanupOldSessionsIfNeeded drops the least recently used idle sessions
// when the manager is at capacity.
func (m *Manager) cleanupOldSessionsIfNeeded() {
	m.mu.Lock()
	if len(m.sessions) < m.cfg.MaxSessions {
		m.mu.Unlock()
		return
	}

	var candidates []string
	for id, state := range m.sessions {
		if state.Session.Status != models.SessionStatusLoading {
			candidates = append(candidates, id)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return m.sessions[candidates[i]].LastAccessed.Before(m.sessions[candidates[j]].LastAccessed)
	})

	toFree := len(m.sessions) - m.cfg.MaxSessions + 1
	freed := make(map[string]*State)
	for _, id := range candidates {
		if len(freed) >= toFree {
			break
		}
		if time.Since(m.sessions[id].LastAccessed) < SessionKeepAliveWindow {
			continue
		}
		freed[id] = m.sessions[id]
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for id, state := range freed {
		m.release(id, state)
		fmt.Printf("[Manager] Cleaned up old session %s to free memory\n", shortID(id))
	}
}

// CleanupOldSessions removes sessions idle for longer than maxAge, but keeps
// sessions accessed within SessionKeepAliveWindow and sessions still loading.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) int {
	now := time.Now()
	cutoff := now.Add(-maxAge)
	keepAliveCutoff := now.Add(-SessionKeepAliveWindow)

	m.mu.Lock()
	expired := make(map[string]*State)
	for id, state := range m.sessions {
		if state.Session.Status == models.SessionStatusLoading {
			continue
		}
		if state.LastAccessed.After(keepAliveCutoff) {
			continue
		}
		if state.LastAccessed.Before(cutoff) {
			expired[id] = state
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for id, state := range expired {
		m.release(id, state)
		fmt.Printf("[Manager] Cleaned up aged session %s (last accessed: %s ago)\n",
			shortID(id), time.Since(state.LastAccessed).Round(time.Second))
	}
	return len(expired)
}

func (m *Manager) lookup(id string) (*State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return state, nil
}

func (m *Manager) touch(id string) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	state.LastAccessed = time.Now()
	return state, nil
}

// shortID truncates an id for logging.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
