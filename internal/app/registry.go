package app

import (
	"sync"
	"time"

	"classroom-analytics/internal/domain"
)

// Presence mirrors session liveness into an external store so other
// instances (or operators) can see which sessions are live. Best effort:
// failures are ignored by the registry.
type Presence interface {
	MarkActive(sessionID int64)
	Clear(sessionID int64)
}

// sessionState holds everything the engine tracks for one live session.
// All map mutation happens under mu; the broadcasters carry their own locks.
type sessionState struct {
	mu            sync.RWMutex
	lastActivity  map[int64]time.Time
	subscriptions map[domain.AlertType]struct{}
	thresholds    map[domain.AlertType]float64
	questionStats map[int64]*domain.QuestionStats
	lastAlerts    map[domain.AlertType]time.Time

	events *broadcaster[domain.SessionEvent]
	alerts *broadcaster[domain.AlertData]
}

func newSessionState() *sessionState {
	st := &sessionState{
		lastActivity:  make(map[int64]time.Time),
		subscriptions: make(map[domain.AlertType]struct{}),
		thresholds:    make(map[domain.AlertType]float64, len(domain.AlertTypes)),
		questionStats: make(map[int64]*domain.QuestionStats),
		lastAlerts:    make(map[domain.AlertType]time.Time),
		events:        newBroadcaster[domain.SessionEvent](),
		alerts:        newBroadcaster[domain.AlertData](),
	}
	for _, t := range domain.AlertTypes {
		st.thresholds[t] = t.DefaultThreshold()
	}
	return st
}

// Registry owns the per-session analytics state for this process. Sessions
// are created lazily on first touch and live until Cleanup.
type Registry struct {
	mu       sync.RWMutex
	sessions map[int64]*sessionState
	presence Presence
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[int64]*sessionState)}
}

// NewRegistryWithPresence additionally mirrors session liveness into p.
func NewRegistryWithPresence(p Presence) *Registry {
	r := NewRegistry()
	r.presence = p
	return r
}

// ensure returns the state for sessionID, creating it with default
// thresholds and fresh broadcast channels if absent. Idempotent.
func (r *Registry) ensure(sessionID int64) *sessionState {
	r.mu.RLock()
	st, ok := r.sessions[sessionID]
	r.mu.RUnlock()
	if ok {
		return st
	}

	r.mu.Lock()
	st, ok = r.sessions[sessionID]
	if !ok {
		st = newSessionState()
		r.sessions[sessionID] = st
		if r.presence != nil {
			r.presence.MarkActive(sessionID)
		}
	}
	r.mu.Unlock()
	return st
}

// peek returns the state for sessionID without materializing it.
func (r *Registry) peek(sessionID int64) (*sessionState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.sessions[sessionID]
	return st, ok
}

// ActiveSessionIDs lists every session with live state, in no
// particular order.
func (r *Registry) ActiveSessionIDs() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]int64, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Cleanup drops all state for a session and closes both broadcast channels.
// Safe to call concurrently with publication: a sweep or publish racing the
// removal sees the session as never touched. Counters do not survive: a
// session touched again after Cleanup starts from zero.
func (r *Registry) Cleanup(sessionID int64) {
	r.mu.Lock()
	st, ok := r.sessions[sessionID]
	if ok {
		delete(r.sessions, sessionID)
		if r.presence != nil {
			r.presence.Clear(sessionID)
		}
	}
	r.mu.Unlock()

	if ok {
		st.events.closeAll()
		st.alerts.closeAll()
	}
}
