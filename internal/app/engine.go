package app

import (
	"log"
	"time"

	"classroom-analytics/internal/domain"
	"github.com/google/uuid"
)

// AnalyticsService is the session analytics and alerting engine. It ingests
// live classroom events, maintains per-session aggregates, and pushes
// threshold-triggered alerts to subscribed instructors.
type AnalyticsService struct {
	registry *Registry
	cooldown time.Duration
	now      func() time.Time
}

func NewAnalyticsService(registry *Registry, cooldown time.Duration) *AnalyticsService {
	return NewAnalyticsServiceWithClock(registry, cooldown, time.Now)
}

// NewAnalyticsServiceWithClock allows deterministic timestamps in tests.
func NewAnalyticsServiceWithClock(registry *Registry, cooldown time.Duration, now func() time.Time) *AnalyticsService {
	if cooldown <= 0 {
		cooldown = domain.AlertCooldown
	}
	return &AnalyticsService{registry: registry, cooldown: cooldown, now: now}
}

// Ingest updates per-session aggregates for the event and publishes it to
// every live subscriber of the session's event stream. Unknown session ids
// lazily create empty state; ingestion never fails.
func (s *AnalyticsService) Ingest(event domain.SessionEvent) {
	st := s.registry.ensure(event.Session())

	st.mu.Lock()
	if studentID := event.Student(); studentID != 0 {
		st.lastActivity[studentID] = event.OccurredAt()
	}
	if result, ok := event.(domain.QuestionResultEvent); ok {
		stats := st.questionStats[result.QuestionID]
		if stats == nil {
			stats = &domain.QuestionStats{}
			st.questionStats[result.QuestionID] = stats
		}
		stats.Attempts++
		if !result.Success {
			stats.Failures++
		}
	}
	st.mu.Unlock()

	st.events.publish(event)
}

// SubscribeToSession returns a live stream of the session's raw events,
// starting from the moment of subscription. The cancel func must be called
// to release the stream; calling it twice is harmless.
func (s *AnalyticsService) SubscribeToSession(sessionID int64) (<-chan domain.SessionEvent, func()) {
	st := s.registry.ensure(sessionID)
	return st.events.subscribe()
}

// SubscribeToSessionAlerts returns a live stream of the session's alerts
// with the same semantics as SubscribeToSession.
func (s *AnalyticsService) SubscribeToSessionAlerts(sessionID int64) (<-chan domain.AlertData, func()) {
	st := s.registry.ensure(sessionID)
	return st.alerts.subscribe()
}

// SubscribeToAlert opts the session into alerts of the given type and
// optionally overwrites the stored threshold. Alerts are broadcast
// session-wide: instructorID is recorded for audit logging only, delivery is
// not scoped per instructor.
func (s *AnalyticsService) SubscribeToAlert(sessionID, instructorID int64, alertType domain.AlertType, threshold *float64) error {
	if !alertType.Valid() {
		return domain.ErrUnknownAlertType
	}
	st := s.registry.ensure(sessionID)

	st.mu.Lock()
	st.subscriptions[alertType] = struct{}{}
	if threshold != nil {
		st.thresholds[alertType] = *threshold
	}
	st.mu.Unlock()

	log.Printf("instructor %d subscribed to %s alerts for session %d", instructorID, alertType, sessionID)
	return nil
}

// UnsubscribeFromAlert removes the alert type from the session's
// subscription set. Unknown sessions are a no-op.
func (s *AnalyticsService) UnsubscribeFromAlert(sessionID, instructorID int64, alertType domain.AlertType) error {
	if !alertType.Valid() {
		return domain.ErrUnknownAlertType
	}
	st, ok := s.registry.peek(sessionID)
	if !ok {
		return nil
	}

	st.mu.Lock()
	delete(st.subscriptions, alertType)
	st.mu.Unlock()

	log.Printf("instructor %d unsubscribed from %s alerts for session %d", instructorID, alertType, sessionID)
	return nil
}

// SetAlertThreshold overwrites the session's threshold for the alert type
// without touching the subscription set.
func (s *AnalyticsService) SetAlertThreshold(sessionID int64, alertType domain.AlertType, value float64) error {
	if !alertType.Valid() {
		return domain.ErrUnknownAlertType
	}
	st := s.registry.ensure(sessionID)

	st.mu.Lock()
	st.thresholds[alertType] = value
	st.mu.Unlock()
	return nil
}

// GetAlertThreshold returns the session's threshold for the alert type, or
// the type's global default when the session has never been touched. Reading
// never materializes session state.
func (s *AnalyticsService) GetAlertThreshold(sessionID int64, alertType domain.AlertType) float64 {
	st, ok := s.registry.peek(sessionID)
	if !ok {
		return alertType.DefaultThreshold()
	}

	st.mu.RLock()
	defer st.mu.RUnlock()
	if v, ok := st.thresholds[alertType]; ok {
		return v
	}
	return alertType.DefaultThreshold()
}

// EmitOptionalAlert publishes an alert to the session's alert stream, gated
// by the subscription set and the per-type cooldown. Triggers inside the
// cooldown window are dropped, not deferred.
func (s *AnalyticsService) EmitOptionalAlert(sessionID int64, alertType domain.AlertType, message string, data map[string]any) {
	st, ok := s.registry.peek(sessionID)
	if !ok {
		return
	}

	now := s.now()
	st.mu.Lock()
	if _, subscribed := st.subscriptions[alertType]; !subscribed {
		st.mu.Unlock()
		return
	}
	if last, ok := st.lastAlerts[alertType]; ok && now.Sub(last) < s.cooldown {
		st.mu.Unlock()
		return
	}
	st.lastAlerts[alertType] = now
	st.mu.Unlock()

	alert := domain.AlertData{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Timestamp: now,
		AlertType: alertType,
		Message:   message,
		Data:      data,
	}
	st.alerts.publish(alert)
	log.Printf("alert %s emitted for session %d: %s", alertType, sessionID, message)
}

// ActiveSessionIDs lists sessions with live state.
func (s *AnalyticsService) ActiveSessionIDs() []int64 {
	return s.registry.ActiveSessionIDs()
}

// Cleanup drops all analytics state for the session.
func (s *AnalyticsService) Cleanup(sessionID int64) {
	s.registry.Cleanup(sessionID)
}

// SessionSnapshot is a point-in-time copy of the aggregates the periodic
// rules read, taken without holding session locks across the sweep.
type SessionSnapshot struct {
	LastActivity  map[int64]time.Time
	QuestionStats map[int64]domain.QuestionStats
}

// Snapshot copies the session's aggregates. The second return is false when
// the session has no state, which callers treat as "skip".
func (s *AnalyticsService) Snapshot(sessionID int64) (SessionSnapshot, bool) {
	st, ok := s.registry.peek(sessionID)
	if !ok {
		return SessionSnapshot{}, false
	}

	st.mu.RLock()
	defer st.mu.RUnlock()
	snap := SessionSnapshot{
		LastActivity:  make(map[int64]time.Time, len(st.lastActivity)),
		QuestionStats: make(map[int64]domain.QuestionStats, len(st.questionStats)),
	}
	for studentID, lastActive := range st.lastActivity {
		snap.LastActivity[studentID] = lastActive
	}
	for questionID, stats := range st.questionStats {
		snap.QuestionStats[questionID] = *stats
	}
	return snap, true
}
