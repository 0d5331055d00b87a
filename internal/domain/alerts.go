package domain

import "time"

// AlertType identifies an optional alert category instructors can subscribe to.
type AlertType string

const (
	AlertQuestionFailureRate AlertType = "question_failure_rate"
	AlertStudentInactivity   AlertType = "student_inactivity"
	AlertLowParticipation    AlertType = "low_participation"
)

// AlertTypes lists every known alert type.
var AlertTypes = []AlertType{
	AlertQuestionFailureRate,
	AlertStudentInactivity,
	AlertLowParticipation,
}

// Valid reports whether t is a known alert type.
func (t AlertType) Valid() bool {
	switch t {
	case AlertQuestionFailureRate, AlertStudentInactivity, AlertLowParticipation:
		return true
	}
	return false
}

// Thresholds are plain numbers so they can travel over one API surface:
// failure rate and participation are percentages, inactivity is milliseconds.
const (
	DefaultQuestionFailureThreshold  = 70
	DefaultLowParticipationThreshold = 30
	DefaultInactivityThreshold       = float64(10 * 60 * 1000)
)

// DefaultThreshold returns the global default threshold for the alert type.
func (t AlertType) DefaultThreshold() float64 {
	switch t {
	case AlertQuestionFailureRate:
		return DefaultQuestionFailureThreshold
	case AlertStudentInactivity:
		return DefaultInactivityThreshold
	case AlertLowParticipation:
		return DefaultLowParticipationThreshold
	}
	return 0
}

// AlertCooldown is the minimum gap between two alerts of the same type for
// one session. Excess triggers inside the window are dropped, not deferred.
const AlertCooldown = 5 * time.Minute

// MinAttemptsForFailureRate is the sample floor below which a question's
// failure rate is never evaluated.
const MinAttemptsForFailureRate = 5

// QuestionStats accumulates per-question answer counters for a session.
type QuestionStats struct {
	Attempts int `json:"attempts"`
	Failures int `json:"failures"`
}

// AlertData is an emitted alert. Immutable once published.
type AlertData struct {
	ID        string         `json:"id"`
	SessionID int64          `json:"sessionId"`
	Timestamp time.Time      `json:"timestamp"`
	AlertType AlertType      `json:"alertType"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
}
