package app

import (
	"time"

	"classroom-analytics/internal/domain"
)

// EventPublisher is the typed ingestion facade used by producers (quiz
// gateway, chat gateway, test triggers). Each method stamps the event with
// the current instant and hands it to the engine; producers never touch
// broadcast internals.
type EventPublisher struct {
	service *AnalyticsService
	now     func() time.Time
}

func NewEventPublisher(service *AnalyticsService) *EventPublisher {
	return NewEventPublisherWithClock(service, time.Now)
}

// NewEventPublisherWithClock allows deterministic timestamps in tests.
func NewEventPublisherWithClock(service *AnalyticsService, now func() time.Time) *EventPublisher {
	return &EventPublisher{service: service, now: now}
}

func (p *EventPublisher) base(eventType domain.EventType, sessionID int64) domain.EventBase {
	return domain.EventBase{
		Type:      eventType,
		Timestamp: p.now(),
		SessionID: sessionID,
	}
}

// NotifyStudentJoined records a student entering a session.
func (p *EventPublisher) NotifyStudentJoined(sessionID, studentID int64, studentName string) {
	p.service.Ingest(domain.StudentJoinedEvent{
		EventBase:   p.base(domain.EventStudentJoined, sessionID),
		StudentID:   studentID,
		StudentName: studentName,
	})
}

// NotifyQuizParticipation records a student taking part in a quiz. A zero
// quizID means the quiz is not known to the producer.
func (p *EventPublisher) NotifyQuizParticipation(sessionID, studentID, quizID int64, completed bool) {
	p.service.Ingest(domain.QuizParticipationEvent{
		EventBase: p.base(domain.EventQuizParticipation, sessionID),
		StudentID: studentID,
		QuizID:    quizID,
		Completed: completed,
	})
}

// NotifyNewQuestion records a student raising a question.
func (p *EventPublisher) NotifyNewQuestion(sessionID, questionID int64, question string, studentID int64) {
	p.service.Ingest(domain.NewQuestionEvent{
		EventBase:  p.base(domain.EventNewQuestion, sessionID),
		QuestionID: questionID,
		Question:   question,
		StudentID:  studentID,
	})
}

// TrackQuestionResult records whether a student answered a quiz question
// correctly, feeding the failure-rate aggregates.
func (p *EventPublisher) TrackQuestionResult(sessionID, questionID, studentID, quizID int64, success bool) {
	p.service.Ingest(domain.QuestionResultEvent{
		EventBase:  p.base(domain.EventQuestionResult, sessionID),
		QuestionID: questionID,
		StudentID:  studentID,
		QuizID:     quizID,
		Success:    success,
	})
}

// EmitOptionalAlert lets producers raise an alert outside the periodic scan.
// It is a direct passthrough; subscription gating and cooldown still apply.
func (p *EventPublisher) EmitOptionalAlert(sessionID int64, alertType domain.AlertType, message string, data map[string]any) {
	p.service.EmitOptionalAlert(sessionID, alertType, message, data)
}
