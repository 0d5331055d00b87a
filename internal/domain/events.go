package domain

import "time"

// EventType discriminates the session event union.
type EventType string

const (
	EventStudentJoined     EventType = "student_joined"
	EventQuizParticipation EventType = "quiz_participation"
	EventQuestionResult    EventType = "question_result"
	EventNewQuestion       EventType = "new_question"
)

// SessionEvent is the closed union of events flowing through a session.
// Every event belongs to exactly one session and is immutable once published.
type SessionEvent interface {
	EventType() EventType
	Session() int64
	OccurredAt() time.Time
	// Student returns the acting student id, or 0 when the event carries none.
	Student() int64
}

// EventBase holds the fields shared by all session events.
type EventBase struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	SessionID int64     `json:"sessionId"`
}

func (e EventBase) EventType() EventType  { return e.Type }
func (e EventBase) Session() int64        { return e.SessionID }
func (e EventBase) OccurredAt() time.Time { return e.Timestamp }

// StudentJoinedEvent marks a student entering a live session.
type StudentJoinedEvent struct {
	EventBase
	StudentID   int64  `json:"studentId"`
	StudentName string `json:"studentName"`
}

func (e StudentJoinedEvent) Student() int64 { return e.StudentID }

// QuizParticipationEvent marks a student taking part in a quiz.
type QuizParticipationEvent struct {
	EventBase
	StudentID int64 `json:"studentId"`
	QuizID    int64 `json:"quizId,omitempty"`
	Completed bool  `json:"completed"`
}

func (e QuizParticipationEvent) Student() int64 { return e.StudentID }

// QuestionResultEvent records whether a student answered a question correctly.
type QuestionResultEvent struct {
	EventBase
	QuestionID int64 `json:"questionId"`
	StudentID  int64 `json:"studentId"`
	QuizID     int64 `json:"quizId,omitempty"`
	Success    bool  `json:"success"`
}

func (e QuestionResultEvent) Student() int64 { return e.StudentID }

// NewQuestionEvent marks a student raising a question during the session.
type NewQuestionEvent struct {
	EventBase
	QuestionID int64  `json:"questionId"`
	Question   string `json:"question"`
	StudentID  int64  `json:"studentId"`
}

func (e NewQuestionEvent) Student() int64 { return e.StudentID }
