package http

import (
	"net/http"
	"strconv"

	"classroom-analytics/internal/app"
)

// TestHandler exposes manual trigger endpoints that fabricate events and
// force a processor sweep. Handy for demoing alerts without a live
// classroom; mounted only when the config enables it.
type TestHandler struct {
	publisher *app.EventPublisher
	processor *app.Processor
}

func NewTestHandler(publisher *app.EventPublisher, processor *app.Processor) *TestHandler {
	return &TestHandler{publisher: publisher, processor: processor}
}

// Register mounts the trigger routes.
func (h *TestHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /analytics/test/student-joined/{sessionId}", h.triggerStudentJoined)
	mux.HandleFunc("POST /analytics/test/quiz-participation/{sessionId}", h.triggerQuizParticipation)
	mux.HandleFunc("POST /analytics/test/question-correct/{sessionId}", h.triggerQuestionCorrect)
	mux.HandleFunc("POST /analytics/test/question-incorrect/{sessionId}", h.triggerQuestionIncorrect)
	mux.HandleFunc("POST /analytics/test/trigger-failure-alert/{sessionId}", h.triggerFailureAlert)
	mux.HandleFunc("POST /analytics/test/process", h.triggerSweep)
}

func (h *TestHandler) triggerStudentJoined(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDPath(w, r)
	if !ok {
		return
	}
	h.publisher.NotifyStudentJoined(sessionID, 3, "Alice Cooper")
	writeJSON(w, statusResponse{Success: true, Message: "Student joined event triggered"})
}

func (h *TestHandler) triggerQuizParticipation(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDPath(w, r)
	if !ok {
		return
	}
	h.publisher.NotifyQuizParticipation(sessionID, 3, 1, false)
	writeJSON(w, statusResponse{Success: true, Message: "Quiz participation event triggered"})
}

func (h *TestHandler) triggerQuestionCorrect(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDPath(w, r)
	if !ok {
		return
	}
	h.publisher.TrackQuestionResult(sessionID, 1, 3, 1, true)
	writeJSON(w, statusResponse{Success: true, Message: "Correct question result event triggered"})
}

func (h *TestHandler) triggerQuestionIncorrect(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDPath(w, r)
	if !ok {
		return
	}
	h.publisher.TrackQuestionResult(sessionID, 1, 3, 1, false)
	writeJSON(w, statusResponse{Success: true, Message: "Incorrect question result event triggered"})
}

// triggerFailureAlert records six alternating results for one question so
// the failure-rate rule has a sample to evaluate on the next sweep.
func (h *TestHandler) triggerFailureAlert(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDPath(w, r)
	if !ok {
		return
	}
	for i := 1; i <= 6; i++ {
		h.publisher.TrackQuestionResult(sessionID, 1, 3, 1, i%2 == 0)
	}
	writeJSON(w, statusResponse{Success: true, Message: "Question results recorded; failure rate evaluated on next sweep"})
}

func (h *TestHandler) triggerSweep(w http.ResponseWriter, r *http.Request) {
	h.processor.ProcessAll()
	writeJSON(w, statusResponse{Success: true, Message: "Processing sweep completed"})
}

func sessionIDPath(w http.ResponseWriter, r *http.Request) (int64, bool) {
	sessionID, err := strconv.ParseInt(r.PathValue("sessionId"), 10, 64)
	if err != nil {
		http.Error(w, "invalid sessionId", http.StatusBadRequest)
		return 0, false
	}
	return sessionID, true
}
