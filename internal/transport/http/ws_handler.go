package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"classroom-analytics/internal/app"
	"github.com/gorilla/websocket"
)

// SessionResolver maps a quiz id to its owning session for producers that
// only know the quiz they are running.
type SessionResolver interface {
	ResolveQuizSession(ctx context.Context, quizID int64) (int64, error)
}

// WSHandler is the producer-facing gateway: a classroom client connects per
// session (or per quiz), is registered as joined, pushes activity events,
// and receives the session's live event feed.
type WSHandler struct {
	service   *app.AnalyticsService
	publisher *app.EventPublisher
	resolver  SessionResolver
	upgrader  websocket.Upgrader
}

func NewWSHandler(service *app.AnalyticsService, publisher *app.EventPublisher, resolver SessionResolver) *WSHandler {
	return &WSHandler{
		service:   service,
		publisher: publisher,
		resolver:  resolver,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type quizParticipationPayload struct {
	QuizID    int64 `json:"quizId"`
	Completed bool  `json:"completed"`
}

type questionResultPayload struct {
	QuestionID int64 `json:"questionId"`
	QuizID     int64 `json:"quizId"`
	Success    bool  `json:"success"`
}

type newQuestionPayload struct {
	QuestionID int64  `json:"questionId"`
	Question   string `json:"question"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type joinedPayload struct {
	SessionID int64 `json:"sessionId"`
	StudentID int64 `json:"studentId"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the
// ingestion path. Clients identify a session either directly (sessionId) or
// through the quiz they are answering (quizId).
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.resolveSession(w, r)
	if !ok {
		return
	}
	studentID, err := strconv.ParseInt(r.URL.Query().Get("studentId"), 10, 64)
	if err != nil || studentID == 0 {
		http.Error(w, "missing or invalid studentId", http.StatusBadRequest)
		return
	}
	studentName := r.URL.Query().Get("name")
	if studentName == "" {
		http.Error(w, "missing name", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	h.publisher.NotifyStudentJoined(sessionID, studentID, studentName)
	feed, cancel := h.service.SubscribeToSession(sessionID)
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	feedDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(feedDone)
		for {
			select {
			case event, open := <-feed:
				if !open {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "event", Payload: event}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "joined", Payload: joinedPayload{SessionID: sessionID, StudentID: studentID}}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "quizParticipation":
			var payload quizParticipationPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid quizParticipation payload"}}
				continue
			}
			h.publisher.NotifyQuizParticipation(sessionID, studentID, payload.QuizID, payload.Completed)
		case "questionResult":
			var payload questionResultPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid questionResult payload"}}
				continue
			}
			h.publisher.TrackQuestionResult(sessionID, payload.QuestionID, studentID, payload.QuizID, payload.Success)
		case "newQuestion":
			var payload newQuestionPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid newQuestion payload"}}
				continue
			}
			h.publisher.NotifyNewQuestion(sessionID, payload.QuestionID, payload.Question, studentID)
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}

	close(closeSignals)
	<-feedDone
	close(send)
	<-writerDone
}

// resolveSession picks the session from sessionId, or resolves quizId
// through the persistence layer when only the quiz is known.
func (h *WSHandler) resolveSession(w http.ResponseWriter, r *http.Request) (int64, bool) {
	if raw := r.URL.Query().Get("sessionId"); raw != "" {
		sessionID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			http.Error(w, "invalid sessionId", http.StatusBadRequest)
			return 0, false
		}
		return sessionID, true
	}

	raw := r.URL.Query().Get("quizId")
	if raw == "" {
		http.Error(w, "missing sessionId or quizId", http.StatusBadRequest)
		return 0, false
	}
	quizID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		http.Error(w, "invalid quizId", http.StatusBadRequest)
		return 0, false
	}
	if h.resolver == nil {
		http.Error(w, "quiz lookup not configured", http.StatusBadRequest)
		return 0, false
	}
	sessionID, err := h.resolver.ResolveQuizSession(r.Context(), quizID)
	if err != nil {
		http.Error(w, "unknown quiz", http.StatusNotFound)
		return 0, false
	}
	return sessionID, true
}
