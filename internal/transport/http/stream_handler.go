package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"classroom-analytics/internal/app"
)

// StreamHandler exposes the raw event stream and the alert stream over
// Server-Sent Events, one subscription per connection.
type StreamHandler struct {
	service *app.AnalyticsService
}

func NewStreamHandler(service *app.AnalyticsService) *StreamHandler {
	return &StreamHandler{service: service}
}

// Register mounts the SSE routes.
func (h *StreamHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /analytics/events", h.streamEvents)
	mux.HandleFunc("GET /analytics/alerts/stream", h.streamAlerts)
}

func (h *StreamHandler) streamEvents(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}
	events, cancel := h.service.SubscribeToSession(sessionID)
	defer cancel()
	serveSSE(w, r, events)
}

func (h *StreamHandler) streamAlerts(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}
	alerts, cancel := h.service.SubscribeToSessionAlerts(sessionID)
	defer cancel()
	serveSSE(w, r, alerts)
}

// serveSSE pumps values from ch to the client until the channel closes or
// the client disconnects. A write/flush failure terminates only this stream.
func serveSSE[T any](w http.ResponseWriter, r *http.Request, ch <-chan T) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	for {
		select {
		case v, open := <-ch:
			if !open {
				return
			}
			data, err := json.Marshal(v)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func sessionIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.URL.Query().Get("sessionId")
	sessionID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		http.Error(w, "missing or invalid sessionId", http.StatusBadRequest)
		return 0, false
	}
	return sessionID, true
}
