package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"classroom-analytics/internal/app"
	"classroom-analytics/internal/domain"
)

// AlertsHandler exposes alert subscription management. Role checks happen
// upstream; these endpoints assume an instructor caller.
type AlertsHandler struct {
	service *app.AnalyticsService
}

func NewAlertsHandler(service *app.AnalyticsService) *AlertsHandler {
	return &AlertsHandler{service: service}
}

// Register mounts the subscription management routes.
func (h *AlertsHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /analytics/alerts/subscribe", h.subscribe)
	mux.HandleFunc("POST /analytics/alerts/unsubscribe", h.unsubscribe)
	mux.HandleFunc("POST /analytics/alerts/threshold", h.setThreshold)
}

type alertSubscriptionRequest struct {
	SessionID    int64            `json:"sessionId"`
	InstructorID int64            `json:"instructorId"`
	AlertType    domain.AlertType `json:"alertType"`
	Threshold    *float64         `json:"threshold,omitempty"`
}

type alertThresholdRequest struct {
	SessionID int64            `json:"sessionId"`
	AlertType domain.AlertType `json:"alertType"`
	Threshold float64          `json:"threshold"`
}

type statusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (h *AlertsHandler) subscribe(w http.ResponseWriter, r *http.Request) {
	var req alertSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.service.SubscribeToAlert(req.SessionID, req.InstructorID, req.AlertType, req.Threshold); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, statusResponse{
		Success: true,
		Message: fmt.Sprintf("Subscribed to %s alerts for session %d", req.AlertType, req.SessionID),
	})
}

func (h *AlertsHandler) unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req alertSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.service.UnsubscribeFromAlert(req.SessionID, req.InstructorID, req.AlertType); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, statusResponse{
		Success: true,
		Message: fmt.Sprintf("Unsubscribed from %s alerts for session %d", req.AlertType, req.SessionID),
	})
}

func (h *AlertsHandler) setThreshold(w http.ResponseWriter, r *http.Request) {
	var req alertThresholdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.service.SetAlertThreshold(req.SessionID, req.AlertType, req.Threshold); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, statusResponse{
		Success: true,
		Message: fmt.Sprintf("Set threshold for %s to %v for session %d", req.AlertType, req.Threshold, req.SessionID),
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrUnknownAlertType) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
