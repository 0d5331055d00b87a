package http

import (
	"bufio"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"classroom-analytics/internal/app"
	"classroom-analytics/internal/domain"
)

func newStreamFixture() (*app.AnalyticsService, *app.EventPublisher, *httptest.Server) {
	service := app.NewAnalyticsService(app.NewRegistry(), domain.AlertCooldown)
	publisher := app.NewEventPublisher(service)
	mux := http.NewServeMux()
	NewStreamHandler(service).Register(mux)
	return service, publisher, httptest.NewServer(mux)
}

func TestEventStreamDeliversSSE(t *testing.T) {
	_, publisher, server := newStreamFixture()
	defer server.Close()

	resp, err := http.Get(server.URL + "/analytics/events?sessionId=5")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected event-stream content type, got %q", ct)
	}

	go func() {
		// Give the handler a moment to register its subscription.
		time.Sleep(100 * time.Millisecond)
		publisher.NotifyStudentJoined(5, 3, "Alice")
	}()

	line := readSSELine(t, resp)
	if !strings.Contains(line, string(domain.EventStudentJoined)) {
		t.Fatalf("expected student_joined event, got %q", line)
	}
	if !strings.Contains(line, `"studentName":"Alice"`) {
		t.Fatalf("expected Alice in payload, got %q", line)
	}
}

func TestAlertStreamDeliversSSE(t *testing.T) {
	service, _, server := newStreamFixture()
	defer server.Close()

	if err := service.SubscribeToAlert(6, 1, domain.AlertLowParticipation, nil); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	resp, err := http.Get(server.URL + "/analytics/alerts/stream?sessionId=6")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	go func() {
		time.Sleep(100 * time.Millisecond)
		service.EmitOptionalAlert(6, domain.AlertLowParticipation, "participation is slipping", nil)
	}()

	line := readSSELine(t, resp)
	if !strings.Contains(line, "participation is slipping") {
		t.Fatalf("expected alert message, got %q", line)
	}
}

func TestStreamRequiresSessionID(t *testing.T) {
	_, _, server := newStreamFixture()
	defer server.Close()

	resp, err := http.Get(server.URL + "/analytics/events")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

// readSSELine scans the stream until the first data: line.
func readSSELine(t *testing.T, resp *http.Response) string {
	t.Helper()
	deadline := time.After(5 * time.Second)
	lines := make(chan string, 1)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if line := scanner.Text(); strings.HasPrefix(line, "data: ") {
				lines <- line
				return
			}
		}
	}()
	select {
	case line := <-lines:
		return line
	case <-deadline:
		t.Fatalf("timed out waiting for SSE data")
		return ""
	}
}
