package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gamefeed-service/config"
	"gamefeed-service/models"
	"gamefeed-service/services"
)

func TestWriteSSEFraming(t *testing.T) {
	recorder := httptest.NewRecorder()
	event := models.Event{
		ID:        "evt-42",
		Kind:      models.KindGameUpdate,
		Timestamp: time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC),
		Source:    models.EventSourceLive,
		Priority:  2,
	}

	if err := writeSSE(recorder, event); err != nil {
		t.Fatalf("writeSSE failed: %v", err)
	}

	body := recorder.Body.String()
	lines := strings.Split(body, "\n")
	if len(lines) != 5 {
		t.Fatalf("Expected 4 frame lines plus terminator, got %d: %q", len(lines), body)
	}
	if lines[0] != "event: GAME_UPDATE" {
		t.Errorf("Expected event-type line, got %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "data: {") {
		t.Errorf("Expected JSON data line, got %q", lines[1])
	}
	if lines[2] != "id: evt-42" {
		t.Errorf("Expected id line, got %q", lines[2])
	}
	if lines[3] != "" || lines[4] != "" {
		t.Errorf("Expected blank-line frame terminator, got %q", body)
	}

	var decoded models.Event
	if err := json.Unmarshal([]byte(strings.TrimPrefix(lines[1], "data: ")), &decoded); err != nil {
		t.Fatalf("Data line is not valid JSON: %v", err)
	}
	if decoded.ID != "evt-42" || decoded.Kind != models.KindGameUpdate {
		t.Errorf("Expected the event round-tripped through the data line, got %+v", decoded)
	}
}

func streamTestServer(requests int) *Server {
	cfg := &config.Config{
		ForceDemo:        true,
		DispatchInterval: 10 * time.Millisecond,
		HeartbeatEvery:   1,
		Environment:      "development",
	}
	store := services.NewMemoryDeltaStore(time.Minute)
	limiter := services.NewSlidingWindowLimiter(requests, time.Minute)
	return NewServer(cfg, store, services.NewSimulationGenerator(), nil, limiter, nil)
}

func TestHandleStreamEmitsFrames(t *testing.T) {
	server := streamTestServer(10)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	req := httptest.NewRequest("GET", "/api/stream?mode=spectator", nil).WithContext(ctx)
	req.RemoteAddr = "10.0.0.1:55000"
	recorder := httptest.NewRecorder()

	server.handleStream(recorder, req)

	if ct := recorder.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Expected text/event-stream content type, got %q", ct)
	}
	body := recorder.Body.String()
	if !strings.Contains(body, "event: WORLD_TICK") {
		t.Errorf("Expected at least one heartbeat frame, got %q", body)
	}
	if !strings.Contains(body, "\n\n") {
		t.Error("Expected blank-line frame terminators in stream body")
	}
}

func TestHandleStreamRateLimited(t *testing.T) {
	server := streamTestServer(1)

	first := httptest.NewRequest("GET", "/api/stream", nil)
	first.RemoteAddr = "10.0.0.2:55000"
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	server.handleStream(httptest.NewRecorder(), first.WithContext(ctx))

	second := httptest.NewRequest("GET", "/api/stream", nil)
	second.RemoteAddr = "10.0.0.2:55001" // same host, different port
	recorder := httptest.NewRecorder()
	server.handleStream(recorder, second)

	if recorder.Code != http.StatusTooManyRequests {
		t.Errorf("Expected 429 for the second connection, got %d", recorder.Code)
	}
}

func TestHandleSnapshotDemoMode(t *testing.T) {
	server := streamTestServer(10)

	req := httptest.NewRequest("GET", "/api/snapshot", nil)
	recorder := httptest.NewRecorder()
	server.handleSnapshot(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", recorder.Code)
	}
	var snapshot models.Snapshot
	if err := json.Unmarshal(recorder.Body.Bytes(), &snapshot); err != nil {
		t.Fatalf("Failed to decode snapshot: %v", err)
	}
	if snapshot.Source != models.SourceSimulated {
		t.Errorf("Expected simulated source in demo mode, got %s", snapshot.Source)
	}
	if snapshot.LiveCount() == 0 {
		t.Error("Expected the seeded roster to contain live games")
	}
}

func TestHandleDevInjectAppendsToStore(t *testing.T) {
	server := streamTestServer(10)

	payload := strings.NewReader(`{"type":"TRADE_NEWS","payload":{"headline":"blockbuster"}}`)
	req := httptest.NewRequest("POST", "/api/dev/inject", payload)
	recorder := httptest.NewRecorder()
	server.handleDevInject(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}

	events, err := server.store.ReadSince(context.Background(), time.Now().Add(-time.Second))
	if err != nil {
		t.Fatalf("ReadSince failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("Expected one injected event, got %d", len(events))
	}
	if events[0].Kind != models.KindTradeNews {
		t.Errorf("Expected TRADE_NEWS, got %s", events[0].Kind)
	}
}

func TestHandleDevInjectBlockedInProduction(t *testing.T) {
	server := streamTestServer(10)
	server.config.Environment = "production"

	req := httptest.NewRequest("POST", "/api/dev/inject", strings.NewReader(`{"type":"TRADE_NEWS"}`))
	recorder := httptest.NewRecorder()
	server.handleDevInject(recorder, req)

	if recorder.Code != http.StatusForbidden {
		t.Errorf("Expected 403 in production, got %d", recorder.Code)
	}
}
