package web

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"gamefeed-service/config"
	"gamefeed-service/models"
	"gamefeed-service/services"
)

// flakyStore fails reads on demand while the backing store keeps
// accepting writes, standing in for a store that blips mid-stream.
type flakyStore struct {
	*services.MemoryDeltaStore
	mu      sync.Mutex
	failing bool
}

func (s *flakyStore) setFailing(failing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing = failing
}

func (s *flakyStore) ReadSince(ctx context.Context, since time.Time) ([]models.Event, error) {
	s.mu.Lock()
	failing := s.failing
	s.mu.Unlock()
	if failing {
		return nil, errors.New("connection refused")
	}
	return s.MemoryDeltaStore.ReadSince(ctx, since)
}

func dispatchConfig() *config.Config {
	return &config.Config{
		UpstreamAPIKey:   "test_key", // suppress demo mode
		DispatchInterval: 10 * time.Millisecond,
		HeartbeatEvery:   0, // heartbeats off unless a test wants them
	}
}

// eventSink records everything Run sends, safely across goroutines.
type eventSink struct {
	mu     sync.Mutex
	events []models.Event
}

func (s *eventSink) send(event models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *eventSink) snapshot() []models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Event(nil), s.events...)
}

func testEvent(kind models.EventKind, id string) models.Event {
	return models.Event{
		ID:        id,
		Kind:      kind,
		Timestamp: time.Now(),
		Source:    models.EventSourceLive,
		Priority:  models.PriorityFor(kind),
	}
}

func TestDispatcherDeliversStoredEventsOnce(t *testing.T) {
	store := services.NewMemoryDeltaStore(time.Minute)
	dispatcher := NewDispatcher(dispatchConfig(), store, nil)

	conn := &ConnContext{
		Mode:       ModeCommander,
		Tier:       TierEnterprise,
		LastCursor: time.Now().Add(-time.Second),
	}

	store.AppendBatch(context.Background(), []models.Event{
		testEvent(models.KindGameUpdate, "evt-1"),
	})

	ctx, cancel := context.WithCancel(context.Background())
	sink := &eventSink{}
	done := make(chan struct{})
	go func() {
		dispatcher.Run(ctx, conn, sink.send)
		close(done)
	}()

	// Several intervals pass; the batch must arrive exactly once.
	time.Sleep(100 * time.Millisecond)
	cancel()
	<-done

	got := sink.snapshot()
	if len(got) != 1 {
		t.Fatalf("Expected the stored event delivered exactly once, got %d deliveries", len(got))
	}
	if got[0].ID != "evt-1" {
		t.Errorf("Expected evt-1, got %s", got[0].ID)
	}
}

func TestDispatcherFiltersByConnectionContext(t *testing.T) {
	store := services.NewMemoryDeltaStore(time.Minute)
	dispatcher := NewDispatcher(dispatchConfig(), store, nil)

	// Spectator mode never sees odds movement.
	conn := &ConnContext{
		Mode:       ModeSpectator,
		Tier:       TierEnterprise,
		LastCursor: time.Now().Add(-time.Second),
	}

	store.AppendBatch(context.Background(), []models.Event{
		testEvent(models.KindOddsShift, "evt-odds"),
		testEvent(models.KindGameUpdate, "evt-update"),
	})

	ctx, cancel := context.WithCancel(context.Background())
	sink := &eventSink{}
	done := make(chan struct{})
	go func() {
		dispatcher.Run(ctx, conn, sink.send)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()
	<-done

	got := sink.snapshot()
	if len(got) != 1 {
		t.Fatalf("Expected only the game update to survive, got %d events", len(got))
	}
	if got[0].Kind != models.KindGameUpdate {
		t.Errorf("Expected GAME_UPDATE, got %s", got[0].Kind)
	}
}

func TestDispatcherHoldsCursorThroughStoreOutage(t *testing.T) {
	store := &flakyStore{MemoryDeltaStore: services.NewMemoryDeltaStore(time.Minute)}
	dispatcher := NewDispatcher(dispatchConfig(), store, nil)

	conn := &ConnContext{
		Mode:       ModeCommander,
		Tier:       TierEnterprise,
		LastCursor: time.Now().Add(-time.Second),
	}

	// The event lands while every read is failing; the cursor must not
	// skip past it.
	store.setFailing(true)
	store.AppendBatch(context.Background(), []models.Event{
		testEvent(models.KindGameUpdate, "evt-outage"),
	})

	ctx, cancel := context.WithCancel(context.Background())
	sink := &eventSink{}
	done := make(chan struct{})
	go func() {
		dispatcher.Run(ctx, conn, sink.send)
		close(done)
	}()

	time.Sleep(60 * time.Millisecond)
	if got := sink.snapshot(); len(got) != 0 {
		t.Fatalf("Expected nothing delivered while the store is down, got %d", len(got))
	}

	store.setFailing(false)
	time.Sleep(60 * time.Millisecond)
	cancel()
	<-done

	got := sink.snapshot()
	if len(got) != 1 {
		t.Fatalf("Expected the event delivered once after recovery, got %d", len(got))
	}
	if got[0].ID != "evt-outage" {
		t.Errorf("Expected evt-outage, got %s", got[0].ID)
	}
}

func TestDispatcherStopsOnContextCancel(t *testing.T) {
	store := services.NewMemoryDeltaStore(time.Minute)
	dispatcher := NewDispatcher(dispatchConfig(), store, nil)

	conn := &ConnContext{Mode: ModeSpectator, Tier: TierFree, LastCursor: time.Now()}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		dispatcher.Run(ctx, conn, func(models.Event) error { return nil })
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Expected Run to return promptly after cancellation")
	}
}

func TestDispatcherStopsOnSendFailure(t *testing.T) {
	cfg := dispatchConfig()
	cfg.HeartbeatEvery = 1 // guarantee at least one event per tick
	store := services.NewMemoryDeltaStore(time.Minute)
	dispatcher := NewDispatcher(cfg, store, nil)

	conn := &ConnContext{Mode: ModeSpectator, Tier: TierFree, LastCursor: time.Now()}

	done := make(chan struct{})
	go func() {
		dispatcher.Run(context.Background(), conn, func(models.Event) error {
			return context.Canceled
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Expected Run to return after the first send failure")
	}
}

func TestHeartbeatReportsLiveCount(t *testing.T) {
	store := services.NewMemoryDeltaStore(time.Minute)
	dispatcher := NewDispatcher(dispatchConfig(), store, nil)

	snapshot := models.EmptySnapshot(models.SourceLive)
	snapshot.Games["g1"] = models.LiveGame{GameID: "g1", Status: models.StatusLive}
	snapshot.Games["g2"] = models.LiveGame{GameID: "g2", Status: models.StatusLive}
	snapshot.Games["g3"] = models.LiveGame{GameID: "g3", Status: models.StatusFinal}
	store.SaveSnapshot(context.Background(), snapshot)

	event := dispatcher.heartbeat(context.Background(), nil, 6)

	if event.Kind != models.KindWorldTick {
		t.Fatalf("Expected WORLD_TICK, got %s", event.Kind)
	}
	var payload models.WorldTickPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		t.Fatalf("Failed to decode heartbeat payload: %v", err)
	}
	if payload.LiveGames != 2 {
		t.Errorf("Expected 2 live games, got %d", payload.LiveGames)
	}
	if payload.Tick != 6 {
		t.Errorf("Expected tick 6, got %d", payload.Tick)
	}
}

func TestHeartbeatWithoutStoredSnapshot(t *testing.T) {
	store := services.NewMemoryDeltaStore(time.Minute)
	dispatcher := NewDispatcher(dispatchConfig(), store, nil)

	event := dispatcher.heartbeat(context.Background(), nil, 1)

	var payload models.WorldTickPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		t.Fatalf("Failed to decode heartbeat payload: %v", err)
	}
	if payload.LiveGames != 0 {
		t.Errorf("Expected 0 live games with no snapshot, got %d", payload.LiveGames)
	}
}

func TestDispatcherDeliversOpsEvents(t *testing.T) {
	store := services.NewMemoryDeltaStore(time.Minute)
	feed := services.NewChannelOpsFeed()
	defer feed.Close()
	dispatcher := NewDispatcher(dispatchConfig(), store, []services.OpsFeed{feed})

	monitor := services.NewOpsMonitor(feed)
	conn := &ConnContext{
		Mode:       ModeCommander,
		Tier:       TierFree,
		LastCursor: time.Now(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	sink := &eventSink{}
	done := make(chan struct{})
	go func() {
		dispatcher.Run(ctx, conn, sink.send)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	monitor.ReportFailure("upstream", "connection refused")
	time.Sleep(60 * time.Millisecond)
	cancel()
	<-done

	got := sink.snapshot()
	if len(got) != 1 {
		t.Fatalf("Expected one incident event, got %d", len(got))
	}
	if got[0].Kind != models.KindOpsIncident {
		t.Errorf("Expected OPS_INCIDENT, got %s", got[0].Kind)
	}
}
