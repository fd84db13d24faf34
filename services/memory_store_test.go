package services

import (
	"context"
	"testing"
	"time"

	"gamefeed-service/models"
)

func eventWithID(id string) models.Event {
	return models.Event{
		ID:        id,
		Kind:      models.KindGameUpdate,
		Timestamp: time.Now(),
		Source:    models.EventSourceLive,
		Priority:  2,
	}
}

func TestMemoryStoreReadSinceCursor(t *testing.T) {
	store := NewMemoryDeltaStore(5 * time.Minute)
	ctx := context.Background()

	before := time.Now().Add(-time.Second)

	if err := store.AppendBatch(ctx, []models.Event{eventWithID("e1"), eventWithID("e2")}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	events, err := store.ReadSince(ctx, before)
	if err != nil {
		t.Fatalf("ReadSince failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events))
	}

	// A cursor after the batch sees nothing.
	events, err = store.ReadSince(ctx, time.Now())
	if err != nil {
		t.Fatalf("ReadSince failed: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("Expected no events past the cursor, got %d", len(events))
	}
}

func TestMemoryStoreBatchesConcatenateInOrder(t *testing.T) {
	store := NewMemoryDeltaStore(5 * time.Minute)
	ctx := context.Background()

	before := time.Now().Add(-time.Second)
	store.AppendBatch(ctx, []models.Event{eventWithID("a")})
	store.AppendBatch(ctx, []models.Event{eventWithID("b"), eventWithID("c")})

	events, err := store.ReadSince(ctx, before)
	if err != nil {
		t.Fatalf("ReadSince failed: %v", err)
	}

	ids := make([]string, len(events))
	for i, event := range events {
		ids[i] = event.ID
	}
	want := []string{"a", "b", "c"}
	for i := range want {
		if i >= len(ids) || ids[i] != want[i] {
			t.Fatalf("Expected order %v, got %v", want, ids)
		}
	}
}

func TestMemoryStoreExpiresBatches(t *testing.T) {
	store := NewMemoryDeltaStore(10 * time.Millisecond)
	ctx := context.Background()

	before := time.Now().Add(-time.Second)
	store.AppendBatch(ctx, []models.Event{eventWithID("old")})

	time.Sleep(20 * time.Millisecond)

	events, err := store.ReadSince(ctx, before)
	if err != nil {
		t.Fatalf("ReadSince failed: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("Expected expired batch dropped, got %d events", len(events))
	}
}

func TestMemoryStoreSnapshotRoundTrip(t *testing.T) {
	store := NewMemoryDeltaStore(time.Minute)
	ctx := context.Background()

	loaded, err := store.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if loaded != nil {
		t.Fatal("Expected nil snapshot before any save")
	}

	snapshot := models.EmptySnapshot(models.SourceLive)
	snapshot.Games["g1"] = models.LiveGame{GameID: "g1", Status: models.StatusLive}

	if err := store.SaveSnapshot(ctx, snapshot); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	loaded, err = store.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if loaded == nil || len(loaded.Games) != 1 {
		t.Errorf("Expected stored snapshot with 1 game, got %+v", loaded)
	}
}

func TestNopStoreDegradesToEmpty(t *testing.T) {
	store := NopIfNil(nil)
	ctx := context.Background()

	if err := store.AppendBatch(ctx, []models.Event{eventWithID("e1")}); err != nil {
		t.Errorf("Expected write skipped without error, got %v", err)
	}
	events, err := store.ReadSince(ctx, time.Time{})
	if err != nil {
		t.Errorf("Expected empty read without error, got %v", err)
	}
	if len(events) != 0 {
		t.Errorf("Expected no events, got %d", len(events))
	}
	snapshot, err := store.LoadSnapshot(ctx)
	if err != nil || snapshot != nil {
		t.Errorf("Expected nil snapshot without error, got %+v, %v", snapshot, err)
	}
}
