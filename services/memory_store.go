package services

import (
	"context"
	"sync"
	"time"

	"gamefeed-service/models"
)

// MemoryDeltaStore is an in-memory DeltaStore used in tests and in
// storeless development runs, the same way the in-memory broker stands
// in for a real queue. Batches expire lazily on read.
type MemoryDeltaStore struct {
	mu       sync.RWMutex
	batches  []memoryBatch
	snapshot *models.Snapshot
	ttl      time.Duration
}

type memoryBatch struct {
	createdAt time.Time
	events    []models.Event
}

func NewMemoryDeltaStore(ttl time.Duration) *MemoryDeltaStore {
	return &MemoryDeltaStore{ttl: ttl}
}

func (s *MemoryDeltaStore) AppendBatch(_ context.Context, events []models.Event) error {
	if len(events) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, memoryBatch{
		createdAt: time.Now(),
		events:    events,
	})
	return nil
}

func (s *MemoryDeltaStore) ReadSince(_ context.Context, since time.Time) ([]models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Drop expired batches before scanning. Batches are appended in
	// time order, so the first live batch marks the cut.
	cutoff := time.Now().Add(-s.ttl)
	firstLive := len(s.batches)
	for i, batch := range s.batches {
		if batch.createdAt.After(cutoff) {
			firstLive = i
			break
		}
	}
	s.batches = s.batches[firstLive:]

	var events []models.Event
	for _, batch := range s.batches {
		if batch.createdAt.After(since) {
			events = append(events, batch.events...)
		}
	}
	return events, nil
}

func (s *MemoryDeltaStore) SaveSnapshot(_ context.Context, snapshot *models.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = snapshot
	return nil
}

func (s *MemoryDeltaStore) LoadSnapshot(context.Context) (*models.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot, nil
}
