package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"gamefeed-service/logger"
	"gamefeed-service/models"
)

const (
	deltaKeyPrefix = "gamefeed:deltas:"
	snapshotKey    = "gamefeed:snapshot:current"
)

// DeltaStore is the append-only, TTL-bounded event batch store plus
// the current-snapshot singleton. Keys are never updated once written;
// readers scan by creation time.
type DeltaStore interface {
	// AppendBatch writes one batch of events under a time-ordered key.
	AppendBatch(ctx context.Context, events []models.Event) error
	// ReadSince returns all non-expired events written strictly after
	// the given cursor, in key order.
	ReadSince(ctx context.Context, since time.Time) ([]models.Event, error)
	// SaveSnapshot replaces the stored current snapshot.
	SaveSnapshot(ctx context.Context, snapshot *models.Snapshot) error
	// LoadSnapshot returns the stored snapshot, or nil when absent.
	LoadSnapshot(ctx context.Context) (*models.Snapshot, error)
}

// RedisDeltaStore implements DeltaStore on Redis. Batches live under
// gamefeed:deltas:<unixnano> with the configured TTL, so expiry is the
// retention window and ReadSince only ever sees live keys.
type RedisDeltaStore struct {
	client      *redis.Client
	deltaTTL    time.Duration
	snapshotTTL time.Duration
}

// NewRedisDeltaStore connects to Redis at the given URL. When the URL
// is empty or unparseable nil is returned; callers wrap the nil in
// NopIfNil so dispatch degrades to "no events" instead of erroring.
func NewRedisDeltaStore(redisURL string, deltaTTL, snapshotTTL time.Duration) *RedisDeltaStore {
	if redisURL == "" {
		return nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Errorf("[DeltaStore] invalid REDIS_URL: %v", err)
		return nil
	}
	return &RedisDeltaStore{
		client:      redis.NewClient(opts),
		deltaTTL:    deltaTTL,
		snapshotTTL: snapshotTTL,
	}
}

func (s *RedisDeltaStore) AppendBatch(ctx context.Context, events []models.Event) error {
	if len(events) == 0 {
		return nil
	}
	data, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("failed to marshal batch: %w", err)
	}
	key := deltaKeyPrefix + strconv.FormatInt(time.Now().UnixNano(), 10)
	if err := s.client.Set(ctx, key, data, s.deltaTTL).Err(); err != nil {
		return fmt.Errorf("failed to write batch: %w", err)
	}
	return nil
}

func (s *RedisDeltaStore) ReadSince(ctx context.Context, since time.Time) ([]models.Event, error) {
	keys, err := s.client.Keys(ctx, deltaKeyPrefix+"*").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to scan delta keys: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	cursor := since.UnixNano()
	var wanted []string
	for _, key := range keys {
		nanos, err := strconv.ParseInt(key[len(deltaKeyPrefix):], 10, 64)
		if err != nil {
			continue
		}
		if nanos > cursor {
			wanted = append(wanted, key)
		}
	}
	sort.Strings(wanted)

	var events []models.Event
	for _, key := range wanted {
		data, err := s.client.Get(ctx, key).Result()
		if err != nil {
			if err == redis.Nil {
				continue // expired between scan and read
			}
			return nil, fmt.Errorf("failed to read batch %s: %w", key, err)
		}
		var batch []models.Event
		if err := json.Unmarshal([]byte(data), &batch); err != nil {
			logger.Errorf("[DeltaStore] skipping malformed batch %s: %v", key, err)
			continue
		}
		events = append(events, batch...)
	}
	return events, nil
}

func (s *RedisDeltaStore) SaveSnapshot(ctx context.Context, snapshot *models.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := s.client.Set(ctx, snapshotKey, data, s.snapshotTTL).Err(); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

func (s *RedisDeltaStore) LoadSnapshot(ctx context.Context) (*models.Snapshot, error) {
	data, err := s.client.Get(ctx, snapshotKey).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	var snapshot models.Snapshot
	if err := json.Unmarshal([]byte(data), &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snapshot, nil
}

// nopDeltaStore stands in when no store is configured: reads are
// empty, writes are skipped.
type nopDeltaStore struct{}

func (nopDeltaStore) AppendBatch(context.Context, []models.Event) error { return nil }
func (nopDeltaStore) ReadSince(context.Context, time.Time) ([]models.Event, error) {
	return nil, nil
}
func (nopDeltaStore) SaveSnapshot(context.Context, *models.Snapshot) error { return nil }
func (nopDeltaStore) LoadSnapshot(context.Context) (*models.Snapshot, error) {
	return nil, nil
}

// NopIfNil wraps a possibly-nil concrete store so callers never have
// to nil-check. An absent store degrades to "no events available".
func NopIfNil(store *RedisDeltaStore) DeltaStore {
	if store == nil {
		logger.Println("[DeltaStore] no Redis configured, running storeless")
		return nopDeltaStore{}
	}
	return store
}
