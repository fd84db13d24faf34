package database

import (
	"encoding/json"
	"time"
)

// ArchivedEvent is one row of the feed_events table, returned by the
// history endpoint.
type ArchivedEvent struct {
	ID          int64           `json:"id"`
	EventID     string          `json:"event_id"`
	Kind        string          `json:"kind"`
	Source      string          `json:"source"`
	Priority    int             `json:"priority"`
	GameID      *string         `json:"game_id,omitempty"`
	League      *string         `json:"league,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	GameContext json.RawMessage `json:"game_context,omitempty"`
	OccurredAt  time.Time       `json:"occurred_at"`
	CreatedAt   time.Time       `json:"created_at"`
}

// CycleStats is one row of the feed_cycles bookkeeping table.
type CycleStats struct {
	ID             int64     `json:"id"`
	GamesTracked   int       `json:"games_tracked"`
	GamesLive      int       `json:"games_live"`
	EventsDetected int       `json:"events_detected"`
	Source         string    `json:"source"`
	CreatedAt      time.Time `json:"created_at"`
}
