package database

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"gamefeed-service/models"
)

// EventArchive persists detected events for the history endpoint. The
// service runs fine without a database; it just serves no history.
type EventArchive struct {
	db *sql.DB
}

func NewEventArchive(db *sql.DB) *EventArchive {
	return &EventArchive{db: db}
}

// SaveEvents inserts one detected batch. Replayed event ids are
// ignored rather than erroring.
func (a *EventArchive) SaveEvents(events []models.Event) error {
	query := `
		INSERT INTO feed_events (event_id, kind, source, priority, game_id, league, payload, game_context, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (event_id) DO NOTHING
	`

	for _, event := range events {
		var gameID, league *string
		var gameContext []byte
		if event.GameContext != nil {
			gameID = &event.GameContext.GameID
			l := string(event.GameContext.League)
			league = &l
			gameContext, _ = json.Marshal(event.GameContext)
		}

		var payload []byte
		if len(event.Payload) > 0 {
			payload = event.Payload
		}

		_, err := a.db.Exec(query,
			event.ID, string(event.Kind), string(event.Source), event.Priority,
			gameID, league, payload, gameContext, event.Timestamp)
		if err != nil {
			return fmt.Errorf("failed to archive event %s: %w", event.ID, err)
		}
	}
	return nil
}

// SaveCycle records one pipeline cycle's bookkeeping.
func (a *EventArchive) SaveCycle(snapshot *models.Snapshot, eventCount int) error {
	query := `
		INSERT INTO feed_cycles (games_tracked, games_live, events_detected, source)
		VALUES ($1, $2, $3, $4)
	`
	_, err := a.db.Exec(query, len(snapshot.Games), snapshot.LiveCount(), eventCount, string(snapshot.Source))
	return err
}

// RecentEvents returns the newest archived events, optionally filtered
// by kind. Limit is clamped to 1..200.
func (a *EventArchive) RecentEvents(limit int, kind string) ([]ArchivedEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
		SELECT id, event_id, kind, source, priority, game_id, league, payload, game_context, occurred_at, created_at
		FROM feed_events
	`
	args := []interface{}{}
	if kind != "" {
		query += ` WHERE kind = $1`
		args = append(args, kind)
	}
	query += fmt.Sprintf(` ORDER BY occurred_at DESC LIMIT %d`, limit)

	rows, err := a.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []ArchivedEvent
	for rows.Next() {
		var event ArchivedEvent
		err := rows.Scan(&event.ID, &event.EventID, &event.Kind, &event.Source,
			&event.Priority, &event.GameID, &event.League, &event.Payload,
			&event.GameContext, &event.OccurredAt, &event.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
