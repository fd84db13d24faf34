package database

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// Connect opens and verifies a Postgres connection.
func Connect(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return db, nil
}

// Migrate creates the archive tables.
func Migrate(db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS feed_events (
			id BIGSERIAL PRIMARY KEY,
			event_id VARCHAR(64) UNIQUE NOT NULL,
			kind VARCHAR(32) NOT NULL,
			source VARCHAR(16) NOT NULL,
			priority SMALLINT NOT NULL,
			game_id VARCHAR(100),
			league VARCHAR(16),
			payload JSONB,
			game_context JSONB,
			occurred_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_feed_events_kind ON feed_events(kind)`,
		`CREATE INDEX IF NOT EXISTS idx_feed_events_game_id ON feed_events(game_id)`,
		`CREATE INDEX IF NOT EXISTS idx_feed_events_occurred_at ON feed_events(occurred_at)`,

		`CREATE TABLE IF NOT EXISTS feed_cycles (
			id BIGSERIAL PRIMARY KEY,
			games_tracked INTEGER NOT NULL,
			games_live INTEGER NOT NULL,
			events_detected INTEGER NOT NULL,
			source VARCHAR(16) NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_feed_cycles_created_at ON feed_cycles(created_at)`,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}
