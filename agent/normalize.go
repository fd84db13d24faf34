package agent

import (
	"encoding/json"
	"fmt"
	"time"

	"gamefeed-service/models"
)

// Worker is the normalized agent-activity record.
type Worker struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	Morale     int    `json:"morale"`
	Assignment string `json:"assignment,omitempty"`
}

// Stats is the normalized stats-snapshot record.
type Stats struct {
	WorkersActive int `json:"workersActive"`
	EventsSeen    int `json:"eventsSeen"`
	LiveGames     int `json:"liveGames"`
}

// normalizeWorker tolerates loose input. Fallbacks: missing name
// becomes "Worker <id>", missing role "idle", morale clamped to
// 0..100 with a default of 50. A missing id is the only hard error.
func normalizeWorker(data json.RawMessage) (Worker, error) {
	var raw struct {
		ID         string   `json:"id"`
		Name       string   `json:"name"`
		Role       string   `json:"role"`
		Morale     *float64 `json:"morale"`
		Assignment string   `json:"assignment"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Worker{}, fmt.Errorf("malformed worker: %w", err)
	}
	if raw.ID == "" {
		return Worker{}, fmt.Errorf("worker without id")
	}

	worker := Worker{
		ID:         raw.ID,
		Name:       raw.Name,
		Role:       raw.Role,
		Morale:     50,
		Assignment: raw.Assignment,
	}
	if worker.Name == "" {
		worker.Name = "Worker " + raw.ID
	}
	if worker.Role == "" {
		worker.Role = "idle"
	}
	if raw.Morale != nil {
		morale := int(*raw.Morale)
		if morale < 0 {
			morale = 0
		}
		if morale > 100 {
			morale = 100
		}
		worker.Morale = morale
	}
	return worker, nil
}

// normalizeWorkerRemoval extracts the removed worker's id, accepting
// either {"id": "..."} or a bare string.
func normalizeWorkerRemoval(data json.RawMessage) (string, error) {
	var wrapped struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.ID != "" {
		return wrapped.ID, nil
	}
	var bare string
	if err := json.Unmarshal(data, &bare); err == nil && bare != "" {
		return bare, nil
	}
	return "", fmt.Errorf("worker removal without id")
}

// normalizeStats zero-fills anything missing or garbled; a stats
// snapshot is advisory and never an error.
func normalizeStats(data json.RawMessage) Stats {
	var raw struct {
		WorkersActive *int `json:"workersActive"`
		EventsSeen    *int `json:"eventsSeen"`
		LiveGames     *int `json:"liveGames"`
	}
	_ = json.Unmarshal(data, &raw)

	var stats Stats
	if raw.WorkersActive != nil && *raw.WorkersActive >= 0 {
		stats.WorkersActive = *raw.WorkersActive
	}
	if raw.EventsSeen != nil && *raw.EventsSeen >= 0 {
		stats.EventsSeen = *raw.EventsSeen
	}
	if raw.LiveGames != nil && *raw.LiveGames >= 0 {
		stats.LiveGames = *raw.LiveGames
	}
	return stats
}

// normalizeStatusLine accepts a bare string or {"message": "..."};
// anything else becomes a placeholder line.
func normalizeStatusLine(data json.RawMessage) string {
	var bare string
	if err := json.Unmarshal(data, &bare); err == nil && bare != "" {
		return bare
	}
	var wrapped struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Message != "" {
		return wrapped.Message
	}
	return "(unreadable status)"
}

// normalizeEvent fills defaults for missing event fields: a zero
// timestamp becomes now, the priority is re-derived from the kind.
func normalizeEvent(data json.RawMessage) (models.Event, error) {
	var event models.Event
	if err := json.Unmarshal(data, &event); err != nil {
		return models.Event{}, fmt.Errorf("malformed event: %w", err)
	}
	if event.Kind == "" {
		return models.Event{}, fmt.Errorf("event without type")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	event.Priority = models.PriorityFor(event.Kind)
	return event, nil
}

// isEventKind reports whether kind names a domain event.
func isEventKind(kind string) bool {
	for _, known := range models.AllKinds() {
		if string(known) == kind {
			return true
		}
	}
	return false
}
