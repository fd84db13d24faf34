package services

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"gamefeed-service/models"
)

// DeltaDetector compares two successive snapshots and produces the
// typed events describing what changed between them.
type DeltaDetector struct{}

func NewDeltaDetector() *DeltaDetector {
	return &DeltaDetector{}
}

// Detect compares previous (nil on the first cycle) with current and
// returns the ordered event list plus the snapshot to persist as the
// next cycle's baseline. The persisted snapshot is always current,
// whether or not any events fired.
//
// Games in current are processed in sorted id order so the event list
// is deterministic for a given pair of snapshots.
func (d *DeltaDetector) Detect(previous, current *models.Snapshot) ([]models.Event, *models.Snapshot) {
	var events []models.Event
	now := time.Now()

	source := models.EventSourceLive
	if current.Source == models.SourceSimulated {
		source = models.EventSourceSimulated
	}

	ids := make([]string, 0, len(current.Games))
	for id := range current.Games {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		game := current.Games[id]

		if previous == nil {
			// First cycle: only already-live games announce themselves.
			if game.Status == models.StatusLive {
				events = append(events, gameStartEvent(game, source, now))
			}
			continue
		}

		prev, existed := previous.Games[id]
		if !existed {
			if game.Status == models.StatusLive {
				events = append(events, gameStartEvent(game, source, now))
			}
			continue
		}

		if prev.Status != game.Status {
			switch {
			case prev.Status == models.StatusScheduled && game.Status == models.StatusLive:
				events = append(events, gameStartEvent(game, source, now))
			case prev.Status == models.StatusLive && game.Status == models.StatusFinal:
				events = append(events, gameFinalEvent(game, source, now))
			}
			// Any other transition (including scheduled -> final) is ignored.
			continue
		}

		if game.Status == models.StatusLive {
			if event, changed := scoreChangeEvent(prev, game, source, now); changed {
				events = append(events, event)
			}
		}
	}

	// Live games that vanished from current get a synthetic final
	// carrying their last known scores.
	if previous != nil {
		prevIDs := make([]string, 0, len(previous.Games))
		for id := range previous.Games {
			prevIDs = append(prevIDs, id)
		}
		sort.Strings(prevIDs)

		for _, id := range prevIDs {
			prev := previous.Games[id]
			if prev.Status != models.StatusLive {
				continue
			}
			if _, stillTracked := current.Games[id]; stillTracked {
				continue
			}
			ended := prev
			ended.Status = models.StatusFinal
			events = append(events, gameFinalEvent(ended, source, now))
		}
	}

	return events, current
}

func gameStartEvent(game models.LiveGame, source models.EventSource, now time.Time) models.Event {
	payload := models.GameStartPayload{
		GameID: game.GameID,
		League: game.League,
		Home:   game.HomeTeam.Name,
		Away:   game.AwayTeam.Name,
	}
	return newGameEvent(models.KindGameStart, game, models.MarshalPayload(payload), source, now)
}

func gameFinalEvent(game models.LiveGame, source models.EventSource, now time.Time) models.Event {
	winner := game.HomeTeam.Name
	if game.AwayTeam.Score > game.HomeTeam.Score {
		winner = game.AwayTeam.Name
	}
	payload := models.GameFinalPayload{
		GameID:    game.GameID,
		HomeScore: game.HomeTeam.Score,
		AwayScore: game.AwayTeam.Score,
		Winner:    winner,
	}
	return newGameEvent(models.KindGameFinal, game, models.MarshalPayload(payload), source, now)
}

// scoreChangeEvent emits at most one GAME_UPDATE per cycle. When both
// sides scored in the same cycle the home side is attributed and the
// away increment is absorbed into the next cycle's baseline.
func scoreChangeEvent(prev, curr models.LiveGame, source models.EventSource, now time.Time) (models.Event, bool) {
	homeScored := curr.HomeTeam.Score > prev.HomeTeam.Score
	awayScored := curr.AwayTeam.Score > prev.AwayTeam.Score
	if !homeScored && !awayScored {
		return models.Event{}, false
	}

	scorer := curr.AwayTeam
	if homeScored {
		scorer = curr.HomeTeam
	}

	payload := models.GameUpdatePayload{
		GameID:      curr.GameID,
		HomeScore:   curr.HomeTeam.Score,
		AwayScore:   curr.AwayTeam.Score,
		ScoringPlay: fmt.Sprintf("%s score", scorer.Name),
	}
	return newGameEvent(models.KindGameUpdate, curr, models.MarshalPayload(payload), source, now), true
}

func newGameEvent(kind models.EventKind, game models.LiveGame, payload []byte, source models.EventSource, now time.Time) models.Event {
	return models.Event{
		ID:        uuid.NewString(),
		Kind:      kind,
		Timestamp: now,
		Source:    source,
		Priority:  models.PriorityFor(kind),
		Payload:   payload,
		GameContext: &models.GameContext{
			GameID:   game.GameID,
			League:   game.League,
			HomeTeam: game.HomeTeam,
			AwayTeam: game.AwayTeam,
			Status:   game.Status,
		},
	}
}
