package services

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"gamefeed-service/models"
)

// injurySeverities is the fixed pool INJURY_ALERT severities draw from.
var injurySeverities = []string{"day-to-day", "questionable", "out"}

// SimulationGenerator is the demo-mode event source. It keeps a
// private roster of simulated live games and emits structurally
// identical events to the live pipeline on a fixed cadence policy, so
// the dispatcher's filtering path is exercised the same in both modes.
type SimulationGenerator struct {
	mu    sync.Mutex
	games map[string]models.LiveGame
	rng   *rand.Rand
	calls int64
}

func NewSimulationGenerator() *SimulationGenerator {
	gen := &SimulationGenerator{
		games: make(map[string]models.LiveGame),
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	gen.seedRoster()
	return gen
}

// seedRoster populates one live game per league plus a scheduled one.
func (g *SimulationGenerator) seedRoster() {
	now := time.Now()
	seeds := []struct {
		league models.League
		home   string
		homeAb string
		away   string
		awayAb string
	}{
		{models.LeagueMLB, "Harbor City Anchors", "HCA", "Redstone Miners", "RSM"},
		{models.LeagueNBA, "Bayview Breakers", "BVB", "Summit Hawks", "SMH"},
		{models.LeagueNFL, "Iron Ridge Bulls", "IRB", "Coastal Storm", "CST"},
		{models.LeagueNHL, "Northgate Wolves", "NGW", "Frostline Kings", "FLK"},
	}

	for i, seed := range seeds {
		id := fmt.Sprintf("sim-%s-%d", seed.league, i+1)
		g.games[id] = models.LiveGame{
			GameID:    id,
			League:    seed.league,
			Status:    models.StatusLive,
			StartTime: now.Add(-time.Duration(20+i*10) * time.Minute),
			HomeTeam:  models.Team{ID: id + "-h", Name: seed.home, Abbreviation: seed.homeAb},
			AwayTeam:  models.Team{ID: id + "-a", Name: seed.away, Abbreviation: seed.awayAb},
		}
	}

	g.games["sim-mlb-late"] = models.LiveGame{
		GameID:    "sim-mlb-late",
		League:    models.LeagueMLB,
		Status:    models.StatusScheduled,
		StartTime: now.Add(2 * time.Hour),
		HomeTeam:  models.Team{ID: "sim-mlb-late-h", Name: "Dockside Pilots", Abbreviation: "DSP"},
		AwayTeam:  models.Team{ID: "sim-mlb-late-a", Name: "Quarry Giants", Abbreviation: "QGI"},
	}
}

// Tick advances the simulation one step. Every 3rd call may emit one
// GAME_UPDATE on a random live game (coin flip decides which side
// scores); every 10th call emits one INJURY_ALERT.
func (g *SimulationGenerator) Tick() []models.Event {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls++
	now := time.Now()
	var events []models.Event

	if g.calls%3 == 0 {
		if event, ok := g.simulateScore(now); ok {
			events = append(events, event)
		}
	}

	if g.calls%10 == 0 {
		events = append(events, g.simulateInjury(now))
	}

	return events
}

func (g *SimulationGenerator) simulateScore(now time.Time) (models.Event, bool) {
	live := g.liveGameIDs()
	if len(live) == 0 {
		return models.Event{}, false
	}

	id := live[g.rng.Intn(len(live))]
	game := g.games[id]

	scorer := &game.AwayTeam
	if g.rng.Intn(2) == 0 {
		scorer = &game.HomeTeam
	}
	scorer.Score++
	g.games[id] = game

	payload := models.GameUpdatePayload{
		GameID:      game.GameID,
		HomeScore:   game.HomeTeam.Score,
		AwayScore:   game.AwayTeam.Score,
		ScoringPlay: fmt.Sprintf("%s score", scorer.Name),
	}
	return g.newEvent(models.KindGameUpdate, game, models.MarshalPayload(payload), now), true
}

func (g *SimulationGenerator) simulateInjury(now time.Time) models.Event {
	live := g.liveGameIDs()
	if len(live) == 0 {
		payload := models.InjuryAlertPayload{
			TeamID:   "sim-pool",
			Player:   "Reserve Player",
			Severity: injurySeverities[g.rng.Intn(len(injurySeverities))],
		}
		return models.Event{
			ID:        uuid.NewString(),
			Kind:      models.KindInjuryAlert,
			Timestamp: now,
			Source:    models.EventSourceSimulated,
			Priority:  models.PriorityFor(models.KindInjuryAlert),
			Payload:   models.MarshalPayload(payload),
		}
	}

	game := g.games[live[g.rng.Intn(len(live))]]
	team := game.HomeTeam
	if g.rng.Intn(2) == 0 {
		team = game.AwayTeam
	}
	payload := models.InjuryAlertPayload{
		GameID:   game.GameID,
		TeamID:   team.ID,
		Player:   fmt.Sprintf("%s Starter", team.Abbreviation),
		Severity: injurySeverities[g.rng.Intn(len(injurySeverities))],
	}
	return g.newEvent(models.KindInjuryAlert, game, models.MarshalPayload(payload), now)
}

func (g *SimulationGenerator) newEvent(kind models.EventKind, game models.LiveGame, payload []byte, now time.Time) models.Event {
	return models.Event{
		ID:        uuid.NewString(),
		Kind:      kind,
		Timestamp: now,
		Source:    models.EventSourceSimulated,
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

func (g *SimulationGenerator) liveGameIDs() []string {
	var ids []string
	for id, game := range g.games {
		if game.Status == models.StatusLive {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// LiveCount returns the number of simulated games currently live.
func (g *SimulationGenerator) LiveCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, game := range g.games {
		if game.Status == models.StatusLive {
			n++
		}
	}
	return n
}

// Snapshot builds a snapshot view of the simulated roster, backing the
// snapshot endpoint in demo mode.
func (g *SimulationGenerator) Snapshot() *models.Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	snapshot := models.EmptySnapshot(models.SourceSimulated)
	for id, game := range g.games {
		snapshot.Games[id] = game
	}
	return snapshot
}
