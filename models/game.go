package models

import "time"

// League identifies a supported league.
type League string

const (
	LeagueMLB League = "mlb"
	LeagueNBA League = "nba"
	LeagueNFL League = "nfl"
	LeagueNHL League = "nhl"
)

// AllLeagues returns every supported league.
func AllLeagues() []League {
	return []League{LeagueMLB, LeagueNBA, LeagueNFL, LeagueNHL}
}

// ParseLeague normalizes a league string; unknown values return false.
func ParseLeague(s string) (League, bool) {
	switch League(s) {
	case LeagueMLB, LeagueNBA, LeagueNFL, LeagueNHL:
		return League(s), true
	}
	return "", false
}

// GameStatus is the lifecycle state of a game. Transitions are
// monotonic: scheduled -> live -> final.
type GameStatus string

const (
	StatusScheduled GameStatus = "scheduled"
	StatusLive      GameStatus = "live"
	StatusFinal     GameStatus = "final"
)

// SnapshotSource tells whether a snapshot came from the upstream
// provider or from the simulation generator.
type SnapshotSource string

const (
	SourceLive      SnapshotSource = "live"
	SourceSimulated SnapshotSource = "simulated"
)

// Team is the normalized team shape.
type Team struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation"`
	Score        int    `json:"score"`
	Record       string `json:"record,omitempty"`
}

// LiveGame is one game within a snapshot, keyed by GameID.
type LiveGame struct {
	GameID    string     `json:"gameId"`
	League    League     `json:"league"`
	HomeTeam  Team       `json:"homeTeam"`
	AwayTeam  Team       `json:"awayTeam"`
	Status    GameStatus `json:"status"`
	StartTime time.Time  `json:"startTime"`
}

// Standing is one row of a league table.
type Standing struct {
	League   League `json:"league"`
	TeamID   string `json:"teamId"`
	TeamName string `json:"teamName"`
	Wins     int    `json:"wins"`
	Losses   int    `json:"losses"`
}

// Snapshot is a full point-in-time view of all tracked games. A
// snapshot is replaced wholesale, never mutated in place.
type Snapshot struct {
	Games       map[string]LiveGame `json:"games"`
	Standings   []Standing          `json:"standings"`
	LastUpdated time.Time           `json:"lastUpdated"`
	Source      SnapshotSource      `json:"source"`
}

// EmptySnapshot returns a snapshot with no games, used when neither a
// stored snapshot nor an upstream fetch is available.
func EmptySnapshot(source SnapshotSource) *Snapshot {
	return &Snapshot{
		Games:       make(map[string]LiveGame),
		LastUpdated: time.Now(),
		Source:      source,
	}
}

// LiveCount returns the number of games currently live.
func (s *Snapshot) LiveCount() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, g := range s.Games {
		if g.Status == StatusLive {
			n++
		}
	}
	return n
}
