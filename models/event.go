package models

import (
	"encoding/json"
	"time"
)

// EventKind is the closed set of event types carried on the stream.
// Adding a kind requires updating PriorityFor, DisplayDuration,
// MoraleEffect and the mode/tier filter tables together.
type EventKind string

const (
	KindGameStart      EventKind = "GAME_START"
	KindGameUpdate     EventKind = "GAME_UPDATE"
	KindGameFinal      EventKind = "GAME_FINAL"
	KindInjuryAlert    EventKind = "INJURY_ALERT"
	KindTradeNews      EventKind = "TRADE_NEWS"
	KindStandingsShift EventKind = "STANDINGS_SHIFT"
	KindLineupPosted   EventKind = "LINEUP_POSTED"
	KindOddsShift      EventKind = "ODDS_SHIFT"
	KindHighlightClip  EventKind = "HIGHLIGHT_CLIP"
	KindMomentumSwing  EventKind = "MOMENTUM_SWING"
	KindWorldTick      EventKind = "WORLD_TICK"
	KindOpsIncident    EventKind = "OPS_INCIDENT"
	KindOpsRecovery    EventKind = "OPS_RECOVERY"
)

// AllKinds lists every event kind.
func AllKinds() []EventKind {
	return []EventKind{
		KindGameStart, KindGameUpdate, KindGameFinal,
		KindInjuryAlert, KindTradeNews, KindStandingsShift,
		KindLineupPosted, KindOddsShift, KindHighlightClip,
		KindMomentumSwing, KindWorldTick, KindOpsIncident,
		KindOpsRecovery,
	}
}

// EventSource tells where an event originated.
type EventSource string

const (
	EventSourceLive      EventSource = "live"
	EventSourceSimulated EventSource = "simulated"
	EventSourceOps       EventSource = "ops"
)

// GameContext is a denormalized view of the two teams and the game
// status at the moment the event was generated.
type GameContext struct {
	GameID   string     `json:"gameId"`
	League   League     `json:"league"`
	HomeTeam Team       `json:"homeTeam"`
	AwayTeam Team       `json:"awayTeam"`
	Status   GameStatus `json:"status"`
}

// Event is immutable once created. Priority is assigned from the
// fixed PriorityFor table, never by clients.
type Event struct {
	ID          string          `json:"id"`
	Kind        EventKind       `json:"type"`
	Timestamp   time.Time       `json:"timestamp"`
	Source      EventSource     `json:"source"`
	Priority    int             `json:"priority"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	GameContext *GameContext    `json:"gameContext,omitempty"`
}

// GameStartPayload accompanies GAME_START.
type GameStartPayload struct {
	GameID string `json:"gameId"`
	League League `json:"league"`
	Home   string `json:"home"`
	Away   string `json:"away"`
}

// GameUpdatePayload accompanies GAME_UPDATE. ScoringPlay names the
// team credited with the score change.
type GameUpdatePayload struct {
	GameID      string `json:"gameId"`
	HomeScore   int    `json:"homeScore"`
	AwayScore   int    `json:"awayScore"`
	ScoringPlay string `json:"scoringPlay"`
}

// GameFinalPayload accompanies GAME_FINAL.
type GameFinalPayload struct {
	GameID    string `json:"gameId"`
	HomeScore int    `json:"homeScore"`
	AwayScore int    `json:"awayScore"`
	Winner    string `json:"winner"`
}

// InjuryAlertPayload accompanies INJURY_ALERT.
type InjuryAlertPayload struct {
	GameID   string `json:"gameId,omitempty"`
	TeamID   string `json:"teamId"`
	Player   string `json:"player"`
	Severity string `json:"severity"`
}

// WorldTickPayload accompanies WORLD_TICK heartbeats.
type WorldTickPayload struct {
	LiveGames int   `json:"liveGames"`
	Tick      int64 `json:"tick"`
}

// OpsPayload accompanies OPS_INCIDENT and OPS_RECOVERY.
type OpsPayload struct {
	Component string `json:"component"`
	Detail    string `json:"detail"`
}

// PriorityFor is the fixed kind -> priority lookup (1 = most urgent).
func PriorityFor(kind EventKind) int {
	switch kind {
	case KindGameFinal, KindOpsIncident:
		return 1
	case KindWorldTick:
		return 3
	case KindGameStart, KindGameUpdate, KindInjuryAlert, KindTradeNews,
		KindStandingsShift, KindLineupPosted, KindOddsShift,
		KindHighlightClip, KindMomentumSwing, KindOpsRecovery:
		return 2
	}
	return 2
}

// MarshalPayload serializes a payload struct for embedding in an Event.
// Marshal failures yield an empty payload rather than an error; every
// payload type in this package marshals cleanly.
func MarshalPayload(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("{}")
	}
	return data
}
