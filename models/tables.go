package models

import "time"

// DisplayDuration is how long a client should surface an event of the
// given kind before rotating it out.
func DisplayDuration(kind EventKind) time.Duration {
	switch kind {
	case KindGameFinal:
		return 12 * time.Second
	case KindGameStart, KindHighlightClip:
		return 10 * time.Second
	case KindGameUpdate, KindMomentumSwing:
		return 8 * time.Second
	case KindInjuryAlert, KindTradeNews, KindLineupPosted, KindOddsShift:
		return 6 * time.Second
	case KindStandingsShift, KindOpsIncident, KindOpsRecovery:
		return 6 * time.Second
	case KindWorldTick:
		return 3 * time.Second
	}
	return 6 * time.Second
}

// MoraleEffect is the worker-morale delta a consumer applies when the
// given kind arrives. Positive lifts morale, negative drains it.
func MoraleEffect(kind EventKind) int {
	switch kind {
	case KindGameStart, KindHighlightClip:
		return 2
	case KindGameFinal, KindMomentumSwing:
		return 3
	case KindGameUpdate, KindLineupPosted, KindStandingsShift, KindOpsRecovery:
		return 1
	case KindInjuryAlert, KindOpsIncident:
		return -2
	case KindTradeNews, KindOddsShift:
		return 0
	case KindWorldTick:
		return 0
	}
	return 0
}
