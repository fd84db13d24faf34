package web

import (
	"net"
	"net/http"
	"strings"
	"time"

	"gamefeed-service/models"
)

// Mode is the client verbosity level. Each mode's allowed set is a
// strict superset of the previous one.
type Mode string

const (
	ModeSpectator Mode = "spectator"
	ModeManager   Mode = "manager"
	ModeCommander Mode = "commander"
)

// Tier is the subscription level gating premium event kinds.
type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// TierHeader carries the client's subscription tier.
const TierHeader = "X-Feed-Tier"

// ConnContext is the per-connection state. Created on connect,
// discarded on disconnect, never persisted.
type ConnContext struct {
	Mode       Mode
	Tier       Tier
	Leagues    map[models.League]bool
	Teams      []string // parsed but not yet applied to filtering
	LastCursor time.Time
	RemoteKey  string
	Demo       bool
}

// spectatorKinds is the base allowed set; manager and commander extend it.
var spectatorKinds = map[models.EventKind]bool{
	models.KindGameStart:  true,
	models.KindGameUpdate: true,
	models.KindGameFinal:  true,
	models.KindWorldTick:  true,
}

var managerKinds = extend(spectatorKinds,
	models.KindInjuryAlert,
	models.KindTradeNews,
	models.KindStandingsShift,
	models.KindLineupPosted,
)

var commanderKinds = extend(managerKinds,
	models.KindOddsShift,
	models.KindHighlightClip,
	models.KindMomentumSwing,
	models.KindOpsIncident,
	models.KindOpsRecovery,
)

var freeKinds = map[models.EventKind]bool{
	models.KindGameStart:      true,
	models.KindGameUpdate:     true,
	models.KindGameFinal:      true,
	models.KindWorldTick:      true,
	models.KindInjuryAlert:    true,
	models.KindTradeNews:      true,
	models.KindStandingsShift: true,
	models.KindOpsIncident:    true,
	models.KindOpsRecovery:    true,
}

var proKinds = extend(freeKinds,
	models.KindLineupPosted,
	models.KindOddsShift,
)

var enterpriseKinds = extend(proKinds,
	models.KindHighlightClip,
	models.KindMomentumSwing,
)

func extend(base map[models.EventKind]bool, kinds ...models.EventKind) map[models.EventKind]bool {
	out := make(map[models.EventKind]bool, len(base)+len(kinds))
	for k := range base {
		out[k] = true
	}
	for _, k := range kinds {
		out[k] = true
	}
	return out
}

func modeKinds(mode Mode) map[models.EventKind]bool {
	switch mode {
	case ModeManager:
		return managerKinds
	case ModeCommander:
		return commanderKinds
	default:
		return spectatorKinds
	}
}

func tierKinds(tier Tier) map[models.EventKind]bool {
	switch tier {
	case TierPro:
		return proKinds
	case TierEnterprise:
		return enterpriseKinds
	default:
		return freeKinds
	}
}

// FilterEvent reports whether an event passes the connection's mode,
// tier and league constraints. Pure conjunction; order is irrelevant.
// Events without game context bypass league filtering.
func FilterEvent(event models.Event, mode Mode, tier Tier, leagues map[models.League]bool) bool {
	if !modeKinds(mode)[event.Kind] {
		return false
	}
	if !tierKinds(tier)[event.Kind] {
		return false
	}
	if event.GameContext != nil && !leagues[event.GameContext.League] {
		return false
	}
	return true
}

// ParseConnContext builds the connection context from request query
// parameters and headers, applying defaults for anything absent.
func ParseConnContext(r *http.Request) *ConnContext {
	query := r.URL.Query()

	mode := Mode(query.Get("mode"))
	switch mode {
	case ModeSpectator, ModeManager, ModeCommander:
	default:
		mode = ModeSpectator
	}

	tier := Tier(r.Header.Get(TierHeader))
	switch tier {
	case TierFree, TierPro, TierEnterprise:
	default:
		tier = TierFree
	}

	leagues := make(map[models.League]bool)
	if raw := query.Get("leagues"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if league, ok := models.ParseLeague(strings.TrimSpace(part)); ok {
				leagues[league] = true
			}
		}
	}
	if len(leagues) == 0 {
		for _, league := range models.AllLeagues() {
			leagues[league] = true
		}
	}

	var teams []string
	if raw := query.Get("teams"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if team := strings.TrimSpace(part); team != "" {
				teams = append(teams, team)
			}
		}
	}

	return &ConnContext{
		Mode:       mode,
		Tier:       tier,
		Leagues:    leagues,
		Teams:      teams,
		LastCursor: time.Now(),
		RemoteKey:  clientKey(r),
		Demo:       query.Get("demo") == "true",
	}
}

// clientKey is the rate-limit identity: the remote IP without port.
func clientKey(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if idx := strings.Index(forwarded, ","); idx >= 0 {
			return strings.TrimSpace(forwarded[:idx])
		}
		return strings.TrimSpace(forwarded)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
