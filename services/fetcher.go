package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"gamefeed-service/config"
	"gamefeed-service/logger"
	"gamefeed-service/models"
)

// SnapshotFetcher retrieves the current state of every configured
// league from the upstream provider and merges the results into one
// canonical snapshot. A league whose fetch fails contributes zero
// games; the failure is logged, never returned to the caller.
type SnapshotFetcher struct {
	apiKey     string
	baseURL    string
	leagues    []models.League
	timeout    time.Duration
	httpClient *http.Client
}

// NewSnapshotFetcher creates a fetcher from service config.
func NewSnapshotFetcher(cfg *config.Config) *SnapshotFetcher {
	return &SnapshotFetcher{
		apiKey:  cfg.UpstreamAPIKey,
		baseURL: cfg.UpstreamBaseURL,
		leagues: cfg.Leagues,
		timeout: cfg.FetchTimeout,
		httpClient: &http.Client{
			Timeout: cfg.FetchTimeout,
		},
	}
}

// providerGame is the upstream scoreboard shape. Providers disagree on
// field presence, so everything is optional and normalized below.
type providerGame struct {
	ID        string       `json:"id"`
	GameID    string       `json:"game_id"`
	Status    string       `json:"status"`
	StartTime string       `json:"start_time"`
	Home      providerTeam `json:"home"`
	Away      providerTeam `json:"away"`
}

type providerTeam struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Abbreviation string          `json:"abbr"`
	Score        json.RawMessage `json:"score"`
	Record       string          `json:"record"`
}

type providerScoreboard struct {
	Events []providerGame `json:"events"`
	Games  []providerGame `json:"games"`
}

// Fetch retrieves all leagues concurrently and returns the merged
// snapshot. It never returns an error for per-league failures; the
// returned snapshot simply omits the failing league's games.
func (f *SnapshotFetcher) Fetch(ctx context.Context) *models.Snapshot {
	snapshot := models.EmptySnapshot(models.SourceLive)

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)

	for _, league := range f.leagues {
		league := league
		g.Go(func() error {
			games, err := f.fetchLeague(ctx, league)
			if err != nil {
				logger.Errorf("[Fetcher] %s fetch failed: %v", league, err)
				return nil // isolation: a failing league contributes nothing
			}
			mu.Lock()
			for _, game := range games {
				snapshot.Games[game.GameID] = game
			}
			mu.Unlock()
			return nil
		})
	}

	g.Wait()
	snapshot.LastUpdated = time.Now()
	return snapshot
}

// fetchLeague fetches and normalizes one league's scoreboard.
func (f *SnapshotFetcher) fetchLeague(ctx context.Context, league models.League) ([]models.LiveGame, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/%s/scoreboard", f.baseURL, league)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+f.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %v: %s scoreboard", ErrTimeout, f.timeout, league)
		}
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("provider returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var board providerScoreboard
	if err := json.Unmarshal(body, &board); err != nil {
		return nil, fmt.Errorf("malformed scoreboard body: %w", err)
	}

	raw := board.Events
	if len(raw) == 0 {
		raw = board.Games
	}

	games := make([]models.LiveGame, 0, len(raw))
	for _, pg := range raw {
		game, ok := normalizeGame(pg, league)
		if !ok {
			continue
		}
		games = append(games, game)
	}
	return games, nil
}

// normalizeGame maps a loosely-typed provider game onto the canonical
// shape. Games with no usable id are dropped.
func normalizeGame(pg providerGame, league models.League) (models.LiveGame, bool) {
	id := pg.ID
	if id == "" {
		id = pg.GameID
	}
	if id == "" {
		return models.LiveGame{}, false
	}

	startTime, err := time.Parse(time.RFC3339, pg.StartTime)
	if err != nil {
		startTime = time.Time{}
	}

	return models.LiveGame{
		GameID:    id,
		League:    league,
		Status:    normalizeStatus(pg.Status),
		StartTime: startTime,
		HomeTeam:  normalizeTeam(pg.Home),
		AwayTeam:  normalizeTeam(pg.Away),
	}, true
}

// normalizeStatus folds the provider's status vocabulary into the
// three canonical states. Unknown strings map to scheduled.
func normalizeStatus(status string) models.GameStatus {
	switch status {
	case "live", "in_progress", "in-progress", "halftime":
		return models.StatusLive
	case "final", "closed", "complete", "completed":
		return models.StatusFinal
	default:
		return models.StatusScheduled
	}
}

func normalizeTeam(pt providerTeam) models.Team {
	team := models.Team{
		ID:           pt.ID,
		Name:         pt.Name,
		Abbreviation: pt.Abbreviation,
		Record:       pt.Record,
	}
	if team.Name == "" {
		team.Name = "Unknown"
	}
	team.Score = parseScore(pt.Score)
	return team
}

// parseScore accepts numeric or string scores; anything else is zero.
func parseScore(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		if n < 0 {
			return 0
		}
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		var parsed int
		if _, err := fmt.Sscanf(s, "%d", &parsed); err == nil && parsed >= 0 {
			return parsed
		}
	}
	return 0
}
