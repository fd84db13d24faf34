package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gamefeed-service/config"
	"gamefeed-service/models"
)

func fetcherFor(t *testing.T, url string, leagues ...models.League) *SnapshotFetcher {
	t.Helper()
	return NewSnapshotFetcher(&config.Config{
		UpstreamAPIKey:  "test_key",
		UpstreamBaseURL: url,
		Leagues:         leagues,
		FetchTimeout:    2 * time.Second,
	})
}

func TestFetchNormalizesProviderFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/mlb/scoreboard" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer test_key" {
			t.Errorf("Expected bearer credential, got %q", r.Header.Get("Authorization"))
		}
		w.Write([]byte(`{"events":[
			{"id":"m1","status":"in_progress","start_time":"2026-08-31T18:00:00Z",
			 "home":{"id":"h1","name":"Anchors","abbr":"ANC","score":3,"record":"41-30"},
			 "away":{"id":"a1","name":"Miners","abbr":"MIN","score":"2"}},
			{"game_id":"m2","status":"closed",
			 "home":{"id":"h2","score":-4},
			 "away":{"id":"a2","name":"Storm"}},
			{"status":"live","home":{},"away":{}}
		]}`))
	}))
	defer server.Close()

	fetcher := fetcherFor(t, server.URL, models.LeagueMLB)
	snapshot := fetcher.Fetch(context.Background())

	if snapshot.Source != models.SourceLive {
		t.Errorf("Expected live source, got %s", snapshot.Source)
	}
	if len(snapshot.Games) != 2 {
		t.Fatalf("Expected 2 games (id-less one dropped), got %d", len(snapshot.Games))
	}

	m1 := snapshot.Games["m1"]
	if m1.Status != models.StatusLive {
		t.Errorf("Expected in_progress mapped to live, got %s", m1.Status)
	}
	if m1.HomeTeam.Score != 3 || m1.AwayTeam.Score != 2 {
		t.Errorf("Expected scores 3-2 (string score parsed), got %d-%d", m1.HomeTeam.Score, m1.AwayTeam.Score)
	}
	if m1.StartTime.IsZero() {
		t.Error("Expected parsed start time")
	}

	m2 := snapshot.Games["m2"]
	if m2.Status != models.StatusFinal {
		t.Errorf("Expected closed mapped to final, got %s", m2.Status)
	}
	if m2.HomeTeam.Score != 0 {
		t.Errorf("Expected negative score clamped to 0, got %d", m2.HomeTeam.Score)
	}
	if m2.HomeTeam.Name != "Unknown" {
		t.Errorf("Expected missing name fallback, got %q", m2.HomeTeam.Name)
	}
}

func TestFetchIsolatesFailingLeague(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/mlb/scoreboard":
			w.Write([]byte(`{"events":[{"id":"m1","status":"live","home":{"name":"A"},"away":{"name":"B"}}]}`))
		case "/nba/scoreboard":
			http.Error(w, "upstream exploded", http.StatusBadGateway)
		case "/nhl/scoreboard":
			w.Write([]byte(`{"events": not json`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	fetcher := fetcherFor(t, server.URL, models.LeagueMLB, models.LeagueNBA, models.LeagueNHL)
	snapshot := fetcher.Fetch(context.Background())

	if len(snapshot.Games) != 1 {
		t.Fatalf("Expected only the healthy league's game, got %d", len(snapshot.Games))
	}
	if _, ok := snapshot.Games["m1"]; !ok {
		t.Error("Expected m1 from the healthy league")
	}
}

func TestFetchTotalFailureReturnsEmptySnapshot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	fetcher := fetcherFor(t, server.URL, models.LeagueMLB, models.LeagueNBA)
	snapshot := fetcher.Fetch(context.Background())

	if snapshot == nil {
		t.Fatal("Expected an empty snapshot, not nil")
	}
	if len(snapshot.Games) != 0 {
		t.Errorf("Expected no games, got %d", len(snapshot.Games))
	}
}

func TestFetchAppliesTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.Write([]byte(`{"events":[]}`))
	}))
	defer server.Close()

	fetcher := NewSnapshotFetcher(&config.Config{
		UpstreamAPIKey:  "test_key",
		UpstreamBaseURL: server.URL,
		Leagues:         []models.League{models.LeagueMLB},
		FetchTimeout:    50 * time.Millisecond,
	})

	start := time.Now()
	snapshot := fetcher.Fetch(context.Background())
	elapsed := time.Since(start)

	if len(snapshot.Games) != 0 {
		t.Errorf("Expected timed-out league to contribute nothing, got %d games", len(snapshot.Games))
	}
	if elapsed > 400*time.Millisecond {
		t.Errorf("Expected fetch bounded by the timeout, took %v", elapsed)
	}
}
