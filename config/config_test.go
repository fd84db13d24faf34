package config

import (
	"testing"
	"time"

	"gamefeed-service/models"
)

func TestGetEnvIntParsesValue(t *testing.T) {
	t.Setenv("TEST_INT_VALUE", "25")
	if got := getEnvInt("TEST_INT_VALUE", 5); got != 25 {
		t.Errorf("Expected 25, got %d", got)
	}
}

func TestGetEnvIntZeroIsExplicit(t *testing.T) {
	// An explicit 0 is a value, not an absence.
	t.Setenv("TEST_INT_VALUE", "0")
	if got := getEnvInt("TEST_INT_VALUE", 5); got != 0 {
		t.Errorf("Expected explicit 0 honored, got %d", got)
	}
}

func TestGetEnvIntGarbageFallsBack(t *testing.T) {
	t.Setenv("TEST_INT_VALUE", "thirty")
	if got := getEnvInt("TEST_INT_VALUE", 5); got != 5 {
		t.Errorf("Expected default for unparseable value, got %d", got)
	}
}

func TestGetEnvIntUnsetFallsBack(t *testing.T) {
	if got := getEnvInt("TEST_INT_UNSET", 5); got != 5 {
		t.Errorf("Expected default for unset key, got %d", got)
	}
}

func TestGetEnvDurationRejectsNonPositive(t *testing.T) {
	t.Setenv("TEST_DURATION", "-3s")
	if got := getEnvDuration("TEST_DURATION", time.Second); got != time.Second {
		t.Errorf("Expected default for non-positive duration, got %v", got)
	}
}

func TestGetLeaguesFiltersUnknown(t *testing.T) {
	t.Setenv("LEAGUES", "mlb, cricket ,nhl")
	leagues := getLeagues()
	if len(leagues) != 2 {
		t.Fatalf("Expected 2 recognized leagues, got %v", leagues)
	}
	if leagues[0] != models.LeagueMLB || leagues[1] != models.LeagueNHL {
		t.Errorf("Expected [mlb nhl], got %v", leagues)
	}
}

func TestGetLeaguesDefaultsToAll(t *testing.T) {
	t.Setenv("LEAGUES", "")
	if got := len(getLeagues()); got != len(models.AllLeagues()) {
		t.Errorf("Expected all leagues by default, got %d", got)
	}
}
