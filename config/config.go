package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"gamefeed-service/models"
)

type Config struct {
	// Upstream provider
	UpstreamAPIKey  string
	UpstreamBaseURL string
	Leagues         []models.League
	FetchTimeout    time.Duration
	PollInterval    time.Duration

	// Storage
	RedisURL    string
	DatabaseURL string
	SnapshotTTL time.Duration
	DeltaTTL    time.Duration

	// Ops feed (optional AMQP)
	AMQPURL      string
	OpsQueueName string

	// Server
	Port              string
	DispatchInterval  time.Duration
	HeartbeatEvery    int // heartbeat every N dispatch ticks
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Misc
	Environment string
	ForceDemo   bool
}

func Load() *Config {
	// Load .env when present; missing file is fine.
	_ = godotenv.Load()

	return &Config{
		UpstreamAPIKey:  getEnv("UPSTREAM_API_KEY", ""),
		UpstreamBaseURL: getEnv("UPSTREAM_BASE_URL", "https://api.sportsdata.example.com/v2"),
		Leagues:         getLeagues(),
		FetchTimeout:    getEnvDuration("FETCH_TIMEOUT", 3*time.Second),
		PollInterval:    getEnvDuration("POLL_INTERVAL", 15*time.Second),

		RedisURL:    getEnv("REDIS_URL", ""),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		SnapshotTTL: getEnvDuration("SNAPSHOT_TTL", 5*time.Minute),
		DeltaTTL:    getEnvDuration("DELTA_TTL", 5*time.Minute),

		AMQPURL:      getEnv("AMQP_URL", ""),
		OpsQueueName: getEnv("OPS_QUEUE_NAME", "gamefeed-ops"),

		Port:              getEnv("PORT", "8080"),
		DispatchInterval:  getEnvDuration("DISPATCH_INTERVAL", 5*time.Second),
		HeartbeatEvery:    getEnvInt("HEARTBEAT_EVERY", 6),
		RateLimitRequests: getEnvInt("RATE_LIMIT_REQUESTS", 30),
		RateLimitWindow:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),

		Environment: getEnv("ENVIRONMENT", "development"),
		ForceDemo:   getEnv("FORCE_DEMO", "false") == "true",
	}
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// DemoMode reports whether the simulation generator should replace the
// live pipeline (no upstream credential, or explicitly forced).
func (c *Config) DemoMode() bool {
	return c.ForceDemo || c.UpstreamAPIKey == ""
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return result
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

func getLeagues() []models.League {
	raw := getEnv("LEAGUES", "")
	if raw == "" {
		return models.AllLeagues()
	}
	var leagues []models.League
	for _, part := range strings.Split(raw, ",") {
		if league, ok := models.ParseLeague(strings.TrimSpace(part)); ok {
			leagues = append(leagues, league)
		}
	}
	if len(leagues) == 0 {
		return models.AllLeagues()
	}
	return leagues
}
