package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gamefeed-service/config"
	"gamefeed-service/database"
	"gamefeed-service/services"
	"gamefeed-service/web"
)

func main() {
	log.Println("Starting Game Feed Service...")

	cfg := config.Load()

	// Postgres archive is optional; without it the history endpoint
	// serves empty and events are not persisted beyond the delta TTL.
	var archive *database.EventArchive
	if cfg.DatabaseURL != "" {
		db, err := database.Connect(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		if err := database.Migrate(db); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
		archive = database.NewEventArchive(db)
		log.Println("Database connected and migrated")
	} else {
		log.Println("No DATABASE_URL, event archive disabled")
	}

	store := services.NopIfNil(services.NewRedisDeltaStore(cfg.RedisURL, cfg.DeltaTTL, cfg.SnapshotTTL))

	// Internal health transitions feed the ops channel; an external
	// AMQP queue can contribute a second ops stream.
	opsChannel := services.NewChannelOpsFeed()
	opsMonitor := services.NewOpsMonitor(opsChannel)
	opsFeeds := []services.OpsFeed{opsChannel}

	if cfg.AMQPURL != "" {
		amqpFeed, err := services.NewAMQPOpsFeed(cfg.AMQPURL, cfg.OpsQueueName)
		if err != nil {
			log.Printf("AMQP ops feed unavailable: %v", err)
		} else {
			opsFeeds = append(opsFeeds, amqpFeed)
			defer amqpFeed.Close()
			log.Println("AMQP ops feed started")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.DemoMode() {
		log.Println("No upstream credential (or FORCE_DEMO set), running in demo mode")
	} else {
		fetcher := services.NewSnapshotFetcher(cfg)
		detector := services.NewDeltaDetector()

		var archiver services.Archiver
		if archive != nil {
			archiver = archive
		}

		poller := services.NewPoller(fetcher, detector, store, archiver, opsMonitor, cfg.PollInterval)
		go poller.Run(ctx)
		log.Printf("Live pipeline started (leagues: %v)", cfg.Leagues)
	}

	sim := services.NewSimulationGenerator()
	limiter := services.NewSlidingWindowLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)

	// Drop idle identities from the limiter table periodically.
	go func() {
		ticker := time.NewTicker(cfg.RateLimitWindow)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				limiter.Prune()
			}
		}
	}()

	server := web.NewServer(cfg, store, sim, opsFeeds, limiter, archive)
	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("Web server error: %v", err)
		}
	}()

	log.Printf("Web server started on port %s", cfg.Port)
	log.Println("Service is running. Press Ctrl+C to stop.")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down service...")

	cancel()
	server.Stop()
	opsChannel.Close()

	log.Println("Service stopped")
}
