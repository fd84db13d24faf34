package web

import (
	"context"
	"time"

	"github.com/google/uuid"

	"gamefeed-service/config"
	"gamefeed-service/logger"
	"gamefeed-service/models"
	"gamefeed-service/services"
)

// Dispatcher owns the per-connection dispatch loop shared by the SSE
// and websocket endpoints. Connections differ only in how surviving
// events are framed onto the wire.
type Dispatcher struct {
	cfg      *config.Config
	store    services.DeltaStore
	opsFeeds []services.OpsFeed
}

func NewDispatcher(cfg *config.Config, store services.DeltaStore, opsFeeds []services.OpsFeed) *Dispatcher {
	return &Dispatcher{
		cfg:      cfg,
		store:    store,
		opsFeeds: opsFeeds,
	}
}

// Run ticks for the life of the connection. Cancelling ctx stops the
// loop deterministically; a send failure stops it too. Failures inside
// a tick skip that tick's contribution, never the loop.
func (d *Dispatcher) Run(ctx context.Context, conn *ConnContext, send func(models.Event) error) {
	demo := conn.Demo || d.cfg.DemoMode()

	// Demo connections get their own generator so concurrent streams
	// don't advance each other's cadence counters.
	var sim *services.SimulationGenerator
	if demo {
		sim = services.NewSimulationGenerator()
	}

	subs := make([]*services.OpsSubscription, 0, len(d.opsFeeds))
	for _, feed := range d.opsFeeds {
		subs = append(subs, feed.Subscribe())
	}
	defer func() {
		for _, sub := range subs {
			sub.Close()
		}
	}()

	ticker := time.NewTicker(d.cfg.DispatchInterval)
	defer ticker.Stop()

	var tick int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick++
			for _, event := range d.collect(ctx, conn, sim, subs, tick) {
				if !FilterEvent(event, conn.Mode, conn.Tier, conn.Leagues) {
					continue
				}
				if err := send(event); err != nil {
					logger.Printf("[Dispatch] send failed, closing connection: %v", err)
					return
				}
			}
		}
	}
}

// collect gathers this tick's candidate events in connection order:
// heartbeat, then the mode's event source, then the ops feeds.
func (d *Dispatcher) collect(ctx context.Context, conn *ConnContext, sim *services.SimulationGenerator, subs []*services.OpsSubscription, tick int64) []models.Event {
	var events []models.Event

	if d.cfg.HeartbeatEvery > 0 && tick%int64(d.cfg.HeartbeatEvery) == 0 {
		events = append(events, d.heartbeat(ctx, sim, tick))
	}

	if sim != nil {
		events = append(events, sim.Tick()...)
	} else {
		fresh, err := d.store.ReadSince(ctx, conn.LastCursor)
		if err != nil {
			// Cursor stays put on a failed read; events written during
			// a transient store outage are picked up on the next tick.
			logger.Errorf("[Dispatch] delta read failed: %v", err)
		} else {
			events = append(events, fresh...)
			// An empty read still advances, so the same empty range is
			// never rescanned forever.
			conn.LastCursor = time.Now()
		}
	}

	for _, sub := range subs {
		events = append(events, sub.Poll()...)
	}

	return events
}

// heartbeat builds a WORLD_TICK carrying the current live-game count.
func (d *Dispatcher) heartbeat(ctx context.Context, sim *services.SimulationGenerator, tick int64) models.Event {
	liveGames := 0
	if sim != nil {
		liveGames = sim.LiveCount()
	} else if snapshot, err := d.store.LoadSnapshot(ctx); err == nil {
		liveGames = snapshot.LiveCount()
	}

	payload := models.WorldTickPayload{
		LiveGames: liveGames,
		Tick:      tick,
	}
	return models.Event{
		ID:        uuid.NewString(),
		Kind:      models.KindWorldTick,
		Timestamp: time.Now(),
		Source:    models.EventSourceOps,
		Priority:  models.PriorityFor(models.KindWorldTick),
		Payload:   models.MarshalPayload(payload),
	}
}
