package services

import (
	"context"
	"time"

	"gamefeed-service/logger"
	"gamefeed-service/models"
)

// Archiver persists events durably for the history endpoint. Nil means
// archiving is disabled.
type Archiver interface {
	SaveEvents(events []models.Event) error
	SaveCycle(snapshot *models.Snapshot, eventCount int) error
}

// Poller drives the live pipeline: fetch the upstream snapshot, diff
// it against the stored baseline, append the resulting batch, replace
// the baseline. One poller per process; the dispatchers only read.
type Poller struct {
	fetcher  *SnapshotFetcher
	detector *DeltaDetector
	store    DeltaStore
	archive  Archiver
	monitor  *OpsMonitor
	interval time.Duration

	// previous carries the baseline across cycles when the store has
	// expired it (or no store is configured).
	previous *models.Snapshot
}

func NewPoller(fetcher *SnapshotFetcher, detector *DeltaDetector, store DeltaStore, archive Archiver, monitor *OpsMonitor, interval time.Duration) *Poller {
	return &Poller{
		fetcher:  fetcher,
		detector: detector,
		store:    store,
		archive:  archive,
		monitor:  monitor,
		interval: interval,
	}
}

// Run polls until ctx is cancelled. The first cycle runs immediately.
func (p *Poller) Run(ctx context.Context) {
	logger.Printf("[Poller] starting, interval %v", p.interval)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Println("[Poller] stopped")
			return
		case <-ticker.C:
			p.cycle(ctx)
		}
	}
}

// cycle runs one fetch/detect/persist pass. Failures inside a cycle
// are reported to the ops monitor and skipped, never fatal.
func (p *Poller) cycle(ctx context.Context) {
	current := p.fetcher.Fetch(ctx)
	if len(current.Games) == 0 && p.previous != nil && len(p.previous.Games) > 0 {
		// Total upstream outage: diffing an empty snapshot would
		// synthesize finals for every live game. Skip the cycle.
		p.monitor.ReportFailure("upstream", "fetch returned no games")
		return
	}
	p.monitor.ReportHealthy("upstream")

	previous := p.previous
	if previous == nil {
		stored, err := p.store.LoadSnapshot(ctx)
		if err != nil {
			p.monitor.ReportFailure("delta-store", err.Error())
		} else {
			p.monitor.ReportHealthy("delta-store")
			previous = stored
		}
	}

	events, toPersist := p.detector.Detect(previous, current)
	if len(events) > 0 {
		logger.Printf("[Poller] detected %d event(s)", len(events))
		if err := p.store.AppendBatch(ctx, events); err != nil {
			p.monitor.ReportFailure("delta-store", err.Error())
		} else {
			p.monitor.ReportHealthy("delta-store")
		}

		if p.archive != nil {
			if err := p.archive.SaveEvents(events); err != nil {
				p.monitor.ReportFailure("archive", err.Error())
			} else {
				p.monitor.ReportHealthy("archive")
			}
		}
	}

	if err := p.store.SaveSnapshot(ctx, toPersist); err != nil {
		p.monitor.ReportFailure("delta-store", err.Error())
	}
	p.previous = toPersist

	if p.archive != nil {
		if err := p.archive.SaveCycle(toPersist, len(events)); err != nil {
			p.monitor.ReportFailure("archive", err.Error())
		}
	}
}
