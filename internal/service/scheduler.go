package service

import (
	"context"
	"time"

	"powerbi-glean-connector/internal/config"
	"powerbi-glean-connector/internal/logger"
)

// Scheduler triggers sync runs on a fixed interval
type Scheduler struct {
	interval   time.Duration
	runOnStart bool
	sync       SyncService
	log        logger.Logger
}

// NewScheduler creates a scheduler from the sync configuration
func NewScheduler(cfg *config.SyncConfig, syncService SyncService, log logger.Logger) *Scheduler {
	return &Scheduler{
		interval:   cfg.Interval,
		runOnStart: cfg.RunOnStart,
		sync:       syncService,
		log:        log,
	}
}

// Start runs the scheduling loop until ctx is canceled. Ticks that
// land while a run is active are skipped, not queued, so a slow run
// never builds a backlog.
func (s *Scheduler) Start(ctx context.Context) {
	s.log.Info("sync scheduler started, interval %s", s.interval)

	if s.runOnStart {
		s.sync.RunScheduled(ctx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("sync scheduler stopped")
			return
		case <-ticker.C:
			s.sync.RunScheduled(ctx)
		}
	}
}
