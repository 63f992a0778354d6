// Package scheduler runs periodic maintenance: sweeping abandoned scratch
// directories and pruning old journal entries.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Config controls the maintenance cadence.
type Config struct {
	Interval         time.Duration
	ScratchMaxAge    time.Duration
	JournalRetention time.Duration
}

// Scheduler drives the maintenance tick loop.
type Scheduler struct {
	cfg     Config
	sweeper ScratchSweeper
	pruner  JournalPruner
	logger  *slog.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a Scheduler. pruner may be nil when the journal is disabled.
func New(cfg Config, sweeper ScratchSweeper, pruner JournalPruner, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cfg:     cfg,
		sweeper: sweeper,
		pruner:  pruner,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}
}

// Start launches the tick loop. It returns immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.Interval <= 0 {
		return fmt.Errorf("scheduler interval must be positive, got %s", s.cfg.Interval)
	}
	if s.sweeper == nil {
		return fmt.Errorf("scheduler requires a scratch sweeper")
	}

	s.logger.Info("scheduler started",
		"interval", s.cfg.Interval.String(),
		"scratch_max_age", s.cfg.ScratchMaxAge.String(),
		"journal_retention", s.cfg.JournalRetention.String(),
	)

	s.wg.Add(1)
	go s.tickLoop(ctx)
	return nil
}

// Stop signals the loop to exit and waits for it.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) tickLoop(ctx context.Context) {
	defer s.wg.Done()

	// Run once at startup so a restart clears leftovers straight away.
	s.Tick(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Tick(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Tick runs one maintenance pass. Failures are logged, never fatal.
func (s *Scheduler) Tick(ctx context.Context) {
	if s.cfg.ScratchMaxAge > 0 {
		report, err := s.sweeper.Cleanup(ctx, s.cfg.ScratchMaxAge)
		if err != nil {
			s.logger.Error("scratch sweep failed", "error", err)
		} else if report.DeletedDirs > 0 {
			s.logger.Info("scratch sweep removed directories", "deleted", report.DeletedDirs)
		} else {
			s.logger.Debug("scratch sweep found nothing to remove")
		}
	}

	if s.pruner == nil || s.cfg.JournalRetention <= 0 {
		return
	}
	pruned, err := s.pruner.Prune(ctx, s.cfg.JournalRetention)
	if err != nil {
		s.logger.Error("journal prune failed", "error", err)
		return
	}
	if pruned > 0 {
		s.logger.Info("journal pruned", "deleted", pruned)
	}
}
