// Package job provides background job schedulers.
package job

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"docquery-service/internal/app/service"
	"docquery-service/pkg/locker"
)

const ingestLockKey = "ingest:scheduler:lock"

// Ingester runs one ingest of every feed.
// Implementations: service.IngestService
type Ingester interface {
	IngestAll(ctx context.Context) []service.IngestResult
}

// IngestConfig holds ingest scheduler configuration.
type IngestConfig struct {
	Interval  time.Duration
	Timeout   time.Duration
	OnStartup bool
}

// IngestScheduler runs periodic feed ingests. A distributed lock makes sure
// only one instance ingests per interval.
type IngestScheduler struct {
	ingester Ingester
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger
	locker   locker.DistributedLocker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewIngestScheduler creates a new IngestScheduler.
func NewIngestScheduler(
	ingester Ingester,
	cfg IngestConfig,
	logger *zap.Logger,
	locker locker.DistributedLocker,
) *IngestScheduler {
	return &IngestScheduler{
		ingester: ingester,
		interval: cfg.Interval,
		timeout:  cfg.Timeout,
		logger:   logger,
		locker:   locker,
	}
}

// Start begins the background ingest loop.
func (s *IngestScheduler) Start(runOnStartup bool) {
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.logger.Info("starting ingest scheduler",
		zap.Duration("interval", s.interval),
		zap.Bool("run_on_startup", runOnStartup),
	)

	s.wg.Add(1)
	go s.run(runOnStartup)
}

// Stop stops the loop and waits for a running ingest to finish.
func (s *IngestScheduler) Stop() {
	s.logger.Info("stopping ingest scheduler")
	s.cancel()
	s.wg.Wait()
	s.logger.Info("ingest scheduler stopped")
}

func (s *IngestScheduler) run(runOnStartup bool) {
	defer s.wg.Done()

	if runOnStartup {
		s.RunOnce(s.ctx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(s.ctx)
		}
	}
}

// RunOnce ingests once if the lock can be taken, and reports whether it ran.
//
// The lock TTL is the interval: after a clean run the lock is kept as a
// cooldown, after a failed run it is released so another instance can retry.
func (s *IngestScheduler) RunOnce(ctx context.Context) bool {
	acquired, err := s.locker.Acquire(ctx, ingestLockKey, s.interval)
	if err != nil {
		s.logger.Error("failed to acquire distributed lock", zap.Error(err))
		return false
	}
	if !acquired {
		s.logger.Debug("another instance is ingesting, skipping execution")
		return false
	}

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	results := s.ingester.IngestAll(runCtx)

	totalIngested := 0
	totalErrors := 0
	for _, r := range results {
		if r.Error != nil {
			totalErrors++
			s.logger.Warn("feed ingest failed",
				zap.String("feed", r.Feed),
				zap.Error(r.Error),
			)
		} else {
			totalIngested += r.Count
		}
	}

	if totalErrors > 0 {
		if err := s.locker.Release(ctx, ingestLockKey); err != nil {
			s.logger.Error("failed to release lock after ingest error", zap.Error(err))
		}
		s.logger.Info("ingest completed with errors, lock released for retry",
			zap.Int("total_ingested", totalIngested),
			zap.Int("feeds_failed", totalErrors),
		)
		return true
	}

	s.logger.Info("ingest completed, lock held for cooldown",
		zap.Int("total_ingested", totalIngested),
		zap.Duration("cooldown", s.interval),
	)
	return true
}
