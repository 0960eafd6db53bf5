package cmd

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/piquet-h/worldengine/internal/descriptionlayer"
	"github.com/piquet-h/worldengine/internal/locationclock"
)

// worldTickInterval is the real-time cadence at which the world clock
// advances; each tick advances the clock by the same duration that
// elapsed, so in-world time tracks wall time 1:1. The HTTP surface has
// no route that advances the world clock.
const worldTickInterval = 1 * time.Second

// integrityJobInterval is the cadence of the description layer
// integrity sweep (§4.6). It runs far less often than the world tick
// since it walks every stored layer.
const integrityJobInterval = 5 * time.Minute

// scheduler runs the world engine's named periodic tasks (§9: "named
// periodic tasks registered on a scheduler abstraction, each bounded
// batch size, start/complete events"). No cron/scheduler dependency is
// wired here: this tree's only periodic work is a fixed-cadence clock
// tick and a batch integrity sweep, both of which stdlib time.Ticker
// expresses directly without pulling in an external scheduler.
type scheduler struct {
	app *app

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func newScheduler(a *app) *scheduler {
	return &scheduler{app: a, stopCh: make(chan struct{})}
}

func (s *scheduler) start() {
	s.wg.Add(2)
	go s.runWorldTick()
	go s.runIntegrityJob()
}

func (s *scheduler) stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *scheduler) runWorldTick() {
	defer s.wg.Done()

	ctx := context.Background()
	if err := s.ensureWorldClockInitialized(ctx); err != nil {
		s.app.logger.Error("failed to initialize world clock", zap.Error(err))
		return
	}

	ticker := time.NewTicker(worldTickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.advanceWorldClock(ctx)
		}
	}
}

func (s *scheduler) ensureWorldClockInitialized(ctx context.Context) error {
	clock, err := s.app.worldClock.Get(ctx)
	if err != nil {
		return err
	}
	if clock == nil {
		_, err = s.app.worldClock.Initialize(ctx, 0)
		return err
	}
	return nil
}

func (s *scheduler) advanceWorldClock(ctx context.Context) {
	clock, err := s.app.worldClock.Get(ctx)
	if err != nil {
		s.app.logger.Error("world tick: failed to read clock", zap.Error(err))
		return
	}
	if clock == nil {
		return
	}

	durationMs := worldTickInterval.Milliseconds()
	updated, err := s.app.worldClock.Advance(ctx, durationMs, "scheduler.tick", clock.ETag)
	if err != nil {
		s.app.logger.Warn("world tick: advance skipped", zap.Error(err))
		return
	}

	result, err := locationclock.BatchUpdateAll(ctx, s.app.locationClock, updated.CurrentTick)
	if err != nil {
		s.app.logger.Error("world tick: location clock batch sync failed", zap.Error(err))
		return
	}

	s.app.logger.Debug("world tick advanced",
		zap.Int64("tick", updated.CurrentTick),
		zap.Int("synced", result.Synced),
		zap.Int("failed", result.Failed),
	)
}

func (s *scheduler) runIntegrityJob() {
	defer s.wg.Done()

	ticker := time.NewTicker(integrityJobInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.runIntegritySweep()
		}
	}
}

func (s *scheduler) runIntegritySweep() {
	ctx := context.Background()
	cfg := s.app.cfg.Integrity

	s.app.logger.Info("description layer integrity job starting",
		zap.Int("batchSize", cfg.BatchSize),
		zap.Bool("recomputeAll", cfg.RecomputeAll),
	)

	mismatches, computed, err := descriptionlayer.RunIntegrityJob(ctx, s.app.descriptionLayer, cfg.BatchSize, cfg.RecomputeAll)
	if err != nil {
		s.app.logger.Error("description layer integrity job failed", zap.Error(err))
		return
	}

	s.app.logger.Info("description layer integrity job complete",
		zap.Int("computed", computed),
		zap.Int("mismatches", len(mismatches)),
	)
}
