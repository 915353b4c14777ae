// Package scheduler drives the recurring jobs: the daily ROI cycle, the
// compounding counter pass, and leadership pool month closing. The scheduler
// holds no job state; every job derives "already done" from persisted fields,
// so overlapping or repeated fires are harmless.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/amankumar-in/phantom-stake-sub001/internal/compounding"
	"github.com/amankumar-in/phantom-stake-sub001/internal/roi"
	"github.com/amankumar-in/phantom-stake-sub001/pkg/config"
	"github.com/amankumar-in/phantom-stake-sub001/pkg/logger"
)

// DailyProcessor runs the full daily cycle.
type DailyProcessor interface {
	Run(ctx context.Context) (*roi.RunSummary, error)
}

// CounterUpdater runs the streak counter pass on its own faster cadence.
type CounterUpdater interface {
	UpdateCounters(ctx context.Context) (*compounding.Summary, error)
}

// PoolCloser flips elapsed pool months to ready.
type PoolCloser interface {
	CloseElapsedMonths(ctx context.Context, now time.Time) (int64, error)
}

// Scheduler owns the background tickers. Start launches one goroutine per
// job; Stop waits for them to drain.
type Scheduler struct {
	processor DailyProcessor
	counters  CounterUpdater
	pools     PoolCloser
	cfg       config.SchedulerConfig
	logger    logger.Logger

	stop chan struct{}
	wg   sync.WaitGroup
}

func NewScheduler(
	processor DailyProcessor,
	counters CounterUpdater,
	pools PoolCloser,
	cfg config.SchedulerConfig,
	log logger.Logger,
) *Scheduler {
	return &Scheduler{
		processor: processor,
		counters:  counters,
		pools:     pools,
		cfg:       cfg,
		logger:    log,
		stop:      make(chan struct{}),
	}
}

// Start launches the job tickers. Each job also fires once immediately:
// a restarted process must catch up on anything the previous one missed,
// and the per-day guards make the extra fire a no-op otherwise.
func (s *Scheduler) Start() {
	if !s.cfg.Enabled {
		s.logger.Info("Scheduler disabled", nil)
		return
	}

	s.launch("daily_roi", s.cfg.DailyROIInterval, s.runDailyCycle)
	s.launch("compounding_counters", s.cfg.CounterInterval, s.runCounterPass)
	s.launch("pool_close", s.cfg.PoolInterval, s.runPoolClose)

	s.logger.Info("Scheduler started", map[string]interface{}{
		"daily_roi_interval": s.cfg.DailyROIInterval.String(),
		"counter_interval":   s.cfg.CounterInterval.String(),
		"pool_interval":      s.cfg.PoolInterval.String(),
	})
}

// Stop shuts down all tickers and blocks until in-flight jobs return.
func (s *Scheduler) Stop() {
	close(s.stop)
	s.wg.Wait()
	s.logger.Info("Scheduler stopped", nil)
}

func (s *Scheduler) launch(name string, interval time.Duration, job func(context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		job(context.Background())

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				job(context.Background())
			case <-s.stop:
				return
			}
		}
	}()
	s.logger.Info("Scheduler job launched", map[string]interface{}{
		"job":      name,
		"interval": interval.String(),
	})
}

func (s *Scheduler) runDailyCycle(ctx context.Context) {
	if _, err := s.processor.Run(ctx); err != nil {
		s.logger.Error("Scheduled daily cycle failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (s *Scheduler) runCounterPass(ctx context.Context) {
	if _, err := s.counters.UpdateCounters(ctx); err != nil {
		s.logger.Error("Scheduled counter pass failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (s *Scheduler) runPoolClose(ctx context.Context) {
	if _, err := s.pools.CloseElapsedMonths(ctx, time.Now()); err != nil {
		s.logger.Error("Scheduled pool close failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
