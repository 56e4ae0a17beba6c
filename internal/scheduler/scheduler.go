// Package scheduler runs periodic maintenance jobs on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	analyticsdomain "github.com/smallbiznis/finsight/internal/analytics/domain"
	"github.com/smallbiznis/finsight/internal/clock"
	"github.com/smallbiznis/finsight/internal/config"
	"github.com/smallbiznis/finsight/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const JobExpireStaleRuns = "expire_stale_runs"

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log       *zap.Logger
	Clock     clock.Clock
	Config    config.Config
	Analytics analyticsdomain.Service
	Metrics   *metrics.Metrics `optional:"true"`
}

type job struct {
	name string
	run  func(ctx context.Context) (int, error)
}

type Scheduler struct {
	log     *zap.Logger
	clock   clock.Clock
	cfg     config.SchedulerConfig
	metrics *metrics.Metrics
	cron    *cron.Cron
	jobs    []job
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.Analytics == nil {
		return nil, ErrInvalidConfig
	}
	cfg := withDefaults(p.Config.Scheduler)
	if _, err := cron.ParseStandard(cfg.Spec); err != nil {
		return nil, fmt.Errorf("%w: spec %q: %v", ErrInvalidConfig, cfg.Spec, err)
	}

	s := &Scheduler{
		log:     p.Log.Named("scheduler"),
		clock:   p.Clock,
		cfg:     cfg,
		metrics: p.Metrics,
	}
	s.jobs = []job{
		{name: JobExpireStaleRuns, run: func(ctx context.Context) (int, error) {
			return p.Analytics.ExpireStale(ctx, s.clock.Now().Add(-cfg.StaleRunAfter), cfg.StaleRunBatch)
		}},
	}
	return s, nil
}

func withDefaults(c config.SchedulerConfig) config.SchedulerConfig {
	if c.Spec == "" {
		c.Spec = "@every 1m"
	}
	if c.StaleRunAfter <= 0 {
		c.StaleRunAfter = 30 * time.Minute
	}
	if c.StaleRunBatch <= 0 {
		c.StaleRunBatch = 100
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = 30 * time.Second
	}
	return c
}

// RunOnce runs every job once and joins their errors.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	var err error
	for _, j := range s.jobs {
		err = errors.Join(err, s.runJob(ctx, j))
	}
	return err
}

func (s *Scheduler) runJob(parent context.Context, j job) error {
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	start := time.Now()
	processed, err := j.run(ctx)
	log := s.log.With(
		zap.String("job", j.name),
		zap.Int("processed", processed),
		zap.Duration("duration", time.Since(start)),
	)

	if err != nil {
		s.metrics.RecordJobRun(parent, j.name, "failure")
		// a timeout is soft; the next tick picks up where this one stopped
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn("job timed out", zap.Duration("timeout", s.cfg.JobTimeout))
			return nil
		}
		log.Error("job failed", zap.Error(err))
		return fmt.Errorf("%s: %w", j.name, err)
	}

	s.metrics.RecordJobRun(parent, j.name, "success")
	log.Debug("job finished")
	return nil
}

// Start schedules RunOnce on the configured spec until Stop.
func (s *Scheduler) Start() error {
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := c.AddFunc(s.cfg.Spec, func() {
		if err := s.RunOnce(context.Background()); err != nil {
			s.log.Warn("scheduled run finished with errors", zap.Error(err))
		}
	}); err != nil {
		return err
	}
	s.cron = c
	c.Start()
	s.log.Info("scheduler started", zap.String("spec", s.cfg.Spec))
	return nil
}

// Stop waits for a running job to return or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
