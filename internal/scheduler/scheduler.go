package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/pulsemetrics/pulseboard/internal/engine"
	"github.com/pulsemetrics/pulseboard/pkg/logger"
)

const (
	defaultEvaluationSpec = "@every 5m"
	defaultHourlySpec     = "@hourly"
	defaultDailySpec      = "0 8 * * *"
	defaultWeeklySpec     = "0 8 * * MON"
)

// Source supplies the metric samples accumulated for a user since the last
// evaluation tick. Returning an empty batch is fine; rules simply stay idle.
type Source interface {
	Fetch(ctx context.Context, userID string) ([]engine.MetricSample, error)
}

// SourceFunc adapts a plain function to the Source interface.
type SourceFunc func(ctx context.Context, userID string) ([]engine.MetricSample, error)

// Fetch invokes the wrapped function.
func (f SourceFunc) Fetch(ctx context.Context, userID string) ([]engine.MetricSample, error) {
	return f(ctx, userID)
}

// Scheduler owns the periodic work the engine itself never does: pulling
// sample batches through rule evaluation and flushing digest queues on
// their configured cadence.
type Scheduler struct {
	manager *engine.Manager
	source  Source
	cron    *cron.Cron
	now     func() time.Time
	log     *zap.Logger

	evaluationSchedule string
	hourlySchedule     string
	dailySchedule      string
	weeklySchedule     string
}

// Option customises the Scheduler.
type Option func(*Scheduler)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithNow overrides the clock used in log fields and flush decisions.
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithEvaluationSchedule overrides the cron specification for rule evaluation.
func WithEvaluationSchedule(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.evaluationSchedule = spec
		}
	}
}

// WithDigestSchedules overrides the cron specifications for the hourly,
// daily and weekly digest flushes. Empty strings keep the defaults.
func WithDigestSchedules(hourly, daily, weekly string) Option {
	return func(s *Scheduler) {
		if hourly != "" {
			s.hourlySchedule = hourly
		}
		if daily != "" {
			s.dailySchedule = daily
		}
		if weekly != "" {
			s.weeklySchedule = weekly
		}
	}
}

// New constructs a Scheduler. A nil source disables the evaluation job;
// digest flushing still runs.
func New(manager *engine.Manager, source Source, opts ...Option) *Scheduler {
	s := &Scheduler{
		manager:            manager,
		source:             source,
		now:                time.Now,
		log:                logger.WithModule("scheduler"),
		evaluationSchedule: defaultEvaluationSpec,
		hourlySchedule:     defaultHourlySpec,
		dailySchedule:      defaultDailySpec,
		weeklySchedule:     defaultWeeklySpec,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.cron == nil {
		s.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return s
}

// Start registers the jobs and launches the scheduler.
func (s *Scheduler) Start() error {
	if s.source != nil {
		if _, err := s.cron.AddFunc(s.evaluationSchedule, func() {
			if err := s.RunEvaluationOnce(context.Background()); err != nil {
				s.log.Warn("evaluation tick failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	jobs := []struct {
		spec      string
		frequency engine.Frequency
	}{
		{s.hourlySchedule, engine.FrequencyHourly},
		{s.dailySchedule, engine.FrequencyDaily},
		{s.weeklySchedule, engine.FrequencyWeekly},
	}
	for _, job := range jobs {
		frequency := job.frequency
		if _, err := s.cron.AddFunc(job.spec, func() {
			s.FlushDigests(context.Background(), frequency)
		}); err != nil {
			return err
		}
	}

	s.cron.Start()
	return nil
}

// Stop halts the scheduler, waiting for running jobs to complete.
func (s *Scheduler) Stop() context.Context {
	if s.cron == nil {
		return context.Background()
	}
	return s.cron.Stop()
}

// RunEvaluationOnce pulls one sample batch per user through rule evaluation.
func (s *Scheduler) RunEvaluationOnce(ctx context.Context) error {
	if s.source == nil {
		return nil
	}

	var errs error
	s.manager.Each(func(userID string, svc *engine.Service) {
		samples, err := s.source.Fetch(ctx, userID)
		if err != nil {
			errs = multierr.Append(errs, err)
			return
		}
		if len(samples) == 0 {
			return
		}
		fired := svc.Ingest(ctx, samples)
		if len(fired) > 0 {
			s.log.Info("rules fired",
				zap.String("user_id", userID),
				zap.Int("count", len(fired)),
			)
		}
	})
	return errs
}

// FlushDigests flushes every feed whose frequency matches the tick. Feeds
// with deferred quiet-hours entries flush regardless of frequency, since
// realtime users still accumulate entries overnight.
func (s *Scheduler) FlushDigests(ctx context.Context, frequency engine.Frequency) {
	s.manager.Each(func(userID string, svc *engine.Service) {
		prefs := svc.Preferences()
		if prefs.Frequency != frequency && !(frequency == engine.FrequencyHourly && prefs.Frequency == engine.FrequencyRealtime) {
			return
		}
		if svc.PendingDigests() == 0 {
			return
		}
		flushed := svc.FlushDigests(ctx)
		if flushed > 0 {
			s.log.Info("digest delivered",
				zap.String("user_id", userID),
				zap.Int("count", flushed),
			)
		}
	})
}
