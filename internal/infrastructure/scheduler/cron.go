package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"ArticleRewriter/internal/ports"
)

// CronScheduler triggers jobs on a standard 5-field cron expression.
type CronScheduler struct {
	spec     string
	schedule cron.Schedule
	loc      *time.Location
	logger   *zap.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

var _ ports.Scheduler = (*CronScheduler)(nil)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// NewCronScheduler validates spec up front; loc defaults to UTC.
func NewCronScheduler(spec string, loc *time.Location, logger *zap.Logger) (*CronScheduler, error) {
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parse cron expression %q: %w", spec, err)
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CronScheduler{
		spec:     spec,
		schedule: schedule,
		loc:      loc,
		logger:   logger.With(zap.String("component", "cron")),
	}, nil
}

// Next reports the first activation after t.
func (c *CronScheduler) Next(t time.Time) time.Time {
	return c.schedule.Next(t.In(c.loc))
}

// Start registers job and begins ticking. Overlapping activations are skipped.
// The scheduler stops by itself when ctx is cancelled.
func (c *CronScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron != nil {
		return nil
	}

	log := cronLogger{c.logger.Sugar()}
	cr := cron.New(
		cron.WithLocation(c.loc),
		cron.WithParser(parser),
		cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)),
	)
	cr.Schedule(c.schedule, cron.FuncJob(func() { job(time.Now().In(c.loc)) }))
	cr.Start()
	c.cron = cr
	c.logger.Info("cron started", zap.String("spec", c.spec), zap.Time("next", c.Next(time.Now())))

	go func() {
		<-ctx.Done()
		_ = c.Stop(context.Background())
	}()
	return nil
}

// Stop halts the scheduler and waits for a running job until ctx expires.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	cr := c.cron
	c.cron = nil
	c.mu.Unlock()
	if cr == nil {
		return nil
	}

	select {
	case <-cr.Stop().Done():
		c.logger.Info("cron stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
