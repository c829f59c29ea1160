package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"PostForge/internal/ports"
)

// CronScheduler runs jobs on standard five-field cron expressions.
type CronScheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	logger  *zap.Logger
	started bool
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler evaluates schedules in loc. Overlapping firings of the
// same job are skipped rather than queued.
func NewCronScheduler(loc *time.Location, logger *zap.Logger) *CronScheduler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cronLogger{logger}), cron.SkipIfStillRunning(cronLogger{logger})),
	)
	return &CronScheduler{cron: c, logger: logger}
}

// Schedule registers job under spec.
func (c *CronScheduler) Schedule(spec string, job func()) error {
	if job == nil {
		return fmt.Errorf("nil job for %q", spec)
	}
	if _, err := c.cron.AddFunc(spec, job); err != nil {
		return fmt.Errorf("add cron job %q: %w", spec, err)
	}
	return nil
}

// Start begins firing jobs in the background.
func (c *CronScheduler) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}
	c.started = true
	c.cron.Start()
	c.logger.Info("cron started", zap.Int("jobs", len(c.cron.Entries())))
	return nil
}

// Stop halts scheduling and waits for running jobs or ctx, whichever ends first.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = false
	c.mu.Unlock()

	done := c.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, zap.Any("details", keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, zap.Error(err), zap.Any("details", keysAndValues))
}
