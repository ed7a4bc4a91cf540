package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"StockNewsScanner/internal/ports"
)

// CronScheduler drives the pipeline loop at a fixed interval.
type CronScheduler struct {
	interval time.Duration
	location *time.Location
	runner   *cron.Cron
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds a scheduler ticking every interval in the
// given location.
func NewCronScheduler(interval time.Duration, location *time.Location) *CronScheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if location == nil {
		location = time.Local
	}
	return &CronScheduler{interval: interval, location: location}
}

// Start runs the job immediately, then on every interval tick.
func (c *CronScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}
	if c.runner != nil {
		return nil
	}

	runner := cron.New(cron.WithLocation(c.location))
	spec := fmt.Sprintf("@every %s", c.interval)
	if _, err := runner.AddFunc(spec, func() {
		job(time.Now().In(c.location))
	}); err != nil {
		return fmt.Errorf("register job: %w", err)
	}

	runner.Start()
	c.runner = runner

	job(time.Now().In(c.location))
	return nil
}

// Stop halts the cron runner and waits for in-flight jobs.
func (c *CronScheduler) Stop(ctx context.Context) error {
	if c.runner == nil {
		return nil
	}

	done := c.runner.Stop().Done()
	c.runner = nil

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
