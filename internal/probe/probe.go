// Package probe periodically exercises the feed pipeline against upstream
// and logs the outcome. It keeps no calendar data between runs.
package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"schoolcal/internal/feed"
	appLog "schoolcal/internal/log"
)

// Builder is the slice of feed.Service the probe needs.
type Builder interface {
	Build(ctx context.Context, start, end string) (feed.Result, error)
}

// Scheduler runs a probe on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	builder Builder
	timeout time.Duration
}

// New parses schedule (standard 5-field cron syntax) and prepares a scheduler.
// timeout bounds a single probe run; zero means one minute.
func New(schedule string, b Builder, timeout time.Duration) (*Scheduler, error) {
	if timeout <= 0 {
		timeout = time.Minute
	}
	s := &Scheduler{
		cron:    cron.New(),
		builder: b,
		timeout: timeout,
	}
	if _, err := s.cron.AddFunc(schedule, s.runOnce); err != nil {
		return nil, fmt.Errorf("probe: invalid schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start runs the scheduler until ctx is canceled, then waits for any
// in-flight probe to finish.
func (s *Scheduler) Start(ctx context.Context) {
	s.cron.Start()
	appLog.Info("probe scheduler started", "entries", len(s.cron.Entries()))
	go func() {
		<-ctx.Done()
		<-s.cron.Stop().Done()
		appLog.Info("probe scheduler stopped")
	}()
}

// Run executes one probe and returns its result.
func (s *Scheduler) Run(ctx context.Context) (feed.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	res, err := s.builder.Build(ctx, "", "")
	if err != nil {
		appLog.Error("probe failed", err, "elapsed", time.Since(started).String())
		return res, err
	}
	appLog.Info("probe ok",
		"event_count", res.EventCount,
		"dropped_count", res.Dropped,
		"bytes", len(res.Document),
		"elapsed", time.Since(started).String(),
	)
	return res, nil
}

func (s *Scheduler) runOnce() {
	_, _ = s.Run(context.Background())
}
