// Package schedsvc runs the background jobs of the API.
package schedsvc

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/ElabeidiTech/LearnHub-sub000/core"
)

// AttemptExpirer closes the quiz attempts left in progress past their time limit.
type AttemptExpirer interface {
	ExpireStale(ctx context.Context) (int, error)
}

type Scheduler struct {
	cron   *cron.Cron
	logger core.Logger
}

func New(logger core.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger))),
		logger: logger,
	}
}

// ScheduleAttemptSweep runs expirer on schedule (cron spec or "@every 1m"); every run is bounded by timeout.
func (s *Scheduler) ScheduleAttemptSweep(schedule string, timeout time.Duration, expirer AttemptExpirer) error {
	_, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		_, _ = SweepAttempts(ctx, expirer, s.logger)
	})
	return errors.Wrapf(err, "scheduling attempt sweep %q", schedule)
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop stops scheduling new runs and waits for the running ones until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("scheduler: jobs still running at shutdown")
	}
}

// SweepAttempts runs a single sweep and logs its outcome.
func SweepAttempts(ctx context.Context, expirer AttemptExpirer, logger core.Logger) (int, error) {
	n, err := expirer.ExpireStale(ctx)
	if err != nil {
		logger.Error("expiring stale attempts", err)
		return n, err
	}
	if n > 0 {
		logger.Info(fmt.Sprintf("expired %d stale quiz attempts", n))
	}
	return n, nil
}
