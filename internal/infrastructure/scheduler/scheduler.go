// Package scheduler runs the engine's periodic jobs. Currently one job:
// the daily quest rotation sweep that rotates stale quest sets shortly
// after the UTC midnight boundary, complementing the lazy on-access
// rotation with the same underlying routine.
package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/nexlearn/nexlearn-economy/pkg/logger"
)

// sweepBatchSize bounds how many stale users one sweep pass touches.
const sweepBatchSize = 500

// QuestRotator is the slice of the quest tracker the sweep needs.
type QuestRotator interface {
	RotateStale(ctx context.Context, limit int) (int, error)
}

// Scheduler wraps gocron with the engine's job definitions.
type Scheduler struct {
	sched gocron.Scheduler
	log   *logger.Logger
}

// New creates a Scheduler with the quest rotation sweep registered.
// The sweep runs at 00:05 UTC, giving the day boundary a few minutes of
// slack, and hourly as a catch-up for missed runs.
func New(rotator QuestRotator, log *logger.Logger) (*Scheduler, error) {
	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		sched: sched,
		log:   log.With(logger.Component("scheduler")),
	}

	sweep := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		rotated, err := rotator.RotateStale(ctx, sweepBatchSize)
		if err != nil {
			s.log.Error("quest rotation sweep failed", logger.Err(err))
			return
		}
		if rotated > 0 {
			s.log.Info("quest rotation sweep done", logger.Int("rotated", rotated))
		}
	}

	if _, err := sched.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(0, 5, 0))),
		gocron.NewTask(sweep),
	); err != nil {
		return nil, err
	}
	if _, err := sched.NewJob(
		gocron.DurationJob(time.Hour),
		gocron.NewTask(sweep),
	); err != nil {
		return nil, err
	}

	return s, nil
}

// Start begins running jobs on their schedules.
func (s *Scheduler) Start() {
	s.sched.Start()
	s.log.Info("scheduler started")
}

// Shutdown stops the scheduler and waits for running jobs.
func (s *Scheduler) Shutdown() error {
	return s.sched.Shutdown()
}
