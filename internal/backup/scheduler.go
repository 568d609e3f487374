package backup

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Schedule names an automatic backup cadence.
type Schedule string

const (
	ScheduleHourly Schedule = "hourly"
	ScheduleDaily  Schedule = "daily"  // every day at 02:00 local
	ScheduleWeekly Schedule = "weekly" // Sundays at 02:00 local
	ScheduleCustom Schedule = "custom" // fixed interval
)

func ParseSchedule(s string) (Schedule, error) {
	switch Schedule(s) {
	case ScheduleHourly, ScheduleDaily, ScheduleWeekly, ScheduleCustom:
		return Schedule(s), nil
	}
	return "", fmt.Errorf("unknown backup schedule %q", s)
}

// Scheduler takes backups on a cadence until its context ends.
type Scheduler struct {
	backups  *Manager
	schedule Schedule
	every    time.Duration
	logger   *zap.Logger
	timeNow  func() time.Time
}

// NewScheduler builds a scheduler around an existing backup manager.
// every is only consulted for ScheduleCustom; non-positive values fall
// back to one hour.
func NewScheduler(backups *Manager, schedule Schedule, every time.Duration, logger *zap.Logger) *Scheduler {
	if every <= 0 {
		every = time.Hour
	}
	return &Scheduler{
		backups:  backups,
		schedule: schedule,
		every:    every,
		logger:   logger,
		timeNow:  time.Now,
	}
}

// Run blocks, taking a backup at every scheduled point, until ctx is
// done. A failed backup is logged and the loop keeps going; the next
// slot gets another chance.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("backup scheduler started",
		zap.String("schedule", string(s.schedule)))

	timer := time.NewTimer(s.untilNext())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("backup scheduler stopped")
			return nil
		case <-timer.C:
			if _, err := s.backups.Create(); err != nil {
				s.logger.Error("scheduled backup failed", zap.Error(err))
			}
			timer.Reset(s.untilNext())
		}
	}
}

func (s *Scheduler) untilNext() time.Duration {
	now := s.timeNow()
	return s.nextRun(now).Sub(now)
}

// nextRun computes the first scheduled point strictly after the given
// time.
func (s *Scheduler) nextRun(after time.Time) time.Time {
	switch s.schedule {
	case ScheduleHourly:
		return after.Truncate(time.Hour).Add(time.Hour)
	case ScheduleDaily:
		next := time.Date(after.Year(), after.Month(), after.Day(), 2, 0, 0, 0, after.Location())
		if !next.After(after) {
			next = next.AddDate(0, 0, 1)
		}
		return next
	case ScheduleWeekly:
		next := time.Date(after.Year(), after.Month(), after.Day(), 2, 0, 0, 0, after.Location())
		for !next.After(after) || next.Weekday() != time.Sunday {
			next = next.AddDate(0, 0, 1)
		}
		return next
	default:
		return after.Add(s.every)
	}
}
