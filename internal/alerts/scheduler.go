package alerts

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const dailyAlertName = "Resumen diario de préstamos"

// Scheduler fires the daily summary once per calendar day at the configured
// local hour. The date-unique index on alerts makes a duplicate fire (for
// example after a restart) a no-op.
type Scheduler struct {
	svc    *Service
	hour   int
	clock  Clock
	logger *zap.Logger
}

func NewScheduler(svc *Service, hour int, logger *zap.Logger) *Scheduler {
	return &Scheduler{svc: svc, hour: hour, clock: realClock{}, logger: logger}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		now := s.clock.Now()
		next := nextFire(now, s.hour)
		timer := time.NewTimer(next.Sub(now))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		fireCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		day := s.clock.Now()
		if _, err := s.svc.CreateDaily(fireCtx, day, dailyAlertName); err != nil {
			s.logger.Error("daily alert failed", zap.Error(err))
		}
		cancel()
	}
}

// nextFire returns the next occurrence of hour:00 strictly after now.
func nextFire(now time.Time, hour int) time.Time {
	t := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !t.After(now) {
		t = t.AddDate(0, 0, 1)
	}
	return t
}
