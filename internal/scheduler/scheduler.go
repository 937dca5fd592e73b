package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// RunFunc — одно выполнение подсистемы.
type RunFunc func(ctx context.Context) error

// Scheduler — планировщик выполнений подсистемы.
type Scheduler struct {
	expr     string
	schedule cron.Schedule
	run      RunFunc
	logger   *slog.Logger
	now      func() time.Time

	ticks  int
	failed int
}

// Config — конфигурация Scheduler.
type Config struct {
	// Schedule — cron-выражение (5 полей или @every/@hourly/...).
	Schedule string

	Run    RunFunc
	Logger *slog.Logger

	// Now подменяет часы в тестах.
	Now func() time.Time
}

// New создаёт новый Scheduler.
func New(cfg Config) (*Scheduler, error) {
	schedule, err := ParseCron(cfg.Schedule)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Scheduler{
		expr:     cfg.Schedule,
		schedule: schedule,
		run:      cfg.Run,
		logger:   logger,
		now:      now,
	}, nil
}

// Loop ждёт очередного времени по расписанию и выполняет Tick, пока не отменён ctx.
func (s *Scheduler) Loop(ctx context.Context) {
	s.logger.Info("scheduler started", "schedule", s.expr)

	for {
		next := s.schedule.Next(s.now())
		s.logger.Debug("next run scheduled", "at", next.Format(time.RFC3339))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("scheduler stopped", "ticks", s.ticks, "failed", s.failed)
			return
		case <-timer.C:
			s.Tick(ctx)
		}
	}
}

// Tick выполняет одно выполнение подсистемы.
//
// Ошибка выполнения не останавливает планировщик.
func (s *Scheduler) Tick(ctx context.Context) error {
	s.ticks++
	start := s.now()

	err := s.run(ctx)
	if err != nil {
		s.failed++
		s.logger.Error("scheduled run failed", "tick", s.ticks, "error", err)
		return err
	}

	s.logger.Info("scheduler tick completed",
		"tick", s.ticks,
		"elapsed", s.now().Sub(start).Round(time.Millisecond),
	)
	return nil
}

// Stats возвращает количество тиков и неудачных выполнений.
func (s *Scheduler) Stats() (ticks, failed int) {
	return s.ticks, s.failed
}
