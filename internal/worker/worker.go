package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Climatica/internal/mailbox"
)

// Module — то, что выполняет Worker Task.
//
// Реализуется *module.Module.
type Module interface {
	mailbox.Module
	Run(ctx context.Context)
}

// Task выполняет один модуль в своей горутине.
//
// Task:
//   - Отправляет Register перед запуском модуля
//   - Выполняет модуль до Finished или Aborted
//   - Отправляет Finished; после этого модуль принадлежит Supervisor-у
type Task struct {
	module  Module
	mailbox *mailbox.Mailbox
	logger  *slog.Logger
}

// Config — конфигурация Task.
type Config struct {
	Module  Module
	Mailbox *mailbox.Mailbox

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Task.
func New(cfg Config) *Task {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Task{
		module:  cfg.Module,
		mailbox: cfg.Mailbox,
		logger:  logger.With("module", cfg.Module.Name()),
	}
}

// Run выполняет модуль между сообщениями Register и Finished.
//
// Ошибка возвращается только при нарушении протокола Mailbox:
// без Register модуль не запускается.
func (t *Task) Run(ctx context.Context) error {
	if err := t.mailbox.Send(mailbox.Register{Module: t.module}); err != nil {
		return fmt.Errorf("%w: register %s: %w", ErrProtocol, t.module.Name(), err)
	}

	start := time.Now()
	t.execute(ctx)
	t.logger.Debug("module task finished", "elapsed", time.Since(start).Round(time.Millisecond))

	if err := t.mailbox.Send(mailbox.Finished{Module: t.module}); err != nil {
		return fmt.Errorf("%w: finish %s: %w", ErrProtocol, t.module.Name(), err)
	}
	return nil
}

// execute не даёт панике модуля оставить Supervisor без Finished.
func (t *Task) execute(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("module panicked", "panic", r)
		}
	}()
	t.module.Run(ctx)
}
