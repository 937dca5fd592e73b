// Climatica Gatherer — подсистема сбора данных.
//
// Gatherer:
//   - Загружает конфигурации collector-модулей из MODULES_DIR
//   - Выполняет каждый модуль в своём Worker Task под наблюдением Supervisor-а
//   - Сохраняет собранные документы в PostgreSQL и отчёт выполнения
//   - С SCHEDULE повторяет выполнение по cron-расписанию
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/shaiso/Climatica/internal/collectors"
	"github.com/shaiso/Climatica/internal/config"
	"github.com/shaiso/Climatica/internal/domain"
	"github.com/shaiso/Climatica/internal/subsystem"
	"github.com/shaiso/Climatica/internal/telemetry"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting climatica-gatherer")

	cfg, err := config.Load(domain.KindCollector)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := subsystem.Main(ctx, cfg, collectors.Register, logger); err != nil {
		logger.Error("gathering failed", "error", err)
		os.Exit(1)
	}

	logger.Info("climatica-gatherer stopped")
}
