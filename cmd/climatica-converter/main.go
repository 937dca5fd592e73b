// Climatica Converter — подсистема конвертации собранных данных.
//
// Converter проверяет доступность data API (/alive), затем каждый
// converter-модуль читает страницы собранных данных и сохраняет
// сконвертированные записи. С SCHEDULE выполняется по cron-расписанию.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/shaiso/Climatica/internal/config"
	"github.com/shaiso/Climatica/internal/converters"
	"github.com/shaiso/Climatica/internal/domain"
	"github.com/shaiso/Climatica/internal/subsystem"
	"github.com/shaiso/Climatica/internal/telemetry"
)

func main() {
	logger := telemetry.SetupLogger()
	logger.Info("starting climatica-converter")

	cfg, err := config.Load(domain.KindConverter)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := subsystem.Main(ctx, cfg, converters.Register, logger); err != nil {
		logger.Error("conversion failed", "error", err)
		os.Exit(1)
	}

	logger.Info("climatica-converter stopped")
}
