// Climatica API — data API: страницы собранных данных для конвертеров,
// проба /alive и отчёты подсистем.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Climatica/internal/api"
	"github.com/shaiso/Climatica/internal/config"
	"github.com/shaiso/Climatica/internal/repo"
	"github.com/shaiso/Climatica/internal/telemetry"
)

var (
	startTime = time.Now()
	reqTotal  = promauto.NewCounter(prometheus.CounterOpts{
		Name: "climatica_api_healthz_requests_total",
		Help: "Total health check requests handled by climatica-api",
	})
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting climatica-api")

	cfg, err := config.LoadAPI()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Подключаемся к базе данных
	pool, err := repo.NewPool(context.Background())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := repo.EnsureSchema(context.Background(), pool); err != nil {
		logger.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	documents, err := repo.NewDocumentRepo(pool, repo.TableDocuments)
	if err != nil {
		logger.Error("failed to create document repo", "error", err)
		os.Exit(1)
	}

	var reports api.ReportReader = repo.NewReportRepo(pool)
	if cfg.ReportStore == config.ReportStoreSQLite {
		sqlite, err := repo.NewSQLiteReportRepo(cfg.SQLitePath)
		if err != nil {
			logger.Error("failed to open sqlite report store", "error", err)
			os.Exit(1)
		}
		defer sqlite.Close()
		reports = sqlite
	}

	// Создаём API handler
	handler := api.NewHandler(api.Config{
		Documents: documents,
		Reports:   reports,
		Token:     cfg.Token,
		MaxLimit:  cfg.MaxPageSize,
		Logger:    logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		reqTotal.Inc()
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	// Регистрируем API маршруты
	handler.RegisterRoutes(mux)

	addr := ":" + cfg.Port
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Ожидаем сигнал завершения
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}
