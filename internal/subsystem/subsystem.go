package subsystem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Climatica/internal/config"
	"github.com/shaiso/Climatica/internal/domain"
	"github.com/shaiso/Climatica/internal/module"
	"github.com/shaiso/Climatica/internal/mq"
	"github.com/shaiso/Climatica/internal/orchestrator"
	"github.com/shaiso/Climatica/internal/repo"
	"github.com/shaiso/Climatica/internal/scheduler"
	"github.com/shaiso/Climatica/internal/statefile"
	"github.com/shaiso/Climatica/internal/upstream"
)

// Runner — одно выполнение подсистемы.
type Runner interface {
	Run(ctx context.Context) (*orchestrator.Result, error)
}

// Main поднимает зависимости подсистемы и выполняет её.
//
// register добавляет фабрики модулей подсистемы в реестр.
func Main(ctx context.Context, cfg config.Config, register func(*module.Registry), logger *slog.Logger) error {
	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", orchestrator.ErrStorageUnreachable, err)
	}
	defer pool.Close()

	if err := repo.EnsureSchema(ctx, pool); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	logger.Info("database connected")

	documents, err := repo.NewDocumentRepo(pool, repo.TableDocuments)
	if err != nil {
		return err
	}
	converted, err := repo.NewDocumentRepo(pool, repo.TableConverted)
	if err != nil {
		return err
	}

	reports, closeReports, err := openReports(pool, cfg)
	if err != nil {
		return err
	}
	defer closeReports()

	registry := module.NewRegistry()
	register(registry)

	orchCfg := orchestrator.Config{
		Kind:                  cfg.Kind,
		SubsystemID:           cfg.SubsystemID,
		SubsystemVersion:      cfg.Version,
		ModulesDir:            cfg.ModulesDir,
		Registry:              registry,
		Deps:                  module.Deps{Documents: documents, Converted: converted, Logger: logger},
		States:                statefile.New(cfg.StateDir, logger),
		Reports:               reports,
		Storage:               orchestrator.PingFunc(pool.Ping),
		RunTimeout:            cfg.RunTimeout,
		MaxRecommendedModules: cfg.MaxRecommendedModules,
		Logger:                logger,
	}

	// Конвертеры читают собранные данные через data API
	if cfg.Kind == domain.KindConverter {
		client := upstream.New(upstream.Config{
			BaseURL: cfg.APIURL,
			Token:   cfg.APIToken,
			Logger:  logger,
		})
		orchCfg.Pages = client
		orchCfg.Upstream = orchestrator.PingFunc(client.Alive)
	}

	// RabbitMQ
	if conn, err := mq.Dial(ctx, mq.DialConfig{URL: cfg.RabbitMQURL, Logger: logger}); err != nil {
		logger.Warn("RabbitMQ not available, events are logged only", "error", err)
	} else {
		defer conn.Close()

		if err := mq.SetupTopology(ctx, conn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}
		orchCfg.Events = mq.NewPublisher(conn, logger)
	}

	orch, err := orchestrator.New(orchCfg)
	if err != nil {
		return err
	}

	srv := serveMetrics(cfg.MetricsPort, logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	return Execute(ctx, orch, cfg.Schedule, logger)
}

// Execute выполняет подсистему один раз или, если задан schedule, по расписанию до отмены ctx.
func Execute(ctx context.Context, r Runner, schedule string, logger *slog.Logger) error {
	if schedule == "" {
		_, err := r.Run(ctx)
		return err
	}

	s, err := scheduler.New(scheduler.Config{
		Schedule: schedule,
		Run: func(ctx context.Context) error {
			_, err := r.Run(ctx)
			return err
		},
		Logger: logger,
	})
	if err != nil {
		return err
	}

	s.Loop(ctx)
	return nil
}

// openReports выбирает хранилище отчётов по REPORT_STORE.
func openReports(pool *pgxpool.Pool, cfg config.Config) (orchestrator.ReportStore, func(), error) {
	if cfg.ReportStore == config.ReportStoreSQLite {
		sqlite, err := repo.NewSQLiteReportRepo(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite report store: %w", err)
		}
		return sqlite, func() { sqlite.Close() }, nil
	}
	return repo.NewReportRepo(pool), func() {}, nil
}

// serveMetrics запускает HTTP mux с /healthz и /metrics.
func serveMetrics(port string, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "ok")
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: ":" + port, Handler: mux}
	go func() {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()
	return srv
}
