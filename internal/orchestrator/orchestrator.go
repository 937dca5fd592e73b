package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shaiso/Climatica/internal/domain"
	"github.com/shaiso/Climatica/internal/mailbox"
	"github.com/shaiso/Climatica/internal/module"
	"github.com/shaiso/Climatica/internal/supervisor"
	"github.com/shaiso/Climatica/internal/telemetry"
	"github.com/shaiso/Climatica/internal/worker"
)

// Default configuration values.
const (
	defaultRunTimeout            = time.Hour
	defaultMaxRecommendedModules = 25
)

// ReportStore — хранилище отчётов и счётчиков выполнений.
//
// Реализуется repo.ReportRepo и repo.SQLiteReportRepo.
type ReportStore interface {
	supervisor.ReportStore
	NextExecutionID(ctx context.Context, subsystemID string) (int64, error)
}

// Pinger проверяет доступность внешней зависимости.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc — функция как Pinger.
type PingFunc func(ctx context.Context) error

// Ping вызывает f(ctx).
func (f PingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// Orchestrator выполняет модули одного типа.
//
// Orchestrator:
//   - Проверяет хранилище и data API
//   - Создаёт модули выполнения и регистрирует их в handles
//   - Запускает Supervisor и Worker Task-и
//   - Ждёт Worker Task-и (errgroup), отправляет Report и Exit
//   - Ждёт Supervisor
type Orchestrator struct {
	kind             domain.Kind
	subsystemID      string
	subsystemVersion string

	// Модули
	modulesDir string
	configs    []module.Config
	registry   *module.Registry
	deps       module.Deps
	states     module.StateStore
	pages      module.PageSource

	// Отчёты и события
	reports ReportStore
	events  supervisor.EventPublisher

	// Предусловия
	storage  Pinger
	upstream Pinger

	// Configuration
	runTimeout            time.Duration
	maxRecommendedModules int

	handles *handles
	logger  *slog.Logger
}

// Config — конфигурация Orchestrator.
type Config struct {
	// Kind — тип модулей подсистемы.
	Kind             domain.Kind
	SubsystemID      string
	SubsystemVersion string

	// ModulesDir — каталог конфигураций модулей; не используется, если задан Configs.
	ModulesDir string
	Configs    []module.Config

	Registry *module.Registry
	Deps     module.Deps
	States   module.StateStore

	// Pages — источник страниц для конвертеров.
	Pages module.PageSource

	Reports ReportStore

	// Events — nil отключает публикацию событий.
	Events supervisor.EventPublisher

	// Storage и Upstream — nil пропускает проверку.
	Storage  Pinger
	Upstream Pinger

	RunTimeout            time.Duration // предельное время выполнения (default: 1h)
	MaxRecommendedModules int           // порог предупреждения (default: 25)

	// Logger
	Logger *slog.Logger
}

// Result — итог одного выполнения.
type Result struct {
	ExecutionID int64
	Duration    time.Duration
	Succeeded   []string
	Failed      []string
	Repaired    []string

	// Report — nil, если отчёт не был сохранён.
	Report *domain.LastExecution
}

// New создаёт новый Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Reports == nil {
		return nil, ErrNoReportStore
	}

	runTimeout := cfg.RunTimeout
	if runTimeout <= 0 {
		runTimeout = defaultRunTimeout
	}

	maxModules := cfg.MaxRecommendedModules
	if maxModules <= 0 {
		maxModules = defaultMaxRecommendedModules
	}

	registry := cfg.Registry
	if registry == nil {
		registry = module.NewRegistry()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		kind:                  cfg.Kind,
		subsystemID:           cfg.SubsystemID,
		subsystemVersion:      cfg.SubsystemVersion,
		modulesDir:            cfg.ModulesDir,
		configs:               cfg.Configs,
		registry:              registry,
		deps:                  cfg.Deps,
		states:                cfg.States,
		pages:                 cfg.Pages,
		reports:               cfg.Reports,
		events:                cfg.Events,
		storage:               cfg.Storage,
		upstream:              cfg.Upstream,
		runTimeout:            runTimeout,
		maxRecommendedModules: maxModules,
		handles:               newHandles(),
		logger:                telemetry.WithSubsystem(logger, cfg.SubsystemID),
	}, nil
}

// Run выполняет все включённые модули один раз.
//
// Ошибки возвращаются только для предусловий выполнения: хранилище
// или data API недоступны, нет модулей, модуль прошлого выполнения ещё
// работает, время выполнения истекло. При ErrRunTimeout модули не
// прерываются.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	result, err := o.run(ctx, start)
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrRunTimeout):
		outcome = "timeout"
	default:
		outcome = "error"
	}
	telemetry.RunsTotal.WithLabelValues(o.subsystemID, outcome).Inc()
	return result, err
}

func (o *Orchestrator) run(ctx context.Context, start time.Time) (*Result, error) {
	if err := o.checkPreconditions(ctx); err != nil {
		return nil, err
	}

	executionID, err := o.reports.NextExecutionID(ctx, o.subsystemID)
	if err != nil {
		return nil, fmt.Errorf("%w: next execution id: %w", ErrStorageUnreachable, err)
	}
	logger := telemetry.WithExecutionID(o.logger, executionID)
	logger.Info("starting subsystem execution", "kind", o.kind)

	configs, err := o.loadConfigs()
	if err != nil {
		return nil, err
	}
	if len(configs) == 0 {
		return nil, fmt.Errorf("%w: kind %s in %q", ErrNoModules, o.kind, o.modulesDir)
	}
	if len(configs) > o.maxRecommendedModules {
		logger.Warn("more modules than recommended, execution may be slow",
			"modules", len(configs),
			"recommended", o.maxRecommendedModules,
		)
	}

	token := module.NewToken()
	modules := o.buildModules(configs, token, executionID, logger)
	if err := o.handles.acquire(modules); err != nil {
		return nil, err
	}

	mb := mailbox.New(len(modules))
	sup, err := supervisor.New(supervisor.Config{
		Mailbox:          mb,
		Reports:          o.reports,
		Events:           o.events,
		Token:            token,
		SubsystemID:      o.subsystemID,
		SubsystemVersion: o.subsystemVersion,
		ExecutionID:      executionID,
		Logger:           o.logger,
	})
	if err != nil {
		o.handles.release(modules)
		return nil, err
	}

	supervisorDone := make(chan error, 1)
	go func() {
		supervisorDone <- sup.Run(ctx)
	}()

	var g errgroup.Group
	for _, m := range modules {
		task := worker.New(worker.Config{Module: m, Mailbox: mb, Logger: logger})
		g.Go(func() error {
			return task.Run(ctx)
		})
	}

	workersDone := make(chan error, 1)
	go func() {
		err := g.Wait()
		o.handles.release(modules)
		workersDone <- err
	}()

	deadline := time.NewTimer(o.runTimeout)
	defer deadline.Stop()

	select {
	case err := <-workersDone:
		if err != nil {
			logger.Error("module task protocol failure", "error", err)
		}
	case <-deadline.C:
		logger.Error("modules did not finish in time", "timeout", o.runTimeout, "live", o.handles.live())
		return nil, fmt.Errorf("%w: modules still running after %s", ErrRunTimeout, o.runTimeout)
	}

	duration := time.Since(start)
	telemetry.RunDuration.WithLabelValues(o.subsystemID).Observe(duration.Seconds())

	for _, msg := range []mailbox.Message{mailbox.Report{Duration: duration.Seconds()}, mailbox.Exit{}} {
		if err := mb.Send(msg); err != nil {
			logger.Error("supervisor message could not be sent", "error", err)
		}
	}

	select {
	case err := <-supervisorDone:
		if err != nil {
			logger.Error("supervisor stopped unexpectedly", "error", err)
		}
	case <-deadline.C:
		return nil, fmt.Errorf("%w: supervisor still running after %s", ErrRunTimeout, o.runTimeout)
	}

	elapsed := time.Since(start)
	h, m, s := splitElapsed(elapsed)
	logger.Info("subsystem execution finished",
		"hours", h, "minutes", m, "seconds", s,
		"succeeded", len(sup.Succeeded()),
		"failed", len(sup.Failed()),
	)

	return &Result{
		ExecutionID: executionID,
		Duration:    elapsed,
		Succeeded:   sup.Succeeded(),
		Failed:      sup.Failed(),
		Repaired:    sup.Repaired(),
		Report:      sup.LastReport(),
	}, nil
}

func (o *Orchestrator) checkPreconditions(ctx context.Context) error {
	if o.storage != nil {
		if err := o.storage.Ping(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrStorageUnreachable, err)
		}
	}
	if o.upstream != nil {
		if err := o.upstream.Ping(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrUpstreamUnreachable, err)
		}
	}
	return nil
}

// loadConfigs возвращает включённые конфигурации модулей типа o.kind.
func (o *Orchestrator) loadConfigs() ([]module.Config, error) {
	all := o.configs
	if all == nil {
		loaded, err := module.LoadConfigs(o.modulesDir)
		if err != nil {
			return nil, err
		}
		all = loaded
	}

	var configs []module.Config
	for _, cfg := range all {
		if cfg.Kind != o.kind {
			continue
		}
		if !cfg.IsEnabled() {
			o.logger.Info("module is disabled", "module", cfg.Name)
			continue
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

// buildModules создаёт модули выполнения.
//
// Модуль без фабрики всё равно создаётся: он сразу оказывается в Aborted
// и попадает в отчёт как неуспешный.
func (o *Orchestrator) buildModules(configs []module.Config, token *module.Token, executionID int64, logger *slog.Logger) []*module.Module {
	modules := make([]*module.Module, 0, len(configs))
	for _, cfg := range configs {
		deps := o.deps
		deps.Logger = telemetry.WithModule(logger, cfg.Name)

		impl, err := o.registry.Build(cfg, deps)
		if err != nil {
			logger.Error("module implementation could not be built", "module", cfg.Name, "error", err)
		}

		modules = append(modules, module.New(cfg, impl, module.Options{
			States:      o.states,
			Token:       token,
			Pages:       o.pages,
			ExecutionID: executionID,
			Subsystem:   o.subsystemID,
			Logger:      logger,
		}))
	}
	return modules
}

// splitElapsed раскладывает длительность на часы, минуты и секунды.
func splitElapsed(d time.Duration) (hours, minutes int, seconds float64) {
	hours = int(d / time.Hour)
	d -= time.Duration(hours) * time.Hour
	minutes = int(d / time.Minute)
	d -= time.Duration(minutes) * time.Minute
	seconds = d.Seconds()
	return hours, minutes, seconds
}
