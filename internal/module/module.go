// Package module — модули сбора и конвертации данных, выполняемые движком.
//
// Module связывает конфигурацию, долговременное состояние и реализацию
// контракта (Collector или Converter) с конечным автоматом engine.Machine.
// Всё, кроме действий "получить данные" и "сохранить данные", модуль
// предоставляет сам: восстановление состояния, проверку наличия работы,
// проверку выполнения, backoff и сохранение состояния.
package module

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Climatica/internal/domain"
	"github.com/shaiso/Climatica/internal/engine"
	"github.com/shaiso/Climatica/internal/telemetry"
)

// StateStore — хранилище долговременного состояния модулей.
type StateStore interface {
	Load(module string, defaults domain.ModuleState) (domain.ModuleState, error)
	Save(module string, state domain.ModuleState) error
}

// Options — зависимости модуля, которые выдаёт оркестратор.
type Options struct {
	States StateStore

	// Token — привилегия Supervisor-а текущего выполнения.
	Token *Token

	// Pages — источник страниц для конвертеров.
	Pages PageSource

	ExecutionID int64
	Subsystem   string
	Logger      *slog.Logger

	// Now подменяет часы в тестах.
	Now func() time.Time
}

// Module — один экземпляр модуля на одно выполнение.
//
// Модулем владеет одна горутина до отправки Finished, затем Supervisor.
type Module struct {
	cfg     Config
	impl    any
	machine *engine.Machine
	policy  engine.BackoffPolicy

	states      StateStore
	pages       PageSource
	token       *Token
	executionID int64
	subsystem   string
	logger      *slog.Logger
	now         func() time.Time

	defaults domain.ModuleState
	state    domain.ModuleState

	pendingWork           bool
	backoffPrevented      bool
	checkResult           *bool
	advisedlyNoData       bool
	dependenciesSatisfied *bool

	data []Record
}

// New создаёт модуль и проверяет его схему состояния.
//
// Ошибки не возвращаются: неполная схема или несоответствие реализации
// типу модуля переводят модуль в Aborted, и Run ничего не выполняет.
func New(cfg Config, impl any, opts Options) *Module {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = telemetry.WithModule(logger, cfg.Name)

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	m := &Module{
		cfg:         cfg,
		impl:        impl,
		machine:     engine.NewMachine(engine.TableFor(cfg.Kind), logger),
		states:      opts.States,
		pages:       opts.Pages,
		token:       opts.Token,
		executionID: opts.ExecutionID,
		subsystem:   opts.Subsystem,
		logger:      logger,
		now:         now,
	}
	m.policy = backoffPolicy(cfg)

	err := m.initialize()
	if err != nil {
		m.logger.Error("module could not be initialized", "error", err)
	}
	m.machine.Initialize(err)
	return m
}

func (m *Module) initialize() error {
	if err := m.cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInitialization, err)
	}

	switch m.cfg.Kind {
	case domain.KindCollector:
		if _, ok := m.impl.(Collector); !ok {
			return fmt.Errorf("%w: %w: %T is not a Collector", domain.ErrInitialization, ErrContractMismatch, m.impl)
		}
	case domain.KindConverter:
		if _, ok := m.impl.(Converter); !ok {
			return fmt.Errorf("%w: %w: %T is not a Converter", domain.ErrInitialization, ErrContractMismatch, m.impl)
		}
		if m.pages == nil {
			return fmt.Errorf("%w: %w", domain.ErrInitialization, ErrNoPageSource)
		}
	}

	if m.states == nil {
		return fmt.Errorf("%w: no state store", domain.ErrInitialization)
	}

	defaults, err := domain.StateFromSchema(m.cfg.StateStruct, m.cfg.Kind)
	if err != nil {
		return err
	}
	m.defaults = defaults
	return nil
}

func backoffPolicy(cfg Config) engine.BackoffPolicy {
	policy := engine.BackoffPolicy{
		Min:        engine.CollectorMinBackoff,
		CapSeconds: engine.DefaultMaxBackoffSeconds,
	}
	if cfg.Kind == domain.KindConverter {
		policy.Min = engine.ConverterMinBackoff
	}
	if cfg.MinBackoff != nil && cfg.MinBackoff.Valid() {
		policy.Min = *cfg.MinBackoff
	}
	if cfg.MaxBackoffSeconds > 0 {
		policy.CapSeconds = cfg.MaxBackoffSeconds
	}
	return policy
}

// Run выполняет модуль до Finished или Aborted. Никогда не паникует.
func (m *Module) Run(ctx context.Context) {
	if m.Runnable() {
		m.logger.Info("starting module execution", "kind", m.cfg.Kind)
	}
	m.machine.Run(ctx, m)
	m.data = nil
}

// Name возвращает имя модуля.
func (m *Module) Name() string {
	return m.cfg.Name
}

// Kind возвращает тип модуля.
func (m *Module) Kind() domain.Kind {
	return m.cfg.Kind
}

// Config возвращает конфигурацию модуля.
func (m *Module) Config() Config {
	return m.cfg
}

// Current возвращает текущее состояние автомата.
func (m *Module) Current() domain.StateID {
	return m.machine.Current()
}

// Runnable сообщает, что модуль создан успешно и ещё не запускался.
func (m *Module) Runnable() bool {
	return m.machine.Current() == domain.StateInitialized
}

// Finished сообщает, что модуль достиг Finished или Aborted.
func (m *Module) Finished() bool {
	return m.machine.Current().IsTerminal()
}

// Successful — модуль достиг Finished и проверка выполнения прошла.
func (m *Module) Successful() bool {
	return m.machine.Current() == domain.StateFinished && m.checkResult != nil && *m.checkResult
}

// CheckResult возвращает результат проверки выполнения (nil — не определён).
func (m *Module) CheckResult() *bool {
	return m.checkResult
}

// PendingWork сообщает, была ли у модуля работа в этом выполнении.
func (m *Module) PendingWork() bool {
	return m.pendingWork
}

// State возвращает копию состояния модуля.
func (m *Module) State() domain.ModuleState {
	return m.state.Clone()
}

// Trace возвращает историю переходов в виде строки.
func (m *Module) Trace() string {
	return m.machine.Trace()
}

func (m *Module) session() *Session {
	return &Session{m: m}
}

// --- engine.Stages ---

// RunStage выполняет действие стадии.
func (m *Module) RunStage(ctx context.Context, stage engine.Stage) error {
	switch stage {
	case engine.StageRestore:
		return m.restore(ctx)
	case engine.StageCheckPendingWork:
		return m.checkPendingWork()
	case engine.StageWork:
		if m.cfg.Kind == domain.KindConverter {
			return m.convert(ctx)
		}
		return m.collect(ctx)
	case engine.StageSave:
		return m.save(ctx)
	case engine.StageCheck:
		m.checkExecution()
		return nil
	case engine.StageSaveState:
		return m.saveState()
	case engine.StageFinish:
		return m.finish()
	default:
		return fmt.Errorf("%w: %s", engine.ErrUnknownState, stage)
	}
}

// CleanUp выполняет clean-up после ошибки стадии.
//
// Без CleanupHandler clean-up не реализован, и модуль переходит в Aborted.
// Если обработчик справился, данные текущего выполнения отбрасываются,
// а выполнение продолжается со следующей полезной стадии.
func (m *Module) CleanUp(ctx context.Context, state domain.StateID) error {
	h, ok := m.impl.(CleanupHandler)
	if !ok {
		return fmt.Errorf("%w: %s", engine.ErrCleanupNotImplemented, state)
	}
	if err := h.CleanUp(ctx, m.session(), state); err != nil {
		return err
	}
	m.data = nil
	m.logger.Debug("transient data discarded", "state", state)
	return nil
}

// Guard пропускает сбор и сохранение, если работы нет.
func (m *Module) Guard(_ context.Context, state domain.StateID) engine.Decision {
	if state == domain.StatePendingWorkChecked && !m.pendingWork {
		return engine.RedirectTo(domain.StateExecutionChecked, engine.StageCheck)
	}
	return engine.Proceed()
}

// RecordError сохраняет ошибку стадии в состоянии.
func (m *Module) RecordError(err error) {
	m.state.Error = domain.NewErrorInfo(err)
}
