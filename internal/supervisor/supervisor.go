package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Climatica/internal/domain"
	"github.com/shaiso/Climatica/internal/mailbox"
	"github.com/shaiso/Climatica/internal/module"
	"github.com/shaiso/Climatica/internal/telemetry"
)

// Target — модуль с точки зрения Supervisor-а.
//
// Реализуется *module.Module.
type Target interface {
	Name() string
	Kind() domain.Kind
	Successful() bool
	PendingWork() bool
	State() domain.ModuleState

	ExposeTransitionHistory(caller module.Capability) ([]domain.StateID, error)
	ExecuteStateActions(ctx context.Context, state domain.StateID, caller module.Capability) error
	OverrideState(caller module.Capability, state domain.ModuleState) error
	PersistedState(caller module.Capability) (domain.ModuleState, error)
}

// ReportStore — хранилище отчётов выполнения.
//
// Реализуется repo.ReportRepo и repo.SQLiteReportRepo.
type ReportStore interface {
	Aggregated(ctx context.Context, subsystemID string) (*domain.AggregatedReport, error)
	SaveReport(ctx context.Context, aggregated *domain.AggregatedReport, last *domain.LastExecution) error
}

// EventPublisher — необязательная публикация событий (реализуется mq.Publisher).
type EventPublisher interface {
	PublishModuleFailed(ctx context.Context, event domain.ModuleEvent) error
	PublishModuleRepaired(ctx context.Context, event domain.ModuleEvent) error
	PublishReport(ctx context.Context, report *domain.LastExecution) error
}

// Config — конфигурация Supervisor.
type Config struct {
	Mailbox *mailbox.Mailbox
	Reports ReportStore

	// Events — nil отключает публикацию событий.
	Events EventPublisher

	// Token — привилегия, выданная модулям текущего выполнения.
	Token *module.Token

	SubsystemID      string
	SubsystemVersion string
	ExecutionID      int64

	Logger *slog.Logger

	// Now подменяет часы в тестах.
	Now func() time.Time
}

// Supervisor — потребитель Mailbox одного выполнения подсистемы.
type Supervisor struct {
	mailbox *mailbox.Mailbox
	reports ReportStore
	events  EventPublisher
	token   *module.Token

	subsystemID      string
	subsystemVersion string
	executionID      int64

	logger *slog.Logger
	now    func() time.Time

	registered   []Target
	unregistered int
	succeeded    []string
	failed       []string
	repaired     []string

	report *domain.LastExecution
}

// New создаёт Supervisor.
func New(cfg Config) (*Supervisor, error) {
	if cfg.Reports == nil {
		return nil, ErrNoReportStore
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	// subsystem уже добавлен Orchestrator-ом
	logger = telemetry.WithExecutionID(logger, cfg.ExecutionID)

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Supervisor{
		mailbox:          cfg.Mailbox,
		reports:          cfg.Reports,
		events:           cfg.Events,
		token:            cfg.Token,
		subsystemID:      cfg.SubsystemID,
		subsystemVersion: cfg.SubsystemVersion,
		executionID:      cfg.ExecutionID,
		logger:           logger.With("component", "supervisor"),
		now:              now,
	}, nil
}

// SupervisorToken реализует module.Capability.
func (s *Supervisor) SupervisorToken() *module.Token {
	if s == nil {
		return nil
	}
	return s.token
}

// Run обрабатывает сообщения до Exit.
//
// Возвращает ошибку только при отмене ctx.
func (s *Supervisor) Run(ctx context.Context) error {
	s.logger.Info("starting module supervision")

	for {
		msg, err := s.mailbox.Receive(ctx)
		if err != nil {
			return fmt.Errorf("receive: %w", err)
		}

		switch m := msg.(type) {
		case mailbox.Register:
			s.handleRegister(m.Module)

		case mailbox.Finished:
			s.unregistered++
			s.logger.Debug("module unregistered", "module", m.Module.Name())
			target, ok := m.Module.(Target)
			if !ok {
				s.logger.Warn("finished module cannot be verified", "module", m.Module.Name(), "error", ErrNotSupervised)
				continue
			}
			s.verifyModuleExecution(ctx, target)

		case mailbox.Report:
			s.logger.Info("generating execution report")
			if err := s.generateReport(ctx, m.Duration); err != nil {
				s.logger.Error("execution report could not be generated", "error", err)
			}

		case mailbox.Exit:
			if s.mailbox.Len() > 0 {
				s.logger.Warn("supervisor received EXIT before all messages were processed", "pending", s.mailbox.Len())
			}
			s.logger.Info("supervisor received EXIT signal, exiting now")
			return nil

		default:
			s.logger.Warn("message ignored", "error", fmt.Errorf("%w: %T", ErrUnexpectedMessage, msg))
		}
	}
}

func (s *Supervisor) handleRegister(m mailbox.Module) {
	target, ok := m.(Target)
	if !ok {
		s.logger.Warn("module registration ignored", "module", m.Name(), "error", ErrNotSupervised)
		return
	}
	s.registered = append(s.registered, target)
	s.logger.Debug("module registered", "module", target.Name())
}

// Registered возвращает количество зарегистрированных модулей.
func (s *Supervisor) Registered() int {
	return len(s.registered)
}

// Unregistered возвращает количество полученных Finished.
func (s *Supervisor) Unregistered() int {
	return s.unregistered
}

// Succeeded возвращает имена успешно выполненных модулей.
func (s *Supervisor) Succeeded() []string {
	return append([]string(nil), s.succeeded...)
}

// Failed возвращает имена неуспешно выполненных модулей.
func (s *Supervisor) Failed() []string {
	return append([]string(nil), s.failed...)
}

// Repaired возвращает имена модулей, которым Supervisor запланировал повтор.
func (s *Supervisor) Repaired() []string {
	return append([]string(nil), s.repaired...)
}

// LastReport возвращает отчёт текущего выполнения (nil, если его ещё нет).
func (s *Supervisor) LastReport() *domain.LastExecution {
	return s.report
}

// verifyModuleExecution ремонтирует модуль, упавший после Restored без
// запланированного повтора, и классифицирует результат выполнения.
func (s *Supervisor) verifyModuleExecution(ctx context.Context, t Target) {
	logger := s.logger.With("module", t.Name())

	history, err := t.ExposeTransitionHistory(s)
	if err != nil {
		logger.Error("module execution could not be verified", "error", err)
	} else if needsRepair(history, t.State()) {
		logger.Warn("module execution has been ABORTED, but module restart hasn't been scheduled, fixing it now")
		if err := s.repair(ctx, t); err != nil {
			logger.Error("unable to schedule module restart", "error", err)
		} else {
			s.repaired = append(s.repaired, t.Name())
			telemetry.ModulesRepaired.WithLabelValues(s.subsystemID, t.Name()).Inc()
			s.publish(ctx, "module repaired", func(ctx context.Context) error {
				return s.events.PublishModuleRepaired(ctx, s.moduleEvent(t))
			})
		}
	}

	outcome := "succeeded"
	switch {
	case !t.Successful():
		outcome = "failed"
		s.failed = append(s.failed, t.Name())
		s.publish(ctx, "module failed", func(ctx context.Context) error {
			return s.events.PublishModuleFailed(ctx, s.moduleEvent(t))
		})
	case !t.PendingWork():
		outcome = "skipped"
		s.succeeded = append(s.succeeded, t.Name())
	default:
		s.succeeded = append(s.succeeded, t.Name())
	}
	telemetry.ModuleExecutions.WithLabelValues(s.subsystemID, t.Name(), outcome).Inc()
	logger.Debug("module execution verified", "outcome", outcome)
}

// needsRepair — модуль дошёл до Aborted после Restored, а повтор не запланирован.
func needsRepair(history []domain.StateID, state domain.ModuleState) bool {
	n := len(history)
	if n < 2 {
		return false
	}
	return history[n-1] == domain.StateAborted &&
		history[n-2].AtLeast(domain.StateRestored) &&
		!state.RestartRequired
}

// repair восстанавливает состояние модуля с ошибкой текущего выполнения,
// требует повтор и выполняет действия ExecutionChecked и StateSaved.
func (s *Supervisor) repair(ctx context.Context, t Target) error {
	state, err := t.PersistedState(s)
	if err != nil {
		return err
	}
	state.RestartRequired = true
	if err := t.OverrideState(s, state); err != nil {
		return err
	}
	if state.Error == nil {
		return nil
	}

	for _, st := range []domain.StateID{domain.StateExecutionChecked, domain.StateStateSaved} {
		if err := t.ExecuteStateActions(ctx, st, s); err != nil {
			return fmt.Errorf("execute %s actions: %w", st, err)
		}
	}
	s.logger.Info("scheduled restart has been set, errors and backoff time have been saved", "module", t.Name())
	return nil
}

func (s *Supervisor) moduleEvent(t Target) domain.ModuleEvent {
	ev := domain.ModuleEvent{
		SubsystemID: s.subsystemID,
		ExecutionID: s.executionID,
		Module:      t.Name(),
		Kind:        t.Kind(),
	}
	if st := t.State(); st.Error != nil {
		ev.ErrorClass = st.Error.Class
		ev.ErrorMessage = st.Error.Message
	}
	return ev
}

// publish отправляет событие, если публикация включена. Ошибки только логируются.
func (s *Supervisor) publish(ctx context.Context, what string, fn func(ctx context.Context) error) {
	if s.events == nil {
		return
	}
	if err := fn(ctx); err != nil {
		s.logger.Warn("event could not be published", "event", what, "error", err)
	}
}
