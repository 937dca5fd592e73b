package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shaiso/Climatica/internal/domain"
)

// Stages — действия модуля, которые вызывает Machine.
type Stages interface {
	// RunStage выполняет действие стадии.
	RunStage(ctx context.Context, stage Stage) error

	// CleanUp выполняет clean-up при входе в clean-up состояние.
	// Возвращает ErrCleanupNotImplemented, если модуль его не поддерживает.
	CleanUp(ctx context.Context, state domain.StateID) error

	// Guard решает, выполнять ли действие guarded-состояния.
	Guard(ctx context.Context, state domain.StateID) Decision

	// RecordError сохраняет ошибку стадии в состоянии модуля.
	RecordError(err error)
}

// Machine — конечный автомат одного модуля.
//
// Machine не потокобезопасна: ей владеет одна горутина (Worker Task),
// после отправки Finished владение переходит к Supervisor.
type Machine struct {
	table   *Table
	current domain.StateID
	history []domain.StateID
	logger  *slog.Logger
}

// NewMachine создаёт автомат в состоянии Created.
func NewMachine(table *Table, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{
		table:   table,
		current: domain.StateCreated,
		history: []domain.StateID{domain.StateCreated},
		logger:  logger,
	}
}

// Table возвращает таблицу переходов автомата.
func (m *Machine) Table() *Table {
	return m.table
}

// Initialize завершает конструирование модуля: Initialized при err == nil,
// иначе Aborted. Повторные вызовы игнорируются.
func (m *Machine) Initialize(err error) {
	if m.current != domain.StateCreated {
		return
	}
	if err != nil {
		m.moveTo(domain.StateAborted)
		return
	}
	m.moveTo(domain.StateInitialized)
}

// Current возвращает текущее состояние.
func (m *Machine) Current() domain.StateID {
	return m.current
}

// History возвращает копию истории переходов.
func (m *Machine) History() []domain.StateID {
	return append([]domain.StateID(nil), m.history...)
}

// Trace возвращает историю в виде "A -> B -> C".
func (m *Machine) Trace() string {
	names := make([]string, len(m.history))
	for i, s := range m.history {
		names[i] = s.String()
	}
	return strings.Join(names, " -> ")
}

// Run прогоняет модуль по таблице до Finished или Aborted.
//
// Run никогда не возвращает ошибку: все ошибки стадий поглощаются
// и переводят автомат по error-переходам.
func (m *Machine) Run(ctx context.Context, stages Stages) {
	defer func() {
		m.logger.Info("execution states", "trace", m.Trace())
	}()

	var redirect *Decision

	for !m.current.IsTerminal() && m.current.After(domain.StateCreated) {
		tr, ok := m.table.Lookup(m.current)
		if !ok {
			m.logger.Error("aborting execution", "error", fmt.Errorf("%w: %s", ErrUnknownState, m.current))
			m.moveTo(domain.StateAborted)
			return
		}

		action, success := tr.Action, tr.Success
		if redirect != nil {
			action, success = redirect.Stage, redirect.State
		} else if tr.Guarded {
			if d := stages.Guard(ctx, m.current); d.Kind == Redirect {
				redirect = &d
				continue
			}
		}

		err := runStage(ctx, stages, action)
		redirect = nil

		if err == nil {
			m.moveTo(success)
			continue
		}

		// Ошибку можно сохранить только если состояние модуля уже восстановлено.
		if m.current.AtLeast(domain.StateRestored) {
			stages.RecordError(&domain.StageError{Stage: action.String(), Err: err})
		}
		m.logger.Warn("stage failed",
			"state", m.current,
			"stage", action,
			"next_state", tr.Failure,
			"error", err,
		)
		m.moveTo(tr.Failure)

		next, ok := m.table.Lookup(m.current)
		if !ok || next.Role != domain.RoleCleanup {
			continue
		}

		cerr := stages.CleanUp(ctx, m.current)
		switch {
		case cerr == nil:
			m.logger.Info("cleanup succeeded, resuming execution", "state", m.current)
		case errors.Is(cerr, ErrCleanupNotImplemented):
			m.logger.Warn("cleanup actions are not implemented, aborting execution", "state", m.current)
			m.moveTo(next.Failure)
			return
		default:
			aborted := &AbortedError{Cause: cerr, Original: err}
			m.logger.Error("cleanup failed", "state", m.current, "error", aborted)
			m.moveTo(next.Failure)
			return
		}
	}
}

// Abort переводит автомат в Aborted вне основного цикла.
func (m *Machine) Abort() {
	if m.current != domain.StateAborted {
		m.moveTo(domain.StateAborted)
	}
}

// Override принудительно устанавливает состояние (ремонт Supervisor-ом).
func (m *Machine) Override(state domain.StateID) {
	m.moveTo(state)
}

func (m *Machine) moveTo(state domain.StateID) {
	m.current = state
	m.history = append(m.history, state)
}

// ExecuteState выполняет действие состояния вне основного цикла.
//
// Используется привилегированным интерфейсом модуля (ремонт Supervisor-ом).
// История и текущее состояние не меняются.
func (m *Machine) ExecuteState(ctx context.Context, state domain.StateID, stages Stages) error {
	tr, ok := m.table.Lookup(state)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownState, state)
	}
	if tr.Action == StageNone {
		return nil
	}
	return runStage(ctx, stages, tr.Action)
}

// runStage вызывает действие, превращая панику в ошибку.
func runStage(ctx context.Context, stages Stages, stage Stage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrStagePanicked, stage, r)
		}
	}()
	return stages.RunStage(ctx, stage)
}
