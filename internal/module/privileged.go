package module

import (
	"context"
	"fmt"

	"github.com/shaiso/Climatica/internal/domain"
)

// Привилегированные методы доступны только Supervisor-у текущего выполнения.

// ExposeTransitionHistory возвращает историю переходов автомата.
func (m *Module) ExposeTransitionHistory(caller Capability) ([]domain.StateID, error) {
	if !m.allowed(caller) {
		return nil, fmt.Errorf("%w: expose transition history of %s", ErrCapabilityRequired, m.cfg.Name)
	}
	return m.machine.History(), nil
}

// ExecuteStateActions выполняет действие, привязанное к состоянию, не меняя историю.
func (m *Module) ExecuteStateActions(ctx context.Context, state domain.StateID, caller Capability) error {
	if !m.allowed(caller) {
		return fmt.Errorf("%w: execute actions of %s", ErrCapabilityRequired, m.cfg.Name)
	}
	return m.machine.ExecuteState(ctx, state, m)
}

// OverrideState заменяет состояние модуля в памяти.
func (m *Module) OverrideState(caller Capability, state domain.ModuleState) error {
	if !m.allowed(caller) {
		return fmt.Errorf("%w: override state of %s", ErrCapabilityRequired, m.cfg.Name)
	}
	m.state = state.Clone()
	return nil
}

// PersistedState возвращает последнее сохранённое состояние модуля
// с ошибкой текущего выполнения.
//
// Из памяти берутся только last_request, error, errors, last_error и
// backoff_time. Частоты, счётчики и курсоры остаются такими, какими они
// были сохранены последним успешным StateSaved.
func (m *Module) PersistedState(caller Capability) (domain.ModuleState, error) {
	if !m.allowed(caller) {
		return domain.ModuleState{}, fmt.Errorf("%w: read state of %s", ErrCapabilityRequired, m.cfg.Name)
	}
	if m.states == nil {
		return domain.ModuleState{}, fmt.Errorf("%w: no state store", domain.ErrInitialization)
	}

	state, err := m.states.Load(m.cfg.Name, m.defaults)
	if err != nil {
		return domain.ModuleState{}, fmt.Errorf("load state of %s: %w", m.cfg.Name, err)
	}
	state.ResetVolatile()

	current := m.state.Clone()
	state.LastRequest = current.LastRequest
	state.Error = current.Error
	state.ErrorCounts = current.ErrorCounts
	state.LastErrorClass = current.LastErrorClass
	state.BackoffTime = current.BackoffTime
	return state, nil
}
