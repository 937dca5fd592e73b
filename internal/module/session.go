package module

import (
	"log/slog"
	"time"

	"github.com/shaiso/Climatica/internal/domain"
)

// Session — доступ реализации модуля к текущему выполнению.
//
// Действителен только во время вызова контракта.
type Session struct {
	m *Module
}

// Name возвращает имя модуля.
func (s *Session) Name() string {
	return s.m.cfg.Name
}

// Config возвращает конфигурацию модуля.
func (s *Session) Config() *Config {
	return &s.m.cfg
}

// State возвращает изменяемое состояние модуля.
func (s *Session) State() *domain.ModuleState {
	return &s.m.state
}

// Logger возвращает логгер модуля.
func (s *Session) Logger() *slog.Logger {
	return s.m.logger
}

// Now возвращает текущее время (UTC).
func (s *Session) Now() time.Time {
	return s.m.now().UTC()
}

// ExecutionID возвращает идентификатор текущего выполнения подсистемы.
func (s *Session) ExecutionID() int64 {
	return s.m.executionID
}

// MarkAdvisedlyNoData отмечает, что модуль сознательно не собрал данные.
func (s *Session) MarkAdvisedlyNoData() {
	s.m.advisedlyNoData = true
}

// AdvisedlyNoData сообщает, установлен ли признак.
func (s *Session) AdvisedlyNoData() bool {
	return s.m.advisedlyNoData
}
