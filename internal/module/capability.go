package module

import "github.com/google/uuid"

// Token — привилегия Supervisor-а. Сравнивается по указателю.
type Token struct {
	id uuid.UUID
}

// NewToken выпускает новую привилегию.
func NewToken() *Token {
	return &Token{id: uuid.New()}
}

// String возвращает идентификатор привилегии (для логов).
func (t *Token) String() string {
	if t == nil {
		return "<nil>"
	}
	return t.id.String()
}

// Capability — интерфейс вызывающего привилегированные методы модуля.
//
// Реализуется Supervisor-ом. Модуль принимает вызов, только если
// предъявленный токен совпадает с токеном, выданным ему при создании.
type Capability interface {
	SupervisorToken() *Token
}

// allowed проверяет привилегию вызывающего.
func (m *Module) allowed(caller Capability) bool {
	if caller == nil || m.token == nil {
		return false
	}
	return caller.SupervisorToken() == m.token
}
