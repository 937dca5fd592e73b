package engine

import "github.com/shaiso/Climatica/internal/domain"

// DecisionKind — результат guard-проверки.
type DecisionKind int

const (
	// Continue — выполнить действие состояния как обычно.
	Continue DecisionKind = iota

	// Redirect — заменить действие и success-переход для текущего состояния.
	Redirect
)

// Decision — решение guard-а перед выполнением действия.
//
// Redirect не является ошибкой: движок выполняет Stage вместо исходного
// действия, и при успехе переходит в State.
type Decision struct {
	Kind  DecisionKind
	State domain.StateID
	Stage Stage
}

// Proceed возвращает решение Continue.
func Proceed() Decision {
	return Decision{Kind: Continue}
}

// RedirectTo возвращает решение Redirect.
func RedirectTo(state domain.StateID, stage Stage) Decision {
	return Decision{Kind: Redirect, State: state, Stage: stage}
}
