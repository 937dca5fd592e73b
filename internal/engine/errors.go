package engine

import (
	"errors"
	"fmt"
)

// Ошибки движка.
var (
	// ErrInvalidTable — таблица переходов описана некорректно.
	ErrInvalidTable = errors.New("invalid transition table")

	// ErrUnknownState — текущего состояния нет в таблице.
	ErrUnknownState = errors.New("state not declared in transition table")

	// ErrCleanupNotImplemented — модуль не поддерживает clean-up для состояния.
	ErrCleanupNotImplemented = errors.New("cleanup not implemented")

	// ErrStagePanicked — действие стадии завершилось паникой.
	ErrStagePanicked = errors.New("stage panicked")
)

// AbortedError — clean-up после ошибки стадии сам завершился ошибкой.
//
// Cause — ошибка clean-up, Original — исходная ошибка стадии.
type AbortedError struct {
	Cause    error
	Original error
}

// Error реализует интерфейс error.
func (e *AbortedError) Error() string {
	msg := "unhandled error caused execution to be aborted"
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	if e.Original != nil {
		msg += fmt.Sprintf(" (while recovering from: %v)", e.Original)
	}
	return msg
}

// Unwrap возвращает обе ошибки цепочки.
func (e *AbortedError) Unwrap() []error {
	var errs []error
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	if e.Original != nil {
		errs = append(errs, e.Original)
	}
	return errs
}
