package domain

import (
	"errors"
	"strings"
)

// Таксономия ошибок выполнения модулей.
var (
	// ErrInitialization — схема состояния модуля неполная, модуль не запускается.
	ErrInitialization = errors.New("module initialization failed")

	// ErrTransientFetch — сетевая ошибка при получении данных (после всех retry).
	ErrTransientFetch = errors.New("transient fetch failure")

	// ErrDataIntegrity — доля некорректных записей превысила порог.
	ErrDataIntegrity = errors.New("data integrity threshold exceeded")

	// ErrPersistence — ошибка записи в хранилище.
	ErrPersistence = errors.New("persistence failure")

	// ErrStateCorruption — state-файл не читается (восстанавливается по схеме).
	ErrStateCorruption = errors.New("state file corrupted")
)

// Имена классов ошибок таксономии.
const (
	ClassInitialization  = "InitializationError"
	ClassTransientFetch  = "TransientFetchError"
	ClassDataIntegrity   = "DataIntegrityError"
	ClassPersistence     = "PersistenceError"
	ClassStateCorruption = "StateCorruption"

	// ClassUnclassified — ошибка вне таксономии, стадия которой неизвестна.
	ClassUnclassified = "UnclassifiedError"
)

var taxonomy = []struct {
	err   error
	class string
}{
	{ErrInitialization, ClassInitialization},
	{ErrTransientFetch, ClassTransientFetch},
	{ErrDataIntegrity, ClassDataIntegrity},
	{ErrPersistence, ClassPersistence},
	{ErrStateCorruption, ClassStateCorruption},
}

// Classifier позволяет ошибке самой сообщить свой класс.
type Classifier interface {
	ErrorClass() string
}

// ErrorInfo — ошибка, сохранённая в состоянии модуля.
type ErrorInfo struct {
	Class   string `json:"class"`
	Message string `json:"message"`
}

// StageError — ошибка стадии конвейера модуля.
//
// Сообщение не меняется. Ошибке вне таксономии StageError даёт класс
// по имени стадии: save_state → SaveStateError.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }

// class возвращает класс по имени стадии.
func (e *StageError) class() string {
	var b strings.Builder
	for _, part := range strings.Split(e.Stage, "_") {
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	if b.Len() == 0 {
		return ClassUnclassified
	}
	b.WriteString("Error")
	return b.String()
}

// ClassOf определяет класс ошибки.
//
// Порядок: ErrorClass() у любой ошибки в цепочке, затем sentinel таксономии,
// затем имя стадии из StageError. Остальные ошибки получают ClassUnclassified.
func ClassOf(err error) string {
	if err == nil {
		return ""
	}

	var c Classifier
	if errors.As(err, &c) {
		return c.ErrorClass()
	}

	for _, t := range taxonomy {
		if errors.Is(err, t.err) {
			return t.class
		}
	}

	var se *StageError
	if errors.As(err, &se) {
		return se.class()
	}
	return ClassUnclassified
}

// NewErrorInfo создаёт ErrorInfo из ошибки.
func NewErrorInfo(err error) *ErrorInfo {
	if err == nil {
		return nil
	}
	return &ErrorInfo{
		Class:   ClassOf(err),
		Message: err.Error(),
	}
}
