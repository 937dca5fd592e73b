package supervisor

import "errors"

// Ошибки Supervisor.
var (
	// ErrNoReportStore — Supervisor создан без хранилища отчётов.
	ErrNoReportStore = errors.New("supervisor requires a report store")

	// ErrUnexpectedMessage — в Mailbox пришло сообщение неизвестного типа.
	ErrUnexpectedMessage = errors.New("unexpected mailbox message")

	// ErrNotSupervised — модуль в сообщении не поддерживает привилегированный интерфейс.
	ErrNotSupervised = errors.New("module does not expose the supervised interface")
)
