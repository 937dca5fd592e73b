package module

import "errors"

// Ошибки модулей.
var (
	// ErrCapabilityRequired — вызывающий не прошёл проверку привилегий Supervisor-а.
	ErrCapabilityRequired = errors.New("supervisor capability required")

	// ErrFactoryNotFound — для модуля не зарегистрирована фабрика.
	ErrFactoryNotFound = errors.New("module factory not found")

	// ErrInvalidConfig — конфигурационный файл модуля некорректен.
	ErrInvalidConfig = errors.New("invalid module config")

	// ErrContractMismatch — реализация не соответствует типу модуля.
	ErrContractMismatch = errors.New("module implementation does not match its kind")

	// ErrNoPageSource — конвертеру не передан источник страниц.
	ErrNoPageSource = errors.New("converter has no page source")
)
