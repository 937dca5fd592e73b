package domain

// ModuleEvent — событие о модуле, публикуемое Supervisor-ом.
type ModuleEvent struct {
	SubsystemID string `json:"subsystem_id"`
	ExecutionID int64  `json:"execution_id"`
	Module      string `json:"module"`
	Kind        Kind   `json:"kind"`

	// ErrorClass и ErrorMessage пусты, если ошибка не была сохранена.
	ErrorClass   string `json:"error_class,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}
