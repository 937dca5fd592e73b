package domain

// StateID — идентификатор состояния в таблице переходов модуля.
//
// Идентичность состояния определяется только StateID. Порядок (Order)
// используется исключительно для сравнений вида "модуль прошёл Restored".
//
// Основной путь коллектора:
//
//	Created → Initialized → Restored → PendingWorkChecked → Collected → Saved
//	        → ExecutionChecked → StateSaved → Finished
//
// Конвертер использует Converted вместо Collected.
type StateID int

const (
	StateCreated StateID = iota
	StateInitialized
	StateRestored
	StatePendingWorkChecked
	StateCollected
	StateConverted
	StateSaved
	StateExecutionChecked
	StateStateSaved
	StateFinished

	StateCleanupOnCollect
	StateCleanupOnSave
	StateCleanupOnCheck
	StateCleanupOnStateSave

	StateAborted
)

var stateNames = map[StateID]string{
	StateCreated:            "Created",
	StateInitialized:        "Initialized",
	StateRestored:           "Restored",
	StatePendingWorkChecked: "PendingWorkChecked",
	StateCollected:          "Collected",
	StateConverted:          "Converted",
	StateSaved:              "Saved",
	StateExecutionChecked:   "ExecutionChecked",
	StateStateSaved:         "StateSaved",
	StateFinished:           "Finished",
	StateCleanupOnCollect:   "CleanupOnCollect",
	StateCleanupOnSave:      "CleanupOnSave",
	StateCleanupOnCheck:     "CleanupOnCheck",
	StateCleanupOnStateSave: "CleanupOnStateSave",
	StateAborted:            "Aborted",
}

// String возвращает имя состояния.
func (s StateID) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "Unknown"
}

// Order возвращает порядок состояния на основном пути.
//
// Clean-up состояния располагаются сразу после стадии, которую они
// подстраховывают. Aborted всегда последний.
func (s StateID) Order() int {
	switch s {
	case StateCreated:
		return 0
	case StateInitialized:
		return 10
	case StateRestored:
		return 20
	case StatePendingWorkChecked:
		return 30
	case StateCollected, StateConverted:
		return 40
	case StateCleanupOnCollect:
		return 41
	case StateSaved:
		return 50
	case StateCleanupOnSave:
		return 51
	case StateExecutionChecked:
		return 60
	case StateCleanupOnCheck:
		return 61
	case StateStateSaved:
		return 70
	case StateCleanupOnStateSave:
		return 71
	case StateFinished:
		return 80
	case StateAborted:
		return 100
	default:
		return -1
	}
}

// After сообщает, расположено ли состояние s дальше other.
func (s StateID) After(other StateID) bool {
	return s.Order() > other.Order()
}

// AtLeast сообщает, достигнуто ли состояние other (или пройдено).
func (s StateID) AtLeast(other StateID) bool {
	return s.Order() >= other.Order()
}

// IsTerminal возвращает true для Finished и Aborted.
func (s StateID) IsTerminal() bool {
	return s == StateFinished || s == StateAborted
}

// Role — роль состояния в таблице переходов.
type Role int

const (
	// RoleStage — обычная стадия основного пути.
	RoleStage Role = iota

	// RoleCleanup — состояние, выполняющее clean-up после ошибки стадии.
	RoleCleanup

	// RoleTerminal — финальное состояние (Finished, Aborted).
	RoleTerminal
)

// String возвращает имя роли.
func (r Role) String() string {
	switch r {
	case RoleStage:
		return "stage"
	case RoleCleanup:
		return "cleanup"
	case RoleTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Kind — тип модуля.
type Kind string

const (
	// KindCollector — модуль, собирающий данные из внешних источников.
	KindCollector Kind = "collector"

	// KindConverter — модуль, преобразующий уже собранные данные.
	KindConverter Kind = "converter"
)
