package engine

import (
	"fmt"
	"sort"

	"github.com/shaiso/Climatica/internal/domain"
)

// Stage — действие, привязанное к состоянию таблицы.
//
// Таблица ссылается на действия по имени; конкретную реализацию
// предоставляет модуль через интерфейс Stages.
type Stage int

const (
	StageNone Stage = iota
	StageRestore
	StageCheckPendingWork
	StageWork
	StageSave
	StageCheck
	StageSaveState
	StageFinish
)

var stageNames = map[Stage]string{
	StageNone:             "none",
	StageRestore:          "restore",
	StageCheckPendingWork: "check_pending_work",
	StageWork:             "work",
	StageSave:             "save",
	StageCheck:            "check_execution",
	StageSaveState:        "save_state",
	StageFinish:           "finish",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "unknown"
}

// Transition — строка таблицы переходов.
type Transition struct {
	// State — состояние, к которому относится строка.
	State domain.StateID

	// Role — роль состояния (стадия, clean-up, терминальное).
	Role domain.Role

	// Action — действие, переводящее состояние в Success.
	Action Stage

	// Success — следующее состояние при успешном действии.
	Success domain.StateID

	// Failure — следующее состояние при ошибке действия.
	Failure domain.StateID

	// Guarded — перед Action вызывается Stages.Guard.
	Guarded bool
}

// Table — неизменяемая таблица переходов.
type Table struct {
	name        string
	transitions map[domain.StateID]Transition
}

// NewTable строит и валидирует таблицу.
//
// Каждое состояние, на которое ссылается переход, должно быть описано.
// Терминальные состояния не имеют действий.
func NewTable(name string, transitions ...Transition) (*Table, error) {
	t := &Table{
		name:        name,
		transitions: make(map[domain.StateID]Transition, len(transitions)),
	}

	for _, tr := range transitions {
		if _, exists := t.transitions[tr.State]; exists {
			return nil, fmt.Errorf("%w: %s declared twice", ErrInvalidTable, tr.State)
		}
		if tr.Role == domain.RoleTerminal && tr.Action != StageNone {
			return nil, fmt.Errorf("%w: terminal state %s has action %s", ErrInvalidTable, tr.State, tr.Action)
		}
		if tr.Role != domain.RoleTerminal && tr.Action == StageNone {
			return nil, fmt.Errorf("%w: state %s has no action", ErrInvalidTable, tr.State)
		}
		t.transitions[tr.State] = tr
	}

	for _, tr := range t.transitions {
		if tr.Role == domain.RoleTerminal {
			continue
		}
		for _, target := range []domain.StateID{tr.Success, tr.Failure} {
			if _, ok := t.transitions[target]; !ok {
				return nil, fmt.Errorf("%w: %s points to undeclared state %s", ErrInvalidTable, tr.State, target)
			}
		}
	}

	for _, terminal := range []domain.StateID{domain.StateFinished, domain.StateAborted} {
		if _, ok := t.transitions[terminal]; !ok {
			return nil, fmt.Errorf("%w: missing terminal state %s", ErrInvalidTable, terminal)
		}
	}

	return t, nil
}

// MustTable — как NewTable, но паникует при ошибке.
// Используется только для таблиц, объявленных в коде.
func MustTable(name string, transitions ...Transition) *Table {
	t, err := NewTable(name, transitions...)
	if err != nil {
		panic(err)
	}
	return t
}

// Name возвращает имя таблицы.
func (t *Table) Name() string {
	return t.name
}

// Lookup возвращает строку таблицы для состояния.
func (t *Table) Lookup(state domain.StateID) (Transition, bool) {
	tr, ok := t.transitions[state]
	return tr, ok
}

// States возвращает все состояния таблицы по порядку.
func (t *Table) States() []domain.StateID {
	states := make([]domain.StateID, 0, len(t.transitions))
	for s := range t.transitions {
		states = append(states, s)
	}
	sort.Slice(states, func(i, j int) bool {
		return states[i].Order() < states[j].Order()
	})
	return states
}

func stage(state domain.StateID, action Stage, success, failure domain.StateID) Transition {
	return Transition{State: state, Role: domain.RoleStage, Action: action, Success: success, Failure: failure}
}

func cleanup(state domain.StateID, action Stage, success domain.StateID) Transition {
	return Transition{State: state, Role: domain.RoleCleanup, Action: action, Success: success, Failure: domain.StateAborted}
}

func terminal(state domain.StateID) Transition {
	return Transition{State: state, Role: domain.RoleTerminal}
}

// CollectorTable — таблица переходов коллектора.
//
// Ошибка каждой стадии после PendingWorkChecked ведёт в clean-up состояние.
// Успешный clean-up возвращает модуль в конвейер на следующей полезной стадии.
var CollectorTable = MustTable("collector",
	stage(domain.StateInitialized, StageRestore, domain.StateRestored, domain.StateAborted),
	stage(domain.StateRestored, StageCheckPendingWork, domain.StatePendingWorkChecked, domain.StateAborted),
	Transition{
		State:   domain.StatePendingWorkChecked,
		Role:    domain.RoleStage,
		Action:  StageWork,
		Success: domain.StateCollected,
		Failure: domain.StateCleanupOnCollect,
		Guarded: true,
	},
	stage(domain.StateCollected, StageSave, domain.StateSaved, domain.StateCleanupOnSave),
	stage(domain.StateSaved, StageCheck, domain.StateExecutionChecked, domain.StateCleanupOnCheck),
	stage(domain.StateExecutionChecked, StageSaveState, domain.StateStateSaved, domain.StateCleanupOnStateSave),
	stage(domain.StateStateSaved, StageFinish, domain.StateFinished, domain.StateAborted),

	cleanup(domain.StateCleanupOnCollect, StageCheck, domain.StateExecutionChecked),
	cleanup(domain.StateCleanupOnSave, StageCheck, domain.StateExecutionChecked),
	cleanup(domain.StateCleanupOnCheck, StageSaveState, domain.StateStateSaved),
	cleanup(domain.StateCleanupOnStateSave, StageFinish, domain.StateFinished),

	terminal(domain.StateFinished),
	terminal(domain.StateAborted),
)

// ConverterTable — таблица переходов конвертера. Clean-up состояний нет,
// любая ошибка ведёт в Aborted.
var ConverterTable = MustTable("converter",
	stage(domain.StateInitialized, StageRestore, domain.StateRestored, domain.StateAborted),
	stage(domain.StateRestored, StageCheckPendingWork, domain.StatePendingWorkChecked, domain.StateAborted),
	Transition{
		State:   domain.StatePendingWorkChecked,
		Role:    domain.RoleStage,
		Action:  StageWork,
		Success: domain.StateConverted,
		Failure: domain.StateAborted,
		Guarded: true,
	},
	stage(domain.StateConverted, StageSave, domain.StateSaved, domain.StateAborted),
	stage(domain.StateSaved, StageCheck, domain.StateExecutionChecked, domain.StateAborted),
	stage(domain.StateExecutionChecked, StageSaveState, domain.StateStateSaved, domain.StateAborted),
	stage(domain.StateStateSaved, StageFinish, domain.StateFinished, domain.StateAborted),

	terminal(domain.StateFinished),
	terminal(domain.StateAborted),
)

// TableFor возвращает таблицу для типа модуля.
func TableFor(kind domain.Kind) *Table {
	if kind == domain.KindConverter {
		return ConverterTable
	}
	return CollectorTable
}
