package engine

import (
	"time"

	"github.com/shaiso/Climatica/internal/domain"
)

// PendingWork — результат проверки наличия работы.
type PendingWork struct {
	// Pending — модулю нужно получить новые данные.
	Pending bool

	// BackoffPrevented — работа не выполняется из-за неистёкшего backoff,
	// а не из-за отсутствия новых данных.
	BackoffPrevented bool
}

// HasPendingWork решает, есть ли у модуля работа в момент now.
//
// Без запланированного перезапуска работа есть, когда истёк update_frequency
// с момента last_request. При restart_required модуль ждёт истечения
// backoff_time; когда он истёк, restart_required снимается, иначе
// выполнение пропускается с признаком BackoffPrevented.
func HasPendingWork(now time.Time, state *domain.ModuleState) PendingWork {
	if state.RestartRequired {
		if elapsed(now, state.LastRequest, state.BackoffTime) {
			state.RestartRequired = false
			return PendingWork{Pending: true}
		}
		return PendingWork{BackoffPrevented: true}
	}
	return PendingWork{Pending: elapsed(now, state.LastRequest, state.UpdateFrequency)}
}

// elapsed сообщает, прошёл ли интервал span с момента from.
func elapsed(now time.Time, from *time.Time, span domain.TimeSpan) bool {
	if from == nil {
		return true
	}
	due, ok := span.AddTo(*from)
	if !ok {
		return false
	}
	return !now.Before(due)
}
