package engine

import "github.com/shaiso/Climatica/internal/domain"

// DefaultMaxBackoffSeconds — верхняя граница backoff по умолчанию (сутки).
const DefaultMaxBackoffSeconds = 86400

// Минимальные задержки по умолчанию.
var (
	CollectorMinBackoff = domain.Span(1, domain.UnitSecond)
	ConverterMinBackoff = domain.Span(60, domain.UnitSecond)
)

// unitSteps — переход к более крупной единице и его множитель.
var unitSteps = map[domain.TimeUnit]struct {
	next   domain.TimeUnit
	factor int
}{
	domain.UnitSecond: {domain.UnitMinute, 60},
	domain.UnitMinute: {domain.UnitHour, 60},
	domain.UnitHour:   {domain.UnitDay, 24},
}

// NextBackoff удваивает задержку.
//
// Значение переводится в более крупную единицу, когда оно делится на её
// множитель без остатка (120 s → 2 min), поэтому удвоение остаётся точным.
// Иначе единица не меняется: 32 s даёт {64, s}, а не минуты с дробной
// частью. Такое значение равно удвоенному в секундах, но его запись может
// отличаться от ожидаемой в крупных единицах.
// Результат, превышающий capSeconds, фиксируется на {capSeconds, s}.
// Единица never сразу приводится к верхней границе.
func NextBackoff(current domain.TimeSpan, capSeconds int) domain.TimeSpan {
	if capSeconds <= 0 {
		capSeconds = DefaultMaxBackoffSeconds
	}
	ceiling := domain.Span(capSeconds, domain.UnitSecond)

	if current.Unit == domain.UnitNever || !current.Valid() {
		return ceiling
	}

	value := current.Value * 2
	if value <= 0 {
		value = 1
	}
	next := normalize(domain.Span(value, current.Unit))

	if next.Seconds() > int64(capSeconds) {
		return ceiling
	}
	return next
}

func normalize(span domain.TimeSpan) domain.TimeSpan {
	for {
		step, ok := unitSteps[span.Unit]
		if !ok || span.Value < step.factor || span.Value%step.factor != 0 {
			return span
		}
		span = domain.Span(span.Value/step.factor, step.next)
	}
}

// BackoffPolicy — параметры политики backoff модуля.
type BackoffPolicy struct {
	Min        domain.TimeSpan
	CapSeconds int
}

// Apply применяет политику к состоянию перед его сохранением.
//
// backoffPrevented — выполнение было пропущено из-за неистёкшего backoff;
// в этом случае отсчёт сохраняется и перезапуск остаётся запланированным.
func (p BackoffPolicy) Apply(state *domain.ModuleState, backoffPrevented bool) {
	state.Normalize()

	if state.Error != nil {
		class := state.Error.Class
		state.ErrorCounts[class]++
		if class == state.LastErrorClass {
			state.BackoffTime = NextBackoff(state.BackoffTime, p.CapSeconds)
		} else {
			state.BackoffTime = p.Min
			state.LastErrorClass = class
		}
		state.RestartRequired = true
		return
	}

	if backoffPrevented {
		state.RestartRequired = true
		return
	}

	state.BackoffTime = p.Min
}
