package module

import (
	"fmt"
	"log/slog"
)

// Finding — одно наблюдение проверки выполнения.
type Finding struct {
	Level   slog.Level
	Message string
}

// Verdict — результат проверки выполнения.
//
// Result == nil означает, что проверка не смогла принять решение;
// такой модуль в отчёте считается неуспешным.
type Verdict struct {
	Result   *bool
	Findings []Finding
}

func (v *Verdict) pass() {
	ok := true
	v.Result = &ok
}

func (v *Verdict) add(level slog.Level, format string, args ...any) {
	v.Findings = append(v.Findings, Finding{Level: level, Message: fmt.Sprintf(format, args...)})
}

// CollectorCheck — входные данные проверки коллектора.
type CollectorCheck struct {
	PendingWork      bool
	AdvisedlyNoData  bool
	DataElements     *int
	InsertedElements *int
}

// CheckCollector проверяет согласованность счётчиков коллектора.
func CheckCollector(in CollectorCheck) Verdict {
	var v Verdict
	if !in.PendingWork {
		v.pass()
		return v
	}

	data, inserted := value(in.DataElements), value(in.InsertedElements)
	switch {
	case data > 0 && inserted > 0 && data == inserted:
		v.pass()
	case data > 0 && inserted > 0 && data > inserted:
		v.add(slog.LevelWarn, "some elements were not saved: %d of %d", data-inserted, data)
	case data > 0 && inserted > 0 && data < inserted:
		v.add(slog.LevelError, "more elements were saved than collected: %d > %d", inserted, data)
	case in.AdvisedlyNoData:
		v.pass()
	case data > 0:
		v.add(slog.LevelWarn, "%d elements were collected but none were saved", data)
	default:
		v.add(slog.LevelWarn, "no data was collected")
	}
	return v
}

// ConverterCheck — входные данные проверки конвертера.
type ConverterCheck struct {
	PendingWork           bool
	AdvisedlyNoData       bool
	DependenciesSatisfied bool
	ElementsToConvert     *int
	ConvertedElements     *int
	InsertedElements      *int
}

// CheckConverter проверяет согласованность счётчиков конвертера.
//
// Расхождение счётчиков даёт предупреждения, но не отрицательный результат.
func CheckConverter(in ConverterCheck) Verdict {
	var v Verdict
	if !in.PendingWork {
		v.pass()
		return v
	}

	toConvert := value(in.ElementsToConvert)
	converted := value(in.ConvertedElements)
	inserted := value(in.InsertedElements)

	if toConvert > 0 && converted > 0 && inserted > 0 {
		if toConvert == converted && converted == inserted {
			v.pass()
			return v
		}
		if toConvert > converted {
			v.add(slog.LevelWarn, "some elements were not converted: %d of %d", toConvert-converted, toConvert)
		}
		if converted > inserted {
			v.add(slog.LevelWarn, "some converted elements were not saved: %d of %d", converted-inserted, converted)
		}
		if toConvert < converted {
			v.add(slog.LevelError, "more elements were converted than read: %d > %d", converted, toConvert)
		}
		if converted < inserted {
			v.add(slog.LevelError, "more elements were saved than converted: %d > %d", inserted, converted)
		}
		return v
	}

	if in.AdvisedlyNoData || !in.DependenciesSatisfied {
		v.pass()
		return v
	}
	if in.ElementsToConvert == nil {
		v.add(slog.LevelWarn, "there was no available data")
	}
	if toConvert > 0 && converted == 0 {
		v.add(slog.LevelWarn, "%d elements were read but none were converted", toConvert)
	}
	if converted > 0 && inserted == 0 {
		v.add(slog.LevelWarn, "%d elements were converted but none were saved", converted)
	}
	return v
}

func value(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
