package domain

import (
	"fmt"
	"time"
)

// TimeUnit — единица измерения интервала в состоянии модуля.
type TimeUnit string

const (
	UnitSecond TimeUnit = "s"
	UnitMinute TimeUnit = "min"
	UnitHour   TimeUnit = "h"
	UnitDay    TimeUnit = "day"
	UnitWeek   TimeUnit = "week"
	UnitMonth  TimeUnit = "month"

	// UnitNever — интервал, который никогда не истекает.
	UnitNever TimeUnit = "never"
)

// TimeSpan — интервал {value, units}, как он хранится в state-файле.
type TimeSpan struct {
	Value int      `json:"value" yaml:"value"`
	Unit  TimeUnit `json:"units" yaml:"units"`
}

// Seconds возвращает длительность интервала в секундах.
// Месяц считается как 30 дней. Для UnitNever возвращает -1.
func (t TimeSpan) Seconds() int64 {
	v := int64(t.Value)
	switch t.Unit {
	case UnitSecond:
		return v
	case UnitMinute:
		return v * 60
	case UnitHour:
		return v * 3600
	case UnitDay:
		return v * 86400
	case UnitWeek:
		return v * 7 * 86400
	case UnitMonth:
		return v * 30 * 86400
	case UnitNever:
		return -1
	default:
		return v
	}
}

// AddTo прибавляет интервал к моменту времени.
// Месяцы прибавляются календарно. Для UnitNever возвращает false.
func (t TimeSpan) AddTo(from time.Time) (time.Time, bool) {
	switch t.Unit {
	case UnitNever:
		return time.Time{}, false
	case UnitMonth:
		return from.AddDate(0, t.Value, 0), true
	default:
		return from.Add(time.Duration(t.Seconds()) * time.Second), true
	}
}

// Valid проверяет, что единица измерения известна.
func (t TimeSpan) Valid() bool {
	switch t.Unit {
	case UnitSecond, UnitMinute, UnitHour, UnitDay, UnitWeek, UnitMonth, UnitNever:
		return t.Value >= 0
	default:
		return false
	}
}

func (t TimeSpan) String() string {
	if t.Unit == UnitNever {
		return "never"
	}
	return fmt.Sprintf("%d %s", t.Value, t.Unit)
}

// Span — короткий конструктор TimeSpan.
func Span(value int, unit TimeUnit) TimeSpan {
	return TimeSpan{Value: value, Unit: unit}
}
