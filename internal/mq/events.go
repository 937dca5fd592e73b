package mq

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/shaiso/Climatica/internal/domain"
)

// Event — событие подсистемы, декодированное из сообщения.
type Event interface {
	// Type возвращает тип сообщения события.
	Type() MessageType

	// Describe возвращает однострочное описание для алерта.
	Describe() string
}

// ModuleFailed — модуль завершился неуспешно.
type ModuleFailed struct {
	domain.ModuleEvent
}

func (ModuleFailed) Type() MessageType { return MessageTypeModuleFailed }

func (e ModuleFailed) Describe() string {
	line := fmt.Sprintf("%s failed", moduleLabel(e.ModuleEvent))
	if e.ErrorClass != "" {
		line += ": " + e.ErrorClass
	}
	if e.ErrorMessage != "" {
		line += fmt.Sprintf(" (%s)", e.ErrorMessage)
	}
	return line
}

// ModuleRepaired — Supervisor запланировал повтор модуля.
type ModuleRepaired struct {
	domain.ModuleEvent
}

func (ModuleRepaired) Type() MessageType { return MessageTypeModuleRepaired }

func (e ModuleRepaired) Describe() string {
	return moduleLabel(e.ModuleEvent) + " scheduled for restart"
}

// ReportGenerated — краткий отчёт выполнения подсистемы.
type ReportGenerated struct {
	ReportPayload
}

func (ReportGenerated) Type() MessageType { return MessageTypeReport }

func (e ReportGenerated) Describe() string {
	status := "succeeded"
	if !e.ExecutionSucceeded {
		status = "failed: " + strings.Join(e.FailedModules, ", ")
	}
	return fmt.Sprintf("[%s #%d] %d/%d modules ok in %.2fs, %d inserted, %s",
		e.SubsystemID, e.ExecutionID, e.ModulesSucceeded, e.ModulesExecuted,
		e.Duration, e.InsertedElements, status)
}

func moduleLabel(ev domain.ModuleEvent) string {
	return fmt.Sprintf("[%s #%d] module %s (%s)", ev.SubsystemID, ev.ExecutionID, ev.Module, ev.Kind)
}

// DecodeEvent декодирует payload сообщения по его типу.
func DecodeEvent(msg *Message) (Event, error) {
	switch msg.Type {
	case MessageTypeModuleFailed:
		ev, err := ParsePayload[domain.ModuleEvent](msg)
		return ModuleFailed{ev}, err
	case MessageTypeModuleRepaired:
		ev, err := ParsePayload[domain.ModuleEvent](msg)
		return ModuleRepaired{ev}, err
	case MessageTypeReport:
		rp, err := ParsePayload[ReportPayload](msg)
		return ReportGenerated{rp}, err
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, msg.Type)
}

// Describe формирует однострочное описание события для алерта.
func Describe(msg *Message) (string, error) {
	ev, err := DecodeEvent(msg)
	if err != nil {
		return "", err
	}
	return ev.Describe(), nil
}

// ParsePayload декодирует payload сообщения в T.
//
// После доставки payload — это map, поэтому он проходит JSON ещё раз.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T

	raw, err := json.Marshal(msg.Payload)
	if err != nil {
		return result, fmt.Errorf("%w: %s payload: %v", ErrMalformedEvent, msg.Type, err)
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return result, fmt.Errorf("%w: %s payload: %v", ErrMalformedEvent, msg.Type, err)
	}
	return result, nil
}

// EventHandlers — обработчики событий по типу.
//
// Событие, для которого обработчик не задан, подтверждается без действий.
type EventHandlers struct {
	ModuleFailed   func(ctx context.Context, at time.Time, ev ModuleFailed) error
	ModuleRepaired func(ctx context.Context, at time.Time, ev ModuleRepaired) error
	Report         func(ctx context.Context, at time.Time, ev ReportGenerated) error
}

// Dispatch декодирует сообщение и вызывает обработчик его типа.
//
// Возвращает ErrUnknownEvent или ErrMalformedEvent, если событие
// не может быть обработано ни при какой повторной доставке.
func (h EventHandlers) Dispatch(ctx context.Context, msg *Message) error {
	ev, err := DecodeEvent(msg)
	if err != nil {
		return err
	}

	switch ev := ev.(type) {
	case ModuleFailed:
		if h.ModuleFailed != nil {
			return h.ModuleFailed(ctx, msg.Timestamp, ev)
		}
	case ModuleRepaired:
		if h.ModuleRepaired != nil {
			return h.ModuleRepaired(ctx, msg.Timestamp, ev)
		}
	case ReportGenerated:
		if h.Report != nil {
			return h.Report(ctx, msg.Timestamp, ev)
		}
	}
	return nil
}
