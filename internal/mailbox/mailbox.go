// Package mailbox — канал сообщений жизненного цикла между Worker Task-ами
// и Supervisor-ом.
//
// Много отправителей, один получатель. Ёмкость 2×модулей+2 хватает на
// Register и Finished каждого модуля плюс Report и Exit, поэтому Send
// никогда не ждёт.
package mailbox

import (
	"context"
	"errors"
	"fmt"
)

// ErrMailboxFull — в канале нет места (нарушен протокол отправки).
var ErrMailboxFull = errors.New("mailbox full")

// Module — то, что Supervisor получает в Register/Finished.
//
// Конкретный тип задаёт пакет module; mailbox не зависит от него.
type Module interface {
	Name() string
}

// Message — сообщение протокола. Реализации: Register, Finished, Report, Exit.
type Message interface {
	isMessage()
}

// Register — модуль начал выполнение.
type Register struct {
	Module Module
}

// Finished — модуль завершил выполнение; владение модулем переходит Supervisor-у.
type Finished struct {
	Module Module
}

// Report — все Worker Task-и завершены, можно строить отчёт.
type Report struct {
	// Duration — длительность выполнения в секундах.
	Duration float64
}

// Exit — последнее сообщение, Supervisor завершает работу.
type Exit struct{}

func (Register) isMessage() {}
func (Finished) isMessage() {}
func (Report) isMessage()   {}
func (Exit) isMessage()     {}

// Mailbox — ограниченный FIFO канал.
type Mailbox struct {
	ch chan Message
}

// New создаёт Mailbox для modules модулей.
func New(modules int) *Mailbox {
	if modules < 0 {
		modules = 0
	}
	return &Mailbox{ch: make(chan Message, 2*modules+2)}
}

// Send кладёт сообщение в канал без ожидания.
func (m *Mailbox) Send(msg Message) error {
	select {
	case m.ch <- msg:
		return nil
	default:
		return fmt.Errorf("%w: dropping %T", ErrMailboxFull, msg)
	}
}

// Receive ждёт следующее сообщение.
func (m *Mailbox) Receive(ctx context.Context) (Message, error) {
	select {
	case msg := <-m.ch:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len возвращает количество непрочитанных сообщений.
func (m *Mailbox) Len() int {
	return len(m.ch)
}

// Cap возвращает ёмкость канала.
func (m *Mailbox) Cap() int {
	return cap(m.ch)
}
