package mq

import "errors"

// Ошибки RabbitMQ.
var (
	// ErrBrokerUnavailable — брокер не ответил за отведённые попытки.
	ErrBrokerUnavailable = errors.New("rabbitmq broker unavailable")

	// ErrNoChannel — соединение ещё не установлено или потеряно.
	ErrNoChannel = errors.New("no amqp channel available")

	// ErrUnknownEvent — тип сообщения не относится к событиям Climatica.
	ErrUnknownEvent = errors.New("unknown event type")

	// ErrMalformedEvent — тело или payload события не декодируется.
	ErrMalformedEvent = errors.New("malformed event")
)
