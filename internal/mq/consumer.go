package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/goccy/go-json"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ConsumerConfig — конфигурация EventConsumer.
type ConsumerConfig struct {
	Queue    Queue
	Handlers EventHandlers

	// Prefetch — число неподтверждённых событий (default: 1).
	Prefetch int

	Logger *slog.Logger
}

// EventConsumer читает события подсистем из очереди и раздаёт их
// обработчикам по типу (climatica notify).
//
// Неизвестные и повреждённые события сразу уходят в DLQ. Ошибка
// обработчика возвращает событие в очередь один раз, повторная — в DLQ.
type EventConsumer struct {
	conn     *Connection
	queue    Queue
	handlers EventHandlers
	prefetch int
	logger   *slog.Logger
}

// NewEventConsumer создаёт EventConsumer.
func NewEventConsumer(conn *Connection, cfg ConsumerConfig) *EventConsumer {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &EventConsumer{
		conn:     conn,
		queue:    cfg.Queue,
		handlers: cfg.Handlers,
		prefetch: prefetch,
		logger:   logger.With("queue", cfg.Queue),
	}
}

// Run потребляет события до отмены ctx.
//
// После потери канала ждёт переподключения Connection и подписывается снова.
func (c *EventConsumer) Run(ctx context.Context) error {
	for {
		// берём канал уведомления до подписки, чтобы не пропустить переподключение
		reconnected := c.conn.Reconnected()

		deliveries, err := c.subscribe()
		if err != nil {
			c.logger.Error("events could not be consumed, waiting for reconnection", "error", err)
		} else {
			c.logger.Info("consuming events")
			c.drain(ctx, deliveries)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-reconnected:
		}
	}
}

func (c *EventConsumer) subscribe() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, ErrNoChannel
	}
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(
		string(c.queue), // queue
		"",              // consumer tag (auto-generated)
		false,           // auto-ack
		false,           // exclusive
		false,           // no-local
		false,           // no-wait
		nil,             // args
	)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", c.queue, err)
	}
	return deliveries, nil
}

// drain обрабатывает доставки до отмены ctx или закрытия канала.
func (c *EventConsumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				c.logger.Warn("event deliveries stopped")
				return
			}
			c.settle(d, c.handle(ctx, d.Body))
		}
	}
}

// handle декодирует тело и вызывает обработчик события.
func (c *EventConsumer) handle(ctx context.Context, body []byte) error {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	c.logger.Debug("event received", "message_id", msg.ID, "type", msg.Type)
	return c.handlers.Dispatch(ctx, &msg)
}

// settlement — судьба доставленного события.
type settlement int

const (
	settleAck settlement = iota
	settleRequeue
	settleDeadLetter
)

// settleFor выбирает судьбу события по результату обработки.
func settleFor(err error, redelivered bool) settlement {
	switch {
	case err == nil:
		return settleAck
	case errors.Is(err, ErrUnknownEvent), errors.Is(err, ErrMalformedEvent):
		return settleDeadLetter
	case redelivered:
		return settleDeadLetter
	default:
		return settleRequeue
	}
}

func (c *EventConsumer) settle(d amqp.Delivery, err error) {
	var ackErr error
	switch settleFor(err, d.Redelivered) {
	case settleAck:
		ackErr = d.Ack(false)
	case settleRequeue:
		c.logger.Warn("event handling failed, requeued", "message_id", d.MessageId, "error", err)
		ackErr = d.Nack(false, true)
	case settleDeadLetter:
		c.logger.Error("event dead-lettered", "message_id", d.MessageId, "redelivered", d.Redelivered, "error", err)
		ackErr = d.Nack(false, false)
	}
	if ackErr != nil {
		c.logger.Warn("event could not be settled", "message_id", d.MessageId, "error", ackErr)
	}
}
