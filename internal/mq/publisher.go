package mq

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Climatica/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeModuleFailed   MessageType = "module.failed"
	MessageTypeModuleRepaired MessageType = "module.repaired"
	MessageTypeReport         MessageType = "report.generated"
)

// Publisher публикует события Supervisor-а в RabbitMQ.
//
// Реализует supervisor.EventPublisher.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
	now    func() time.Time
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		logger: logger,
		now:    time.Now,
	}
}

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// ReportPayload — краткий отчёт выполнения для алертов.
type ReportPayload struct {
	SubsystemID        string   `json:"subsystem_id"`
	ExecutionID        int64    `json:"execution_id"`
	ExecutionSucceeded bool     `json:"execution_succeeded"`
	Duration           float64  `json:"duration"`
	ModulesExecuted    int      `json:"modules_executed"`
	ModulesSucceeded   int      `json:"modules_succeeded"`
	FailedModules      []string `json:"failed_modules,omitempty"`
	InsertedElements   int      `json:"inserted_elements"`
}

// NewMessage создаёт сообщение с новым ID.
func NewMessage(msgType MessageType, payload any, now time.Time) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: now,
	}
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}

// PublishModuleFailed публикует событие о неуспешном модуле.
func (p *Publisher) PublishModuleFailed(ctx context.Context, event domain.ModuleEvent) error {
	msg := NewMessage(MessageTypeModuleFailed, event, p.now())
	return p.Publish(ctx, ExchangeEvents, RoutingKeyModuleFailed, msg)
}

// PublishModuleRepaired публикует событие о модуле, которому Supervisor запланировал повтор.
func (p *Publisher) PublishModuleRepaired(ctx context.Context, event domain.ModuleEvent) error {
	msg := NewMessage(MessageTypeModuleRepaired, event, p.now())
	return p.Publish(ctx, ExchangeEvents, RoutingKeyModuleRepaired, msg)
}

// PublishReport публикует краткий отчёт выполнения.
func (p *Publisher) PublishReport(ctx context.Context, report *domain.LastExecution) error {
	msg := NewMessage(MessageTypeReport, NewReportPayload(report), p.now())
	return p.Publish(ctx, ExchangeEvents, RoutingKeyReport, msg)
}

// NewReportPayload сокращает отчёт выполнения до полей алерта.
func NewReportPayload(report *domain.LastExecution) ReportPayload {
	return ReportPayload{
		SubsystemID:        report.SubsystemID,
		ExecutionID:        report.ExecutionID,
		ExecutionSucceeded: report.ExecutionSucceeded,
		Duration:           report.Duration,
		ModulesExecuted:    report.ModulesExecuted,
		ModulesSucceeded:   report.ModulesSucceeded,
		FailedModules:      report.ModulesFailed.Modules,
		InsertedElements:   report.InsertedElements,
	}
}
