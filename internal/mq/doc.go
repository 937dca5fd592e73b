// Package mq публикует события выполнений Climatica в RabbitMQ и раздаёт их потребителям.
//
// Структура:
//   - connection.go — соединение с RabbitMQ (попытки подключения и переподключение с backoff)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация событий Supervisor-а
//   - events.go     — типизированные события, их описание и диспетчеризация
//   - consumer.go   — потребление событий (climatica notify)
//
// Типы сообщений:
//   - module.failed    — модуль завершился неуспешно
//   - module.repaired  — Supervisor запланировал повтор модуля
//   - report.generated — отчёт выполнения подсистемы
//
// Exchanges:
//   - climatica.events — события подсистем
//   - climatica.dlq    — dead letter queue
package mq
