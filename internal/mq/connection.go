package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Задержки подключения к брокеру.
const (
	dialInitialDelay = 500 * time.Millisecond
	dialMaxDelay     = 30 * time.Second

	// DefaultDialAttempts — попытки первого подключения подсистемы.
	// Подсистема без брокера работает дальше, поэтому ждать долго незачем.
	DefaultDialAttempts = 3
)

// DialConfig — параметры подключения.
type DialConfig struct {
	URL string

	// Attempts — число попыток первого подключения (default: DefaultDialAttempts).
	Attempts int

	Logger *slog.Logger
}

// Connection — AMQP соединение с одним каналом.
//
// После разрыва соединение восстанавливается в фоне до вызова Close.
// Каждое восстановление закрывает канал, ранее возвращённый Reconnected.
type Connection struct {
	url    string
	logger *slog.Logger

	mu          sync.RWMutex
	conn        *amqp.Connection
	channel     *amqp.Channel
	reconnected chan struct{}

	done      chan struct{}
	closeOnce sync.Once
}

// Dial подключается к RabbitMQ, повторяя неудачные попытки с экспоненциальной задержкой.
//
// Исчерпанные попытки возвращают ErrBrokerUnavailable.
func Dial(ctx context.Context, cfg DialConfig) (*Connection, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attempts := cfg.Attempts
	if attempts <= 0 {
		attempts = DefaultDialAttempts
	}

	c := &Connection{
		url:         cfg.URL,
		logger:      logger,
		reconnected: make(chan struct{}),
		done:        make(chan struct{}),
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(dialPolicy(), uint64(attempts-1)), ctx)
	err := backoff.Retry(func() error {
		if err := c.open(); err != nil {
			logger.Debug("rabbitmq dial attempt failed", "error", err)
			return err
		}
		return nil
	}, policy)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBrokerUnavailable, err)
	}

	logger.Info("connected to RabbitMQ")
	go c.watch()
	return c, nil
}

func dialPolicy() *backoff.ExponentialBackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = dialInitialDelay
	policy.MaxInterval = dialMaxDelay
	return policy
}

// open устанавливает соединение и открывает канал.
func (c *Connection) open() error {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	c.mu.Lock()
	c.conn, c.channel = conn, ch
	c.mu.Unlock()
	return nil
}

// watch ждёт разрыва соединения и восстанавливает его.
func (c *Connection) watch() {
	for {
		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()

		lost := conn.NotifyClose(make(chan *amqp.Error, 1))
		select {
		case <-c.done:
			return
		case err := <-lost:
			if err != nil {
				c.logger.Warn("RabbitMQ connection lost", "error", err)
			}
		}

		if !c.redial() {
			return
		}
	}
}

// redial переподключается без ограничения попыток. После Close возвращает false.
func (c *Connection) redial() bool {
	policy := dialPolicy()
	policy.MaxElapsedTime = 0

	for {
		delay := policy.NextBackOff()
		c.logger.Info("reconnecting to RabbitMQ", "delay", delay)

		select {
		case <-c.done:
			return false
		case <-time.After(delay):
		}

		if err := c.open(); err != nil {
			c.logger.Warn("reconnect failed", "error", err)
			continue
		}

		select {
		case <-c.done:
			// Close успел раньше: новое соединение никому не нужно
			c.closeCurrent()
			return false
		default:
		}

		c.mu.Lock()
		close(c.reconnected)
		c.reconnected = make(chan struct{})
		c.mu.Unlock()

		c.logger.Info("reconnected to RabbitMQ")
		return true
	}
}

// Reconnected возвращает канал, который закроется при следующем переподключении.
func (c *Connection) Reconnected() <-chan struct{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.reconnected
}

// Channel возвращает текущий AMQP канал.
func (c *Connection) Channel() *amqp.Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channel
}

// WithChannel выполняет fn с текущим каналом.
func (c *Connection) WithChannel(ctx context.Context, fn func(ch *amqp.Channel) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ch := c.Channel()
	if ch == nil || ch.IsClosed() {
		return ErrNoChannel
	}
	return fn(ch)
}

// Close останавливает переподключение и закрывает соединение.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.closeCurrent()
		if err == nil {
			c.logger.Info("RabbitMQ connection closed")
		}
	})
	return err
}

func (c *Connection) closeCurrent() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	if c.channel != nil && !c.channel.IsClosed() {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close channel: %w", err))
		}
	}
	if c.conn != nil && !c.conn.IsClosed() {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
	}
	return errors.Join(errs...)
}
