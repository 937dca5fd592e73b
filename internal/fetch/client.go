// Package fetch — HTTP-клиент модулей для получения JSON из внешних источников.
//
// Ограниченное число повторов (exponential backoff) при сетевых ошибках
// и 5xx. Исчерпанные повторы превращаются в domain.ErrTransientFetch.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/shaiso/Climatica/internal/domain"
)

// Значения по умолчанию.
const (
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
)

// Config — настройки клиента.
type Config struct {
	// Timeout — таймаут одного запроса.
	Timeout time.Duration

	// MaxRetries — количество повторов после первой попытки.
	MaxRetries int

	// InitialInterval — первая задержка перед повтором.
	InitialInterval time.Duration

	// RequestsPerSecond — ограничение частоты запросов (0 — без ограничения).
	RequestsPerSecond float64

	// Headers — заголовки, добавляемые к каждому запросу.
	Headers map[string]string

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client выполняет GET-запросы к JSON API.
type Client struct {
	http       *http.Client
	timeout    time.Duration
	maxRetries int
	initial    time.Duration
	limiter    *rate.Limiter
	headers    map[string]string
	logger     *slog.Logger
}

// New создаёт клиента.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 500 * time.Millisecond
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Client{
		http:       cfg.HTTPClient,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		initial:    cfg.InitialInterval,
		limiter:    limiter,
		headers:    cfg.Headers,
		logger:     cfg.Logger,
	}
}

// Response — ответ источника.
type Response struct {
	StatusCode int
	Body       []byte
}

// Decode разбирает тело ответа как JSON.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return nil
}

// Get выполняет GET с повторами.
//
// Сетевые ошибки и ответы 5xx повторяются до MaxRetries раз. Ответ 4xx
// возвращается сразу как *StatusError вместе с телом. Когда повторы
// исчерпаны, ошибка оборачивается в domain.ErrTransientFetch.
func (c *Client) Get(ctx context.Context, rawURL string, query url.Values, headers map[string]string) (*Response, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse url: %v", ErrRequest, err)
	}
	if len(query) > 0 {
		q := target.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		target.RawQuery = q.Encode()
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.initial
	policy.MaxElapsedTime = 0

	var resp *Response
	attempt := 0

	op := func() error {
		attempt++
		r, err := c.do(ctx, target.String(), headers)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrRequest) {
				return backoff.Permanent(err)
			}
			c.logger.Warn("request failed, retrying", "url", target.Redacted(), "attempt", attempt, "error", err)
			return err
		}
		if r.StatusCode >= 500 {
			resp = r
			err := &StatusError{StatusCode: r.StatusCode, Body: r.Body}
			c.logger.Warn("server error, retrying", "url", target.Redacted(), "attempt", attempt, "status", r.StatusCode)
			return err
		}
		resp = r
		return nil
	}

	err = backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.maxRetries)), ctx))
	if err != nil {
		if errors.Is(err, ErrRequest) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: GET %s after %d attempt(s): %v", domain.ErrTransientFetch, target.Redacted(), attempt, err)
	}

	if resp.StatusCode >= 400 {
		return resp, &StatusError{StatusCode: resp.StatusCode, Body: resp.Body}
	}
	return resp, nil
}

// GetJSON выполняет GET и декодирует тело в v.
func (c *Client) GetJSON(ctx context.Context, rawURL string, query url.Values, headers map[string]string, v any) error {
	resp, err := c.Get(ctx, rawURL, query, headers)
	if err != nil {
		return err
	}
	return resp.Decode(v)
}

// do выполняет один запрос.
func (c *Client) do(ctx context.Context, target string, headers map[string]string) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("wait rate limiter: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrRequest, err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
