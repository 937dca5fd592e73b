// Package upstream — клиент data API, из которого конвертеры читают собранные данные.
package upstream

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shaiso/Climatica/internal/fetch"
	"github.com/shaiso/Climatica/internal/module"
)

// Config — настройки клиента data API.
type Config struct {
	// BaseURL — адрес data API (API_URL).
	BaseURL string

	// Token — bearer-токен (API_TOKEN), пустой — без авторизации.
	Token string

	Timeout    time.Duration
	MaxRetries int
	Logger     *slog.Logger
}

// Client реализует module.PageSource поверх HTTP.
type Client struct {
	base  string
	fetch *fetch.Client
}

// New создаёт клиента.
func New(cfg Config) *Client {
	headers := map[string]string{}
	if cfg.Token != "" {
		headers["Authorization"] = "Bearer " + cfg.Token
	}
	return &Client{
		base: strings.TrimRight(cfg.BaseURL, "/"),
		fetch: fetch.New(fetch.Config{
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
			Headers:    headers,
			Logger:     cfg.Logger,
		}),
	}
}

// Page запрашивает страницу собранных данных модуля.
//
// GET /api/v1/data/{module}?startIndex=&limit=
func (c *Client) Page(ctx context.Context, moduleName string, startIndex, limit int) (*module.Page, error) {
	query := url.Values{}
	query.Set("startIndex", strconv.Itoa(startIndex))
	query.Set("limit", strconv.Itoa(limit))

	var page module.Page
	if err := c.fetch.GetJSON(ctx, c.base+"/api/v1/data/"+url.PathEscape(moduleName), query, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Alive проверяет доступность data API.
func (c *Client) Alive(ctx context.Context) error {
	resp, err := c.fetch.Get(ctx, c.base+"/alive", nil, nil)
	if err != nil {
		return fmt.Errorf("data API is not alive: %w", err)
	}
	if resp.StatusCode != 200 {
		return fmt.Errorf("data API is not alive: HTTP %d", resp.StatusCode)
	}
	return nil
}
