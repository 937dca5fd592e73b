package api

import (
	"context"
	"log/slog"

	"github.com/shaiso/Climatica/internal/domain"
	"github.com/shaiso/Climatica/internal/module"
)

// DocumentPager — постраничное чтение собранных документов (repo.DocumentRepo).
type DocumentPager interface {
	Page(ctx context.Context, collection string, startIndex, limit int) (*module.Page, error)
}

// ReportReader — чтение отчётов подсистем (repo.ReportRepo, repo.SQLiteReportRepo).
type ReportReader interface {
	Aggregated(ctx context.Context, subsystemID string) (*domain.AggregatedReport, error)
	LastExecutions(ctx context.Context, subsystemID string, limit int) ([]domain.LastExecution, error)
}

const (
	defaultPageLimit = 100
	defaultMaxLimit  = 1000
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	documents DocumentPager
	reports   ReportReader
	token     string
	maxLimit  int
	logger    *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Documents DocumentPager

	// Reports — nil отключает маршруты отчётов.
	Reports ReportReader

	// Token — bearer-токен (API_TOKEN), пустой — без авторизации.
	Token string

	// MaxLimit — максимальный размер страницы.
	MaxLimit int

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxLimit := cfg.MaxLimit
	if maxLimit <= 0 {
		maxLimit = defaultMaxLimit
	}
	return &Handler{
		documents: cfg.Documents,
		reports:   cfg.Reports,
		token:     cfg.Token,
		maxLimit:  maxLimit,
		logger:    logger,
	}
}
