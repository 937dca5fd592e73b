package module

import (
	"context"

	"github.com/shaiso/Climatica/internal/domain"
)

// Record — один документ собранных или сконвертированных данных.
type Record map[string]any

// Collector — контракт модуля-коллектора.
type Collector interface {
	// Collect получает данные из внешнего источника.
	Collect(ctx context.Context, s *Session) ([]Record, error)

	// Save сохраняет собранные данные и возвращает количество сохранённых записей
	// (вставленных или уже существующих с тем же естественным ключом).
	Save(ctx context.Context, s *Session, records []Record) (int, error)
}

// Converter — контракт модуля-конвертера.
type Converter interface {
	// Convert преобразует страницы собранных данных.
	Convert(ctx context.Context, s *Session, elements []Record) ([]Record, error)

	// Save сохраняет сконвертированные записи.
	Save(ctx context.Context, s *Session, records []Record) (int, error)
}

// DependencyChecker — необязательный контракт конвертера с зависимостями.
type DependencyChecker interface {
	DependenciesSatisfied(ctx context.Context, s *Session) (bool, error)
}

// CleanupHandler — необязательный clean-up для clean-up состояний коллектора.
//
// Реализация может вернуть engine.ErrCleanupNotImplemented для состояний,
// после которых продолжать выполнение нельзя.
type CleanupHandler interface {
	CleanUp(ctx context.Context, s *Session, state domain.StateID) error
}

// Restorer — необязательный хук после восстановления состояния.
type Restorer interface {
	Restore(ctx context.Context, s *Session) error
}

// Page — страница собранных данных, отдаваемая data API.
type Page struct {
	Data []Record `json:"data"`

	// NextStartIndex — nil, если данных больше нет.
	NextStartIndex *int `json:"next_start_index"`
}

// PageSource — источник страниц собранных данных для конвертеров.
type PageSource interface {
	Page(ctx context.Context, module string, startIndex, limit int) (*Page, error)
}

// DocumentStore — хранилище документов с upsert по естественному ключу.
type DocumentStore interface {
	// UpsertMany вставляет документы, пропуская уже существующие по ключу.
	// Возвращает количество вставленных и совпавших документов.
	UpsertMany(ctx context.Context, collection string, key []string, docs []Record, executionID int64) (int, error)

	// Find возвращает все документы коллекции.
	Find(ctx context.Context, collection string) ([]Record, error)

	// Count возвращает количество документов коллекции.
	Count(ctx context.Context, collection string) (int, error)
}
