package repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Climatica/internal/module"
)

// ExecutionIDField — поле документа с идентификатором выполнения, которое его записало.
const ExecutionIDField = "execution_id"

// DocumentRepo — коллекции JSON-документов в одной таблице PostgreSQL.
//
// Документ идентифицируется коллекцией и естественным ключом. Повторная
// вставка существующего документа не меняет его (аналог $setOnInsert).
type DocumentRepo struct {
	pool  *pgxpool.Pool
	table string
}

// NewDocumentRepo создаёт DocumentRepo для TableDocuments или TableConverted.
func NewDocumentRepo(pool *pgxpool.Pool, table string) (*DocumentRepo, error) {
	switch table {
	case TableDocuments, TableConverted:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	return &DocumentRepo{pool: pool, table: table}, nil
}

// UpsertMany вставляет документы одним batch-ем.
//
// Возвращает количество вставленных и уже существующих документов.
// Документы без полей ключа пропускаются и не учитываются.
func (r *DocumentRepo) UpsertMany(ctx context.Context, collection string, key []string, docs []module.Record, executionID int64) (int, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (collection, doc_key, body, execution_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (collection, doc_key) DO NOTHING
	`, r.table)

	batch := &pgx.Batch{}
	for _, doc := range docs {
		docKey, err := DocKey(doc, key)
		if err != nil {
			continue
		}
		body, err := json.Marshal(stamp(doc, executionID))
		if err != nil {
			continue
		}
		batch.Queue(query, collection, docKey, body, executionID)
	}
	if batch.Len() == 0 {
		return 0, nil
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	saved := 0
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return saved, fmt.Errorf("upsert %s documents: %w", collection, err)
		}
		saved++
	}
	return saved, nil
}

// Find возвращает все документы коллекции в порядке вставки.
func (r *DocumentRepo) Find(ctx context.Context, collection string) ([]module.Record, error) {
	query := fmt.Sprintf(`SELECT body FROM %s WHERE collection = $1 ORDER BY seq`, r.table)
	rows, err := r.pool.Query(ctx, query, collection)
	if err != nil {
		return nil, fmt.Errorf("find %s documents: %w", collection, err)
	}
	defer rows.Close()
	return scanBodies(rows)
}

// Count возвращает количество документов коллекции.
func (r *DocumentRepo) Count(ctx context.Context, collection string) (int, error) {
	query := fmt.Sprintf(`SELECT count(*) FROM %s WHERE collection = $1`, r.table)
	var n int
	if err := r.pool.QueryRow(ctx, query, collection).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s documents: %w", collection, err)
	}
	return n, nil
}

// Page возвращает страницу документов, начиная с startIndex.
//
// NextStartIndex равен nil, если после страницы документов нет.
func (r *DocumentRepo) Page(ctx context.Context, collection string, startIndex, limit int) (*module.Page, error) {
	query := fmt.Sprintf(`
		SELECT body FROM %s
		WHERE collection = $1
		ORDER BY seq
		OFFSET $2 LIMIT $3
	`, r.table)

	rows, err := r.pool.Query(ctx, query, collection, startIndex, limit+1)
	if err != nil {
		return nil, fmt.Errorf("page %s documents: %w", collection, err)
	}
	defer rows.Close()

	docs, err := scanBodies(rows)
	if err != nil {
		return nil, err
	}
	return NewPage(docs, startIndex, limit), nil
}

// --- Helpers ---

// NewPage строит страницу из limit+1 прочитанных документов.
func NewPage(docs []module.Record, startIndex, limit int) *module.Page {
	page := &module.Page{Data: docs}
	if len(docs) > limit {
		page.Data = docs[:limit]
		next := startIndex + limit
		page.NextStartIndex = &next
	}
	if page.Data == nil {
		page.Data = []module.Record{}
	}
	return page
}

// DocKey строит естественный ключ документа из значений полей key.
// Пустой key означает поле "_id".
func DocKey(doc module.Record, key []string) (string, error) {
	if len(key) == 0 {
		key = []string{"_id"}
	}
	parts := make([]string, 0, len(key))
	for _, field := range key {
		v, ok := doc[field]
		if !ok || v == nil {
			return "", fmt.Errorf("%w: %s", ErrMissingKey, field)
		}
		parts = append(parts, fmt.Sprint(v))
	}
	return strings.Join(parts, "|"), nil
}

// stamp возвращает копию документа с execution_id.
func stamp(doc module.Record, executionID int64) module.Record {
	out := make(module.Record, len(doc)+1)
	for k, v := range doc {
		out[k] = v
	}
	out[ExecutionIDField] = executionID
	return out
}

func scanBodies(rows pgx.Rows) ([]module.Record, error) {
	var docs []module.Record
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		var doc module.Record
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("unmarshal document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}
