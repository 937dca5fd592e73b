package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Таблицы документов.
const (
	// TableDocuments — данные, собранные коллекторами.
	TableDocuments = "documents"

	// TableConverted — записи, подготовленные конвертерами.
	TableConverted = "converted_records"
)

const documentTable = `
	CREATE TABLE IF NOT EXISTS %[1]s (
		seq          BIGSERIAL,
		collection   TEXT        NOT NULL,
		doc_key      TEXT        NOT NULL,
		body         JSONB       NOT NULL,
		execution_id BIGINT      NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (collection, doc_key)
	);
	CREATE INDEX IF NOT EXISTS idx_%[1]s_collection_seq ON %[1]s (collection, seq);
`

const reportTables = `
	CREATE TABLE IF NOT EXISTS execution_counters (
		subsystem_id TEXT   PRIMARY KEY,
		last_id      BIGINT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS aggregated_reports (
		subsystem_id TEXT        PRIMARY KEY,
		body         JSONB       NOT NULL,
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS last_executions (
		subsystem_id TEXT        NOT NULL,
		execution_id BIGINT      NOT NULL,
		body         JSONB       NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (subsystem_id, execution_id)
	);
`

// EnsureSchema создаёт таблицы, если их ещё нет.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		fmt.Sprintf(documentTable, TableDocuments),
		fmt.Sprintf(documentTable, TableConverted),
		reportTables,
	}
	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
