package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	_ "github.com/mattn/go-sqlite3"

	"github.com/shaiso/Climatica/internal/domain"
)

// SQLiteReportRepo — встроенное хранилище отчётов для запуска на одном хосте.
//
// Методы совпадают с ReportRepo.
type SQLiteReportRepo struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteReportRepo открывает (и при необходимости создаёт) базу отчётов.
func NewSQLiteReportRepo(path string) (*SQLiteReportRepo, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=10000&_txlock=immediate", path)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	r := &SQLiteReportRepo{db: db}
	if err := r.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}
	return r, nil
}

func (r *SQLiteReportRepo) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS execution_counters (
		subsystem_id TEXT PRIMARY KEY,
		last_id INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS aggregated_reports (
		subsystem_id TEXT PRIMARY KEY,
		body TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS last_executions (
		subsystem_id TEXT NOT NULL,
		execution_id INTEGER NOT NULL,
		body TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (subsystem_id, execution_id)
	);
	`
	_, err := r.db.Exec(schema)
	return err
}

// Close закрывает базу.
func (r *SQLiteReportRepo) Close() error {
	return r.db.Close()
}

// NextExecutionID выдаёт следующий идентификатор выполнения подсистемы.
func (r *SQLiteReportRepo) NextExecutionID(ctx context.Context, subsystemID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO execution_counters (subsystem_id, last_id) VALUES (?, 1)
		ON CONFLICT (subsystem_id) DO UPDATE SET last_id = last_id + 1
	`, subsystemID)
	if err != nil {
		return 0, fmt.Errorf("increment execution counter: %w", err)
	}

	var id int64
	if err := tx.QueryRowContext(ctx,
		`SELECT last_id FROM execution_counters WHERE subsystem_id = ?`, subsystemID,
	).Scan(&id); err != nil {
		return 0, fmt.Errorf("read execution counter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit execution counter: %w", err)
	}
	return id, nil
}

// Aggregated возвращает агрегированный отчёт подсистемы или ErrNotFound.
func (r *SQLiteReportRepo) Aggregated(ctx context.Context, subsystemID string) (*domain.AggregatedReport, error) {
	var raw string
	err := r.db.QueryRowContext(ctx,
		`SELECT body FROM aggregated_reports WHERE subsystem_id = ?`, subsystemID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get aggregated report: %w", err)
	}

	var report domain.AggregatedReport
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		return nil, fmt.Errorf("unmarshal aggregated report: %w", err)
	}
	return &report, nil
}

// SaveReport перезаписывает агрегированный отчёт и добавляет отчёт о выполнении.
func (r *SQLiteReportRepo) SaveReport(ctx context.Context, aggregated *domain.AggregatedReport, last *domain.LastExecution) error {
	aggJSON, err := json.Marshal(aggregated)
	if err != nil {
		return fmt.Errorf("marshal aggregated report: %w", err)
	}
	lastJSON, err := json.Marshal(last)
	if err != nil {
		return fmt.Errorf("marshal last execution: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO aggregated_reports (subsystem_id, body, updated_at)
		VALUES (?, ?, ?)
	`, aggregated.SubsystemID, string(aggJSON), now)
	if err != nil {
		return fmt.Errorf("upsert aggregated report: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO last_executions (subsystem_id, execution_id, body, created_at)
		VALUES (?, ?, ?, ?)
	`, last.SubsystemID, last.ExecutionID, string(lastJSON), now)
	if err != nil {
		return fmt.Errorf("insert last execution: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit report: %w", err)
	}
	return nil
}

// LastExecutions возвращает последние отчёты о выполнениях, новые первыми.
func (r *SQLiteReportRepo) LastExecutions(ctx context.Context, subsystemID string, limit int) ([]domain.LastExecution, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT body FROM last_executions
		WHERE subsystem_id = ?
		ORDER BY execution_id DESC
		LIMIT ?
	`, subsystemID, limit)
	if err != nil {
		return nil, fmt.Errorf("list last executions: %w", err)
	}
	defer rows.Close()

	var reports []domain.LastExecution
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan last execution: %w", err)
		}
		var report domain.LastExecution
		if err := json.Unmarshal([]byte(raw), &report); err != nil {
			return nil, fmt.Errorf("unmarshal last execution: %w", err)
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}
