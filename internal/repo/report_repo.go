package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Climatica/internal/domain"
)

// ReportRepo — отчёты о выполнениях и счётчик execution id в PostgreSQL.
type ReportRepo struct {
	pool *pgxpool.Pool
}

// NewReportRepo создаёт новый ReportRepo.
func NewReportRepo(pool *pgxpool.Pool) *ReportRepo {
	return &ReportRepo{pool: pool}
}

// NextExecutionID атомарно выдаёт следующий идентификатор выполнения подсистемы.
func (r *ReportRepo) NextExecutionID(ctx context.Context, subsystemID string) (int64, error) {
	query := `
		INSERT INTO execution_counters (subsystem_id, last_id)
		VALUES ($1, 1)
		ON CONFLICT (subsystem_id) DO UPDATE SET last_id = execution_counters.last_id + 1
		RETURNING last_id
	`
	var id int64
	if err := r.pool.QueryRow(ctx, query, subsystemID).Scan(&id); err != nil {
		return 0, fmt.Errorf("next execution id: %w", err)
	}
	return id, nil
}

// Aggregated возвращает агрегированный отчёт подсистемы.
// Возвращает ErrNotFound, если отчёта ещё нет.
func (r *ReportRepo) Aggregated(ctx context.Context, subsystemID string) (*domain.AggregatedReport, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx,
		`SELECT body FROM aggregated_reports WHERE subsystem_id = $1`, subsystemID,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get aggregated report: %w", err)
	}

	var report domain.AggregatedReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, fmt.Errorf("unmarshal aggregated report: %w", err)
	}
	return &report, nil
}

// SaveReport в одной транзакции перезаписывает агрегированный отчёт
// и добавляет отчёт о последнем выполнении.
func (r *ReportRepo) SaveReport(ctx context.Context, aggregated *domain.AggregatedReport, last *domain.LastExecution) error {
	aggJSON, err := json.Marshal(aggregated)
	if err != nil {
		return fmt.Errorf("marshal aggregated report: %w", err)
	}
	lastJSON, err := json.Marshal(last)
	if err != nil {
		return fmt.Errorf("marshal last execution: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO aggregated_reports (subsystem_id, body, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (subsystem_id) DO UPDATE SET body = EXCLUDED.body, updated_at = now()
	`, aggregated.SubsystemID, aggJSON)
	if err != nil {
		return fmt.Errorf("upsert aggregated report: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO last_executions (subsystem_id, execution_id, body)
		VALUES ($1, $2, $3)
	`, last.SubsystemID, last.ExecutionID, lastJSON)
	if err != nil {
		return fmt.Errorf("insert last execution: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit report: %w", err)
	}
	return nil
}

// LastExecutions возвращает последние отчёты о выполнениях, новые первыми.
func (r *ReportRepo) LastExecutions(ctx context.Context, subsystemID string, limit int) ([]domain.LastExecution, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT body FROM last_executions
		WHERE subsystem_id = $1
		ORDER BY execution_id DESC
		LIMIT $2
	`, subsystemID, limit)
	if err != nil {
		return nil, fmt.Errorf("list last executions: %w", err)
	}
	defer rows.Close()

	var reports []domain.LastExecution
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan last execution: %w", err)
		}
		var report domain.LastExecution
		if err := json.Unmarshal(raw, &report); err != nil {
			return nil, fmt.Errorf("unmarshal last execution: %w", err)
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}
