package supervisor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/shaiso/Climatica/internal/domain"
	"github.com/shaiso/Climatica/internal/repo"
)

// generateReport строит отчёт текущего выполнения и обновляет агрегированный.
//
// Если предыдущий агрегированный отчёт не прочитан, счёт начинается заново,
// а в отчёте выполнения выставляется last_report_not_fetched.
func (s *Supervisor) generateReport(ctx context.Context, duration float64) error {
	s.logger.Info("fetching the last execution report")
	aggregated, err := s.reports.Aggregated(ctx, s.subsystemID)
	notFetched := false
	if err != nil {
		notFetched = true
		attrs := []any{"flag", "last_report_not_fetched"}
		if !errors.Is(err, repo.ErrNotFound) {
			attrs = append(attrs, "error", err)
		}
		s.logger.Warn("the last execution report could not be fetched", attrs...)
		aggregated = domain.NewAggregatedReport(s.subsystemID)
	}

	last := BuildReport(aggregated, s.registered, ReportInput{
		SubsystemID:      s.subsystemID,
		SubsystemVersion: s.subsystemVersion,
		ExecutionID:      s.executionID,
		Duration:         duration,
		Timestamp:        s.now().UTC(),
	})
	last.LastReportNotFetched = notFetched

	if err := s.reports.SaveReport(ctx, aggregated, last); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	s.report = last

	s.publish(ctx, "report generated", func(ctx context.Context) error {
		return s.events.PublishReport(ctx, last)
	})
	s.logSummary(aggregated, last)
	return nil
}

// ReportInput — параметры текущего выполнения для BuildReport.
type ReportInput struct {
	SubsystemID      string
	SubsystemVersion string
	ExecutionID      int64
	Duration         float64
	Timestamp        time.Time
}

// BuildReport учитывает модули выполнения в aggregated и возвращает отчёт выполнения.
//
// aggregated изменяется на месте.
func BuildReport(aggregated *domain.AggregatedReport, modules []Target, in ReportInput) *domain.LastExecution {
	last := &domain.LastExecution{
		SubsystemID:        in.SubsystemID,
		ExecutionID:        in.ExecutionID,
		SubsystemVersion:   in.SubsystemVersion,
		Timestamp:          in.Timestamp,
		Duration:           in.Duration,
		ExecutionSucceeded: true,
		ModulesExecuted:    len(modules),
	}

	pending := make(map[string]domain.PendingModule)
	var failed []string

	for _, t := range modules {
		name := t.Name()
		state := t.State()
		totals := aggregated.Module(name)
		totals.TotalExecutions++

		collected, converted := counters(t.Kind(), state)
		last.CollectedElements += domain.IntValue(collected)
		last.ConvertedElements += domain.IntValue(converted)
		last.InsertedElements += domain.IntValue(state.InsertedElements)

		if t.Successful() {
			last.ModulesSucceeded++
			totals.SucceededExecutions++
		} else {
			last.ExecutionSucceeded = false
			failed = append(failed, name)
			totals.FailedExecutions++

			cause := domain.UnknownCause
			if state.Error != nil && state.Error.Class != "" {
				cause = state.Error.Class
			}
			totals.FailureDetails[cause] = append(totals.FailureDetails[cause], in.ExecutionID)
		}

		if t.PendingWork() {
			pending[name] = domain.PendingModule{
				CollectedElements: collected,
				ConvertedElements: converted,
				SavedElements:     state.InsertedElements,
			}
			totals.ExecutionsWithPendingWork++
		}
	}

	if len(pending) > 0 {
		last.ModulesWithPendingWork = pending
	}
	last.ModulesFailed = domain.FailedModules{Amount: len(failed), Modules: failed}

	aggregated.SubsystemID = in.SubsystemID
	aggregated.Executions++
	aggregated.LastExecutionID = in.ExecutionID
	aggregated.Timestamp = in.Timestamp
	aggregated.RecordDuration(in.Duration)
	aggregated.CollectedElements += last.CollectedElements
	aggregated.ConvertedElements += last.ConvertedElements
	aggregated.InsertedElements += last.InsertedElements
	if last.ExecutionSucceeded {
		aggregated.SucceededExecutions++
	} else {
		aggregated.FailedExecutions++
	}
	return last
}

// counters возвращает счётчики прочитанных и сконвертированных элементов.
// Для конвертера прочитанными считаются elements_to_convert.
func counters(kind domain.Kind, state domain.ModuleState) (collected, converted *int) {
	if kind == domain.KindConverter {
		return state.ElementsToConvert, state.ConvertedElements
	}
	return state.DataElements, nil
}

// logSummary пишет в лог отчёт без служебных полей.
func (s *Supervisor) logSummary(aggregated *domain.AggregatedReport, last *domain.LastExecution) {
	summary := struct {
		LastExecution *domain.LastExecution `json:"last_execution"`
		Aggregated    aggregatedView        `json:"aggregated"`
	}{
		LastExecution: last,
		Aggregated:    aggregatedView{AggregatedReport: aggregated},
	}

	out, err := json.MarshalIndent(summary, "", "    ")
	if err != nil {
		s.logger.Warn("execution report could not be formatted", "error", err)
		return
	}
	s.logger.Debug("execution results:\n" + string(out))
	s.logger.Info("execution report saved",
		"execution_succeeded", last.ExecutionSucceeded,
		"modules_executed", last.ModulesExecuted,
		"modules_failed", last.ModulesFailed.Amount,
		"duration", last.Duration,
	)
}

// aggregatedView скрывает служебные поля агрегированного отчёта.
type aggregatedView struct {
	*domain.AggregatedReport
	LastExecutionID any `json:"last_execution_id,omitempty"`
	Timestamp       any `json:"timestamp,omitempty"`
}
