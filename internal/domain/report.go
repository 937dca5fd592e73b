package domain

import "time"

// UnknownCause — ключ failure_details для модулей без сохранённой ошибки.
const UnknownCause = "unknown cause"

// AggregatedKey — ключ записи агрегированного отчёта.
const AggregatedKey = "aggregated"

// ModuleTotals — накопленная статистика одного модуля за всё время.
type ModuleTotals struct {
	TotalExecutions           int `json:"total_executions"`
	ExecutionsWithPendingWork int `json:"executions_with_pending_work"`
	SucceededExecutions       int `json:"succeeded_executions"`
	FailedExecutions          int `json:"failed_executions"`

	// FailureDetails — класс ошибки → execution id, в которых она случилась.
	FailureDetails map[string][]int64 `json:"failure_details"`
}

// NewModuleTotals создаёт пустую статистику модуля.
func NewModuleTotals() *ModuleTotals {
	return &ModuleTotals{FailureDetails: make(map[string][]int64)}
}

// PendingModule — счётчики модуля, у которого была работа в этом выполнении.
type PendingModule struct {
	CollectedElements *int `json:"collected_elements,omitempty"`
	ConvertedElements *int `json:"converted_elements,omitempty"`
	SavedElements     *int `json:"saved_elements"`
}

// FailedModules — неудачные модули выполнения.
type FailedModules struct {
	Amount  int      `json:"amount"`
	Modules []string `json:"modules"`
}

// LastExecution — отчёт об одном выполнении подсистемы.
type LastExecution struct {
	SubsystemID      string    `json:"subsystem_id"`
	ExecutionID      int64     `json:"execution_id"`
	SubsystemVersion string    `json:"subsystem_version"`
	Timestamp        time.Time `json:"timestamp"`

	// Duration — длительность выполнения в секундах.
	Duration           float64 `json:"duration"`
	ExecutionSucceeded bool    `json:"execution_succeeded"`

	CollectedElements int `json:"collected_elements"`
	ConvertedElements int `json:"converted_elements"`
	InsertedElements  int `json:"inserted_elements"`

	ModulesExecuted        int                      `json:"modules_executed"`
	ModulesWithPendingWork map[string]PendingModule `json:"modules_with_pending_work"`
	ModulesSucceeded       int                      `json:"modules_succeeded"`
	ModulesFailed          FailedModules            `json:"modules_failed"`

	// LastReportNotFetched — предыдущий агрегированный отчёт не найден.
	LastReportNotFetched bool `json:"last_report_not_fetched,omitempty"`
}

// AggregatedReport — накопленный отчёт подсистемы, перезаписывается каждое выполнение.
type AggregatedReport struct {
	SubsystemID     string    `json:"subsystem_id"`
	Executions      int       `json:"executions"`
	LastExecutionID int64     `json:"last_execution_id"`
	Timestamp       time.Time `json:"timestamp"`

	MaxDuration   float64 `json:"max_duration"`
	MinDuration   float64 `json:"min_duration"`
	MeanDuration  float64 `json:"mean_duration"`
	ExecutionTime float64 `json:"execution_time"`

	CollectedElements int `json:"collected_elements"`
	ConvertedElements int `json:"converted_elements"`
	InsertedElements  int `json:"inserted_elements"`

	SucceededExecutions int `json:"succeeded_executions"`
	FailedExecutions    int `json:"failed_executions"`

	PerModule map[string]*ModuleTotals `json:"per_module"`
}

// NewAggregatedReport создаёт пустой агрегированный отчёт.
func NewAggregatedReport(subsystemID string) *AggregatedReport {
	return &AggregatedReport{
		SubsystemID: subsystemID,
		PerModule:   make(map[string]*ModuleTotals),
	}
}

// Module возвращает статистику модуля, создавая её при необходимости.
func (r *AggregatedReport) Module(name string) *ModuleTotals {
	if r.PerModule == nil {
		r.PerModule = make(map[string]*ModuleTotals)
	}
	totals, ok := r.PerModule[name]
	if !ok {
		totals = NewModuleTotals()
		r.PerModule[name] = totals
	}
	if totals.FailureDetails == nil {
		totals.FailureDetails = make(map[string][]int64)
	}
	return totals
}

// RecordDuration учитывает длительность нового выполнения.
//
// Executions должен быть уже увеличен. Первое измерение задаёт min и max.
func (r *AggregatedReport) RecordDuration(duration float64) {
	first := r.Executions <= 1
	if first || duration > r.MaxDuration {
		r.MaxDuration = duration
	}
	if first || duration < r.MinDuration {
		r.MinDuration = duration
	}
	if r.Executions <= 0 {
		r.MeanDuration = duration
	} else {
		r.MeanDuration = (r.MeanDuration*float64(r.Executions-1) + duration) / float64(r.Executions)
	}
	r.ExecutionTime += duration
}
