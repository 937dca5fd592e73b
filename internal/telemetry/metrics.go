package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики выполнения модулей.
var (
	// ModuleExecutions — завершённые выполнения модулей по исходу.
	ModuleExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "climatica_module_executions_total",
		Help: "Module executions by module and outcome (succeeded, failed, skipped)",
	}, []string{"subsystem", "module", "outcome"})

	// ModulesRepaired — модули, которым Supervisor запланировал повтор.
	ModulesRepaired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "climatica_modules_repaired_total",
		Help: "Modules repaired by the supervisor after an unscheduled abort",
	}, []string{"subsystem", "module"})

	// ModuleBackoffSeconds — текущий backoff модуля в секундах.
	ModuleBackoffSeconds = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "climatica_module_backoff_seconds",
		Help: "Current backoff time of a module in seconds",
	}, []string{"subsystem", "module"})

	// RunDuration — длительность выполнения подсистемы.
	RunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "climatica_run_duration_seconds",
		Help:    "Wall-clock duration of one orchestrated subsystem run",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
	}, []string{"subsystem"})

	// RunsTotal — выполнения подсистемы по результату.
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "climatica_runs_total",
		Help: "Orchestrated subsystem runs by result (ok, error, timeout)",
	}, []string{"subsystem", "result"})
)
