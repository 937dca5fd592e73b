package api

import (
	"net/http"
)

const defaultExecutionsLimit = 20

// GetAggregatedReport возвращает агрегированный отчёт подсистемы.
// GET /api/v1/reports/{subsystem}
func (h *Handler) GetAggregatedReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.reports.Aggregated(r.Context(), r.PathValue("subsystem"))
	if HandleRepoError(w, h.logger, err, "report not found") {
		return
	}

	Success(w, report)
}

// ListExecutions возвращает последние выполнения подсистемы, новые первыми.
// GET /api/v1/reports/{subsystem}/executions?limit=...
func (h *Handler) ListExecutions(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit", defaultExecutionsLimit)
	if !ok || limit <= 0 {
		BadRequest(w, "invalid limit")
		return
	}

	executions, err := h.reports.LastExecutions(r.Context(), r.PathValue("subsystem"), limit)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	List(w, executions, len(executions))
}
