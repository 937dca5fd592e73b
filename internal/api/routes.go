package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	public := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)
	private := Chain(
		Recovery(h.logger),
		Logging(h.logger),
		BearerAuth(h.token),
	)

	mux.Handle("GET /alive", public(http.HandlerFunc(h.Alive)))

	// Data
	mux.Handle("GET /api/v1/data/{module}", private(http.HandlerFunc(h.GetDataPage)))

	// Reports
	if h.reports != nil {
		mux.Handle("GET /api/v1/reports/{subsystem}", private(http.HandlerFunc(h.GetAggregatedReport)))
		mux.Handle("GET /api/v1/reports/{subsystem}/executions", private(http.HandlerFunc(h.ListExecutions)))
	}
}
