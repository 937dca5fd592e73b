package api

import (
	"net/http"
	"strconv"
)

// Alive — проба доступности для конвертеров.
// GET /alive
func (h *Handler) Alive(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// GetDataPage возвращает страницу собранных данных модуля.
// GET /api/v1/data/{module}?startIndex=...&limit=...
//
// Тело ответа — module.Page: {"data": [...], "next_start_index": n | null}.
func (h *Handler) GetDataPage(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("module")
	if name == "" {
		BadRequest(w, "module is required")
		return
	}

	startIndex, ok := queryInt(r, "startIndex", 0)
	if !ok || startIndex < 0 {
		BadRequest(w, "invalid startIndex")
		return
	}

	limit, ok := queryInt(r, "limit", defaultPageLimit)
	if !ok || limit <= 0 {
		BadRequest(w, "invalid limit")
		return
	}
	if limit > h.maxLimit {
		limit = h.maxLimit
	}

	page, err := h.documents.Page(r.Context(), name, startIndex, limit)
	if HandleRepoError(w, h.logger, err, "module data not found") {
		return
	}

	JSON(w, http.StatusOK, page)
}

// queryInt читает целый query-параметр; отсутствующий — def.
func queryInt(r *http.Request, key string, def int) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}
