// Package api содержит HTTP data API Climatica.
//
// Структура:
//   - handler.go        — Handler с DI (хранилища, logger)
//   - routes.go         — регистрация маршрутов
//   - middleware.go     — middleware (logging, recovery, bearer auth)
//   - response.go       — унифицированные JSON-ответы и обработка ошибок
//   - data_handler.go   — страницы собранных данных и /alive
//   - report_handler.go — отчёты подсистем
//
// Конвертеры читают собранные данные через GET /api/v1/data/{module}.
package api
