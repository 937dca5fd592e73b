// Package engine содержит движок выполнения модулей.
//
// Включает:
//   - table.go   — неизменяемые таблицы переходов коллектора и конвертера
//   - machine.go — конечный автомат, прогоняющий модуль по таблице
//   - guard.go   — решения guard-а (Continue / Redirect)
//   - backoff.go — политика backoff после ошибок
//   - pending.go — проверка наличия работы (update_frequency, backoff_time)
//
// Engine ничего не знает о сети и хранилищах: конкретные действия
// стадий предоставляет модуль через интерфейс Stages.
package engine
