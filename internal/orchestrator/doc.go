// Package orchestrator выполняет подсистему: один запуск всех модулей одного типа.
//
// Orchestrator отвечает за:
//   - Проверку хранилища и data API перед запуском
//   - Получение execution id
//   - Загрузку конфигураций модулей и создание модулей через module.Registry
//   - Запуск Supervisor-а и одного Worker Task на модуль
//   - Ожидание всех Worker Task-ов, затем Report и Exit
//   - Ограничение времени всего выполнения (ErrRunTimeout)
//
// Живые модули учитываются в реестре handles: новый модуль с тем же
// именем создаётся только после завершения предыдущего.
package orchestrator
