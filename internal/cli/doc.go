// Package cli реализует инструмент командной строки Climatica.
//
// # Обзор
//
// CLI объединяет два вида команд: клиентские, которые обращаются к data API
// по HTTP, и локальные, которые читают каталоги STATE_DIR и MODULES_DIR
// хоста, на котором запускаются подсистемы.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для data API. Инкапсулирует запросы, парсинг ответов
// (DataResponse, ListResponse, ErrorResponse) и bearer-токен.
//
//	client := cli.NewClient("http://localhost:8080", token)
//	agg, err := client.GetAggregatedReport("climatica-collector")
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: climatica report executions gathering --json | jq .
//
// ## Commands
//
//   - report: show, executions — отчёты подсистем через API
//   - data: страница собранных данных модуля через API
//   - state: list, show, reset — локальные state-файлы модулей
//   - modules: list — локальные конфигурации модулей
//   - notify — алерты из RabbitMQ
//
// Каждая группа создаётся через фабричную функцию (NewReportCmd и т.д.),
// принимающую замыкания для ленивого создания зависимостей после
// парсинга PersistentFlags.
package cli
