// Package scheduler запускает выполнения подсистемы по cron-расписанию.
//
// Структура:
//   - scheduler.go — цикл ожидания и запуск одного выполнения на тик
//   - cron.go      — парсинг cron-выражений и вычисление следующего времени
//
// Использование:
//
//	sched, err := scheduler.New(scheduler.Config{
//	    Schedule: "*/15 * * * *",
//	    Run:      func(ctx context.Context) error { _, err := orch.Run(ctx); return err },
//	    Logger:   logger,
//	})
//
//	// Блокирует до отмены ctx
//	sched.Loop(ctx)
//
// Выполнения не накладываются: тик, пришедший во время выполнения,
// пропускается.
package scheduler
