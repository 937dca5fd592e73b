// Package worker выполняет модули.
//
// # Обзор
//
// Worker Task — горутина, владеющая одним модулем на время выполнения.
// Оркестратор запускает по одному Task на модуль и ждёт их через errgroup.
//
//	task := worker.New(worker.Config{
//	    Module:  m,
//	    Mailbox: mb,
//	    Logger:  logger,
//	})
//
//	g.Go(func() error { return task.Run(ctx) })
//
// # Протокол
//
//  1. Register(module) — до запуска модуля
//  2. module.Run(ctx) — до Finished или Aborted
//  3. Finished(module) — после этого Task модуль не трогает
//
// Для одного модуля Register всегда предшествует Finished, так как оба
// отправляются из одной горутины.
package worker
