package orchestrator

import "errors"

// Ошибки оркестратора.
var (
	// ErrStorageUnreachable — хранилище не отвечает на ping.
	ErrStorageUnreachable = errors.New("storage is unreachable")

	// ErrUpstreamUnreachable — data API не отвечает на /alive.
	ErrUpstreamUnreachable = errors.New("upstream data API is unreachable")

	// ErrNoModules — не найдено ни одного включённого модуля.
	ErrNoModules = errors.New("no modules to execute")

	// ErrRunTimeout — выполнение не уложилось в RunTimeout.
	ErrRunTimeout = errors.New("subsystem run timed out")

	// ErrModuleStillRunning — модуль предыдущего выполнения ещё не завершился.
	ErrModuleStillRunning = errors.New("module from a previous run is still running")

	// ErrNoReportStore — оркестратор создан без хранилища отчётов.
	ErrNoReportStore = errors.New("orchestrator requires a report store")
)
