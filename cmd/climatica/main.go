// Climatica CLI — отчёты и данные через data API, локальные state-файлы
// и конфигурации модулей, алерты из RabbitMQ.
//
// Использование:
//
//	climatica [--api-url URL] [--token TOKEN] [--json] <command> [subcommand] [flags]
//
// Команды:
//
//	report   Отчёты подсистем
//	data     Страница собранных данных модуля
//	state    State-файлы модулей (list, show, reset)
//	modules  Конфигурации модулей
//	notify   Алерты о выполнениях
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/Climatica/internal/cli"
	"github.com/shaiso/Climatica/internal/config"
	"github.com/shaiso/Climatica/internal/statefile"
	"github.com/shaiso/Climatica/internal/telemetry"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var token string
	var jsonOutput bool
	var stateDir string
	var modulesDir string
	var rabbitURL string

	rootCmd := &cobra.Command{
		Use:           "climatica",
		Short:         "Climatica CLI — data collection subsystems toolbox",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", envOr("API_URL", config.DefaultAPIURL), "Data API URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("API_TOKEN"), "Data API bearer token")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVar(&stateDir, "state-dir", envOr("STATE_DIR", config.DefaultStateDir), "Module state directory")
	rootCmd.PersistentFlags().StringVar(&modulesDir, "modules-dir", envOr("MODULES_DIR", config.DefaultModulesDir), "Module configuration directory")
	rootCmd.PersistentFlags().StringVar(&rabbitURL, "rabbitmq-url", envOr("RABBITMQ_URL", config.DefaultRabbitMQURL), "RabbitMQ URL")

	// Логи CLI — в stderr, чтобы не смешиваться с выводом команд
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: telemetry.LogLevel()}))

	clientFn := func() *cli.Client { return cli.NewClient(apiURL, token) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }
	storeFn := func() *statefile.Store { return statefile.New(stateDir, nil) }

	rootCmd.AddCommand(
		cli.NewReportCmd(clientFn, outputFn),
		cli.NewDataCmd(clientFn, outputFn),
		cli.NewStateCmd(storeFn, outputFn),
		cli.NewModulesCmd(func() string { return modulesDir }, outputFn),
		cli.NewNotifyCmd(func() string { return rabbitURL }, outputFn, logger),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
