package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/Climatica/internal/mq"
)

// NewNotifyCmd создаёт команду, которая выводит события подсистем как алерты.
func NewNotifyCmd(urlFn func() string, outputFn func() *Output, logger *slog.Logger) *cobra.Command {
	var (
		prefetch     int
		failuresOnly bool
	)

	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Consume subsystem events from RabbitMQ and print them as alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			conn, err := mq.Dial(ctx, mq.DialConfig{URL: urlFn(), Attempts: 10, Logger: logger})
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := mq.SetupTopology(ctx, conn); err != nil {
				return fmt.Errorf("setup topology: %w", err)
			}
			logger.Debug("rabbitmq topology declared", "topology", mq.TopologyInfo())

			handlers := AlertHandlers(out)
			if failuresOnly {
				handlers.Report = nil
			}
			consumer := mq.NewEventConsumer(conn, mq.ConsumerConfig{
				Queue:    mq.QueueAlerts,
				Handlers: handlers,
				Prefetch: prefetch,
				Logger:   logger,
			})

			out.Success("Listening for events on " + string(mq.QueueAlerts))
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&prefetch, "prefetch", 10, "Number of unacknowledged events")
	cmd.Flags().BoolVar(&failuresOnly, "failures-only", false, "Skip execution reports, print module failures and restarts only")

	return cmd
}

// alert — событие в JSON-выводе notify.
type alert struct {
	Time    time.Time      `json:"time"`
	Type    mq.MessageType `json:"type"`
	Summary string         `json:"summary"`
	Event   mq.Event       `json:"event"`
}

// AlertHandlers печатает каждое событие строкой алерта или JSON-объектом.
func AlertHandlers(out *Output) mq.EventHandlers {
	return mq.EventHandlers{
		ModuleFailed: func(_ context.Context, at time.Time, ev mq.ModuleFailed) error {
			printAlert(out, at, ev)
			return nil
		},
		ModuleRepaired: func(_ context.Context, at time.Time, ev mq.ModuleRepaired) error {
			printAlert(out, at, ev)
			return nil
		},
		Report: func(_ context.Context, at time.Time, ev mq.ReportGenerated) error {
			printAlert(out, at, ev)
			return nil
		},
	}
}

func printAlert(out *Output, at time.Time, ev mq.Event) {
	if out.jsonMode {
		out.JSON(alert{Time: at, Type: ev.Type(), Summary: ev.Describe(), Event: ev})
		return
	}
	fmt.Fprintf(out.w, "%s %s\n", at.Format("2006-01-02 15:04:05"), ev.Describe())
}
