package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewReportCmd создаёт группу команд для просмотра отчётов подсистем.
func NewReportCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Inspect subsystem execution reports",
	}

	cmd.AddCommand(
		newReportShowCmd(clientFn, outputFn),
		newReportExecutionsCmd(clientFn, outputFn),
	)

	return cmd
}

func newReportShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show SUBSYSTEM_ID",
		Short: "Show the aggregated report of a subsystem",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			agg, err := client.GetAggregatedReport(args[0])
			if err != nil {
				return err
			}

			headers := []string{"FIELD", "VALUE"}
			rows := [][]string{
				{"Subsystem", agg.SubsystemID},
				{"Executions", strconv.Itoa(agg.Executions)},
				{"Last execution", strconv.FormatInt(agg.LastExecutionID, 10)},
				{"Succeeded / failed", fmt.Sprintf("%d / %d", agg.SucceededExecutions, agg.FailedExecutions)},
				{"Duration min / mean / max", fmt.Sprintf("%.2fs / %.2fs / %.2fs", agg.MinDuration, agg.MeanDuration, agg.MaxDuration)},
				{"Total execution time", fmt.Sprintf("%.2fs", agg.ExecutionTime)},
				{"Collected", strconv.Itoa(agg.CollectedElements)},
				{"Converted", strconv.Itoa(agg.ConvertedElements)},
				{"Inserted", strconv.Itoa(agg.InsertedElements)},
			}

			out.Print(headers, rows, agg)
			return nil
		},
	}
}

func newReportExecutionsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "executions SUBSYSTEM_ID",
		Short: "List the latest executions of a subsystem",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			executions, err := client.ListExecutions(args[0], limit)
			if err != nil {
				return err
			}

			headers := []string{"ID", "TIMESTAMP", "DURATION", "OK", "MODULES", "FAILED", "INSERTED"}
			rows := make([][]string, len(executions))
			for i, e := range executions {
				rows[i] = []string{
					strconv.FormatInt(e.ExecutionID, 10),
					e.Timestamp.Format("2006-01-02 15:04:05"),
					fmt.Sprintf("%.2fs", e.Duration),
					strconv.FormatBool(e.ExecutionSucceeded),
					fmt.Sprintf("%d/%d", e.ModulesSucceeded, e.ModulesExecuted),
					strconv.Itoa(e.ModulesFailed.Amount),
					strconv.Itoa(e.InsertedElements),
				}
			}

			out.Print(headers, rows, executions)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}
