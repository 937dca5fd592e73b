package cli

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/shaiso/Climatica/internal/domain"
	"github.com/shaiso/Climatica/internal/statefile"
)

// NewStateCmd создаёт группу команд для state-файлов модулей.
//
// Команды работают с локальным каталогом STATE_DIR и не обращаются к API.
func NewStateCmd(storeFn func() *statefile.Store, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect and reset module state files",
	}

	cmd.AddCommand(
		newStateListCmd(storeFn, outputFn),
		newStateShowCmd(storeFn, outputFn),
		newStateResetCmd(storeFn, outputFn),
	)

	return cmd
}

func newStateListCmd(storeFn func() *statefile.Store, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List modules with a state file",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := storeFn()
			out := outputFn()

			names, err := store.List()
			if err != nil {
				return err
			}

			states := make(map[string]domain.ModuleState, len(names))
			headers := []string{"MODULE", "LAST_REQUEST", "UPDATE_FREQUENCY", "RESTART", "LAST_ERROR"}
			rows := make([][]string, 0, len(names))
			for _, name := range names {
				st, err := store.Load(name, domain.ModuleState{})
				if err != nil {
					return err
				}
				states[name] = st

				lastRequest := "-"
				if st.LastRequest != nil {
					lastRequest = st.LastRequest.Format("2006-01-02 15:04:05")
				}
				rows = append(rows, []string{
					name,
					lastRequest,
					st.UpdateFrequency.String(),
					strconv.FormatBool(st.RestartRequired),
					valueOrDash(st.LastErrorClass),
				})
			}

			out.Print(headers, rows, states)
			return nil
		},
	}
}

func newStateShowCmd(storeFn func() *statefile.Store, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show MODULE",
		Short: "Print the state file of a module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := storeFn().ReadRaw(args[0])
			if err != nil {
				return fmt.Errorf("read state of %s: %w", args[0], err)
			}

			var buf bytes.Buffer
			if err := json.Indent(&buf, raw, "", "  "); err != nil {
				return fmt.Errorf("state of %s is not valid JSON: %w", args[0], err)
			}
			outputFn().Raw(buf.Bytes())
			return nil
		},
	}
}

func newStateResetCmd(storeFn func() *statefile.Store, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "reset MODULE",
		Short: "Remove the state file of a module; the next run starts from defaults",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := storeFn().Remove(args[0]); err != nil {
				return err
			}
			outputFn().Success(fmt.Sprintf("State of %s removed", args[0]))
			return nil
		},
	}
}

func valueOrDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
