package cli

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shaiso/Climatica/internal/module"
)

// NewModulesCmd создаёт группу команд для конфигураций модулей.
func NewModulesCmd(dirFn func() string, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "modules",
		Short: "Inspect module configurations",
	}

	cmd.AddCommand(newModulesListCmd(dirFn, outputFn))

	return cmd
}

func newModulesListCmd(dirFn func() string, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List module configurations from MODULES_DIR",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			configs, err := module.LoadConfigs(dirFn())
			if err != nil {
				return err
			}

			headers := []string{"NAME", "KIND", "ENABLED", "FACTORY", "MIN_FREQ", "MAX_FREQ", "DEPENDENCIES"}
			rows := make([][]string, len(configs))
			for i, c := range configs {
				rows[i] = []string{
					c.Name,
					string(c.Kind),
					strconv.FormatBool(c.IsEnabled()),
					c.FactoryName(),
					c.MinUpdateFrequency.String(),
					c.MaxUpdateFrequency.String(),
					valueOrDash(strings.Join(c.Dependencies, ",")),
				}
			}

			out.Print(headers, rows, configs)
			return nil
		},
	}
}
