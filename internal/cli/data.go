package cli

import (
	"github.com/spf13/cobra"
)

// NewDataCmd создаёт команду чтения собранных данных модуля.
func NewDataCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var startIndex int
	var limit int

	cmd := &cobra.Command{
		Use:   "data MODULE",
		Short: "Fetch a page of collected data of a module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			page, err := client.GetDataPage(args[0], startIndex, limit)
			if err != nil {
				return err
			}

			out.JSON(page)
			return nil
		},
	}

	cmd.Flags().IntVar(&startIndex, "start-index", 0, "Index of the first document")
	cmd.Flags().IntVar(&limit, "limit", 0, "Page size (server default when 0)")

	return cmd
}
