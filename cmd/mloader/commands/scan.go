package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Find definition documents in the database",
	Long:  `Walk the database and print every file whose extension marks it as a definition document.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if ML == nil {
			return fmt.Errorf("app not initialized")
		}
		if _, err := ML.Scanner.Scan(cmd.Context()); err != nil {
			return err
		}
		return ML.Scanner.Dump(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
}
