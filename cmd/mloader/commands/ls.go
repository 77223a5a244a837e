package commands

import (
	"fmt"

	"github.com/Cjw9000-py/mloader/pkg/types"

	"github.com/spf13/cobra"
)

var lsCmd = &cobra.Command{
	Use:   "ls [prefix]",
	Short: "List entries in the resource database",
	Long:  `List every file and directory under prefix (the whole database when omitted), sorted by logical path.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if ML == nil {
			return fmt.Errorf("app not initialized")
		}

		var prefix types.PurePath
		if len(args) == 1 {
			prefix = types.NewPurePath(args[0])
		}

		entries, err := ML.DB.List(cmd.Context(), prefix)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, e := range entries {
			if e.IsDir() {
				fmt.Fprintf(out, "%-4s %10s  %s/\n", "dir", "-", e.Path)
				continue
			}
			fmt.Fprintf(out, "%-4s %10d  %s\n", "file", e.Size, e.Path)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lsCmd)
}
