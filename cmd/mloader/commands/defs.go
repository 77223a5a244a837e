package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var defTypes []string

var defsCmd = &cobra.Command{
	Use:   "defs",
	Short: "Load definition documents and list the records",
	Long: `Scan the database for definition documents, ingest them into the registry
and print one line per record. Every --type is registered as a generic
definition type; documents with other types fail the load.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if ML == nil {
			return fmt.Errorf("app not initialized")
		}
		if len(defTypes) == 0 {
			return fmt.Errorf("at least one --type is required")
		}

		if err := ML.RegisterGeneric(defTypes...); err != nil {
			return err
		}
		n, err := ML.LoadDefinitions(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, t := range ML.Definitions.Types() {
			for _, d := range ML.Definitions.Definitions(t) {
				fmt.Fprintf(out, "%s\t%s\t%s\n", t, d.Identifier(), sourceOf(d))
			}
		}
		fmt.Fprintf(out, "%d definitions from %d documents\n", ML.Definitions.Len(), n)
		return nil
	},
}

func sourceOf(d any) string {
	if s, ok := d.(interface{ Source() string }); ok {
		return s.Source()
	}
	return "-"
}

func init() {
	defsCmd.Flags().StringSliceVarP(&defTypes, "type", "t", nil, "Definition type to accept (repeatable)")
	rootCmd.AddCommand(defsCmd)
}
