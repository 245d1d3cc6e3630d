package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentic-research/dvk/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export [output.db] [root...]",
	Short: "Write the catalog to a SQLite database",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output := args[0]
		roots, err := resolveRoots(args[1:])
		if err != nil {
			return err
		}

		start := time.Now()
		cat, err := loadCatalog(cmd, roots)
		if err != nil {
			return err
		}
		if err := export.WriteCatalog(output, cat); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Exported %d records to %s in %v.\n", cat.Size(), output, time.Since(start).Round(time.Millisecond))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
}
