package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentic-research/dvk/internal/scanner"
)

var scanCmd = &cobra.Command{
	Use:   "scan [root...]",
	Short: "List the directories that hold record files",
	RunE: func(cmd *cobra.Command, args []string) error {
		roots, err := resolveRoots(args)
		if err != nil {
			return err
		}
		dirs, err := scanner.FindFolders(cmd.Context(), rootFS(), roots)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, d := range dirs {
			_, _ = fmt.Fprintln(out, d)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
}
