package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/agentic-research/dvk/internal/record"
)

var renameBase string

var renameCmd = &cobra.Command{
	Use:   "rename RECORD...",
	Short: "Fix media extensions from their content, or move a record to a new base name",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if renameBase != "" && len(args) > 1 {
			return errors.New("--base takes exactly one record")
		}
		fsys := rootFS()
		out := cmd.OutOrStdout()
		var failed int
		for _, arg := range args {
			path, err := filepath.Abs(arg)
			if err != nil {
				return err
			}
			r, err := record.Parse(fsys, path)
			if err != nil {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", arg, err)
				failed++
				continue
			}
			var renamed *record.Record
			if renameBase != "" {
				renamed, err = record.RenameFiles(fsys, r, renameBase)
			} else {
				renamed, err = record.FixExtensions(fsys, r, record.MimeSniffer{})
			}
			if err != nil {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", arg, err)
				failed++
				continue
			}
			_, _ = fmt.Fprintf(out, "%s\t%s\n", renamed.Path, renamed.MediaFile)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d records could not be renamed", failed, len(args))
		}
		return nil
	},
}

func init() {
	renameCmd.Flags().StringVar(&renameBase, "base", "", "New base name for the record and its media")
	rootCmd.AddCommand(renameCmd)
}
