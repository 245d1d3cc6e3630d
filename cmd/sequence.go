package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentic-research/dvk/internal/catalog"
	"github.com/agentic-research/dvk/internal/sequence"
)

var seqSection string

var sequenceCmd = &cobra.Command{
	Use:   "sequence ID [root...]",
	Short: "Print the sequence a record belongs to",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roots, err := resolveRoots(args[1:])
		if err != nil {
			return err
		}
		cat, err := loadCatalog(cmd, roots)
		if err != nil {
			return err
		}
		start := cat.IndexOfID(args[0])
		if start < 0 {
			return fmt.Errorf("no record with id %q", args[0])
		}

		g := sequence.Build(cat)
		out := cmd.OutOrStdout()
		if cmd.Flags().Changed("section") {
			for _, i := range g.Indices(start, seqSection, true) {
				_, _ = fmt.Fprintf(out, "%s\t%s\n", cat.ID(i), cat.Title(i))
			}
			return nil
		}
		for _, line := range outlineLines(cat, g.Outline(start)) {
			_, _ = fmt.Fprintln(out, line)
		}
		return nil
	},
}

func outlineLines(cat *catalog.Catalog, entries []sequence.Entry) []string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		indent := strings.Repeat("  ", e.Depth)
		switch e.Kind {
		case sequence.KindBranch:
			label := e.Label
			if label == "" {
				label = "(branch)"
			}
			lines = append(lines, indent+"+ "+label)
		case sequence.KindRepeat:
			lines = append(lines, fmt.Sprintf("%s^ %s\t%s (repeat)", indent, cat.ID(e.Index), cat.Title(e.Index)))
		default:
			lines = append(lines, fmt.Sprintf("%s%s\t%s", indent, cat.ID(e.Index), cat.Title(e.Index)))
		}
	}
	return lines
}

func init() {
	sequenceCmd.Flags().StringVar(&seqSection, "section", "", "Only print records of this section")
	rootCmd.AddCommand(sequenceCmd)
}
