package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/agentic-research/dvk/internal/export"
	"github.com/agentic-research/dvk/internal/natsort"
)

var tagKind string

var tagsCmd = &cobra.Command{
	Use:   "tags export.db",
	Short: "Count tags in an exported catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch tagKind {
		case export.TagWeb, export.TagUser, export.TagArtist:
		default:
			return fmt.Errorf("unknown tag kind %q", tagKind)
		}
		counts, err := export.TagCounts(args[0], tagKind)
		if err != nil {
			return err
		}

		tags := make([]string, 0, len(counts))
		for t := range counts {
			tags = append(tags, t)
		}
		sort.SliceStable(tags, func(i, j int) bool {
			if counts[tags[i]] != counts[tags[j]] {
				return counts[tags[i]] > counts[tags[j]]
			}
			return natsort.Less(tags[i], tags[j])
		})
		out := cmd.OutOrStdout()
		for _, t := range tags {
			_, _ = fmt.Fprintf(out, "%d\t%s\n", counts[t], t)
		}
		return nil
	},
}

func init() {
	tagsCmd.Flags().StringVar(&tagKind, "kind", export.TagWeb, "Tag kind: web, user or artist")
	rootCmd.AddCommand(tagsCmd)
}
