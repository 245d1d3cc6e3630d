package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentic-research/dvk/api"
	"github.com/agentic-research/dvk/internal/record"
	"github.com/agentic-research/dvk/internal/view"
)

var (
	sortKey        string
	groupArtist    bool
	groupSequence  bool
	groupSection   bool
	reverseOrder   bool
	filterTitle    string
	filterDesc     string
	filterWebTags  string
	filterUserTags string
	filterArtists  string
	caseSensitive  bool
	listLimit      int
)

var listCmd = &cobra.Command{
	Use:   "list [root...]",
	Short: "Print the catalog sorted and filtered",
	RunE: func(cmd *cobra.Command, args []string) error {
		roots, err := resolveRoots(args)
		if err != nil {
			return err
		}
		opts, err := sortOptions(cmd, cfg.Sort)
		if err != nil {
			return err
		}
		cat, err := loadCatalog(cmd, roots)
		if err != nil {
			return err
		}

		v := view.New(cat)
		v.Sort(opts)
		if err := v.Filter(view.FilterQuery{
			Title:         filterTitle,
			Description:   filterDesc,
			WebTags:       filterWebTags,
			UserTags:      filterUserTags,
			Artists:       filterArtists,
			CaseSensitive: caseSensitive,
		}); err != nil {
			return err
		}
		writeView(cmd.OutOrStdout(), v, listLimit)
		return nil
	},
}

// sortOptions starts from the configured defaults and applies the flags
// the user actually set.
func sortOptions(cmd *cobra.Command, defaults *api.SortConfig) (view.SortOptions, error) {
	key := defaults.Key
	if cmd.Flags().Changed("sort") {
		key = sortKey
	}
	k, err := view.ParseKey(key)
	if err != nil {
		return view.SortOptions{}, err
	}
	opts := view.SortOptions{
		Key:             k,
		GroupByArtist:   defaults.GroupByArtist,
		GroupBySequence: defaults.GroupBySequence,
		GroupBySection:  defaults.GroupBySection,
		Reverse:         defaults.Reverse,
	}
	for _, f := range []struct {
		name string
		dst  *bool
		val  bool
	}{
		{"group-artist", &opts.GroupByArtist, groupArtist},
		{"group-sequence", &opts.GroupBySequence, groupSequence},
		{"group-section", &opts.GroupBySection, groupSection},
		{"reverse", &opts.Reverse, reverseOrder},
	} {
		if cmd.Flags().Changed(f.name) {
			*f.dst = f.val
		}
	}
	return opts, nil
}

func writeView(w io.Writer, v *view.View, limit int) {
	n := v.Len()
	if limit > 0 && limit < n {
		n = limit
	}
	for i := 0; i < n; i++ {
		t := record.FormatTime(v.TimeAt(i))
		if t == "" {
			t = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", v.IDAt(i), t, strings.Join(v.ArtistsAt(i), ", "), v.TitleAt(i))
	}
}

func init() {
	f := listCmd.Flags()
	f.StringVar(&sortKey, "sort", "title", "Sort key: title, time or rating")
	f.BoolVar(&groupArtist, "group-artist", false, "Group by artist first")
	f.BoolVar(&groupSequence, "group-sequence", false, "Keep sequences together")
	f.BoolVar(&groupSection, "group-section", false, "Keep sections of a sequence together")
	f.BoolVar(&reverseOrder, "reverse", false, "Reverse the final order")
	f.StringVar(&filterTitle, "title", "", "Boolean query on titles")
	f.StringVar(&filterDesc, "desc", "", "Boolean query on descriptions")
	f.StringVar(&filterWebTags, "web-tags", "", "Boolean query on web tags")
	f.StringVar(&filterUserTags, "user-tags", "", "Boolean query on user tags")
	f.StringVar(&filterArtists, "artists", "", "Boolean query on artists")
	f.BoolVar(&caseSensitive, "case-sensitive", false, "Match queries case sensitively")
	f.IntVar(&listLimit, "limit", 0, "Print at most this many records (0 = all)")
	rootCmd.AddCommand(listCmd)
}
