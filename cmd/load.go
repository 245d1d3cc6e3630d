package cmd

import (
	"errors"
	"fmt"
	"io"
	"log"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/agentic-research/dvk/internal/catalog"
	"github.com/agentic-research/dvk/internal/indexcache"
)

// rootFS is the filesystem every command reads records through. Paths are
// absolute.
func rootFS() billy.Filesystem { return osfs.New("/") }

// stderrProgress prints load progress, one line per directory.
type stderrProgress struct {
	w     io.Writer
	phase catalog.Phase
}

func (p *stderrProgress) SetPhase(ph catalog.Phase) {
	p.phase = ph
	_, _ = fmt.Fprintf(p.w, "%s...\n", ph)
}

func (p *stderrProgress) SetLabel(l string) {
	_, _ = fmt.Fprintf(p.w, "  %s %s\n", p.phase, l)
}

func resolveRoots(args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	if len(cfg.Roots) > 0 {
		return cfg.Roots, nil
	}
	return nil, errors.New("no roots given and none configured")
}

// loadCatalog builds the catalog of roots through the index cache. A cache
// that cannot be opened degrades to direct parsing.
func loadCatalog(cmd *cobra.Command, roots []string) (*catalog.Catalog, error) {
	fsys := rootFS()

	var cache *indexcache.Cache
	if !cfg.Cache.Disabled {
		flavour, err := cacheFlavour(cfg.Cache.Flavour)
		if err != nil {
			return nil, err
		}
		c, err := indexcache.Open(fsys, cfg.Cache.Dir, indexcache.Options{
			Flavour:         flavour,
			MaxIdleSessions: cfg.Cache.MaxIdleSessions,
		})
		if err != nil {
			log.Printf("Loader: index cache unavailable, parsing directly: %v", err)
		} else {
			cache = c
			defer func() { _ = cache.Close() }()
		}
	}

	opts := catalog.LoadOptions{
		UseCache:     cache != nil,
		RefreshStale: !cfg.Cache.NoRefresh,
	}
	if verbose {
		opts.Progress = &stderrProgress{w: cmd.ErrOrStderr()}
	}

	res := <-catalog.NewLoader(fsys, cache).LoadAsync(cmd.Context(), roots, opts)
	if !res.Complete {
		return nil, errors.New("load cancelled before all directories were read")
	}
	return res.Catalog, nil
}
