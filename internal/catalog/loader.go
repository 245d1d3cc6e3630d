package catalog

import (
	"context"
	"log"
	"time"

	billy "github.com/go-git/go-billy/v5"

	"github.com/agentic-research/dvk/internal/indexcache"
	"github.com/agentic-research/dvk/internal/metrics"
	"github.com/agentic-research/dvk/internal/scanner"
)

// Phase names the stage a load is in.
type Phase string

const (
	PhaseScanning Phase = "scanning"
	PhaseLoading  Phase = "loading"
)

// Progress receives load progress. Implementations must be cheap; they are
// called once per directory.
type Progress interface {
	SetPhase(Phase)
	SetLabel(string)
}

type nopProgress struct{}

func (nopProgress) SetPhase(Phase)  {}
func (nopProgress) SetLabel(string) {}

// LoadOptions controls how directories are read.
type LoadOptions struct {
	// UseCache reads directory snapshots when a cache is attached.
	UseCache bool
	// RefreshStale reconciles snapshots against the files on disk.
	RefreshStale bool
	Progress     Progress
}

// LoadResult is the outcome of a load. When Complete is false the load was
// cancelled and Catalog holds only the directories finished before that.
type LoadResult struct {
	Catalog  *Catalog
	Dirs     []string
	Complete bool
}

// Loader builds catalogs from directory trees.
type Loader struct {
	fsys  billy.Filesystem
	cache *indexcache.Cache
}

// NewLoader returns a loader reading through fsys. cache may be nil, in
// which case every directory is parsed directly.
func NewLoader(fsys billy.Filesystem, cache *indexcache.Cache) *Loader {
	return &Loader{fsys: fsys, cache: cache}
}

// Load scans roots and accumulates every directory's records into a new
// catalog. ctx is polled between directories.
func (l *Loader) Load(ctx context.Context, roots []string, opts LoadOptions) LoadResult {
	start := time.Now()
	progress := opts.Progress
	if progress == nil {
		progress = nopProgress{}
	}
	cat := New()

	progress.SetPhase(PhaseScanning)
	dirs, err := scanner.FindFolders(ctx, l.fsys, roots)
	if err != nil {
		log.Printf("Loader: scan cancelled after %d directories: %v", len(dirs), err)
		return LoadResult{Catalog: cat}
	}

	progress.SetPhase(PhaseLoading)
	for n, dir := range dirs {
		if err := ctx.Err(); err != nil {
			log.Printf("Loader: load cancelled at %s: %v", dir, err)
			return LoadResult{Catalog: cat, Dirs: dirs[:n]}
		}
		progress.SetLabel(dir)

		var set indexcache.RecordSet
		if l.cache != nil {
			set = l.cache.Load(dir, opts.UseCache, opts.RefreshStale)
			l.cache.Save(set)
		} else {
			set = indexcache.ScanDir(l.fsys, dir)
		}
		for _, r := range set.Records {
			cat.Append(r)
		}
	}

	metrics.CatalogRecords.Set(float64(cat.Size()))
	metrics.LoadDuration.Observe(time.Since(start).Seconds())
	return LoadResult{Catalog: cat, Dirs: dirs, Complete: true}
}

// LoadAsync runs Load on its own goroutine. The returned channel yields
// exactly one result and is then closed.
func (l *Loader) LoadAsync(ctx context.Context, roots []string, opts LoadOptions) <-chan LoadResult {
	out := make(chan LoadResult, 1)
	go func() {
		defer close(out)
		out <- l.Load(ctx, roots, opts)
	}()
	return out
}
