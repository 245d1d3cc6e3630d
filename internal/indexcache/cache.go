// Package indexcache keeps a per-directory snapshot of parsed records so
// unchanged directories do not have to be re-parsed on every load.
//
// The cache directory holds an index list (index.ini) mapping numbered slots
// to absolute directories, one snapshot file per slot, and a lock file that
// keeps two processes from sharing the cache.
package indexcache

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/natefinch/atomic"

	"github.com/agentic-research/dvk/internal/metrics"
	"github.com/agentic-research/dvk/internal/record"
	"github.com/agentic-research/dvk/internal/scanner"
)

// Flavour selects the index list layout.
type Flavour int

const (
	// FlavourDVK keeps only the slot to directory list.
	FlavourDVK Flavour = iota
	// FlavourDMF also tracks how many sessions each slot went unread and
	// evicts slots idle for longer than Options.MaxIdleSessions.
	FlavourDMF
)

const snapshotExt = ".snap"

var snapshotName = regexp.MustCompile(`^(\d+)\.snap$`)

// Options configures a Cache.
type Options struct {
	Flavour         Flavour
	MaxIdleSessions int
}

// RecordSet is one directory's contribution to the catalog. Changed is false
// only when Records is exactly what the directory's snapshot holds; saving
// such a set would rewrite the snapshot and move its modification time past
// record edits that were never reconciled.
type RecordSet struct {
	Dir     string
	Records []*record.Record
	Changed bool
}

// Cache is the directory snapshot cache. It is not safe for concurrent use;
// the lock taken by Open keeps other processes out.
type Cache struct {
	fsys    billy.Filesystem
	dir     string
	opts    Options
	table   *slotTable
	touched map[int]bool
	lock    *dirLock
	closed  bool
}

// Open takes the cache lock in dir and reads its index list. Record files
// are read through fsys; the cache's own files live on the OS filesystem.
func Open(fsys billy.Filesystem, dir string, opts Options) (*Cache, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve cache dir: %w", err)
	}
	lock, err := acquireLock(abs)
	if err != nil {
		return nil, err
	}
	return &Cache{
		fsys:    fsys,
		dir:     abs,
		opts:    opts,
		table:   readSlotTable(filepath.Join(abs, listName)),
		touched: make(map[int]bool),
		lock:    lock,
	}, nil
}

// Dir is the cache directory.
func (c *Cache) Dir() string { return c.dir }

func (c *Cache) snapshotPath(slot int) string {
	return filepath.Join(c.dir, strconv.Itoa(slot)+snapshotExt)
}

// Load returns the records of dir. The snapshot is used when useCache is
// set and it is intact; with refreshStale it is first reconciled against
// the files on disk. Every other case falls back to parsing dir directly.
func (c *Cache) Load(dir string, useCache, refreshStale bool) RecordSet {
	dir = filepath.Clean(dir)
	if !useCache || c.closed {
		metrics.CacheLoads.WithLabelValues(metrics.CacheScan).Inc()
		return c.scan(dir)
	}
	slot, ok := c.table.lookup(dir)
	if !ok {
		metrics.CacheLoads.WithLabelValues(metrics.CacheScan).Inc()
		return c.scan(dir)
	}

	snap, modTime, err := c.readSnapshot(slot)
	if err == nil && snap.Dir != dir {
		err = fmt.Errorf("%w: snapshot belongs to %s", ErrCorrupt, snap.Dir)
	}
	if err != nil {
		if errors.Is(err, ErrCorrupt) {
			metrics.CacheLoads.WithLabelValues(metrics.CacheCorrupt).Inc()
		} else {
			metrics.CacheLoads.WithLabelValues(metrics.CacheScan).Inc()
		}
		log.Printf("IndexCache: slot %d for %s: %v, scanning directly", slot, dir, err)
		return c.scan(dir)
	}

	c.touched[slot] = true
	set := RecordSet{Dir: dir, Records: snap.records()}
	if refreshStale {
		metrics.CacheLoads.WithLabelValues(metrics.CacheRefresh).Inc()
		set.Records, set.Changed = c.reconcile(dir, set.Records, modTime)
	} else {
		metrics.CacheLoads.WithLabelValues(metrics.CacheHit).Inc()
	}
	return set
}

func (c *Cache) readSnapshot(slot int) (*snapshot, time.Time, error) {
	path := c.snapshotPath(slot)
	info, err := os.Stat(path)
	if err != nil {
		return nil, time.Time{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, time.Time{}, err
	}
	snap, err := decodeSnapshot(data)
	if err != nil {
		return nil, time.Time{}, err
	}
	return snap, info.ModTime(), nil
}

func (c *Cache) scan(dir string) RecordSet {
	return ScanDir(c.fsys, dir)
}

// ScanDir parses every record file in dir without consulting any snapshot.
// Invalid records are skipped and a record whose ID was already seen in dir
// is dropped.
func ScanDir(fsys billy.Filesystem, dir string) RecordSet {
	dir = filepath.Clean(dir)
	files, err := scanner.ListRecordFiles(fsys, dir)
	if err != nil {
		log.Printf("IndexCache: list %s: %v", dir, err)
		return RecordSet{Dir: dir, Changed: true}
	}
	seen := make(map[string]struct{}, len(files))
	var records []*record.Record
	for _, path := range files {
		r, ok := parse(fsys, path)
		if !ok {
			continue
		}
		if _, dup := seen[r.ID]; dup {
			log.Printf("IndexCache: duplicate id %s in %s", r.ID, path)
			continue
		}
		seen[r.ID] = struct{}{}
		records = append(records, r)
	}
	return RecordSet{Dir: dir, Records: records, Changed: true}
}

func parse(fsys billy.Filesystem, path string) (*record.Record, bool) {
	r, err := record.Parse(fsys, path)
	if err != nil {
		if errors.Is(err, record.ErrInvalid) {
			metrics.RecordsInvalid.Inc()
		}
		log.Printf("IndexCache: skipping %s: %v", path, err)
		return nil, false
	}
	return r, true
}

// reconcile drops entries whose files vanished, re-parses entries whose
// record file changed after the snapshot was written and appends record
// files the snapshot does not know about, never admitting a duplicate ID.
// changed reports whether the result differs from records.
func (c *Cache) reconcile(dir string, records []*record.Record, snapTime time.Time) (kept []*record.Record, changed bool) {
	ids := make(map[string]struct{}, len(records))
	paths := make(map[string]struct{}, len(records))
	kept = make([]*record.Record, 0, len(records))

	for _, r := range records {
		paths[r.Path] = struct{}{}
		info, err := c.fsys.Stat(r.Path)
		if err != nil {
			changed = true
			continue
		}
		if !record.Exists(c.fsys, r.MediaFile) || !record.Exists(c.fsys, r.SecondaryFile) {
			changed = true
			continue
		}
		if info.ModTime().After(snapTime) {
			changed = true
			fresh, ok := parse(c.fsys, r.Path)
			if !ok {
				continue
			}
			r = fresh
		}
		if _, dup := ids[r.ID]; dup {
			changed = true
			continue
		}
		ids[r.ID] = struct{}{}
		kept = append(kept, r)
	}

	files, err := scanner.ListRecordFiles(c.fsys, dir)
	if err != nil {
		log.Printf("IndexCache: list %s: %v", dir, err)
		return kept, changed
	}
	for _, path := range files {
		if _, known := paths[path]; known {
			continue
		}
		r, ok := parse(c.fsys, path)
		if !ok {
			continue
		}
		changed = true
		if _, dup := ids[r.ID]; dup {
			continue
		}
		ids[r.ID] = struct{}{}
		kept = append(kept, r)
	}
	return kept, changed
}

// Save stores set as the snapshot of its directory, taking the lowest free
// slot for a directory seen for the first time. An empty set releases the
// directory's slot. A set loaded unchanged from its snapshot is left alone.
// Failures are logged and otherwise ignored.
func (c *Cache) Save(set RecordSet) {
	if c.closed || !set.Changed {
		return
	}
	dir := filepath.Clean(set.Dir)
	slot, known := c.table.lookup(dir)

	if len(set.Records) == 0 {
		if known {
			c.table.drop(slot)
			c.removeSnapshot(slot)
		}
		return
	}

	if !known {
		slot = c.table.free()
	}
	data, err := encodeSnapshot(newSnapshot(dir, set.Records))
	if err == nil {
		err = atomic.WriteFile(c.snapshotPath(slot), bytes.NewReader(data))
	}
	if err != nil {
		metrics.CacheSaveErrors.Inc()
		log.Printf("IndexCache: save %s to slot %d: %v", dir, slot, err)
		return
	}
	c.table.set(slot, dir)
	c.touched[slot] = true
}

func (c *Cache) removeSnapshot(slot int) {
	if err := os.Remove(c.snapshotPath(slot)); err != nil && !os.IsNotExist(err) {
		log.Printf("IndexCache: remove snapshot %d: %v", slot, err)
	}
}

// Close prunes dead slots, deletes orphaned snapshot files, persists the
// index list and releases the lock. It is safe to call more than once.
func (c *Cache) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	for _, slot := range c.table.slots() {
		dir := c.table.dirs[slot]
		if _, err := c.fsys.Stat(dir); err != nil {
			c.table.drop(slot)
			continue
		}
		if _, err := os.Stat(c.snapshotPath(slot)); err != nil {
			c.table.drop(slot)
			continue
		}
		if c.opts.Flavour != FlavourDMF {
			continue
		}
		if c.touched[slot] {
			c.table.sessions[slot] = 0
			continue
		}
		c.table.sessions[slot]++
		if c.opts.MaxIdleSessions > 0 && c.table.sessions[slot] > c.opts.MaxIdleSessions {
			log.Printf("IndexCache: evicting %s after %d idle sessions", dir, c.table.sessions[slot])
			c.table.drop(slot)
		}
	}

	c.removeOrphans()

	if err := c.table.write(filepath.Join(c.dir, listName), c.opts.Flavour == FlavourDMF); err != nil {
		metrics.CacheSaveErrors.Inc()
		log.Printf("IndexCache: write index list: %v", err)
	}
	return c.lock.release()
}

func (c *Cache) removeOrphans() {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		log.Printf("IndexCache: read %s: %v", c.dir, err)
		return
	}
	for _, e := range entries {
		m := snapshotName.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		slot, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if _, ok := c.table.dirs[slot]; !ok {
			c.removeSnapshot(slot)
		}
	}
}
