package indexcache

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/dvk/internal/metrics"
	"github.com/agentic-research/dvk/internal/record"
)

func newFS() billy.Filesystem { return osfs.New("/") }

// writeRecord creates a media file and a .dvk record pointing at it.
func writeRecord(t *testing.T, dir, name, id string) *record.Record {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	media := filepath.Join(dir, name+".png")
	require.NoError(t, os.WriteFile(media, []byte("png"), 0o644))
	r := &record.Record{
		Path:      filepath.Join(dir, name+record.ExtDVK),
		ID:        id,
		Title:     "Title " + name,
		Artists:   []string{"Artist"},
		PageURL:   "https://example.com/" + name,
		MediaFile: media,
	}
	require.NoError(t, record.Write(newFS(), r))
	return r
}

func ids(set RecordSet) []string {
	var out []string
	for _, r := range set.Records {
		out = append(out, r.ID)
	}
	sort.Strings(out)
	return out
}

func openCache(t *testing.T, dir string, opts Options) *Cache {
	t.Helper()
	c, err := Open(newFS(), dir, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestLoad_DirectScanWithoutSlot(t *testing.T) {
	media := t.TempDir()
	writeRecord(t, media, "a", "id1")
	writeRecord(t, media, "b", "id2")
	require.NoError(t, os.WriteFile(filepath.Join(media, "broken.dvk"), []byte("{"), 0o644))

	before := testutil.ToFloat64(metrics.RecordsInvalid)
	c := openCache(t, t.TempDir(), Options{})
	set := c.Load(media, true, true)

	assert.Equal(t, media, set.Dir)
	assert.Equal(t, []string{"ID1", "ID2"}, ids(set))
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.RecordsInvalid))
}

func TestLoad_DirectScanDropsDuplicateIDs(t *testing.T) {
	media := t.TempDir()
	writeRecord(t, media, "a", "same")
	writeRecord(t, media, "b", "SAME")

	c := openCache(t, t.TempDir(), Options{})
	set := c.Load(media, false, false)
	require.Len(t, set.Records, 1)
	assert.Equal(t, filepath.Join(media, "a.dvk"), set.Records[0].Path)
}

func TestSaveThenLoad_ReturnsSnapshotUnmodified(t *testing.T) {
	media := t.TempDir()
	writeRecord(t, media, "a", "id1")

	c := openCache(t, t.TempDir(), Options{})
	c.Save(c.Load(media, true, false))

	writeRecord(t, media, "b", "id2")
	hits := testutil.ToFloat64(metrics.CacheLoads.WithLabelValues(metrics.CacheHit))

	set := c.Load(media, true, false)
	assert.Equal(t, []string{"ID1"}, ids(set), "snapshot must be used without refresh")
	assert.Equal(t, hits+1, testutil.ToFloat64(metrics.CacheLoads.WithLabelValues(metrics.CacheHit)))

	set = c.Load(media, false, false)
	assert.Equal(t, []string{"ID1", "ID2"}, ids(set))
}

func TestLoad_RefreshReconcilesWithDisk(t *testing.T) {
	media := t.TempDir()
	writeRecord(t, media, "keep", "keep")
	gone := writeRecord(t, media, "gone", "gone")
	noMedia := writeRecord(t, media, "nomedia", "nomedia")
	edited := writeRecord(t, media, "edited", "edited")

	c := openCache(t, t.TempDir(), Options{})
	c.Save(c.Load(media, true, false))

	require.NoError(t, os.Remove(gone.Path))
	require.NoError(t, os.Remove(noMedia.MediaFile))

	edited.Title = "Changed"
	require.NoError(t, record.Write(newFS(), edited))
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(edited.Path, future, future))

	writeRecord(t, media, "new", "new")
	writeRecord(t, media, "zclash", "keep")

	set := c.Load(media, true, true)
	assert.Equal(t, []string{"EDITED", "KEEP", "NEW"}, ids(set))
	for _, r := range set.Records {
		if r.ID == "EDITED" {
			assert.Equal(t, "Changed", r.Title)
		}
	}
}

func TestSave_UnchangedLoadKeepsEditsVisibleToRefresh(t *testing.T) {
	media := t.TempDir()
	r := writeRecord(t, media, "a", "id1")

	c := openCache(t, t.TempDir(), Options{})
	c.Save(c.Load(media, true, true))
	slot, ok := c.table.lookup(media)
	require.True(t, ok)
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(c.snapshotPath(slot), past, past))

	r.Title = "Edited"
	require.NoError(t, record.Write(newFS(), r))
	now := time.Now()
	require.NoError(t, os.Chtimes(r.Path, now, now))

	// A load that trusts the snapshot must not rewrite it.
	set := c.Load(media, true, false)
	assert.False(t, set.Changed)
	require.Len(t, set.Records, 1)
	assert.Equal(t, "Title a", set.Records[0].Title)
	c.Save(set)
	info, err := os.Stat(c.snapshotPath(slot))
	require.NoError(t, err)
	assert.WithinDuration(t, past, info.ModTime(), time.Second)

	set = c.Load(media, true, true)
	assert.True(t, set.Changed)
	require.Len(t, set.Records, 1)
	assert.Equal(t, "Edited", set.Records[0].Title)
	c.Save(set)

	set = c.Load(media, true, true)
	assert.False(t, set.Changed, "nothing left to reconcile")
	require.Len(t, set.Records, 1)
	assert.Equal(t, "Edited", set.Records[0].Title)
}

func TestLoad_DirectScanIsAlwaysChanged(t *testing.T) {
	media := t.TempDir()
	writeRecord(t, media, "a", "id1")

	c := openCache(t, t.TempDir(), Options{})
	assert.True(t, c.Load(media, false, false).Changed)
	assert.True(t, ScanDir(newFS(), media).Changed)
}

func TestLoad_RefreshNeverDuplicatesIDs(t *testing.T) {
	media := t.TempDir()
	first := writeRecord(t, media, "a", "one")
	writeRecord(t, media, "b", "two")

	c := openCache(t, t.TempDir(), Options{})
	c.Save(c.Load(media, true, false))

	// An edited record that now claims an ID already held by another entry.
	first.ID = "two"
	require.NoError(t, record.Write(newFS(), first))
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(first.Path, future, future))

	set := c.Load(media, true, true)
	seen := map[string]bool{}
	for _, r := range set.Records {
		assert.False(t, seen[r.ID], "duplicate id %s", r.ID)
		seen[r.ID] = true
	}
}

func TestLoad_CorruptSnapshotFallsBackToScan(t *testing.T) {
	media := t.TempDir()
	writeRecord(t, media, "a", "id1")

	cacheDir := t.TempDir()
	c := openCache(t, cacheDir, Options{})
	c.Save(c.Load(media, true, false))

	slot, ok := c.table.lookup(media)
	require.True(t, ok)
	require.NoError(t, os.WriteFile(c.snapshotPath(slot), []byte("garbage"), 0o644))

	before := testutil.ToFloat64(metrics.CacheLoads.WithLabelValues(metrics.CacheCorrupt))
	set := c.Load(media, true, true)
	assert.Equal(t, []string{"ID1"}, ids(set))
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.CacheLoads.WithLabelValues(metrics.CacheCorrupt)))
}

func TestLoad_SnapshotForAnotherDirectoryIsRejected(t *testing.T) {
	a := t.TempDir()
	b := t.TempDir()
	writeRecord(t, a, "a", "from-a")
	writeRecord(t, b, "b", "from-b")

	c := openCache(t, t.TempDir(), Options{})
	c.Save(c.Load(a, true, false))
	c.Save(c.Load(b, true, false))

	slotA, _ := c.table.lookup(a)
	slotB, _ := c.table.lookup(b)
	data, err := os.ReadFile(c.snapshotPath(slotB))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(c.snapshotPath(slotA), data, 0o644))

	assert.Equal(t, []string{"FROM-A"}, ids(c.Load(a, true, false)))
}

func TestSave_ReusesLowestFreeSlot(t *testing.T) {
	root := t.TempDir()
	a, b, d := filepath.Join(root, "a"), filepath.Join(root, "b"), filepath.Join(root, "d")
	writeRecord(t, a, "a", "a")
	writeRecord(t, b, "b", "b")
	writeRecord(t, d, "d", "d")

	cacheDir := t.TempDir()
	c, err := Open(newFS(), cacheDir, Options{})
	require.NoError(t, err)
	c.Save(c.Load(a, true, false))
	c.Save(c.Load(b, true, false))
	slotA, _ := c.table.lookup(a)
	slotB, _ := c.table.lookup(b)
	assert.Equal(t, 0, slotA)
	assert.Equal(t, 1, slotB)

	require.NoError(t, os.RemoveAll(a))
	require.NoError(t, c.Close())

	c = openCache(t, cacheDir, Options{})
	_, ok := c.table.lookup(a)
	assert.False(t, ok, "vanished directory must be dropped on close")
	c.Save(c.Load(d, true, false))
	slotD, _ := c.table.lookup(d)
	assert.Equal(t, 0, slotD)
}

func TestSave_EmptySetReleasesSlot(t *testing.T) {
	media := t.TempDir()
	r := writeRecord(t, media, "a", "id1")

	c := openCache(t, t.TempDir(), Options{})
	c.Save(c.Load(media, true, false))
	slot, ok := c.table.lookup(media)
	require.True(t, ok)

	require.NoError(t, os.Remove(r.Path))
	c.Save(c.Load(media, false, false))

	_, ok = c.table.lookup(media)
	assert.False(t, ok)
	assert.NoFileExists(t, c.snapshotPath(slot))
}

func TestClose_RemovesOrphansAndPersistsList(t *testing.T) {
	media := t.TempDir()
	writeRecord(t, media, "a", "id1")

	cacheDir := t.TempDir()
	orphan := filepath.Join(cacheDir, "7.snap")
	require.NoError(t, os.WriteFile(orphan, []byte("x"), 0o644))

	c, err := Open(newFS(), cacheDir, Options{})
	require.NoError(t, err)
	c.Save(c.Load(media, true, false))
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	assert.NoFileExists(t, orphan)
	list, err := os.ReadFile(filepath.Join(cacheDir, listName))
	require.NoError(t, err)
	assert.Contains(t, string(list), "[INDEXES]")
	assert.Contains(t, string(list), media)
	assert.NotContains(t, string(list), "[SESSIONS]")

	c = openCache(t, cacheDir, Options{})
	assert.Equal(t, []string{"ID1"}, ids(c.Load(media, true, false)))
}

func TestClose_DropsSlotWithMissingSnapshot(t *testing.T) {
	media := t.TempDir()
	writeRecord(t, media, "a", "id1")

	cacheDir := t.TempDir()
	c, err := Open(newFS(), cacheDir, Options{})
	require.NoError(t, err)
	c.Save(c.Load(media, true, false))
	slot, _ := c.table.lookup(media)
	require.NoError(t, os.Remove(c.snapshotPath(slot)))
	require.NoError(t, c.Close())

	list, err := os.ReadFile(filepath.Join(cacheDir, listName))
	require.NoError(t, err)
	assert.NotContains(t, string(list), media)
}

func TestDMFFlavour_EvictsIdleSlots(t *testing.T) {
	media := t.TempDir()
	writeRecord(t, media, "a", "id1")
	cacheDir := t.TempDir()
	opts := Options{Flavour: FlavourDMF, MaxIdleSessions: 1}

	c, err := Open(newFS(), cacheDir, opts)
	require.NoError(t, err)
	c.Save(c.Load(media, true, false))
	require.NoError(t, c.Close())

	// One idle session is tolerated.
	c, err = Open(newFS(), cacheDir, opts)
	require.NoError(t, err)
	require.NoError(t, c.Close())
	list, err := os.ReadFile(filepath.Join(cacheDir, listName))
	require.NoError(t, err)
	assert.Contains(t, string(list), "[SESSIONS]")
	assert.Contains(t, string(list), media)

	// The second idle session exceeds the limit.
	c, err = Open(newFS(), cacheDir, opts)
	require.NoError(t, err)
	require.NoError(t, c.Close())
	list, err = os.ReadFile(filepath.Join(cacheDir, listName))
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(list), media))
	entries, err := os.ReadDir(cacheDir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotEqual(t, snapshotExt, filepath.Ext(e.Name()))
	}
}

func TestDMFFlavour_ReadResetsSessionCounter(t *testing.T) {
	media := t.TempDir()
	writeRecord(t, media, "a", "id1")
	cacheDir := t.TempDir()
	opts := Options{Flavour: FlavourDMF, MaxIdleSessions: 1}

	c, err := Open(newFS(), cacheDir, opts)
	require.NoError(t, err)
	c.Save(c.Load(media, true, false))
	require.NoError(t, c.Close())

	for i := 0; i < 3; i++ {
		c, err = Open(newFS(), cacheDir, opts)
		require.NoError(t, err)
		assert.Equal(t, []string{"ID1"}, ids(c.Load(media, true, false)))
		require.NoError(t, c.Close())
	}
	c = openCache(t, cacheDir, opts)
	slot, ok := c.table.lookup(media)
	require.True(t, ok)
	assert.Equal(t, 0, c.table.sessions[slot])
}

func TestOpen_SecondOpenIsLocked(t *testing.T) {
	cacheDir := t.TempDir()
	openCache(t, cacheDir, Options{})
	_, err := Open(newFS(), cacheDir, Options{})
	assert.ErrorIs(t, err, ErrLocked)
}
