package indexcache

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"

	"github.com/natefinch/atomic"
	"gopkg.in/ini.v1"

	"github.com/agentic-research/dvk/internal/record"
)

const (
	listName        = "index.ini"
	indexesSection  = "INDEXES"
	sessionsSection = "SESSIONS"
)

// slotTable maps numbered snapshot slots to absolute directories.
type slotTable struct {
	dirs     map[int]string
	byDir    map[string]int
	sessions map[int]int
}

func newSlotTable() *slotTable {
	return &slotTable{
		dirs:     make(map[int]string),
		byDir:    make(map[string]int),
		sessions: make(map[int]int),
	}
}

// readSlotTable loads the index list. A missing file is an empty table; a
// malformed one is logged and treated the same way.
func readSlotTable(path string) *slotTable {
	t := newSlotTable()
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("IndexCache: read %s: %v", path, err)
		}
		return t
	}
	f, err := ini.LoadSources(record.IniOptions, data)
	if err != nil {
		log.Printf("IndexCache: parse %s: %v", path, err)
		return t
	}

	for _, key := range f.Section(indexesSection).Keys() {
		slot, err := strconv.Atoi(key.Name())
		if err != nil || slot < 0 {
			log.Printf("IndexCache: ignoring slot %q in %s", key.Name(), path)
			continue
		}
		dir := key.String()
		if dir == "" {
			continue
		}
		if _, dup := t.byDir[dir]; dup {
			continue
		}
		t.set(slot, dir)
	}
	for _, key := range f.Section(sessionsSection).Keys() {
		slot, err := strconv.Atoi(key.Name())
		if err != nil {
			continue
		}
		if _, ok := t.dirs[slot]; ok {
			t.sessions[slot] = key.MustInt(0)
		}
	}
	return t
}

func (t *slotTable) lookup(dir string) (int, bool) {
	slot, ok := t.byDir[dir]
	return slot, ok
}

func (t *slotTable) set(slot int, dir string) {
	t.dirs[slot] = dir
	t.byDir[dir] = slot
}

func (t *slotTable) drop(slot int) {
	if dir, ok := t.dirs[slot]; ok {
		delete(t.byDir, dir)
	}
	delete(t.dirs, slot)
	delete(t.sessions, slot)
}

// free returns the lowest slot number not in use.
func (t *slotTable) free() int {
	for slot := 0; ; slot++ {
		if _, used := t.dirs[slot]; !used {
			return slot
		}
	}
}

func (t *slotTable) slots() []int {
	out := make([]int, 0, len(t.dirs))
	for slot := range t.dirs {
		out = append(out, slot)
	}
	sort.Ints(out)
	return out
}

// write persists the table. Session counters are only written for the
// DMF flavour.
func (t *slotTable) write(path string, withSessions bool) error {
	f := ini.Empty(record.IniOptions)
	indexes := f.Section(indexesSection)
	var sessions *ini.Section
	if withSessions {
		sessions = f.Section(sessionsSection)
	}
	for _, slot := range t.slots() {
		name := strconv.Itoa(slot)
		if _, err := indexes.NewKey(name, t.dirs[slot]); err != nil {
			return fmt.Errorf("slot %d: %w", slot, err)
		}
		if sessions != nil {
			if _, err := sessions.NewKey(name, strconv.Itoa(t.sessions[slot])); err != nil {
				return fmt.Errorf("slot %d: %w", slot, err)
			}
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return err
	}
	return atomic.WriteFile(path, &buf)
}
