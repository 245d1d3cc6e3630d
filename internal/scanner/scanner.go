// Package scanner finds the directories of a media collection that hold
// record files.
package scanner

import (
	"context"
	"log"
	"path/filepath"
	"sort"
	"strings"

	billy "github.com/go-git/go-billy/v5"

	"github.com/agentic-research/dvk/internal/natsort"
	"github.com/agentic-research/dvk/internal/record"
)

// FindFolders walks every root and returns the absolute directories that
// directly contain at least one record file. The result is deduplicated and
// in natural order, so an unchanged tree always scans the same way.
//
// ctx is polled between directories; on cancellation the folders found so
// far are returned together with ctx.Err().
func FindFolders(ctx context.Context, fsys billy.Filesystem, roots []string) ([]string, error) {
	seen := make(map[string]struct{})
	var found []string
	var walkErr error

	var walk func(dir string)
	walk = func(dir string) {
		if walkErr != nil {
			return
		}
		if err := ctx.Err(); err != nil {
			walkErr = err
			return
		}
		if _, dup := seen[dir]; dup {
			return
		}
		seen[dir] = struct{}{}

		entries, err := fsys.ReadDir(dir)
		if err != nil {
			log.Printf("Scanner: read dir %s: %v", dir, err)
			return
		}
		holds := false
		var subdirs []string
		for _, e := range entries {
			name := e.Name()
			switch {
			case e.IsDir():
				if !strings.HasPrefix(name, ".") {
					subdirs = append(subdirs, filepath.Join(dir, name))
				}
			case record.IsRecordFile(name):
				holds = true
			}
		}
		if holds {
			found = append(found, dir)
		}
		for _, sub := range subdirs {
			walk(sub)
		}
	}

	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			log.Printf("Scanner: resolve root %s: %v", root, err)
			continue
		}
		walk(filepath.Clean(abs))
	}

	sort.SliceStable(found, func(i, j int) bool { return natsort.Less(found[i], found[j]) })
	return found, walkErr
}

// ListRecordFiles returns the record files directly inside dir in natural
// order.
func ListRecordFiles(fsys billy.Filesystem, dir string) ([]string, error) {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && record.IsRecordFile(e.Name()) {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.SliceStable(files, func(i, j int) bool { return natsort.Less(files[i], files[j]) })
	return files, nil
}
