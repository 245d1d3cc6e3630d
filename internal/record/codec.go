package record

import (
	"fmt"
	"path/filepath"

	billy "github.com/go-git/go-billy/v5"
)

// Parse reads the record at path, choosing the codec by extension.
// Any required-field failure is reported as an error wrapping ErrInvalid.
func Parse(fsys billy.Filesystem, path string) (*Record, error) {
	switch FormatOf(path) {
	case ExtDVK:
		return ParseDVK(fsys, path)
	case ExtDMF:
		return ParseDMF(fsys, path)
	}
	return nil, fmt.Errorf("%s: %w", path, ErrUnsupported)
}

// Encode renders r in the format named by its path extension.
func Encode(r *Record) ([]byte, error) {
	switch FormatOf(r.Path) {
	case ExtDVK:
		return encodeDVK(r), nil
	case ExtDMF:
		return encodeDMF(r)
	}
	return nil, fmt.Errorf("%s: %w", r.Path, ErrUnsupported)
}

// Write stores r at r.Path. Records that are not valid for write are refused
// and nothing is touched on disk.
func Write(fsys billy.Filesystem, r *Record) error {
	if !r.ValidForWrite() {
		return ErrNotWritable
	}
	out := r.Clone()
	out.normalize()
	data, err := Encode(out)
	if err != nil {
		return err
	}
	return writeFile(fsys, r.Path, data)
}

// writeFile replaces path with data through a temp file in the same
// directory so readers never see a partial record.
func writeFile(fsys billy.Filesystem, path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := fsys.TempFile(dir, ".dvk-write-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = fsys.Remove(tmpName) // best-effort cleanup
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = fsys.Remove(tmpName) // best-effort cleanup
		return fmt.Errorf("close temp: %w", err)
	}
	if err := fsys.Rename(tmpName, path); err != nil {
		_ = fsys.Remove(tmpName) // best-effort cleanup
		return fmt.Errorf("rename temp to %s: %w", path, err)
	}
	return nil
}

// exists reports whether path can be stat'ed.
func exists(fsys billy.Filesystem, path string) bool {
	_, err := fsys.Stat(path)
	return err == nil
}

// Exists reports whether a record's referenced file is present. An empty
// path counts as present so optional files do not invalidate a record.
func Exists(fsys billy.Filesystem, path string) bool {
	if path == "" {
		return true
	}
	return exists(fsys, path)
}
