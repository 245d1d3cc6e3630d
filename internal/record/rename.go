package record

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	billy "github.com/go-git/go-billy/v5"
)

// Sniffer detects the real extension of a media file from its content.
type Sniffer interface {
	Extension(fsys billy.Filesystem, path string) (string, error)
}

// MimeSniffer sniffs content with mimetype's magic-number tables.
type MimeSniffer struct{}

func (MimeSniffer) Extension(fsys billy.Filesystem, path string) (string, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	m, err := mimetype.DetectReader(f)
	if err != nil {
		return "", err
	}
	return m.Extension(), nil
}

// WriteAndFix writes r and then renames its media files so their extensions
// match sniffed content. The rename is best effort: on any failure the files
// stay as they are and the written record is returned.
func WriteAndFix(fsys billy.Filesystem, r *Record, sniffer Sniffer) (*Record, error) {
	if err := Write(fsys, r); err != nil {
		return nil, err
	}
	if sniffer == nil {
		return r.Clone(), nil
	}
	fixed, err := FixExtensions(fsys, r, sniffer)
	if err != nil {
		log.Printf("Record: fix extensions for %s: %v", r.Path, err)
		return r.Clone(), nil
	}
	return fixed, nil
}

// FixExtensions renames the media and secondary files of r to carry the
// extension their content calls for, then rewrites the record.
func FixExtensions(fsys billy.Filesystem, r *Record, sniffer Sniffer) (*Record, error) {
	out := r.Clone()
	changed := false
	for _, p := range []*string{&out.MediaFile, &out.SecondaryFile} {
		if *p == "" {
			continue
		}
		ext, err := sniffer.Extension(fsys, *p)
		if err != nil {
			return nil, fmt.Errorf("sniff %s: %w", *p, err)
		}
		cur := filepath.Ext(*p)
		if ext == "" || ext == cur {
			continue
		}
		target := strings.TrimSuffix(*p, cur) + ext
		if err := moveFile(fsys, *p, target); err != nil {
			return nil, err
		}
		*p = target
		changed = true
	}
	if !changed {
		return out, nil
	}
	if err := Write(fsys, out); err != nil {
		return nil, err
	}
	return out, nil
}

// RenameFiles moves the record and its media to a new base name, keeping each
// file's extension, and rewrites the record under the new name.
func RenameFiles(fsys billy.Filesystem, r *Record, base string) (*Record, error) {
	if !r.ValidForWrite() {
		return nil, ErrNotWritable
	}
	base = strings.TrimSpace(base)
	if base == "" || strings.ContainsAny(base, `/\`) {
		return nil, fmt.Errorf("invalid base name %q", base)
	}
	out := r.Clone()
	for _, p := range []*string{&out.MediaFile, &out.SecondaryFile} {
		if *p == "" {
			continue
		}
		target := filepath.Join(filepath.Dir(*p), base+filepath.Ext(*p))
		if out.SecondaryFile != "" && p == &out.SecondaryFile && target == out.MediaFile {
			target = filepath.Join(filepath.Dir(*p), base+"_secondary"+filepath.Ext(*p))
		}
		if target == *p {
			continue
		}
		if err := moveFile(fsys, *p, target); err != nil {
			return nil, err
		}
		*p = target
	}
	out.Path = filepath.Join(r.Dir(), base+filepath.Ext(r.Path))
	if err := moveFile(fsys, r.Path, out.Path); err != nil {
		return nil, err
	}
	if err := Write(fsys, out); err != nil {
		return nil, err
	}
	return out, nil
}

// moveFile renames in two steps through a temp name so a change that only
// alters letter case also works on case-insensitive filesystems.
func moveFile(fsys billy.Filesystem, from, to string) error {
	if from == to {
		return nil
	}
	if !strings.EqualFold(from, to) && exists(fsys, to) {
		return fmt.Errorf("move %s: target %s already exists", from, to)
	}
	tmp := from + ".dvk-move"
	if err := fsys.Rename(from, tmp); err != nil {
		return fmt.Errorf("move %s to temp: %w", from, err)
	}
	if err := fsys.Rename(tmp, to); err != nil {
		if rerr := fsys.Rename(tmp, from); rerr != nil {
			log.Printf("Record: restore %s after failed move: %v", from, rerr)
		}
		return fmt.Errorf("move temp to %s: %w", to, err)
	}
	return nil
}
