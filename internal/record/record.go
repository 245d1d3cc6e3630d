// Package record reads and writes the per-item metadata files that describe
// downloaded media: JSON ".dvk" records and key/value ".dmf" records.
package record

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

const (
	// SentinelID is the link value meaning "no link". It never resolves.
	SentinelID = "XX"

	ExtDVK = ".dvk"
	ExtDMF = ".dmf"
)

var (
	ErrInvalid     = errors.New("invalid record")
	ErrNotWritable = errors.New("record not valid for write")
	ErrUnsupported = errors.New("unsupported record extension")
)

// ParseError describes why a record file was rejected.
type ParseError struct {
	Path   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

func (e *ParseError) Unwrap() error { return ErrInvalid }

func invalid(path, format string, args ...any) error {
	return &ParseError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

// Record is one media item's metadata.
// MediaFile and SecondaryFile are absolute once parsed.
type Record struct {
	Path string

	ID          string
	Title       string
	Artists     []string
	Time        int64 // YYYYMMDDHHMM, 0 when unknown
	WebTags     []string
	UserTags    []string
	Description string

	PageURL      string
	MediaURL     string
	SecondaryURL string

	MediaFile     string
	SecondaryFile string

	LastIDs        []string
	NextIDs        []string
	FirstInSection bool
	LastInSection  bool
	SequenceTitle  string
	SectionTitle   string
	BranchTitles   []string

	Rating int
}

// NormalizeID upper-cases and trims an ID so lookups are case-insensitive.
func NormalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// IsLink reports whether id refers to another record.
func IsLink(id string) bool {
	id = NormalizeID(id)
	return id != "" && id != SentinelID
}

// IsRecordFile reports whether name carries a record extension.
func IsRecordFile(name string) bool {
	return FormatOf(name) != ""
}

// FormatOf returns the record extension of name, or "" for other files.
func FormatOf(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ExtDVK:
		return ExtDVK
	case ExtDMF:
		return ExtDMF
	}
	return ""
}

// Valid reports whether the record has an ID and a media file.
func (r *Record) Valid() bool {
	return r != nil && NormalizeID(r.ID) != "" && r.MediaFile != ""
}

// ValidForWrite additionally requires a record path with a known extension.
func (r *Record) ValidForWrite() bool {
	return r.Valid() && r.Path != "" && FormatOf(r.Path) != ""
}

// Dir is the directory the record file lives in.
func (r *Record) Dir() string {
	return filepath.Dir(r.Path)
}

// Linked reports whether the record has at least one real predecessor or successor.
func (r *Record) Linked() bool {
	for _, id := range r.LastIDs {
		if IsLink(id) {
			return true
		}
	}
	for _, id := range r.NextIDs {
		if IsLink(id) {
			return true
		}
	}
	return false
}

// ArtistString joins artist names for display and comparison.
func (r *Record) ArtistString() string {
	return strings.Join(r.Artists, ", ")
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.Artists = cloneStrings(r.Artists)
	c.WebTags = cloneStrings(r.WebTags)
	c.UserTags = cloneStrings(r.UserTags)
	c.LastIDs = cloneStrings(r.LastIDs)
	c.NextIDs = cloneStrings(r.NextIDs)
	c.BranchTitles = cloneStrings(r.BranchTitles)
	return &c
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

// normalize applies the invariants every parsed or written record holds.
func (r *Record) normalize() {
	r.ID = NormalizeID(r.ID)
	r.Title = strings.TrimSpace(r.Title)
	r.Artists = cleanList(r.Artists)
	r.WebTags = cleanList(r.WebTags)
	r.UserTags = cleanList(r.UserTags)
	r.LastIDs = normalizeIDs(r.LastIDs)
	r.NextIDs = normalizeIDs(r.NextIDs)
	if r.Rating < 0 {
		r.Rating = 0
	}
}

func cleanList(in []string) []string {
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func normalizeIDs(in []string) []string {
	var out []string
	for _, id := range in {
		id = NormalizeID(id)
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}

// resolvePath anchors a path stored in a record file at the record's directory.
func resolvePath(dir, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = filepath.FromSlash(p)
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(dir, p)
}

// relativePath is the inverse of resolvePath used when writing.
func relativePath(dir, p string) string {
	if p == "" {
		return ""
	}
	if rel, err := filepath.Rel(dir, p); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(p)
}
