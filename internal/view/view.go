// Package view orders and filters a catalog without touching it. A View
// keeps two index lists: sorted, a permutation of every catalog index, and
// filtered, the subsequence of sorted that passes the current filter.
package view

import (
	"fmt"

	"github.com/agentic-research/dvk/internal/catalog"
	"github.com/agentic-research/dvk/internal/sequence"
)

// View is a sorted and filtered projection of a catalog. Call Sort after
// the catalog changes; a View never notices mutations on its own.
type View struct {
	cat      *catalog.Catalog
	graph    *sequence.Graph
	sorted   []int
	filtered []int
}

// New returns a view in catalog order with no filter.
func New(cat *catalog.Catalog) *View {
	v := &View{cat: cat, graph: sequence.Build(cat)}
	v.sorted = identity(cat.Size())
	v.filtered = clone(v.sorted)
	return v
}

func identity(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func clone(s []int) []int {
	out := make([]int, len(s))
	copy(out, s)
	return out
}

// Catalog is the catalog the view projects.
func (v *View) Catalog() *catalog.Catalog { return v.cat }

// Len is the number of records passing the filter.
func (v *View) Len() int { return len(v.filtered) }

// SortedLen is the number of records in the sorted list.
func (v *View) SortedLen() int { return len(v.sorted) }

// Indices returns the catalog indices of the filtered view in order.
func (v *View) Indices() []int { return clone(v.filtered) }

// SortedIndices returns the catalog indices of the sorted list in order.
func (v *View) SortedIndices() []int { return clone(v.sorted) }

// IndexAt maps a filtered position to its catalog index, or -1.
func (v *View) IndexAt(i int) int {
	if i < 0 || i >= len(v.filtered) {
		return -1
	}
	return v.filtered[i]
}

// SortedIndexAt maps a sorted position to its catalog index, or -1.
func (v *View) SortedIndexAt(i int) int {
	if i < 0 || i >= len(v.sorted) {
		return -1
	}
	return v.sorted[i]
}

func (v *View) IDAt(i int) string            { return v.cat.ID(v.IndexAt(i)) }
func (v *View) TitleAt(i int) string         { return v.cat.Title(v.IndexAt(i)) }
func (v *View) ArtistsAt(i int) []string     { return v.cat.Artists(v.IndexAt(i)) }
func (v *View) TimeAt(i int) int64           { return v.cat.Time(v.IndexAt(i)) }
func (v *View) RatingAt(i int) int           { return v.cat.Rating(v.IndexAt(i)) }
func (v *View) DescriptionAt(i int) string   { return v.cat.Description(v.IndexAt(i)) }
func (v *View) WebTagsAt(i int) []string     { return v.cat.WebTags(v.IndexAt(i)) }
func (v *View) UserTagsAt(i int) []string    { return v.cat.UserTags(v.IndexAt(i)) }
func (v *View) MediaFileAt(i int) string     { return v.cat.MediaFile(v.IndexAt(i)) }
func (v *View) SecondaryFileAt(i int) string { return v.cat.SecondaryFile(v.IndexAt(i)) }
func (v *View) PageURLAt(i int) string       { return v.cat.PageURL(v.IndexAt(i)) }
func (v *View) PathAt(i int) string          { return v.cat.Path(v.IndexAt(i)) }

func (v *View) SortedIDAt(i int) string        { return v.cat.ID(v.SortedIndexAt(i)) }
func (v *View) SortedTitleAt(i int) string     { return v.cat.Title(v.SortedIndexAt(i)) }
func (v *View) SortedArtistsAt(i int) []string { return v.cat.Artists(v.SortedIndexAt(i)) }
func (v *View) SortedMediaFileAt(i int) string { return v.cat.MediaFile(v.SortedIndexAt(i)) }

// SequenceAt resolves the sequence of the record at sorted position i,
// ignoring the filter. The result holds catalog indices.
func (v *View) SequenceAt(i int, section string, filterSection bool) []int {
	return v.graph.Indices(v.SortedIndexAt(i), section, filterSection)
}

// OutlineAt is SequenceAt with branch and repeat markers kept.
func (v *View) OutlineAt(i int) []sequence.Entry {
	return v.graph.Outline(v.SortedIndexAt(i))
}

// Key is the primary sort key.
type Key int

const (
	KeyTitle Key = iota
	KeyTime
	KeyRating
)

func (k Key) String() string {
	switch k {
	case KeyTime:
		return "time"
	case KeyRating:
		return "rating"
	}
	return "title"
}

// ParseKey accepts the names printed by Key.String.
func ParseKey(s string) (Key, error) {
	switch s {
	case "", "title":
		return KeyTitle, nil
	case "time":
		return KeyTime, nil
	case "rating":
		return KeyRating, nil
	}
	return KeyTitle, fmt.Errorf("unknown sort key %q", s)
}
