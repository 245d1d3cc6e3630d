// Package catalog holds every loaded record as parallel attribute lists
// addressed by a stable integer index.
package catalog

import (
	"errors"
	"strings"

	"github.com/agentic-research/dvk/internal/record"
)

// ErrOutOfRange is returned by Replace for an index outside the catalog.
var ErrOutOfRange = errors.New("catalog index out of range")

// Catalog is a columnar record store. Index i in every list describes the
// same record. Getters return zero values for indices outside [0, Size()).
// A Catalog is not safe for concurrent mutation.
type Catalog struct {
	paths          []string
	ids            []string
	titles         []string
	artists        [][]string
	times          []int64
	webTags        [][]string
	userTags       [][]string
	descriptions   []string
	pageURLs       []string
	mediaURLs      []string
	secondaryURLs  []string
	mediaFiles     []string
	secondaryFiles []string
	lastIDs        [][]string
	nextIDs        [][]string
	firstInSection []bool
	lastInSection  []bool
	sequenceTitles []string
	sectionTitles  []string
	branchTitles   [][]string
	ratings        []int

	byID map[string]int
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{byID: make(map[string]int)}
}

// Size is the number of records.
func (c *Catalog) Size() int { return len(c.ids) }

func (c *Catalog) in(i int) bool { return i >= 0 && i < len(c.ids) }

// Append adds a copy of r and returns its index.
func (c *Catalog) Append(r *record.Record) int {
	i := len(c.ids)
	c.paths = append(c.paths, r.Path)
	c.ids = append(c.ids, record.NormalizeID(r.ID))
	c.titles = append(c.titles, r.Title)
	c.artists = append(c.artists, clone(r.Artists))
	c.times = append(c.times, r.Time)
	c.webTags = append(c.webTags, clone(r.WebTags))
	c.userTags = append(c.userTags, clone(r.UserTags))
	c.descriptions = append(c.descriptions, r.Description)
	c.pageURLs = append(c.pageURLs, r.PageURL)
	c.mediaURLs = append(c.mediaURLs, r.MediaURL)
	c.secondaryURLs = append(c.secondaryURLs, r.SecondaryURL)
	c.mediaFiles = append(c.mediaFiles, r.MediaFile)
	c.secondaryFiles = append(c.secondaryFiles, r.SecondaryFile)
	c.lastIDs = append(c.lastIDs, clone(r.LastIDs))
	c.nextIDs = append(c.nextIDs, clone(r.NextIDs))
	c.firstInSection = append(c.firstInSection, r.FirstInSection)
	c.lastInSection = append(c.lastInSection, r.LastInSection)
	c.sequenceTitles = append(c.sequenceTitles, r.SequenceTitle)
	c.sectionTitles = append(c.sectionTitles, r.SectionTitle)
	c.branchTitles = append(c.branchTitles, clone(r.BranchTitles))
	c.ratings = append(c.ratings, r.Rating)

	if _, taken := c.byID[c.ids[i]]; !taken {
		c.byID[c.ids[i]] = i
	}
	return i
}

// Replace overwrites the record at index i with a copy of r.
func (c *Catalog) Replace(i int, r *record.Record) error {
	if !c.in(i) {
		return ErrOutOfRange
	}
	old := c.ids[i]
	c.paths[i] = r.Path
	c.ids[i] = record.NormalizeID(r.ID)
	c.titles[i] = r.Title
	c.artists[i] = clone(r.Artists)
	c.times[i] = r.Time
	c.webTags[i] = clone(r.WebTags)
	c.userTags[i] = clone(r.UserTags)
	c.descriptions[i] = r.Description
	c.pageURLs[i] = r.PageURL
	c.mediaURLs[i] = r.MediaURL
	c.secondaryURLs[i] = r.SecondaryURL
	c.mediaFiles[i] = r.MediaFile
	c.secondaryFiles[i] = r.SecondaryFile
	c.lastIDs[i] = clone(r.LastIDs)
	c.nextIDs[i] = clone(r.NextIDs)
	c.firstInSection[i] = r.FirstInSection
	c.lastInSection[i] = r.LastInSection
	c.sequenceTitles[i] = r.SequenceTitle
	c.sectionTitles[i] = r.SectionTitle
	c.branchTitles[i] = clone(r.BranchTitles)
	c.ratings[i] = r.Rating

	if old != c.ids[i] {
		if c.byID[old] == i {
			delete(c.byID, old)
			for j, id := range c.ids {
				if id == old {
					c.byID[old] = j
					break
				}
			}
		}
		if cur, taken := c.byID[c.ids[i]]; !taken || cur > i {
			c.byID[c.ids[i]] = i
		}
	}
	return nil
}

// IndexOfID returns the index of the record with the given ID, or -1 when
// id is empty, the sentinel, or unknown.
func (c *Catalog) IndexOfID(id string) int {
	if !record.IsLink(id) {
		return -1
	}
	if i, ok := c.byID[record.NormalizeID(id)]; ok {
		return i
	}
	return -1
}

// Record reassembles a copy of the record at index i, or nil.
func (c *Catalog) Record(i int) *record.Record {
	if !c.in(i) {
		return nil
	}
	return &record.Record{
		Path:           c.paths[i],
		ID:             c.ids[i],
		Title:          c.titles[i],
		Artists:        clone(c.artists[i]),
		Time:           c.times[i],
		WebTags:        clone(c.webTags[i]),
		UserTags:       clone(c.userTags[i]),
		Description:    c.descriptions[i],
		PageURL:        c.pageURLs[i],
		MediaURL:       c.mediaURLs[i],
		SecondaryURL:   c.secondaryURLs[i],
		MediaFile:      c.mediaFiles[i],
		SecondaryFile:  c.secondaryFiles[i],
		LastIDs:        clone(c.lastIDs[i]),
		NextIDs:        clone(c.nextIDs[i]),
		FirstInSection: c.firstInSection[i],
		LastInSection:  c.lastInSection[i],
		SequenceTitle:  c.sequenceTitles[i],
		SectionTitle:   c.sectionTitles[i],
		BranchTitles:   clone(c.branchTitles[i]),
		Rating:         c.ratings[i],
	}
}

func clone(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

func (c *Catalog) Path(i int) string {
	if !c.in(i) {
		return ""
	}
	return c.paths[i]
}

func (c *Catalog) ID(i int) string {
	if !c.in(i) {
		return ""
	}
	return c.ids[i]
}

func (c *Catalog) Title(i int) string {
	if !c.in(i) {
		return ""
	}
	return c.titles[i]
}

func (c *Catalog) Artists(i int) []string {
	if !c.in(i) {
		return nil
	}
	return clone(c.artists[i])
}

// ArtistString joins the artist names of record i.
func (c *Catalog) ArtistString(i int) string {
	if !c.in(i) {
		return ""
	}
	return strings.Join(c.artists[i], ", ")
}

func (c *Catalog) Time(i int) int64 {
	if !c.in(i) {
		return 0
	}
	return c.times[i]
}

func (c *Catalog) WebTags(i int) []string {
	if !c.in(i) {
		return nil
	}
	return clone(c.webTags[i])
}

func (c *Catalog) UserTags(i int) []string {
	if !c.in(i) {
		return nil
	}
	return clone(c.userTags[i])
}

func (c *Catalog) Description(i int) string {
	if !c.in(i) {
		return ""
	}
	return c.descriptions[i]
}

func (c *Catalog) PageURL(i int) string {
	if !c.in(i) {
		return ""
	}
	return c.pageURLs[i]
}

func (c *Catalog) MediaURL(i int) string {
	if !c.in(i) {
		return ""
	}
	return c.mediaURLs[i]
}

func (c *Catalog) SecondaryURL(i int) string {
	if !c.in(i) {
		return ""
	}
	return c.secondaryURLs[i]
}

func (c *Catalog) MediaFile(i int) string {
	if !c.in(i) {
		return ""
	}
	return c.mediaFiles[i]
}

func (c *Catalog) SecondaryFile(i int) string {
	if !c.in(i) {
		return ""
	}
	return c.secondaryFiles[i]
}

func (c *Catalog) LastIDs(i int) []string {
	if !c.in(i) {
		return nil
	}
	return clone(c.lastIDs[i])
}

func (c *Catalog) NextIDs(i int) []string {
	if !c.in(i) {
		return nil
	}
	return clone(c.nextIDs[i])
}

func (c *Catalog) FirstInSection(i int) bool {
	return c.in(i) && c.firstInSection[i]
}

func (c *Catalog) LastInSection(i int) bool {
	return c.in(i) && c.lastInSection[i]
}

func (c *Catalog) SequenceTitle(i int) string {
	if !c.in(i) {
		return ""
	}
	return c.sequenceTitles[i]
}

func (c *Catalog) SectionTitle(i int) string {
	if !c.in(i) {
		return ""
	}
	return c.sectionTitles[i]
}

func (c *Catalog) BranchTitles(i int) []string {
	if !c.in(i) {
		return nil
	}
	return clone(c.branchTitles[i])
}

func (c *Catalog) Rating(i int) int {
	if !c.in(i) {
		return 0
	}
	return c.ratings[i]
}
