package view

import (
	"fmt"

	"github.com/RoaringBitmap/roaring"

	"github.com/agentic-research/dvk/internal/query"
)

// FilterQuery holds one boolean query per searchable field. Empty queries
// keep everything.
type FilterQuery struct {
	Title         string
	Description   string
	WebTags       string
	UserTags      string
	Artists       string
	CaseSensitive bool
}

type fieldQuery struct {
	name  string
	src   string
	match func(q *query.Query, i int) bool
}

// Filter rebuilds the filtered list from the sorted list, keeping records
// that satisfy every non-empty field query. A query that fails to parse
// leaves the view unchanged.
func (v *View) Filter(fq FilterQuery) error {
	fields := []fieldQuery{
		{"title", fq.Title, func(q *query.Query, i int) bool { return q.Match(v.cat.Title(i)) }},
		{"description", fq.Description, func(q *query.Query, i int) bool { return q.Match(v.cat.Description(i)) }},
		{"web tags", fq.WebTags, func(q *query.Query, i int) bool { return q.MatchAny(v.cat.WebTags(i)) }},
		{"user tags", fq.UserTags, func(q *query.Query, i int) bool { return q.MatchAny(v.cat.UserTags(i)) }},
		{"artists", fq.Artists, func(q *query.Query, i int) bool { return q.MatchAny(v.cat.Artists(i)) }},
	}

	queries := make([]*query.Query, len(fields))
	for k, f := range fields {
		q, err := query.Parse(f.src, fq.CaseSensitive)
		if err != nil {
			return fmt.Errorf("%s filter: %w", f.name, err)
		}
		queries[k] = q
	}

	keep := roaring.New()
	keep.AddRange(0, uint64(v.cat.Size()))
	for k, f := range fields {
		q := queries[k]
		if q.Empty() {
			continue
		}
		matched := roaring.New()
		it := keep.Iterator()
		for it.HasNext() {
			i := it.Next()
			if f.match(q, int(i)) {
				matched.Add(i)
			}
		}
		keep = matched
	}

	filtered := make([]int, 0, keep.GetCardinality())
	for _, i := range v.sorted {
		if keep.Contains(uint32(i)) {
			filtered = append(filtered, i)
		}
	}
	v.filtered = filtered
	return nil
}
