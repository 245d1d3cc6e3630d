package view

import (
	"cmp"

	"github.com/RoaringBitmap/roaring"

	"github.com/agentic-research/dvk/internal/natsort"
	"github.com/agentic-research/dvk/internal/sequence"
)

// SortOptions selects the sort key and grouping.
type SortOptions struct {
	Key             Key
	GroupByArtist   bool
	GroupBySequence bool
	GroupBySection  bool
	Reverse         bool
}

// sortKeys caches the per-record values the comparator reads.
type sortKeys struct {
	artists []string
	titles  []string
	times   []int64
	ratings []int
}

// Sort rebuilds the sorted list from catalog order and resets the filter.
// Records that compare equal keep their catalog order. When grouping by
// sequence or section, each group is ordered by one representative and then
// expanded in place to the group's traversal order.
func (v *View) Sort(opts SortOptions) {
	n := v.cat.Size()
	v.graph = sequence.Build(v.cat)

	keys := sortKeys{
		artists: make([]string, n),
		titles:  make([]string, n),
		times:   make([]int64, n),
		ratings: make([]int, n),
	}
	for i := 0; i < n; i++ {
		keys.artists[i] = v.cat.ArtistString(i)
		keys.titles[i] = v.cat.Title(i)
		keys.times[i] = v.cat.Time(i)
		keys.ratings[i] = v.cat.Rating(i)
	}

	grouping := opts.GroupBySequence || opts.GroupBySection
	var work []int
	var groups map[int][]int
	if grouping {
		work, groups = v.representatives(opts)
	} else {
		work = identity(n)
	}

	mergeSort(work, func(a, b int) int { return keys.compare(a, b, opts) })

	if grouping {
		work = expand(work, groups)
	}
	if opts.Reverse {
		for i, j := 0, len(work)-1; i < j; i, j = i+1, j-1 {
			work[i], work[j] = work[j], work[i]
		}
	}
	v.sorted = work
	v.filtered = clone(work)
}

func (k *sortKeys) compare(a, b int, opts SortOptions) int {
	if opts.GroupByArtist {
		if c := natsort.Compare(k.artists[a], k.artists[b]); c != 0 {
			return c
		}
	}
	if opts.Key == KeyRating {
		if c := cmp.Compare(k.ratings[b], k.ratings[a]); c != 0 {
			return c
		}
	}
	if opts.Key == KeyRating || opts.Key == KeyTime {
		if c := cmp.Compare(k.times[a], k.times[b]); c != 0 {
			return c
		}
	}
	return natsort.Compare(k.titles[a], k.titles[b])
}

// representatives reduces the catalog to one index per sequence (or per
// section of a sequence) plus every singleton. The representative is the
// last member when sorting by time and the first otherwise. groups maps each
// non-singleton representative to its members in traversal order; every
// catalog index lands in exactly one group.
func (v *View) representatives(opts SortOptions) ([]int, map[int][]int) {
	n := v.cat.Size()
	covered := roaring.New()
	groups := make(map[int][]int)
	var reps []int

	for i := 0; i < n; i++ {
		if covered.Contains(uint32(i)) {
			continue
		}
		if v.graph.Classify(i).Singleton() {
			covered.Add(uint32(i))
			reps = append(reps, i)
			continue
		}

		var members []int
		self := false
		for _, j := range v.graph.Indices(i, v.graph.Section(i), opts.GroupBySection) {
			if covered.Contains(uint32(j)) {
				continue
			}
			covered.Add(uint32(j))
			members = append(members, j)
			self = self || j == i
		}
		if !self {
			// i is not reachable from its own head (one-sided link).
			covered.Add(uint32(i))
			members = append(members, i)
		}

		rep := members[0]
		if opts.Key == KeyTime {
			rep = members[len(members)-1]
		}
		reps = append(reps, rep)
		if len(members) > 1 {
			groups[rep] = members
		}
	}
	return reps, groups
}

// expand walks the sorted representatives back to front and splices each
// group in at its representative's position.
func expand(reps []int, groups map[int][]int) []int {
	var out []int
	for k := len(reps) - 1; k >= 0; k-- {
		rep := reps[k]
		if members, ok := groups[rep]; ok {
			out = append(out, reversed(members)...)
			delete(groups, rep)
			continue
		}
		out = append(out, rep)
	}
	return reversed(out)
}

func reversed(s []int) []int {
	out := make([]int, len(s))
	for i, x := range s {
		out[len(s)-1-i] = x
	}
	return out
}

// mergeSort is a stable top-down merge sort.
func mergeSort(xs []int, compare func(a, b int) int) {
	buf := make([]int, len(xs))
	mergeSortRange(xs, buf, compare)
}

func mergeSortRange(xs, buf []int, compare func(a, b int) int) {
	if len(xs) < 2 {
		return
	}
	mid := len(xs) / 2
	mergeSortRange(xs[:mid], buf[:mid], compare)
	mergeSortRange(xs[mid:], buf[mid:], compare)
	merge(xs, buf, mid, compare)
}

func merge(xs, buf []int, mid int, compare func(a, b int) int) {
	copy(buf, xs)
	left, right := buf[:mid], buf[mid:]
	i, j, k := 0, 0, 0
	for i < len(left) && j < len(right) {
		// Ties take from the left run to keep the sort stable.
		if compare(left[i], right[j]) <= 0 {
			xs[k] = left[i]
			i++
		} else {
			xs[k] = right[j]
			j++
		}
		k++
	}
	k += copy(xs[k:], left[i:])
	copy(xs[k:], right[j:])
}
