// Package sequence reconstructs ordered, possibly branching chains of
// records from their predecessor and successor links.
package sequence

import (
	"github.com/RoaringBitmap/roaring"
)

// Source is the link data the resolver reads. *catalog.Catalog satisfies it.
type Source interface {
	Size() int
	IndexOfID(id string) int
	LastIDs(i int) []string
	NextIDs(i int) []string
	BranchTitles(i int) []string
	SectionTitle(i int) string
}

// Graph is an integer adjacency view of a catalog's links. Unresolved links
// are kept as -1 so branch labels stay aligned with their targets. A Graph
// is a snapshot; rebuild it after the catalog changes.
type Graph struct {
	last     [][]int
	next     [][]int
	branches [][]string
	sections []string
}

// Build resolves every link of src once.
func Build(src Source) *Graph {
	n := src.Size()
	g := &Graph{
		last:     make([][]int, n),
		next:     make([][]int, n),
		branches: make([][]string, n),
		sections: make([]string, n),
	}
	for i := 0; i < n; i++ {
		g.last[i] = resolve(src, src.LastIDs(i))
		g.next[i] = resolve(src, src.NextIDs(i))
		g.branches[i] = src.BranchTitles(i)
		g.sections[i] = src.SectionTitle(i)
	}
	return g
}

func resolve(src Source, ids []string) []int {
	if len(ids) == 0 {
		return nil
	}
	out := make([]int, len(ids))
	for k, id := range ids {
		out[k] = src.IndexOfID(id)
	}
	return out
}

// Size is the number of records the graph was built over.
func (g *Graph) Size() int { return len(g.last) }

func (g *Graph) valid(i int) bool { return i >= 0 && i < len(g.last) }

// Position describes where a record sits in its sequence.
type Position struct {
	// First is set when no predecessor link resolves.
	First bool
	// Last is set when no successor link resolves.
	Last bool
}

// Singleton reports whether the record has no resolvable links at all.
func (p Position) Singleton() bool { return p.First && p.Last }

// Classify reports the sequence position of record i.
func (g *Graph) Classify(i int) Position {
	if !g.valid(i) {
		return Position{First: true, Last: true}
	}
	return Position{First: !anyResolved(g.last[i]), Last: !anyResolved(g.next[i])}
}

func anyResolved(links []int) bool {
	for _, j := range links {
		if j >= 0 {
			return true
		}
	}
	return false
}

// Kind distinguishes outline entries.
type Kind int

const (
	// KindRecord is a record in traversal order.
	KindRecord Kind = iota
	// KindBranch opens a sub-branch; Label carries the branch title.
	KindBranch
	// KindRepeat is a record already present in the outline. It closes a
	// cycle and ends its branch.
	KindRepeat
)

// Entry is one line of an outline. Index is -1 for branch markers.
type Entry struct {
	Kind  Kind
	Index int
	Depth int
	Label string
}

// Head walks back from start through first predecessor links until a link
// does not resolve or would revisit a record.
func (g *Graph) Head(start int) int {
	if !g.valid(start) {
		return -1
	}
	visited := roaring.New()
	cur := start
	visited.Add(uint32(cur))
	for {
		if len(g.last[cur]) == 0 {
			return cur
		}
		prev := g.last[cur][0]
		if prev < 0 || visited.Contains(uint32(prev)) {
			return cur
		}
		visited.Add(uint32(prev))
		cur = prev
	}
}

// Outline resolves the sequence containing start as an indented outline.
// Depth grows by one per branch level.
func (g *Graph) Outline(start int) []Entry {
	head := g.Head(start)
	if head < 0 {
		return nil
	}
	w := &walker{g: g, seen: roaring.New()}
	w.walk(head, 0)
	return w.out
}

type walker struct {
	g    *Graph
	seen *roaring.Bitmap
	out  []Entry
}

func (w *walker) walk(i, depth int) {
	for {
		if w.seen.Contains(uint32(i)) {
			w.out = append(w.out, Entry{Kind: KindRepeat, Index: i, Depth: depth})
			return
		}
		w.seen.Add(uint32(i))
		w.out = append(w.out, Entry{Kind: KindRecord, Index: i, Depth: depth})

		var targets []int
		var labels []string
		for k, j := range w.g.next[i] {
			if j < 0 {
				continue
			}
			targets = append(targets, j)
			labels = append(labels, label(w.g.branches[i], k))
		}

		switch len(targets) {
		case 0:
			return
		case 1:
			i = targets[0]
		default:
			for k, j := range targets {
				w.out = append(w.out, Entry{Kind: KindBranch, Index: -1, Depth: depth + 1, Label: labels[k]})
				w.walk(j, depth+1)
			}
			return
		}
	}
}

func label(titles []string, k int) string {
	if k < len(titles) {
		return titles[k]
	}
	return ""
}

// Indices flattens the outline of start to catalog indices in traversal
// order, leaving out branch and repeat markers. With filterSection only
// records whose section title equals section are kept.
func (g *Graph) Indices(start int, section string, filterSection bool) []int {
	var out []int
	for _, e := range g.Outline(start) {
		if e.Kind != KindRecord {
			continue
		}
		if filterSection && g.sections[e.Index] != section {
			continue
		}
		out = append(out, e.Index)
	}
	return out
}

// Section is the section title of record i.
func (g *Graph) Section(i int) string {
	if !g.valid(i) {
		return ""
	}
	return g.sections[i]
}
