package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/dvk/internal/record"
)

func sample(id, title string) *record.Record {
	return &record.Record{
		Path:      "/m/" + id + ".dvk",
		ID:        id,
		Title:     title,
		Artists:   []string{"Ann", "Bo"},
		MediaFile: "/m/" + id + ".png",
		WebTags:   []string{"t1"},
		NextIDs:   []string{"X"},
		Rating:    3,
	}
}

func TestCatalog_AppendAndGetters(t *testing.T) {
	c := New()
	assert.Equal(t, 0, c.Size())

	i := c.Append(sample("a1", "First"))
	j := c.Append(sample("b2", "Second"))
	assert.Equal(t, 0, i)
	assert.Equal(t, 1, j)
	assert.Equal(t, 2, c.Size())

	assert.Equal(t, "A1", c.ID(0))
	assert.Equal(t, "Second", c.Title(1))
	assert.Equal(t, []string{"Ann", "Bo"}, c.Artists(0))
	assert.Equal(t, "Ann, Bo", c.ArtistString(0))
	assert.Equal(t, 3, c.Rating(1))
	assert.Equal(t, "/m/b2.png", c.MediaFile(1))
}

func TestCatalog_GettersReturnCopies(t *testing.T) {
	c := New()
	src := sample("a", "T")
	c.Append(src)

	src.Artists[0] = "changed"
	artists := c.Artists(0)
	artists[0] = "mutated"
	tags := c.WebTags(0)
	tags[0] = "mutated"

	assert.Equal(t, []string{"Ann", "Bo"}, c.Artists(0))
	assert.Equal(t, []string{"t1"}, c.WebTags(0))

	r := c.Record(0)
	r.NextIDs[0] = "mutated"
	assert.Equal(t, []string{"X"}, c.NextIDs(0))
}

func TestCatalog_OutOfRange(t *testing.T) {
	c := New()
	assert.Equal(t, "", c.Title(0))
	assert.Nil(t, c.Artists(-1))
	assert.Nil(t, c.Record(3))
	assert.False(t, c.FirstInSection(0))
	assert.ErrorIs(t, c.Replace(0, sample("a", "T")), ErrOutOfRange)
}

func TestCatalog_IndexOfID(t *testing.T) {
	c := New()
	c.Append(sample("abc", "T"))
	c.Append(sample("def", "T"))

	assert.Equal(t, 0, c.IndexOfID("ABC"))
	assert.Equal(t, 1, c.IndexOfID(" def "))
	assert.Equal(t, -1, c.IndexOfID(""))
	assert.Equal(t, -1, c.IndexOfID("xx"))
	assert.Equal(t, -1, c.IndexOfID("missing"))
}

func TestCatalog_IndexOfID_SentinelNeverResolves(t *testing.T) {
	c := New()
	c.Append(sample("XX", "Sentinel-named record"))
	assert.Equal(t, -1, c.IndexOfID("XX"))
}

func TestCatalog_Replace(t *testing.T) {
	c := New()
	c.Append(sample("a", "Old"))
	c.Append(sample("b", "Other"))

	require.NoError(t, c.Replace(0, sample("c", "New")))
	assert.Equal(t, "New", c.Title(0))
	assert.Equal(t, 2, c.Size())
	assert.Equal(t, -1, c.IndexOfID("a"))
	assert.Equal(t, 0, c.IndexOfID("c"))
	assert.Equal(t, 1, c.IndexOfID("b"))
}

func TestCatalog_ReplaceKeepsFirstHolderOfDuplicateID(t *testing.T) {
	c := New()
	c.Append(sample("dup", "one"))
	c.Append(sample("dup", "two"))
	assert.Equal(t, 0, c.IndexOfID("dup"))

	require.NoError(t, c.Replace(0, sample("fresh", "one")))
	assert.Equal(t, 1, c.IndexOfID("dup"))
	assert.Equal(t, 0, c.IndexOfID("fresh"))
}

func TestCatalog_RecordRoundTrip(t *testing.T) {
	c := New()
	in := sample("id", "Title")
	in.ID = "ID"
	in.Time = 202001010000
	in.BranchTitles = []string{"b"}
	in.FirstInSection = true
	c.Append(in)
	assert.Equal(t, in, c.Record(0))
}
