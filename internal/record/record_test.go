package record

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFS() billy.Filesystem { return osfs.New("/") }

func writeRaw(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

const minimalDVK = `{
  "file_type": "dvk",
  "id": "id123",
  "info": {
    "title": "Some Title",
    "artists": ["Artist A", "Artist B"],
    "time": "2017/10/06|21:05",
    "web_tags": ["tag1", "tag2"],
    "description": "caf&#233; <b>bold</b>"
  },
  "web": {
    "page_url": "https://example.com/page",
    "direct_url": "https://example.com/media.png"
  },
  "file": {
    "media_file": "media.png"
  }
}`

func TestParseDVK_Minimal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "item.dvk")
	writeRaw(t, path, minimalDVK)

	r, err := Parse(newFS(), path)
	require.NoError(t, err)

	assert.Equal(t, "ID123", r.ID)
	assert.Equal(t, "Some Title", r.Title)
	assert.Equal(t, []string{"Artist A", "Artist B"}, r.Artists)
	assert.Equal(t, int64(201710062105), r.Time)
	assert.Equal(t, []string{"tag1", "tag2"}, r.WebTags)
	assert.Equal(t, "café <b>bold</b>", r.Description)
	assert.Equal(t, "https://example.com/page", r.PageURL)
	assert.Equal(t, "https://example.com/media.png", r.MediaURL)
	assert.Equal(t, filepath.Join(dir, "media.png"), r.MediaFile)
	assert.Empty(t, r.SecondaryFile)
	assert.True(t, r.Valid())
	assert.True(t, r.ValidForWrite())
}

func TestParseDVK_RequiredFields(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"no type marker", `{"id":"a","info":{"title":"t","artists":["x"]},"web":{"page_url":"p"},"file":{"media_file":"m"}}`},
		{"wrong type marker", `{"file_type":"dmf","id":"a","info":{"title":"t","artists":["x"]},"web":{"page_url":"p"},"file":{"media_file":"m"}}`},
		{"no id", `{"file_type":"dvk","info":{"title":"t","artists":["x"]},"web":{"page_url":"p"},"file":{"media_file":"m"}}`},
		{"blank id", `{"file_type":"dvk","id":"  ","info":{"title":"t","artists":["x"]},"web":{"page_url":"p"},"file":{"media_file":"m"}}`},
		{"no title", `{"file_type":"dvk","id":"a","info":{"artists":["x"]},"web":{"page_url":"p"},"file":{"media_file":"m"}}`},
		{"empty artists", `{"file_type":"dvk","id":"a","info":{"title":"t","artists":[]},"web":{"page_url":"p"},"file":{"media_file":"m"}}`},
		{"no page url", `{"file_type":"dvk","id":"a","info":{"title":"t","artists":["x"]},"file":{"media_file":"m"}}`},
		{"no media", `{"file_type":"dvk","id":"a","info":{"title":"t","artists":["x"]},"web":{"page_url":"p"}}`},
		{"not json", `{"file_type":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.dvk")
			writeRaw(t, path, tt.doc)

			r, err := Parse(newFS(), path)
			assert.Nil(t, r)
			assert.ErrorIs(t, err, ErrInvalid)

			var pe *ParseError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, path, pe.Path)
		})
	}
}

func TestParseDVK_MalformedOptionalFieldsAreAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "item.dvk")
	writeRaw(t, path, `{
	  "file_type": "dvk", "id": "a",
	  "info": {"title": "t", "artists": ["x"], "time": "yesterday", "web_tags": 12, "description": 4},
	  "web": {"page_url": "p"},
	  "file": {"media_file": "m.jpg"}
	}`)

	r, err := Parse(newFS(), path)
	require.NoError(t, err)
	assert.Zero(t, r.Time)
	assert.Empty(t, r.WebTags)
	assert.Empty(t, r.Description)
}

func TestParseDVK_TimeBelowThresholdIsAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "item.dvk")
	writeRaw(t, path, `{"file_type":"dvk","id":"a","info":{"title":"t","artists":["x"],"time":100000000},"web":{"page_url":"p"},"file":{"media_file":"m"}}`)

	r, err := Parse(newFS(), path)
	require.NoError(t, err)
	assert.Zero(t, r.Time)
}

func TestParseDMF_LegacyArtistKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "old.dmf")
	writeRaw(t, path, "[DMF]\nid = abc\n\n[INFO]\ntitle = Old One\nartist = Someone\n\n[FILE]\nmedia_file = old.gif\n")

	r, err := Parse(newFS(), path)
	require.NoError(t, err)
	assert.Equal(t, "ABC", r.ID)
	assert.Equal(t, "Old One", r.Title)
	assert.Equal(t, []string{"Someone"}, r.Artists)
	assert.Equal(t, filepath.Join(dir, "old.gif"), r.MediaFile)
}

func TestParseDMF_RequiresHeaderAndID(t *testing.T) {
	for name, content := range map[string]string{
		"no header": "[INFO]\ntitle = x\n[FILE]\nmedia_file = a.png\n",
		"no id":     "[DMF]\n[FILE]\nmedia_file = a.png\n",
		"no media":  "[DMF]\nid = a\n",
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.dmf")
			writeRaw(t, path, content)
			r, err := Parse(newFS(), path)
			assert.Nil(t, r)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestParse_UnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	writeRaw(t, path, "hello")
	_, err := Parse(newFS(), path)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestRoundTrip_DVK(t *testing.T) {
	dir := t.TempDir()
	in := &Record{
		Path:          filepath.Join(dir, "round.dvk"),
		ID:            "ROUND1",
		Title:         "Round \"Trip\", part 2",
		Artists:       []string{"Zed", "Ärtist"},
		Time:          202301020304,
		WebTags:       []string{"a,b", "c"},
		Description:   "naïve <i>markup</i> &amp; more\nsecond line",
		PageURL:       "https://example.com/p/1",
		MediaURL:      "https://example.com/m/1.jpg",
		SecondaryURL:  "https://example.com/s/1.txt",
		MediaFile:     filepath.Join(dir, "round.jpg"),
		SecondaryFile: filepath.Join(dir, "sub", "round.txt"),
	}
	fsys := newFS()
	require.NoError(t, Write(fsys, in))

	out, err := Parse(fsys, in.Path)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	first, err := os.ReadFile(in.Path)
	require.NoError(t, err)
	require.NoError(t, Write(fsys, out))
	second, err := os.ReadFile(in.Path)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second), "repeated write must be idempotent")
}

func TestRoundTrip_DMF(t *testing.T) {
	dir := t.TempDir()
	in := &Record{
		Path:           filepath.Join(dir, "round.dmf"),
		ID:             "SEQ-2",
		Title:          "'Quoted' title; with # marks",
		Artists:        []string{"One, Two", `Back\slash`},
		Time:           199912312359,
		WebTags:        []string{"x"},
		UserTags:       []string{"fav", "later"},
		Description:    "line one\nline two `tick`",
		PageURL:        "https://example.com/view?id=2&x=y",
		MediaFile:      filepath.Join(dir, "round.png"),
		LastIDs:        []string{"SEQ-1"},
		NextIDs:        []string{"SEQ-3", "SEQ-3B"},
		FirstInSection: true,
		SequenceTitle:  "The Sequence",
		SectionTitle:   "Chapter 1",
		BranchTitles:   []string{"", "Alternate"},
		Rating:         4,
	}
	fsys := newFS()
	require.NoError(t, Write(fsys, in))

	out, err := Parse(fsys, in.Path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestRoundTrip_DMFPaddedValues(t *testing.T) {
	dir := t.TempDir()
	fsys := newFS()
	for name, pad := range map[string]string{
		"quotes both ends":    `  he said "hi"  `,
		"leading html":        ` <a href="x">`,
		"trailing apostrophe": "it's \t",
		"tabs and newlines":   "\t\nx \"y\"\n\t",
		"non-breaking space":  "\u00a0\"q\"\u00a0",
		"only spaces":         "   ",
	} {
		t.Run(name, func(t *testing.T) {
			in := &Record{
				Path:          filepath.Join(dir, "pad.dmf"),
				ID:            "PAD",
				Title:         "Padded",
				Artists:       []string{"Someone"},
				Description:   pad,
				PageURL:       "https://example.com/pad",
				MediaFile:     filepath.Join(dir, "pad.png"),
				SequenceTitle: pad,
				SectionTitle:  pad,
			}
			require.NoError(t, Write(fsys, in))

			data, err := os.ReadFile(in.Path)
			require.NoError(t, err)
			assert.NotContains(t, string(data), `= "`, "values must not be quoted by the ini writer")

			out, err := Parse(fsys, in.Path)
			require.NoError(t, err)
			assert.Equal(t, pad, out.Description)
			assert.Equal(t, pad, out.SequenceTitle)
			assert.Equal(t, pad, out.SectionTitle)
		})
	}
}

func TestWrite_RefusesInvalidRecord(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		rec  *Record
	}{
		{"no id", &Record{Path: filepath.Join(dir, "a.dvk"), MediaFile: filepath.Join(dir, "a.png")}},
		{"no media", &Record{Path: filepath.Join(dir, "b.dvk"), ID: "B"}},
		{"wrong extension", &Record{Path: filepath.Join(dir, "c.json"), ID: "C", MediaFile: filepath.Join(dir, "c.png")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Write(newFS(), tt.rec)
			assert.ErrorIs(t, err, ErrNotWritable)
			_, statErr := os.Stat(tt.rec.Path)
			assert.True(t, os.IsNotExist(statErr), "no file should be written")
		})
	}
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no temp files should be left behind")
}

func TestLinked(t *testing.T) {
	assert.False(t, (&Record{}).Linked())
	assert.False(t, (&Record{LastIDs: []string{"XX"}, NextIDs: []string{"xx"}}).Linked())
	assert.True(t, (&Record{NextIDs: []string{"B"}}).Linked())
}

func TestNormalizeID(t *testing.T) {
	assert.Equal(t, "ABC1", NormalizeID(" abc1 "))
	assert.False(t, IsLink("xx"))
	assert.False(t, IsLink(""))
	assert.True(t, IsLink("a"))
}

func TestClone_IsDeep(t *testing.T) {
	r := &Record{Artists: []string{"a"}, NextIDs: []string{"N"}}
	c := r.Clone()
	c.Artists[0] = "b"
	c.NextIDs[0] = "M"
	assert.Equal(t, "a", r.Artists[0])
	assert.Equal(t, "N", r.NextIDs[0])
}
