package record

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	billy "github.com/go-git/go-billy/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedSniffer struct {
	ext string
	err error
}

func (s fixedSniffer) Extension(billy.Filesystem, string) (string, error) {
	return s.ext, s.err
}

func writtenRecord(t *testing.T, dir string) *Record {
	t.Helper()
	media := filepath.Join(dir, "pic.jpg")
	writeRaw(t, media, "not really a jpeg")
	r := &Record{
		Path:      filepath.Join(dir, "pic.dvk"),
		ID:        "PIC",
		Title:     "Pic",
		Artists:   []string{"A"},
		PageURL:   "https://example.com/pic",
		MediaFile: media,
	}
	require.NoError(t, Write(newFS(), r))
	return r
}

func TestWriteAndFix_RenamesMediaToSniffedExtension(t *testing.T) {
	dir := t.TempDir()
	r := writtenRecord(t, dir)

	out, err := WriteAndFix(newFS(), r, fixedSniffer{ext: ".png"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "pic.png"), out.MediaFile)

	_, err = os.Stat(filepath.Join(dir, "pic.jpg"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "pic.png"))
	assert.NoError(t, err)

	reread, err := Parse(newFS(), r.Path)
	require.NoError(t, err)
	assert.Equal(t, out.MediaFile, reread.MediaFile)
}

func TestWriteAndFix_SnifferFailureLeavesFiles(t *testing.T) {
	dir := t.TempDir()
	r := writtenRecord(t, dir)

	out, err := WriteAndFix(newFS(), r, fixedSniffer{err: errors.New("boom")})
	require.NoError(t, err)
	assert.Equal(t, r.MediaFile, out.MediaFile)
	_, err = os.Stat(r.MediaFile)
	assert.NoError(t, err)
}

func TestWriteAndFix_MatchingExtensionIsNoop(t *testing.T) {
	dir := t.TempDir()
	r := writtenRecord(t, dir)

	out, err := WriteAndFix(newFS(), r, fixedSniffer{ext: ".jpg"})
	require.NoError(t, err)
	assert.Equal(t, r.MediaFile, out.MediaFile)
}

func TestRenameFiles_MovesRecordAndMedia(t *testing.T) {
	dir := t.TempDir()
	r := writtenRecord(t, dir)

	out, err := RenameFiles(newFS(), r, "renamed")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "renamed.dvk"), out.Path)
	assert.Equal(t, filepath.Join(dir, "renamed.jpg"), out.MediaFile)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"renamed.dvk", "renamed.jpg"}, names)

	reread, err := Parse(newFS(), out.Path)
	require.NoError(t, err)
	assert.Equal(t, out.MediaFile, reread.MediaFile)
	assert.Equal(t, "PIC", reread.ID)
}

func TestRenameFiles_CaseOnlyChange(t *testing.T) {
	dir := t.TempDir()
	r := writtenRecord(t, dir)

	out, err := RenameFiles(newFS(), r, "PIC")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "PIC.dvk"), out.Path)
	_, err = os.Stat(out.MediaFile)
	assert.NoError(t, err)
}

func TestRenameFiles_RejectsPathSeparators(t *testing.T) {
	dir := t.TempDir()
	r := writtenRecord(t, dir)
	_, err := RenameFiles(newFS(), r, "../escape")
	assert.Error(t, err)
}
