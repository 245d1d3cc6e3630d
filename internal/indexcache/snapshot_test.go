package indexcache

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/dvk/internal/record"
)

func sampleRecords() []*record.Record {
	return []*record.Record{
		{
			Path: "/m/a.dmf", ID: "A", Title: "First", Artists: []string{"x", "y"},
			Time: 202401021530, MediaFile: "/m/a.png", NextIDs: []string{"B", "C"},
			BranchTitles: []string{"left", "right"}, FirstInSection: true, Rating: 4,
		},
		{Path: "/m/b.dvk", ID: "B", Title: "Second", MediaFile: "/m/b.png", LastIDs: []string{"A"}},
	}
}

func TestSnapshot_EncodeDecode(t *testing.T) {
	data, err := encodeSnapshot(newSnapshot("/m", sampleRecords()))
	require.NoError(t, err)

	snap, err := decodeSnapshot(data)
	require.NoError(t, err)
	assert.Equal(t, "/m", snap.Dir)
	assert.Equal(t, sampleRecords(), snap.records())
}

func TestSnapshot_RejectsCorruption(t *testing.T) {
	good, err := encodeSnapshot(newSnapshot("/m", sampleRecords()))
	require.NoError(t, err)

	wrongVersion := append([]byte(nil), good...)
	binary.BigEndian.PutUint32(wrongVersion[4:8], snapshotVersion+1)

	wrongMagic := append([]byte(nil), good...)
	wrongMagic[0] ^= 0xff

	truncated := good[:headerSize+(len(good)-headerSize)/2]

	uneven := newSnapshot("/m", sampleRecords())
	uneven.Titles = uneven.Titles[:1]
	unevenData, err := encodeSnapshot(uneven)
	require.NoError(t, err)

	for name, data := range map[string][]byte{
		"short":        good[:3],
		"version":      wrongVersion,
		"magic":        wrongMagic,
		"truncated":    truncated,
		"uneven lists": unevenData,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := decodeSnapshot(data)
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}
}
