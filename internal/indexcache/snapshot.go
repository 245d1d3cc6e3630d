package indexcache

import (
	"encoding/binary"
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/klauspost/compress/zstd"

	"github.com/agentic-research/dvk/internal/record"
)

const (
	snapshotMagic   = 0x44564B53 // 'DVKS'
	snapshotVersion = 2
	headerSize      = 8
)

// ErrCorrupt marks a snapshot that cannot be trusted.
var ErrCorrupt = errors.New("corrupt snapshot")

var snapshotJSON = jsoniter.Config{
	EscapeHTML:             false,
	ValidateJsonRawMessage: false,
	CaseSensitive:          true,
	SortMapKeys:            false,
}.Froze()

// snapshot holds one directory's records as parallel attribute lists.
type snapshot struct {
	Dir            string     `json:"dir"`
	Paths          []string   `json:"paths"`
	IDs            []string   `json:"ids"`
	Titles         []string   `json:"titles"`
	Artists        [][]string `json:"artists"`
	Times          []int64    `json:"times"`
	WebTags        [][]string `json:"web_tags"`
	UserTags       [][]string `json:"user_tags"`
	Descriptions   []string   `json:"descriptions"`
	PageURLs       []string   `json:"page_urls"`
	MediaURLs      []string   `json:"media_urls"`
	SecondaryURLs  []string   `json:"secondary_urls"`
	MediaFiles     []string   `json:"media_files"`
	SecondaryFiles []string   `json:"secondary_files"`
	LastIDs        [][]string `json:"last_ids"`
	NextIDs        [][]string `json:"next_ids"`
	FirstInSection []bool     `json:"first_in_section"`
	LastInSection  []bool     `json:"last_in_section"`
	SequenceTitles []string   `json:"sequence_titles"`
	SectionTitles  []string   `json:"section_titles"`
	BranchTitles   [][]string `json:"branch_titles"`
	Ratings        []int      `json:"ratings"`
}

func newSnapshot(dir string, records []*record.Record) *snapshot {
	s := &snapshot{Dir: dir}
	for _, r := range records {
		s.Paths = append(s.Paths, r.Path)
		s.IDs = append(s.IDs, r.ID)
		s.Titles = append(s.Titles, r.Title)
		s.Artists = append(s.Artists, r.Artists)
		s.Times = append(s.Times, r.Time)
		s.WebTags = append(s.WebTags, r.WebTags)
		s.UserTags = append(s.UserTags, r.UserTags)
		s.Descriptions = append(s.Descriptions, r.Description)
		s.PageURLs = append(s.PageURLs, r.PageURL)
		s.MediaURLs = append(s.MediaURLs, r.MediaURL)
		s.SecondaryURLs = append(s.SecondaryURLs, r.SecondaryURL)
		s.MediaFiles = append(s.MediaFiles, r.MediaFile)
		s.SecondaryFiles = append(s.SecondaryFiles, r.SecondaryFile)
		s.LastIDs = append(s.LastIDs, r.LastIDs)
		s.NextIDs = append(s.NextIDs, r.NextIDs)
		s.FirstInSection = append(s.FirstInSection, r.FirstInSection)
		s.LastInSection = append(s.LastInSection, r.LastInSection)
		s.SequenceTitles = append(s.SequenceTitles, r.SequenceTitle)
		s.SectionTitles = append(s.SectionTitles, r.SectionTitle)
		s.BranchTitles = append(s.BranchTitles, r.BranchTitles)
		s.Ratings = append(s.Ratings, r.Rating)
	}
	return s
}

// uniform reports whether every attribute list has the same length.
func (s *snapshot) uniform() bool {
	n := len(s.IDs)
	for _, l := range []int{
		len(s.Paths), len(s.Titles), len(s.Artists), len(s.Times),
		len(s.WebTags), len(s.UserTags), len(s.Descriptions),
		len(s.PageURLs), len(s.MediaURLs), len(s.SecondaryURLs),
		len(s.MediaFiles), len(s.SecondaryFiles), len(s.LastIDs), len(s.NextIDs),
		len(s.FirstInSection), len(s.LastInSection), len(s.SequenceTitles),
		len(s.SectionTitles), len(s.BranchTitles), len(s.Ratings),
	} {
		if l != n {
			return false
		}
	}
	return true
}

func (s *snapshot) records() []*record.Record {
	out := make([]*record.Record, len(s.IDs))
	for i := range s.IDs {
		out[i] = &record.Record{
			Path:           s.Paths[i],
			ID:             s.IDs[i],
			Title:          s.Titles[i],
			Artists:        s.Artists[i],
			Time:           s.Times[i],
			WebTags:        s.WebTags[i],
			UserTags:       s.UserTags[i],
			Description:    s.Descriptions[i],
			PageURL:        s.PageURLs[i],
			MediaURL:       s.MediaURLs[i],
			SecondaryURL:   s.SecondaryURLs[i],
			MediaFile:      s.MediaFiles[i],
			SecondaryFile:  s.SecondaryFiles[i],
			LastIDs:        s.LastIDs[i],
			NextIDs:        s.NextIDs[i],
			FirstInSection: s.FirstInSection[i],
			LastInSection:  s.LastInSection[i],
			SequenceTitle:  s.SequenceTitles[i],
			SectionTitle:   s.SectionTitles[i],
			BranchTitles:   s.BranchTitles[i],
			Rating:         s.Ratings[i],
		}
	}
	return out
}

// encodeSnapshot renders the header followed by the zstd compressed body.
func encodeSnapshot(s *snapshot) ([]byte, error) {
	body, err := snapshotJSON.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	defer func() { _ = enc.Close() }()

	out := make([]byte, headerSize, headerSize+len(body)/2)
	binary.BigEndian.PutUint32(out[0:4], snapshotMagic)
	binary.BigEndian.PutUint32(out[4:8], snapshotVersion)
	return enc.EncodeAll(body, out), nil
}

func decodeSnapshot(data []byte) (*snapshot, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: short header", ErrCorrupt)
	}
	if m := binary.BigEndian.Uint32(data[0:4]); m != snapshotMagic {
		return nil, fmt.Errorf("%w: invalid magic %x", ErrCorrupt, m)
	}
	if v := binary.BigEndian.Uint32(data[4:8]); v != snapshotVersion {
		return nil, fmt.Errorf("%w: version %d, want %d", ErrCorrupt, v, snapshotVersion)
	}

	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	body, err := dec.DecodeAll(data[headerSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	var s snapshot
	if err := snapshotJSON.Unmarshal(body, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if !s.uniform() {
		return nil, fmt.Errorf("%w: attribute lists differ in length", ErrCorrupt)
	}
	return &s, nil
}
