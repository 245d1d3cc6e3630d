package record

import (
	"fmt"
	"path/filepath"
	"strings"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

const dvkMarker = "dvk"

// Field paths inside a .dvk document.
var (
	dvkFileType   = jp.C("file_type")
	dvkID         = jp.C("id")
	dvkTitle      = jp.C("info").C("title")
	dvkArtists    = jp.C("info").C("artists")
	dvkTime       = jp.C("info").C("time")
	dvkWebTags    = jp.C("info").C("web_tags")
	dvkDesc       = jp.C("info").C("description")
	dvkPageURL    = jp.C("web").C("page_url")
	dvkDirectURL  = jp.C("web").C("direct_url")
	dvkSecondURL  = jp.C("web").C("secondary_url")
	dvkMediaFile  = jp.C("file").C("media_file")
	dvkSecondFile = jp.C("file").C("secondary_file")
)

var dvkWriteOptions = ojg.Options{Indent: 4, Sort: true}

// ParseDVK reads a JSON .dvk record. The type marker and ID are checked before
// anything else is trusted; optional fields that are missing or malformed are
// left empty.
func ParseDVK(fsys billy.Filesystem, path string) (*Record, error) {
	data, err := util.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	doc, err := oj.Parse(data)
	if err != nil {
		return nil, invalid(path, "malformed json: %v", err)
	}
	return decodeDVK(doc, path)
}

func decodeDVK(doc any, path string) (*Record, error) {
	if ft, _ := dvkFileType.First(doc).(string); !strings.EqualFold(strings.TrimSpace(ft), dvkMarker) {
		return nil, invalid(path, "missing dvk type marker")
	}
	id := NormalizeID(stringAt(dvkID, doc))
	if id == "" {
		return nil, invalid(path, "missing id")
	}

	dir := filepath.Dir(path)
	r := &Record{
		Path:          path,
		ID:            id,
		Title:         stringAt(dvkTitle, doc),
		Artists:       stringsAt(dvkArtists, doc),
		Time:          ParseTime(dvkTime.First(doc)),
		WebTags:       stringsAt(dvkWebTags, doc),
		Description:   UnescapeText(stringAt(dvkDesc, doc)),
		PageURL:       strings.TrimSpace(stringAt(dvkPageURL, doc)),
		MediaURL:      strings.TrimSpace(stringAt(dvkDirectURL, doc)),
		SecondaryURL:  strings.TrimSpace(stringAt(dvkSecondURL, doc)),
		MediaFile:     resolvePath(dir, stringAt(dvkMediaFile, doc)),
		SecondaryFile: resolvePath(dir, stringAt(dvkSecondFile, doc)),
	}
	r.normalize()

	switch {
	case r.Title == "":
		return nil, invalid(path, "missing info.title")
	case len(r.Artists) == 0:
		return nil, invalid(path, "missing info.artists")
	case r.PageURL == "":
		return nil, invalid(path, "missing web.page_url")
	case r.MediaFile == "":
		return nil, invalid(path, "missing file.media_file")
	}
	return r, nil
}

func stringAt(x jp.Expr, doc any) string {
	s, _ := x.First(doc).(string)
	return s
}

func stringsAt(x jp.Expr, doc any) []string {
	switch v := x.First(doc).(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{v}
	}
	return nil
}

// encodeDVK renders the flat .dvk form. Sequence fields have no home in this
// format and are not written.
func encodeDVK(r *Record) []byte {
	dir := r.Dir()
	info := map[string]any{
		"title":   r.Title,
		"artists": anyList(r.Artists),
	}
	if t := FormatTime(r.Time); t != "" {
		info["time"] = t
	}
	if len(r.WebTags) > 0 {
		info["web_tags"] = anyList(r.WebTags)
	}
	if r.Description != "" {
		info["description"] = EscapeText(r.Description)
	}
	web := map[string]any{"page_url": r.PageURL}
	if r.MediaURL != "" {
		web["direct_url"] = r.MediaURL
	}
	if r.SecondaryURL != "" {
		web["secondary_url"] = r.SecondaryURL
	}
	file := map[string]any{"media_file": relativePath(dir, r.MediaFile)}
	if r.SecondaryFile != "" {
		file["secondary_file"] = relativePath(dir, r.SecondaryFile)
	}
	doc := map[string]any{
		"file_type": dvkMarker,
		"id":        r.ID,
		"info":      info,
		"web":       web,
		"file":      file,
	}
	return []byte(oj.JSON(doc, &dvkWriteOptions) + "\n")
}

func anyList(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
