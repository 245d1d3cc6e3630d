package record

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"gopkg.in/ini.v1"
)

// Section names of a .dmf record.
const (
	dmfHeader   = "DMF"
	dmfInfo     = "INFO"
	dmfWeb      = "WEB"
	dmfFile     = "FILE"
	dmfSequence = "SEQUENCE"
)

// IniOptions are shared by every key/value file this module reads or writes.
var IniOptions = ini.LoadOptions{
	IgnoreInlineComment: true,
	IgnoreContinuation:  true,
	KeyValueDelimiters:  "=",
	AllowShadows:        false,
}

// ParseDMF reads a key/value .dmf record.
func ParseDMF(fsys billy.Filesystem, path string) (*Record, error) {
	data, err := util.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	f, err := ini.LoadSources(IniOptions, data)
	if err != nil {
		return nil, invalid(path, "malformed dmf: %v", err)
	}
	return decodeDMF(f, path)
}

func decodeDMF(f *ini.File, path string) (*Record, error) {
	head, err := f.GetSection(dmfHeader)
	if err != nil {
		return nil, invalid(path, "missing [%s] header", dmfHeader)
	}
	id := NormalizeID(value(head, "id"))
	if id == "" {
		return nil, invalid(path, "missing id")
	}

	dir := filepath.Dir(path)
	info := f.Section(dmfInfo)
	web := f.Section(dmfWeb)
	file := f.Section(dmfFile)
	seq := f.Section(dmfSequence)

	artists := SplitList(value(info, "authors"))
	if !info.HasKey("authors") {
		artists = SplitList(value(info, "artist"))
	}

	r := &Record{
		Path:           path,
		ID:             id,
		Title:          value(info, "title"),
		Artists:        artists,
		Time:           ParseTime(value(info, "time")),
		WebTags:        SplitList(value(info, "web_tags")),
		UserTags:       SplitList(value(info, "user_tags")),
		Description:    UnescapeText(value(info, "description")),
		Rating:         intValue(info, "rating"),
		PageURL:        value(web, "page_url"),
		MediaURL:       value(web, "media_url"),
		SecondaryURL:   value(web, "secondary_url"),
		MediaFile:      resolvePath(dir, value(file, "media_file")),
		SecondaryFile:  resolvePath(dir, value(file, "secondary_file")),
		LastIDs:        SplitList(value(seq, "last_ids")),
		NextIDs:        SplitList(value(seq, "next_ids")),
		FirstInSection: boolValue(seq, "first_in_section"),
		LastInSection:  boolValue(seq, "last_in_section"),
		SequenceTitle:  value(seq, "sequence_title"),
		SectionTitle:   value(seq, "section_title"),
		BranchTitles:   SplitList(value(seq, "branch_titles")),
	}
	r.normalize()
	if len(r.BranchTitles) > len(r.NextIDs) {
		r.BranchTitles = r.BranchTitles[:len(r.NextIDs)]
	}
	if r.MediaFile == "" {
		return nil, invalid(path, "missing media_file")
	}
	return r, nil
}

func value(sec *ini.Section, key string) string {
	if !sec.HasKey(key) {
		return ""
	}
	return UnescapeValue(sec.Key(key).String())
}

func intValue(sec *ini.Section, key string) int {
	n, err := strconv.Atoi(value(sec, key))
	if err != nil {
		return 0
	}
	return n
}

func boolValue(sec *ini.Section, key string) bool {
	b, err := strconv.ParseBool(value(sec, key))
	return err == nil && b
}

func encodeDMF(r *Record) ([]byte, error) {
	dir := r.Dir()
	f := ini.Empty(IniOptions)

	put := func(section, key, val string) error {
		if val == "" {
			return nil
		}
		_, err := f.Section(section).NewKey(key, val)
		return err
	}
	puts := []struct {
		section, key, val string
	}{
		{dmfHeader, "id", EscapeValue(r.ID)},
		{dmfInfo, "title", EscapeValue(r.Title)},
		{dmfInfo, "authors", JoinList(r.Artists)},
		{dmfInfo, "time", FormatTime(r.Time)},
		{dmfInfo, "web_tags", JoinList(r.WebTags)},
		{dmfInfo, "user_tags", JoinList(r.UserTags)},
		{dmfInfo, "description", EscapeValue(EscapeText(r.Description))},
		{dmfInfo, "rating", nonZero(r.Rating)},
		{dmfWeb, "page_url", EscapeValue(r.PageURL)},
		{dmfWeb, "media_url", EscapeValue(r.MediaURL)},
		{dmfWeb, "secondary_url", EscapeValue(r.SecondaryURL)},
		{dmfFile, "media_file", EscapeValue(relativePath(dir, r.MediaFile))},
		{dmfFile, "secondary_file", EscapeValue(relativePath(dir, r.SecondaryFile))},
		{dmfSequence, "last_ids", JoinList(r.LastIDs)},
		{dmfSequence, "next_ids", JoinList(r.NextIDs)},
		{dmfSequence, "first_in_section", trueOnly(r.FirstInSection)},
		{dmfSequence, "last_in_section", trueOnly(r.LastInSection)},
		{dmfSequence, "sequence_title", EscapeValue(r.SequenceTitle)},
		{dmfSequence, "section_title", EscapeValue(r.SectionTitle)},
		{dmfSequence, "branch_titles", JoinList(r.BranchTitles)},
	}
	for _, p := range puts {
		if err := put(p.section, p.key, p.val); err != nil {
			return nil, fmt.Errorf("dmf %s.%s: %w", p.section, p.key, err)
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func nonZero(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func trueOnly(b bool) string {
	if !b {
		return ""
	}
	return "true"
}

// EscapeValue makes s safe to store as a single-line key/value entry.
func EscapeValue(s string) string {
	return escapeWith(s, "")
}

// UnescapeValue reverses EscapeValue.
func UnescapeValue(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'g':
			b.WriteByte('`')
		case 's':
			b.WriteByte(' ')
		case 'u':
			if i+5 > len(s) {
				b.WriteByte('u')
				break
			}
			n, err := strconv.ParseUint(s[i+1:i+5], 16, 32)
			if err != nil {
				b.WriteByte('u')
				break
			}
			b.WriteRune(rune(n))
			i += 4
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// JoinList encodes a list as one comma-separated value. Empty items survive
// between commas, which keeps branch titles aligned with their IDs.
func JoinList(items []string) string {
	if len(items) == 0 {
		return ""
	}
	parts := make([]string, len(items))
	for i, s := range items {
		parts[i] = escapeWith(s, ",")
	}
	return strings.Join(parts, ",")
}

// SplitList decodes a JoinList value.
func SplitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	var cur strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s):
			cur.WriteByte('\\')
			cur.WriteByte(s[i+1])
			i++
		case c == ',':
			out = append(out, UnescapeValue(cur.String()))
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	out = append(out, UnescapeValue(cur.String()))
	return out
}

// escapeWith escapes s for a key/value entry. Whitespace at either end is
// escaped too: ini wraps padded values in quotes it cannot strip again when
// the value itself holds a quote.
func escapeWith(s, extra string) string {
	core := strings.TrimLeftFunc(s, unicode.IsSpace)
	lead := s[:len(s)-len(core)]
	core = strings.TrimRightFunc(core, unicode.IsSpace)
	trail := s[len(lead)+len(core):]

	var b strings.Builder
	escapeSpace(&b, lead)
	escapeCore(&b, core, extra)
	escapeSpace(&b, trail)
	return b.String()
}

func escapeSpace(b *strings.Builder, s string) {
	for _, r := range s {
		switch r {
		case ' ':
			b.WriteString(`\s`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			_, _ = fmt.Fprintf(b, `\u%04x`, r)
		}
	}
}

func escapeCore(b *strings.Builder, s, extra string) {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\':
			b.WriteString(`\\`)
		case c == '\n':
			b.WriteString(`\n`)
		case c == '\r':
			b.WriteString(`\r`)
		case c == '\t':
			b.WriteString(`\t`)
		// ini switches to multi-line quoting for any value holding a backtick
		case c == '`':
			b.WriteString(`\g`)
		case c == '"' || c == '\'':
			b.WriteByte('\\')
			b.WriteByte(c)
		case strings.IndexByte(extra, c) >= 0:
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
}
