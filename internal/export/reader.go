package export

import (
	"database/sql"
	"fmt"

	"github.com/ohler55/ojg/oj"
	_ "modernc.org/sqlite"

	"github.com/agentic-research/dvk/internal/catalog"
	"github.com/agentic-research/dvk/internal/record"
)

// Stream calls fn for every exported record in row order. Only one record
// is alive at a time.
func Stream(dbPath string, fn func(*record.Record) error) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	defer func() { _ = db.Close() }() // safe to ignore

	rows, err := db.Query(`
		SELECT id, path, title, artists, time, web_tags, user_tags, description,
			page_url, media_url, secondary_url, media_file, secondary_file,
			last_ids, next_ids, first_in_section, last_in_section, sequence_title,
			section_title, branch_titles, rating
		FROM records ORDER BY idx`)
	if err != nil {
		return fmt.Errorf("query records: %w", err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	for rows.Next() {
		var (
			r                                            record.Record
			title, desc, page, media, second             sql.NullString
			mediaFile, secondFile, seqTitle, sectTitle   sql.NullString
			artists, webTags, userTags, lastIDs, nextIDs sql.NullString
			branches                                     sql.NullString
		)
		if err := rows.Scan(
			&r.ID, &r.Path, &title, &artists, &r.Time, &webTags, &userTags, &desc,
			&page, &media, &second, &mediaFile, &secondFile,
			&lastIDs, &nextIDs, &r.FirstInSection, &r.LastInSection, &seqTitle,
			&sectTitle, &branches, &r.Rating,
		); err != nil {
			return fmt.Errorf("scan row: %w", err)
		}
		r.Title = title.String
		r.Description = desc.String
		r.PageURL = page.String
		r.MediaURL = media.String
		r.SecondaryURL = second.String
		r.MediaFile = mediaFile.String
		r.SecondaryFile = secondFile.String
		r.SequenceTitle = seqTitle.String
		r.SectionTitle = sectTitle.String
		for _, f := range []struct {
			src sql.NullString
			dst *[]string
		}{
			{artists, &r.Artists}, {webTags, &r.WebTags}, {userTags, &r.UserTags},
			{lastIDs, &r.LastIDs}, {nextIDs, &r.NextIDs}, {branches, &r.BranchTitles},
		} {
			if *f.dst, err = parseList(f.src); err != nil {
				return fmt.Errorf("record %s: %w", r.ID, err)
			}
		}
		if err := fn(&r); err != nil {
			return err
		}
	}
	return rows.Err()
}

// ReadCatalog rebuilds a catalog from an export.
func ReadCatalog(dbPath string) (*catalog.Catalog, error) {
	cat := catalog.New()
	err := Stream(dbPath, func(r *record.Record) error {
		cat.Append(r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cat, nil
}

// TagCounts returns how many records carry each tag of the given kind.
func TagCounts(dbPath, kind string) (map[string]int, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	defer func() { _ = db.Close() }() // safe to ignore

	rows, err := db.Query(`SELECT tag, COUNT(*) FROM tags WHERE kind = ? GROUP BY tag`, kind)
	if err != nil {
		return nil, fmt.Errorf("query tags: %w", err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	out := make(map[string]int)
	for rows.Next() {
		var tag string
		var n int
		if err := rows.Scan(&tag, &n); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		out[tag] = n
	}
	return out, rows.Err()
}

func parseList(s sql.NullString) ([]string, error) {
	if !s.Valid {
		return nil, nil
	}
	v, err := oj.ParseString(s.String)
	if err != nil {
		return nil, err
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a JSON array, got %T", v)
	}
	out := make([]string, 0, len(arr))
	for _, x := range arr {
		if str, ok := x.(string); ok {
			out = append(out, str)
		}
	}
	return out, nil
}
