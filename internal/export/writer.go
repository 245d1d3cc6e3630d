// Package export copies a catalog into a SQLite database and reads it back.
package export

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/ohler55/ojg/oj"
	_ "modernc.org/sqlite"

	"github.com/agentic-research/dvk/internal/catalog"
	"github.com/agentic-research/dvk/internal/record"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	idx INTEGER PRIMARY KEY,
	id TEXT NOT NULL,
	path TEXT NOT NULL,
	title TEXT,
	artists JSON,
	time INTEGER DEFAULT 0,
	web_tags JSON,
	user_tags JSON,
	description TEXT,
	page_url TEXT,
	media_url TEXT,
	secondary_url TEXT,
	media_file TEXT,
	secondary_file TEXT,
	last_ids JSON,
	next_ids JSON,
	first_in_section INTEGER DEFAULT 0,
	last_in_section INTEGER DEFAULT 0,
	sequence_title TEXT,
	section_title TEXT,
	branch_titles JSON,
	rating INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS tags (
	tag TEXT,
	kind TEXT,
	idx INTEGER,
	PRIMARY KEY (tag, kind, idx)
) WITHOUT ROWID;
`

// Tag kinds stored in the tags table.
const (
	TagWeb    = "web"
	TagUser   = "user"
	TagArtist = "artist"
)

// Writer bulk-inserts records, committing every batchSize rows.
type Writer struct {
	db        *sql.DB
	tx        *sql.Tx
	stmtRec   *sql.Stmt
	stmtTag   *sql.Stmt
	batchSize int
	count     int
	next      int
}

// NewWriter creates (or truncates) the database at dbPath.
func NewWriter(dbPath string) (*Writer, error) {
	if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("remove old export: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	if _, err := db.Exec("PRAGMA synchronous = OFF"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode = MEMORY"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	w := &Writer{db: db, batchSize: 5000}
	if err := w.beginTx(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return w, nil
}

func (w *Writer) beginTx() error {
	var err error
	w.tx, err = w.db.Begin()
	if err != nil {
		return err
	}
	w.stmtRec, err = w.tx.Prepare(`
		INSERT INTO records (idx, id, path, title, artists, time, web_tags, user_tags,
			description, page_url, media_url, secondary_url, media_file, secondary_file,
			last_ids, next_ids, first_in_section, last_in_section, sequence_title,
			section_title, branch_titles, rating)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	w.stmtTag, err = w.tx.Prepare(`INSERT OR IGNORE INTO tags (tag, kind, idx) VALUES (?, ?, ?)`)
	return err
}

func (w *Writer) commitTx() error {
	if w.stmtRec != nil {
		_ = w.stmtRec.Close()
	}
	if w.stmtTag != nil {
		_ = w.stmtTag.Close()
	}
	return w.tx.Commit()
}

// Add appends r as the next row.
func (w *Writer) Add(r *record.Record) error {
	idx := w.next
	_, err := w.stmtRec.Exec(
		idx, r.ID, r.Path, r.Title, list(r.Artists), r.Time, list(r.WebTags), list(r.UserTags),
		r.Description, r.PageURL, r.MediaURL, r.SecondaryURL, r.MediaFile, r.SecondaryFile,
		list(r.LastIDs), list(r.NextIDs), r.FirstInSection, r.LastInSection, r.SequenceTitle,
		r.SectionTitle, list(r.BranchTitles), r.Rating,
	)
	if err != nil {
		return fmt.Errorf("insert %s: %w", r.ID, err)
	}
	w.next++

	for kind, tags := range map[string][]string{TagWeb: r.WebTags, TagUser: r.UserTags, TagArtist: r.Artists} {
		for _, tag := range tags {
			if _, err := w.stmtTag.Exec(tag, kind, idx); err != nil {
				log.Printf("SQLiteExport: tag %q of %s: %v", tag, r.ID, err)
			}
		}
	}

	w.count++
	if w.count >= w.batchSize {
		if err := w.commitTx(); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		if err := w.beginTx(); err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		w.count = 0
	}
	return nil
}

// Close commits pending rows and closes the database.
func (w *Writer) Close() error {
	if err := w.commitTx(); err != nil {
		_ = w.db.Close()
		return err
	}
	if _, err := w.db.Exec(`CREATE INDEX IF NOT EXISTS idx_records_id ON records(id)`); err != nil {
		log.Printf("SQLiteExport: index creation failed: %v", err)
	}
	return w.db.Close()
}

// WriteCatalog exports every record of cat to dbPath in catalog order.
func WriteCatalog(dbPath string, cat *catalog.Catalog) error {
	w, err := NewWriter(dbPath)
	if err != nil {
		return err
	}
	for i := 0; i < cat.Size(); i++ {
		if err := w.Add(cat.Record(i)); err != nil {
			_ = w.Close()
			return err
		}
	}
	return w.Close()
}

// list encodes a string list as a JSON array; nil stays NULL.
func list(items []string) any {
	if items == nil {
		return nil
	}
	arr := make([]any, len(items))
	for i, s := range items {
		arr[i] = s
	}
	return oj.JSON(arr)
}
