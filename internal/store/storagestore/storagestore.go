// Package storagestore is the sole writer of the Storage database: raw
// compressed HTML plus parsed text, keyed by URL, with a monotonic rowid
// that the indexer uses as its read cursor.
package storagestore

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vigilare/vigilare/internal/store/storeerr"
)

type Row struct {
	RowID         int64
	URL           string
	RawHTML       []byte // brotli-compressed
	ParsedText    string
	Title         string
	Description   string
	H1            string
	H2            string
	ImportantText string
	HTTPHeaders   string // JSON-encoded
	CrawledAt     time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS storage (
	rowid          INTEGER PRIMARY KEY AUTOINCREMENT,
	url            TEXT NOT NULL UNIQUE,
	raw_html       BLOB,
	parsed_text    TEXT,
	title          TEXT,
	description    TEXT,
	h1             TEXT,
	h2             TEXT,
	important_text TEXT,
	http_headers   TEXT,
	crawled_at     TIMESTAMP
);
`

type Store struct {
	db *sql.DB
}

func Open(path string, readOnly bool) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	if readOnly {
		dsn = fmt.Sprintf("file:%s?mode=ro&_pragma=journal_mode(WAL)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, storeerr.Wrap("storagestore.Open", storeerr.ErrCauseOpenFailure, err)
	}

	if !readOnly {
		if _, err := db.Exec(schema); err != nil {
			db.Close()
			return nil, storeerr.Wrap("storagestore.Open", storeerr.ErrCauseSchemaFailure, err)
		}
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Insert writes a row, replacing any prior row for the same URL (the
// table's unique key), and returns its rowid. The indexer reads Storage by
// rowid, so a page is never indexed before this row exists. The writer
// calls Insert after the page's visited row is recorded, in a separate
// transaction.
func (s *Store) Insert(row Row) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO storage(url, raw_html, parsed_text, title, description, h1, h2, important_text, http_headers, crawled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			raw_html = excluded.raw_html,
			parsed_text = excluded.parsed_text,
			title = excluded.title,
			description = excluded.description,
			h1 = excluded.h1,
			h2 = excluded.h2,
			important_text = excluded.important_text,
			http_headers = excluded.http_headers,
			crawled_at = excluded.crawled_at`,
		row.URL, row.RawHTML, row.ParsedText, row.Title, row.Description, row.H1, row.H2, row.ImportantText,
		row.HTTPHeaders, row.CrawledAt,
	)
	if err != nil {
		return 0, storeerr.Wrap("storagestore.Insert", storeerr.ErrCauseQueryFailure, err)
	}

	// ON CONFLICT DO UPDATE means LastInsertId is unreliable on a
	// recrawl; always look the rowid up explicitly instead.
	var rowID int64
	if err := s.db.QueryRow(`SELECT rowid FROM storage WHERE url = ?`, row.URL).Scan(&rowID); err != nil {
		return 0, storeerr.Wrap("storagestore.Insert", storeerr.ErrCauseQueryFailure, err)
	}
	_ = result
	return rowID, nil
}

// MaxRowID reports the highest rowid present, for the indexer's
// max_rowid - last_id hysteresis check.
func (s *Store) MaxRowID() (int64, error) {
	var max int64
	err := s.db.QueryRow(`SELECT COALESCE(MAX(rowid), 0) FROM storage`).Scan(&max)
	if err != nil {
		return 0, storeerr.Wrap("storagestore.MaxRowID", storeerr.ErrCauseQueryFailure, err)
	}
	return max, nil
}

// SelectBatch reads up to limit rows with rowid > afterRowID and
// non-null parsed_text, ordered by rowid, for one indexer tick.
func (s *Store) SelectBatch(afterRowID int64, limit int) ([]Row, error) {
	rows, err := s.db.Query(`
		SELECT rowid, url, parsed_text, title, description, h1, h2, important_text, http_headers, crawled_at
		FROM storage
		WHERE rowid > ? AND parsed_text IS NOT NULL
		ORDER BY rowid
		LIMIT ?`, afterRowID, limit,
	)
	if err != nil {
		return nil, storeerr.Wrap("storagestore.SelectBatch", storeerr.ErrCauseQueryFailure, err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.RowID, &r.URL, &r.ParsedText, &r.Title, &r.Description, &r.H1, &r.H2,
			&r.ImportantText, &r.HTTPHeaders, &r.CrawledAt); err != nil {
			return nil, storeerr.Wrap("storagestore.SelectBatch", storeerr.ErrCauseQueryFailure, err)
		}
		out = append(out, r)
	}
	return out, storeerr.Wrap("storagestore.SelectBatch", storeerr.ErrCauseQueryFailure, rows.Err())
}

// WALCheckpoint issues wal_checkpoint(TRUNCATE).
func (s *Store) WALCheckpoint() error {
	_, err := s.db.Exec(`PRAGMA wal_checkpoint(TRUNCATE)`)
	return storeerr.Wrap("storagestore.WALCheckpoint", storeerr.ErrCauseQueryFailure, err)
}
