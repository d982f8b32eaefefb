// Package searchstore is the sole writer of the Search database: an FTS5
// full-text index over indexed documents plus the search_vocab term/
// doc-freq table used for query expansion and spelling suggestion.
package searchstore

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/vigilare/vigilare/internal/store/storeerr"
)

type Document struct {
	URL           string
	Title         string
	Description   string
	Content       string
	H1            string
	H2            string
	ImportantText string
}

// Candidate is one FTS hit: a URL and its BM25 score (lower is a better
// match, per SQLite's bm25() convention).
type Candidate struct {
	URL  string
	BM25 float64
}

const schema = `
CREATE VIRTUAL TABLE IF NOT EXISTS search USING fts5(
	url UNINDEXED,
	title,
	description,
	content,
	h1,
	h2,
	important_text
);

CREATE TABLE IF NOT EXISTS search_vocab (
	term     TEXT PRIMARY KEY,
	doc_freq INTEGER NOT NULL DEFAULT 0
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
		return nil, storeerr.Wrap("searchstore.Open", storeerr.ErrCauseOpenFailure, err)
	}

	if !readOnly {
		if _, err := db.Exec(schema); err != nil {
			db.Close()
			return nil, storeerr.Wrap("searchstore.Open", storeerr.ErrCauseSchemaFailure, err)
		}
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertDocument replaces any existing row for doc.URL within one
// transaction, collapsing the indexer's at-least-once re-insert into the
// "url is effectively unique" guarantee the design notes call for (FTS5
// itself enforces no uniqueness).
func (s *Store) UpsertDocument(doc Document) error {
	tx, err := s.db.Begin()
	if err != nil {
		return storeerr.Wrap("searchstore.UpsertDocument", storeerr.ErrCauseTxFailure, err)
	}

	if _, err := tx.Exec(`DELETE FROM search WHERE url = ?`, doc.URL); err != nil {
		tx.Rollback()
		return storeerr.Wrap("searchstore.UpsertDocument", storeerr.ErrCauseTxFailure, err)
	}

	_, err = tx.Exec(`
		INSERT INTO search(url, title, description, content, h1, h2, important_text)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		doc.URL, doc.Title, doc.Description, doc.Content, doc.H1, doc.H2, doc.ImportantText,
	)
	if err != nil {
		tx.Rollback()
		return storeerr.Wrap("searchstore.UpsertDocument", storeerr.ErrCauseTxFailure, err)
	}

	return storeerr.Wrap("searchstore.UpsertDocument", storeerr.ErrCauseTxFailure, tx.Commit())
}

// SelectCandidates runs ftsQuery against the search MATCH operator,
// returning up to limit (url, bm25) pairs ordered by bm25 ascending
// (best match first). Used for both the AND pass and the OR fallback.
func (s *Store) SelectCandidates(ftsQuery string, limit int) ([]Candidate, error) {
	rows, err := s.db.Query(`
		SELECT url, bm25(search) AS score
		FROM search
		WHERE search MATCH ?
		ORDER BY score ASC
		LIMIT ?`, ftsQuery, limit,
	)
	if err != nil {
		return nil, storeerr.Wrap("searchstore.SelectCandidates", storeerr.ErrCauseQueryFailure, err)
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.URL, &c.BM25); err != nil {
			return nil, storeerr.Wrap("searchstore.SelectCandidates", storeerr.ErrCauseQueryFailure, err)
		}
		out = append(out, c)
	}
	return out, storeerr.Wrap("searchstore.SelectCandidates", storeerr.ErrCauseQueryFailure, rows.Err())
}

// ContentAndDescription fetches the two fields the snippet extractor
// needs for one URL, without re-running a MATCH query.
func (s *Store) ContentAndDescription(url string) (content, description string, err error) {
	dbErr := s.db.QueryRow(`SELECT content, description FROM search WHERE url = ?`, url).Scan(&content, &description)
	if dbErr == sql.ErrNoRows {
		return "", "", nil
	}
	if dbErr != nil {
		return "", "", storeerr.Wrap("searchstore.ContentAndDescription", storeerr.ErrCauseQueryFailure, dbErr)
	}
	return content, description, nil
}

// DocumentsByURLs fetches title/description/content for a candidate batch
// by URL, keyed by url, for rescoring after SelectCandidates narrows the
// FTS hit set down to a manageable pool.
func (s *Store) DocumentsByURLs(urls []string) (map[string]Document, error) {
	out := make(map[string]Document, len(urls))
	if len(urls) == 0 {
		return out, nil
	}

	placeholders := make([]string, len(urls))
	args := make([]any, len(urls))
	for i, u := range urls {
		placeholders[i] = "?"
		args[i] = u
	}

	query := fmt.Sprintf(
		`SELECT url, title, description, content, h1, h2, important_text FROM search WHERE url IN (%s)`,
		strings.Join(placeholders, ","),
	)
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, storeerr.Wrap("searchstore.DocumentsByURLs", storeerr.ErrCauseQueryFailure, err)
	}
	defer rows.Close()

	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.URL, &d.Title, &d.Description, &d.Content, &d.H1, &d.H2, &d.ImportantText); err != nil {
			return nil, storeerr.Wrap("searchstore.DocumentsByURLs", storeerr.ErrCauseQueryFailure, err)
		}
		out[d.URL] = d
	}
	return out, storeerr.Wrap("searchstore.DocumentsByURLs", storeerr.ErrCauseQueryFailure, rows.Err())
}

// SuggestTitles implements GET /suggest: up to limit titles whose text
// contains q, a plain substring match rather than an FTS MATCH.
func (s *Store) SuggestTitles(q string, limit int) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT title FROM search WHERE title LIKE ? AND title != '' LIMIT ?`,
		"%"+q+"%", limit,
	)
	if err != nil {
		return nil, storeerr.Wrap("searchstore.SuggestTitles", storeerr.ErrCauseQueryFailure, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, storeerr.Wrap("searchstore.SuggestTitles", storeerr.ErrCauseQueryFailure, err)
		}
		out = append(out, title)
	}
	return out, storeerr.Wrap("searchstore.SuggestTitles", storeerr.ErrCauseQueryFailure, rows.Err())
}

// UpsertVocab additively accumulates term document frequencies.
func (s *Store) UpsertVocab(counts map[string]int) error {
	if len(counts) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return storeerr.Wrap("searchstore.UpsertVocab", storeerr.ErrCauseTxFailure, err)
	}
	stmt, err := tx.Prepare(`
		INSERT INTO search_vocab(term, doc_freq) VALUES (?, ?)
		ON CONFLICT(term) DO UPDATE SET doc_freq = doc_freq + excluded.doc_freq`)
	if err != nil {
		tx.Rollback()
		return storeerr.Wrap("searchstore.UpsertVocab", storeerr.ErrCauseTxFailure, err)
	}
	defer stmt.Close()

	for term, count := range counts {
		if _, err := stmt.Exec(term, count); err != nil {
			tx.Rollback()
			return storeerr.Wrap("searchstore.UpsertVocab", storeerr.ErrCauseTxFailure, err)
		}
	}
	return storeerr.Wrap("searchstore.UpsertVocab", storeerr.ErrCauseTxFailure, tx.Commit())
}

// VocabTermsByPrefix fetches up to limit vocab terms starting with
// prefix, for the spelling-suggestion Levenshtein scan.
func (s *Store) VocabTermsByPrefix(prefix string, limit int) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT term FROM search_vocab WHERE term LIKE ? || '%' LIMIT ?`, prefix, limit,
	)
	if err != nil {
		return nil, storeerr.Wrap("searchstore.VocabTermsByPrefix", storeerr.ErrCauseQueryFailure, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var term string
		if err := rows.Scan(&term); err != nil {
			return nil, storeerr.Wrap("searchstore.VocabTermsByPrefix", storeerr.ErrCauseQueryFailure, err)
		}
		out = append(out, term)
	}
	return out, storeerr.Wrap("searchstore.VocabTermsByPrefix", storeerr.ErrCauseQueryFailure, rows.Err())
}

// HasTerm reports whether term is already known to search_vocab.
func (s *Store) HasTerm(term string) (bool, error) {
	var exists int
	err := s.db.QueryRow(`SELECT 1 FROM search_vocab WHERE term = ?`, term).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, storeerr.Wrap("searchstore.HasTerm", storeerr.ErrCauseQueryFailure, err)
	}
	return true, nil
}

// WALCheckpoint issues wal_checkpoint(TRUNCATE).
func (s *Store) WALCheckpoint() error {
	_, err := s.db.Exec(`PRAGMA wal_checkpoint(TRUNCATE)`)
	return storeerr.Wrap("searchstore.WALCheckpoint", storeerr.ErrCauseQueryFailure, err)
}
