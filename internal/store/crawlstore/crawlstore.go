// Package crawlstore wraps the Crawl database: the frontier queue,
// visited metadata, and link_graph edges described in the data model.
// The crawler process owns the frontier and link_graph; the indexer and
// PageRank job each write a narrow slice of visited (language, page_rank)
// from their own process. The query engine opens it read-only.
package crawlstore

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vigilare/vigilare/internal/store/storeerr"
)

// Status values for a frontier row, per the data model.
const (
	StatusPending   = 0
	StatusActive    = 1
	StatusCompleted = 2
	StatusError     = 3
)

type FrontierRow struct {
	URL           string
	Domain        string
	Status        int
	Priority      int
	RetryCount    int
	ReservedAt    time.Time
	NextCrawlTime time.Time
}

type VisitedRow struct {
	URL           string
	Title         string
	Description   string
	HTTPStatus    int
	Language      string
	OutLinks      int
	CrawledAt     time.Time
	CrawlEpoch    int64
	LastSeenEpoch int64
	DomainRank    int
	PageRank      int64
	ContentHash   string
}

type LinkEdge struct {
	SourceDomain string
	TargetDomain string
	SourceURL    string
	TargetURL    string
}

const schema = `
CREATE TABLE IF NOT EXISTS frontier (
	url             TEXT PRIMARY KEY,
	domain          TEXT NOT NULL,
	status          INTEGER NOT NULL DEFAULT 0,
	priority        INTEGER NOT NULL DEFAULT 0,
	retry_count     INTEGER NOT NULL DEFAULT 0,
	reserved_at     TIMESTAMP,
	next_crawl_time TIMESTAMP NOT NULL DEFAULT '1970-01-01 00:00:00'
);
CREATE INDEX IF NOT EXISTS idx_frontier_dispatch ON frontier(status, priority);
CREATE INDEX IF NOT EXISTS idx_frontier_domain ON frontier(domain);

CREATE TABLE IF NOT EXISTS visited (
	url             TEXT PRIMARY KEY,
	title           TEXT,
	description     TEXT,
	http_status     INTEGER,
	language        TEXT,
	out_links       INTEGER NOT NULL DEFAULT 0,
	crawled_at      TIMESTAMP,
	crawl_epoch     INTEGER NOT NULL DEFAULT 0,
	last_seen_epoch INTEGER NOT NULL DEFAULT 0,
	domain_rank     INTEGER NOT NULL DEFAULT 10000000,
	page_rank       INTEGER NOT NULL DEFAULT 0,
	content_hash    TEXT
);

CREATE TABLE IF NOT EXISTS link_graph (
	source_domain TEXT NOT NULL,
	target_domain TEXT NOT NULL,
	source_url    TEXT NOT NULL,
	target_url    TEXT NOT NULL,
	UNIQUE(source_url, target_url)
);
CREATE INDEX IF NOT EXISTS idx_link_graph_source ON link_graph(source_url);
`

type Store struct {
	db *sql.DB
}

// Open opens (and, if new, schemas) the Crawl database at path. readOnly
// mode is used by the query engine, which never writes here; the indexer
// opens it read-write to update language.
func Open(path string, readOnly bool) (*Store, error) {
	dsn := path
	if readOnly {
		dsn = fmt.Sprintf("file:%s?mode=ro&_pragma=journal_mode(WAL)", path)
	} else {
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, storeerr.Wrap("crawlstore.Open", storeerr.ErrCauseOpenFailure, err)
	}

	if !readOnly {
		if _, err := db.Exec(schema); err != nil {
			db.Close()
			return nil, storeerr.Wrap("crawlstore.Open", storeerr.ErrCauseSchemaFailure, err)
		}
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ResetStaleReservations resets every status=1 frontier row to status=0,
// per the startup recovery rule: stale reservations from a prior run are
// never trusted across a process restart.
func (s *Store) ResetStaleReservations() error {
	_, err := s.db.Exec(`UPDATE frontier SET status = ? WHERE status = ?`, StatusPending, StatusActive)
	return storeerr.Wrap("crawlstore.ResetStaleReservations", storeerr.ErrCauseQueryFailure, err)
}

// SelectDispatchable returns up to limit frontier rows eligible for
// dispatch: status=0, or status=1 with a reservation older than
// reservationLease, and next_crawl_time has elapsed; ordered by priority.
func (s *Store) SelectDispatchable(now time.Time, reservationLease time.Duration, limit int) ([]FrontierRow, error) {
	staleBefore := now.Add(-reservationLease)
	rows, err := s.db.Query(`
		SELECT url, domain, status, priority, retry_count,
		       COALESCE(reserved_at, '1970-01-01 00:00:00'), next_crawl_time
		FROM frontier
		WHERE (status = ? OR (status = ? AND reserved_at < ?))
		  AND next_crawl_time <= ?
		ORDER BY priority ASC
		LIMIT ?`,
		StatusPending, StatusActive, staleBefore, now, limit,
	)
	if err != nil {
		return nil, storeerr.Wrap("crawlstore.SelectDispatchable", storeerr.ErrCauseQueryFailure, err)
	}
	defer rows.Close()

	var out []FrontierRow
	for rows.Next() {
		var r FrontierRow
		if err := rows.Scan(&r.URL, &r.Domain, &r.Status, &r.Priority, &r.RetryCount, &r.ReservedAt, &r.NextCrawlTime); err != nil {
			return nil, storeerr.Wrap("crawlstore.SelectDispatchable", storeerr.ErrCauseQueryFailure, err)
		}
		out = append(out, r)
	}
	return out, storeerr.Wrap("crawlstore.SelectDispatchable", storeerr.ErrCauseQueryFailure, rows.Err())
}

// ReserveBatch marks urls status=1 with reserved_at=now, in one statement
// batch as the dispatcher's write-queue "reserve" message.
func (s *Store) ReserveBatch(urls []string, now time.Time) error {
	if len(urls) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return storeerr.Wrap("crawlstore.ReserveBatch", storeerr.ErrCauseTxFailure, err)
	}
	stmt, err := tx.Prepare(`UPDATE frontier SET status = ?, reserved_at = ? WHERE url = ?`)
	if err != nil {
		tx.Rollback()
		return storeerr.Wrap("crawlstore.ReserveBatch", storeerr.ErrCauseTxFailure, err)
	}
	defer stmt.Close()

	for _, u := range urls {
		if _, err := stmt.Exec(StatusActive, now, u); err != nil {
			tx.Rollback()
			return storeerr.Wrap("crawlstore.ReserveBatch", storeerr.ErrCauseTxFailure, err)
		}
	}
	return storeerr.Wrap("crawlstore.ReserveBatch", storeerr.ErrCauseTxFailure, tx.Commit())
}

// InsertFrontierIfAbsent inserts a new pending row, doing nothing if the
// URL (the frontier's unique key) already exists.
func (s *Store) InsertFrontierIfAbsent(url, domain string, priority int) error {
	_, err := s.db.Exec(
		`INSERT INTO frontier(url, domain, status, priority) VALUES (?, ?, ?, ?)
		 ON CONFLICT(url) DO NOTHING`,
		url, domain, StatusPending, priority,
	)
	return storeerr.Wrap("crawlstore.InsertFrontierIfAbsent", storeerr.ErrCauseQueryFailure, err)
}

// FrontierStatus returns a single frontier row's status, for callers that
// need to check a URL's state outside the dispatch-eligibility window
// SelectDispatchable applies.
func (s *Store) FrontierStatus(url string) (int, bool, error) {
	var status int
	err := s.db.QueryRow(`SELECT status FROM frontier WHERE url = ?`, url).Scan(&status)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, storeerr.Wrap("crawlstore.FrontierStatus", storeerr.ErrCauseQueryFailure, err)
	}
	return status, true, nil
}

// UpdateStatus sets a terminal or reset status for url.
func (s *Store) UpdateStatus(url string, status int) error {
	_, err := s.db.Exec(`UPDATE frontier SET status = ? WHERE url = ?`, status, url)
	return storeerr.Wrap("crawlstore.UpdateStatus", storeerr.ErrCauseQueryFailure, err)
}

// Retry resets url to pending with an incremented retry_count, to be
// redispatched immediately.
func (s *Store) Retry(url string, retryCount int) error {
	_, err := s.db.Exec(
		`UPDATE frontier SET status = ?, retry_count = ? WHERE url = ?`,
		StatusPending, retryCount, url,
	)
	return storeerr.Wrap("crawlstore.Retry", storeerr.ErrCauseQueryFailure, err)
}

// Reschedule keeps url pending but pushes next_crawl_time into the future,
// for the fetcher's politeness reschedule(+5s) message.
func (s *Store) Reschedule(url string, nextCrawlTime time.Time) error {
	_, err := s.db.Exec(
		`UPDATE frontier SET status = ?, next_crawl_time = ? WHERE url = ?`,
		StatusPending, nextCrawlTime, url,
	)
	return storeerr.Wrap("crawlstore.Reschedule", storeerr.ErrCauseQueryFailure, err)
}

// RecordVisited upserts a visited row and marks the frontier row completed.
func (s *Store) RecordVisited(row VisitedRow, now time.Time) error {
	tx, err := s.db.Begin()
	if err != nil {
		return storeerr.Wrap("crawlstore.RecordVisited", storeerr.ErrCauseTxFailure, err)
	}

	_, err = tx.Exec(`
		INSERT INTO visited(
			url, title, description, http_status, language, out_links,
			crawled_at, crawl_epoch, last_seen_epoch, domain_rank, page_rank, content_hash
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			http_status = excluded.http_status,
			language = excluded.language,
			out_links = excluded.out_links,
			crawled_at = excluded.crawled_at,
			crawl_epoch = excluded.crawl_epoch,
			last_seen_epoch = excluded.last_seen_epoch,
			content_hash = excluded.content_hash`,
		row.URL, row.Title, row.Description, row.HTTPStatus, row.Language, row.OutLinks,
		row.CrawledAt, row.CrawlEpoch, row.LastSeenEpoch, row.DomainRank, row.PageRank, row.ContentHash,
	)
	if err != nil {
		tx.Rollback()
		return storeerr.Wrap("crawlstore.RecordVisited", storeerr.ErrCauseTxFailure, err)
	}

	if _, err := tx.Exec(`UPDATE frontier SET status = ? WHERE url = ?`, StatusCompleted, row.URL); err != nil {
		tx.Rollback()
		return storeerr.Wrap("crawlstore.RecordVisited", storeerr.ErrCauseTxFailure, err)
	}

	return storeerr.Wrap("crawlstore.RecordVisited", storeerr.ErrCauseTxFailure, tx.Commit())
}

// UpdateLanguage is used by the indexer once language detection succeeds.
func (s *Store) UpdateLanguage(url, language string) error {
	_, err := s.db.Exec(`UPDATE visited SET language = ? WHERE url = ?`, language, url)
	return storeerr.Wrap("crawlstore.UpdateLanguage", storeerr.ErrCauseQueryFailure, err)
}

// UpdatePageRank is used by the PageRank job to write back a scaled score.
func (s *Store) UpdatePageRank(url string, pageRank int64) error {
	_, err := s.db.Exec(`UPDATE visited SET page_rank = ? WHERE url = ?`, pageRank, url)
	return storeerr.Wrap("crawlstore.UpdatePageRank", storeerr.ErrCauseQueryFailure, err)
}

// VisitedByURL fetches one visited row, for the query engine's rescoring
// join and the /suggest endpoint.
func (s *Store) VisitedByURL(url string) (VisitedRow, bool, error) {
	var r VisitedRow
	err := s.db.QueryRow(`
		SELECT url, title, description, http_status, language, out_links,
		       crawled_at, crawl_epoch, last_seen_epoch, domain_rank, page_rank, content_hash
		FROM visited WHERE url = ?`, url,
	).Scan(&r.URL, &r.Title, &r.Description, &r.HTTPStatus, &r.Language, &r.OutLinks,
		&r.CrawledAt, &r.CrawlEpoch, &r.LastSeenEpoch, &r.DomainRank, &r.PageRank, &r.ContentHash)
	if err == sql.ErrNoRows {
		return VisitedRow{}, false, nil
	}
	if err != nil {
		return VisitedRow{}, false, storeerr.Wrap("crawlstore.VisitedByURL", storeerr.ErrCauseQueryFailure, err)
	}
	return r, true, nil
}

// VisitedByURLs batch-fetches visited rows for the query engine's
// candidate rescoring join, keyed by URL.
func (s *Store) VisitedByURLs(urls []string) (map[string]VisitedRow, error) {
	out := make(map[string]VisitedRow, len(urls))
	if len(urls) == 0 {
		return out, nil
	}

	placeholders := make([]byte, 0, len(urls)*2)
	args := make([]any, 0, len(urls))
	for i, u := range urls {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
		args = append(args, u)
	}

	query := fmt.Sprintf(`
		SELECT url, title, description, http_status, language, out_links,
		       crawled_at, crawl_epoch, last_seen_epoch, domain_rank, page_rank, content_hash
		FROM visited WHERE url IN (%s)`, string(placeholders))

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, storeerr.Wrap("crawlstore.VisitedByURLs", storeerr.ErrCauseQueryFailure, err)
	}
	defer rows.Close()

	for rows.Next() {
		var r VisitedRow
		if err := rows.Scan(&r.URL, &r.Title, &r.Description, &r.HTTPStatus, &r.Language, &r.OutLinks,
			&r.CrawledAt, &r.CrawlEpoch, &r.LastSeenEpoch, &r.DomainRank, &r.PageRank, &r.ContentHash); err != nil {
			return nil, storeerr.Wrap("crawlstore.VisitedByURLs", storeerr.ErrCauseQueryFailure, err)
		}
		out[r.URL] = r
	}
	return out, storeerr.Wrap("crawlstore.VisitedByURLs", storeerr.ErrCauseQueryFailure, rows.Err())
}

// InsertLinkGraphEdges batch-inserts edges, silently ignoring duplicates
// (enforced by the UNIQUE(source_url, target_url) constraint).
func (s *Store) InsertLinkGraphEdges(edges []LinkEdge) error {
	if len(edges) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return storeerr.Wrap("crawlstore.InsertLinkGraphEdges", storeerr.ErrCauseTxFailure, err)
	}
	stmt, err := tx.Prepare(`
		INSERT INTO link_graph(source_domain, target_domain, source_url, target_url)
		VALUES (?, ?, ?, ?) ON CONFLICT(source_url, target_url) DO NOTHING`)
	if err != nil {
		tx.Rollback()
		return storeerr.Wrap("crawlstore.InsertLinkGraphEdges", storeerr.ErrCauseTxFailure, err)
	}
	defer stmt.Close()

	for _, e := range edges {
		if e.SourceURL == e.TargetURL {
			continue
		}
		if _, err := stmt.Exec(e.SourceDomain, e.TargetDomain, e.SourceURL, e.TargetURL); err != nil {
			tx.Rollback()
			return storeerr.Wrap("crawlstore.InsertLinkGraphEdges", storeerr.ErrCauseTxFailure, err)
		}
	}
	return storeerr.Wrap("crawlstore.InsertLinkGraphEdges", storeerr.ErrCauseTxFailure, tx.Commit())
}

// AllLinkGraphEdges reads the full edge set for the PageRank job.
func (s *Store) AllLinkGraphEdges() ([]LinkEdge, error) {
	rows, err := s.db.Query(`SELECT source_domain, target_domain, source_url, target_url FROM link_graph`)
	if err != nil {
		return nil, storeerr.Wrap("crawlstore.AllLinkGraphEdges", storeerr.ErrCauseQueryFailure, err)
	}
	defer rows.Close()

	var out []LinkEdge
	for rows.Next() {
		var e LinkEdge
		if err := rows.Scan(&e.SourceDomain, &e.TargetDomain, &e.SourceURL, &e.TargetURL); err != nil {
			return nil, storeerr.Wrap("crawlstore.AllLinkGraphEdges", storeerr.ErrCauseQueryFailure, err)
		}
		out = append(out, e)
	}
	return out, storeerr.Wrap("crawlstore.AllLinkGraphEdges", storeerr.ErrCauseQueryFailure, rows.Err())
}

// WALCheckpoint issues wal_checkpoint(TRUNCATE), part of the writer's
// periodic maintenance and graceful-shutdown sequence.
func (s *Store) WALCheckpoint() error {
	_, err := s.db.Exec(`PRAGMA wal_checkpoint(TRUNCATE)`)
	return storeerr.Wrap("crawlstore.WALCheckpoint", storeerr.ErrCauseQueryFailure, err)
}
