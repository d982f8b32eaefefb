// Package indexer runs the cursor-based batch loop that turns Storage rows
// into Search documents: it is the sole writer of the Search database's
// content and the sole owner of visited.language, and it periodically
// triggers a PageRank pass over link_graph.
package indexer

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/vigilare/vigilare/internal/config"
	"github.com/vigilare/vigilare/internal/observability"
	"github.com/vigilare/vigilare/internal/store/crawlstore"
	"github.com/vigilare/vigilare/internal/store/searchstore"
	"github.com/vigilare/vigilare/internal/store/storagestore"
	"github.com/vigilare/vigilare/internal/store/storeerr"
	"github.com/vigilare/vigilare/pkg/timeutil"
)

// PageRankFunc runs one PageRank pass. Indexer invokes it on its own
// goroutine's schedule rather than owning graph computation itself.
type PageRankFunc func(ctx context.Context) error

// Indexer is the sole writer of the Search database and of
// visited.language. It never touches the frontier or link_graph.
type Indexer struct {
	storage    *storagestore.Store
	crawl      *crawlstore.Store
	search     *searchstore.Store
	cursorPath string

	openStorage func() (*storagestore.Store, error)
	openCrawl   func() (*crawlstore.Store, error)
	openSearch  func() (*searchstore.Store, error)

	pageRank PageRankFunc
	recorder observability.Recorder
	sleeper  timeutil.Sleeper
	now      func() time.Time

	batchesSinceRecycle int
	lastPageRank         time.Time
	lastProductive       time.Time
}

// New opens the Storage (read-only), Crawl, and Search stores at the paths
// cfg derives from its data directory, and builds an Indexer ready to Run.
func New(cfg config.Config, recorder observability.Recorder, pageRank PageRankFunc) (*Indexer, error) {
	openStorage := func() (*storagestore.Store, error) { return storagestore.Open(cfg.StorageDBPath(), true) }
	openCrawl := func() (*crawlstore.Store, error) { return crawlstore.Open(cfg.CrawlDBPath(), false) }
	openSearch := func() (*searchstore.Store, error) { return searchstore.Open(cfg.SearchDBPath(), false) }

	storage, err := openStorage()
	if err != nil {
		return nil, err
	}
	crawl, err := openCrawl()
	if err != nil {
		storage.Close()
		return nil, err
	}
	search, err := openSearch()
	if err != nil {
		storage.Close()
		crawl.Close()
		return nil, err
	}

	now := time.Now()
	return &Indexer{
		storage:     storage,
		crawl:       crawl,
		search:      search,
		cursorPath:  cfg.IndexerCursorPath(),
		openStorage: openStorage,
		openCrawl:   openCrawl,
		openSearch:  openSearch,
		pageRank:    pageRank,
		recorder:    recorder,
		sleeper:     timeutil.NewRealSleeper(),
		now:         time.Now,
		lastPageRank:   now,
		lastProductive: now,
	}, nil
}

// newWithPaths mirrors New but opens Storage read-write (so tests can seed
// rows directly) and lets the caller mutate the clock/sleeper/recycle
// counters afterward.
func newWithPaths(storagePath, crawlPath, searchPath, cursorPath string, pageRank PageRankFunc, recorder observability.Recorder) (*Indexer, error) {
	openStorage := func() (*storagestore.Store, error) { return storagestore.Open(storagePath, false) }
	openCrawl := func() (*crawlstore.Store, error) { return crawlstore.Open(crawlPath, false) }
	openSearch := func() (*searchstore.Store, error) { return searchstore.Open(searchPath, false) }

	storage, err := openStorage()
	if err != nil {
		return nil, err
	}
	crawl, err := openCrawl()
	if err != nil {
		storage.Close()
		return nil, err
	}
	search, err := openSearch()
	if err != nil {
		storage.Close()
		crawl.Close()
		return nil, err
	}

	now := time.Now()
	return &Indexer{
		storage:        storage,
		crawl:          crawl,
		search:         search,
		cursorPath:     cursorPath,
		openStorage:    openStorage,
		openCrawl:      openCrawl,
		openSearch:     openSearch,
		pageRank:       pageRank,
		recorder:       recorder,
		sleeper:        timeutil.NewRealSleeper(),
		now:            time.Now,
		lastPageRank:   now,
		lastProductive: now,
	}, nil
}

// Close releases all three store connections.
func (ix *Indexer) Close() error {
	errs := []error{ix.storage.Close(), ix.crawl.Close(), ix.search.Close()}
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Run loops Tick until ctx is cancelled.
func (ix *Indexer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		processed, err := ix.Tick(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			ix.recorder.RecordError(ix.now(), "indexer", "Tick", observability.CauseStorageFailure, err.Error())
			sleep := config.IndexerIdleSleep
			var storeErr *storeerr.Error
			if errors.As(err, &storeErr) && storeErr.Retryable {
				sleep = time.Second
			}
			ix.sleeper.Sleep(sleep)
			continue
		}
		if processed == 0 {
			ix.sleeper.Sleep(config.IndexerIdleSleep)
		}
	}
}

// Tick runs one loop iteration per spec: connection recycling, PageRank
// triggering, the min-batch-size hysteresis gate, and (when a batch is
// due) reading, indexing, and cursor-advancing it. It returns the number
// of Storage rows processed.
func (ix *Indexer) Tick(ctx context.Context) (int, error) {
	if ix.batchesSinceRecycle >= config.RecycleConnEvery {
		if err := ix.recycle(); err != nil {
			return 0, err
		}
		ix.batchesSinceRecycle = 0
	}

	now := ix.now()
	if now.Sub(ix.lastPageRank) >= config.PageRankInterval {
		if err := ix.pageRank(ctx); err != nil {
			ix.recorder.RecordError(now, "indexer", "PageRank", observability.CauseStorageFailure, err.Error())
		}
		ix.lastPageRank = now
	}

	maxRowID, err := ix.storage.MaxRowID()
	if err != nil {
		return 0, err
	}
	cursor, err := readCursor(ix.cursorPath)
	if err != nil {
		return 0, err
	}

	if maxRowID-cursor < config.IndexerMinBatchSize && now.Sub(ix.lastProductive) < config.IndexerMaxWaitTime {
		return 0, nil
	}

	rows, err := ix.storage.SelectBatch(cursor, config.IndexerBatchSize)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	vocabCounts := make(map[string]int)
	type languageUpdate struct {
		url      string
		language string
	}
	var languageUpdates []languageUpdate

	for _, row := range rows {
		title := deriveTitle(row.Title, row.ParsedText, row.URL)
		language := detectLanguage(row.ParsedText)

		if err := ix.search.UpsertDocument(searchstore.Document{
			URL:           row.URL,
			Title:         title,
			Description:   row.Description,
			Content:       row.ParsedText,
			H1:            row.H1,
			H2:            row.H2,
			ImportantText: row.ImportantText,
		}); err != nil {
			return 0, err
		}

		sample := title + " " + truncateRunes(row.ParsedText, config.VocabSampleChars)
		for term := range vocabTerms(sample) {
			vocabCounts[term]++
		}

		if language != "unknown" {
			languageUpdates = append(languageUpdates, languageUpdate{url: row.URL, language: language})
		}
	}

	if err := ix.search.UpsertVocab(vocabCounts); err != nil {
		return 0, err
	}

	for _, u := range languageUpdates {
		if err := ix.crawl.UpdateLanguage(u.url, u.language); err != nil {
			return 0, err
		}
	}

	lastRowID := rows[len(rows)-1].RowID
	if err := writeCursor(ix.cursorPath, lastRowID); err != nil {
		return 0, err
	}

	ix.batchesSinceRecycle++
	ix.lastProductive = now
	ix.recorder.RecordEvent("indexer", "indexed_batch",
		observability.NewAttr(observability.AttrCount, strconv.Itoa(len(rows))))

	return len(rows), nil
}

// recycle closes and reopens all three store connections, bounding how
// long any single connection holds locks open.
func (ix *Indexer) recycle() error {
	if err := ix.Close(); err != nil {
		return err
	}

	storage, err := ix.openStorage()
	if err != nil {
		return err
	}
	crawl, err := ix.openCrawl()
	if err != nil {
		storage.Close()
		return err
	}
	search, err := ix.openSearch()
	if err != nil {
		storage.Close()
		crawl.Close()
		return err
	}

	ix.storage, ix.crawl, ix.search = storage, crawl, search
	return nil
}
