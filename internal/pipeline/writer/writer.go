// Package writer is the crawler's single DB-writing goroutine: the sole
// writer of the Crawl and Storage databases, draining the Write Queue in
// batches and classifying each message into the store call it belongs to.
//
// It generalizes the teacher's saveRobots-style "prepare once, exec in a
// loop, commit" shape (internal/storage.Sink follows the same pattern for
// markdown files) to the five message kinds queue.WriteMessage carries.
package writer

import (
	"context"
	"net/url"
	"time"

	"github.com/vigilare/vigilare/internal/compress"
	"github.com/vigilare/vigilare/internal/config"
	"github.com/vigilare/vigilare/internal/observability"
	"github.com/vigilare/vigilare/internal/pipeline"
	"github.com/vigilare/vigilare/internal/pipeline/queue"
	"github.com/vigilare/vigilare/internal/pipeline/ring"
	"github.com/vigilare/vigilare/internal/store/crawlstore"
	"github.com/vigilare/vigilare/internal/store/storagestore"
	"github.com/vigilare/vigilare/pkg/timeutil"
)

// Writer owns exclusive write access to the Crawl and Storage databases.
// Nothing else may call their mutating methods.
type Writer struct {
	crawl             *crawlstore.Store
	storage           *storagestore.Store
	pipe              *pipeline.Pipeline
	seenHashes        *ring.Ring
	bloomSnapshotPath string
	sleeper           timeutil.Sleeper
	lastCheckpoint    time.Time
	now               func() time.Time
}

// New builds a Writer. bloomSnapshotPath is where the periodic checkpoint
// persists the Bloom filter; pass "" to disable Bloom snapshotting (tests).
func New(crawl *crawlstore.Store, storage *storagestore.Store, pipe *pipeline.Pipeline, bloomSnapshotPath string) *Writer {
	return NewWithSleeper(crawl, storage, pipe, bloomSnapshotPath, timeutil.NewRealSleeper())
}

// NewWithSleeper is the test constructor, allowing a fake Sleeper so tests
// never actually block on WriterIdleSleep.
func NewWithSleeper(crawl *crawlstore.Store, storage *storagestore.Store, pipe *pipeline.Pipeline, bloomSnapshotPath string, sleeper timeutil.Sleeper) *Writer {
	return &Writer{
		crawl:             crawl,
		storage:           storage,
		pipe:              pipe,
		seenHashes:        ring.New(config.SeenHashCapacity),
		bloomSnapshotPath: bloomSnapshotPath,
		sleeper:           sleeper,
		lastCheckpoint:    time.Now(),
		now:               time.Now,
	}
}

// Run loops Tick until ctx is cancelled, checkpointing periodically.
func (w *Writer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := w.Tick(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.pipe.Recorder.RecordError(w.now(), "writer", "Tick", observability.CauseStorageFailure, err.Error())
		}
		if n == 0 {
			w.sleeper.Sleep(config.WriterIdleSleep)
		}

		w.maybeCheckpoint()
	}
}

// Tick drains up to config.WriteQueueBatchSize messages — one blocking Pop
// followed by non-blocking TryPops — classifies them by kind, and commits
// each class through the stores. It returns the number of messages drained.
func (w *Writer) Tick(ctx context.Context) (int, error) {
	first, err := w.pipe.WriteQueue.Pop(ctx)
	if err != nil {
		return 0, nil
	}

	batch := []queue.WriteMessage{first}
	for len(batch) < config.WriteQueueBatchSize {
		item, ok := w.pipe.WriteQueue.TryPop()
		if !ok {
			break
		}
		batch = append(batch, item)
	}

	if err := w.commitBatch(batch); err != nil {
		return len(batch), err
	}
	return len(batch), nil
}

func (w *Writer) commitBatch(batch []queue.WriteMessage) error {
	now := w.now()

	var reserveURLs []string
	var linkEdges []crawlstore.LinkEdge

	for _, msg := range batch {
		switch msg.Kind {
		case queue.WriteKindSavePage:
			edges, err := w.commitSavePage(msg.SavePage, now)
			if err != nil {
				return err
			}
			linkEdges = append(linkEdges, edges...)

		case queue.WriteKindStatusUpdate:
			if err := w.crawl.UpdateStatus(msg.StatusUpdate.URL, msg.StatusUpdate.Status); err != nil {
				return err
			}

		case queue.WriteKindRetry:
			if err := w.crawl.Retry(msg.Retry.URL, msg.Retry.RetryCount); err != nil {
				return err
			}

		case queue.WriteKindReserve:
			reserveURLs = append(reserveURLs, msg.Reserve.URLs...)

		case queue.WriteKindReschedule:
			delay := time.Duration(msg.Reschedule.DelaySeconds * float64(time.Second))
			if err := w.crawl.Reschedule(msg.Reschedule.URL, now.Add(delay)); err != nil {
				return err
			}
		}
	}

	if len(reserveURLs) > 0 {
		if err := w.crawl.ReserveBatch(reserveURLs, now); err != nil {
			return err
		}
	}
	if len(linkEdges) > 0 {
		if err := w.crawl.InsertLinkGraphEdges(linkEdges); err != nil {
			return err
		}
	}
	return nil
}

// commitSavePage writes a page's visited row and, if its content is new,
// its Storage row; it discovers new outbound links against the Bloom
// filter and inserts them into the frontier, returning the link_graph
// edges for the caller to batch-insert.
func (w *Writer) commitSavePage(save queue.SavePagePayload, now time.Time) ([]crawlstore.LinkEdge, error) {
	epoch := now.Unix()
	if err := w.crawl.RecordVisited(crawlstore.VisitedRow{
		URL:           save.URL,
		Title:         save.Title,
		Description:   save.Description,
		HTTPStatus:    save.HTTPStatus,
		Language:      "",
		OutLinks:      save.OutLinksCount,
		CrawledAt:     now,
		CrawlEpoch:    epoch,
		LastSeenEpoch: epoch,
		DomainRank:    config.DefaultDomainRank,
		PageRank:      0,
		ContentHash:   save.ContentHash,
	}, now); err != nil {
		return nil, err
	}

	if !w.seenHashes.Contains(save.ContentHash) {
		w.seenHashes.Add(save.ContentHash)
		compressed, err := compress.Compress(save.CompressedHTML)
		if err != nil {
			return nil, err
		}
		if _, err := w.storage.Insert(storagestore.Row{
			URL:           save.URL,
			RawHTML:       compressed,
			ParsedText:    save.Content,
			Title:         save.Title,
			Description:   save.Description,
			H1:            save.H1,
			H2:            save.H2,
			ImportantText: save.ImportantText,
			HTTPHeaders:   save.HeadersJSON,
			CrawledAt:     now,
		}); err != nil {
			return nil, err
		}
	}

	var edges []crawlstore.LinkEdge
	for _, link := range save.LinksFound {
		if link == save.URL {
			continue
		}
		target, err := url.Parse(link)
		if err != nil {
			continue
		}
		edges = append(edges, crawlstore.LinkEdge{
			SourceDomain: save.SourceDomain,
			TargetDomain: target.Hostname(),
			SourceURL:    save.URL,
			TargetURL:    link,
		})

		if w.pipe.Bloom.Add(link) {
			if err := w.crawl.InsertFrontierIfAbsent(link, target.Hostname(), 0); err != nil {
				return nil, err
			}
		}
	}

	return edges, nil
}

func (w *Writer) maybeCheckpoint() {
	if w.now().Sub(w.lastCheckpoint) < config.CheckpointInterval {
		return
	}
	w.lastCheckpoint = w.now()

	if w.bloomSnapshotPath != "" {
		if err := w.pipe.Bloom.Snapshot(w.bloomSnapshotPath); err != nil {
			w.pipe.Recorder.RecordError(w.now(), "writer", "Snapshot", observability.CauseStorageFailure, err.Error())
		}
	}
	if err := w.crawl.WALCheckpoint(); err != nil {
		w.pipe.Recorder.RecordError(w.now(), "writer", "WALCheckpoint", observability.CauseStorageFailure, err.Error())
	}
	if err := w.storage.WALCheckpoint(); err != nil {
		w.pipe.Recorder.RecordError(w.now(), "writer", "WALCheckpoint", observability.CauseStorageFailure, err.Error())
	}
}
