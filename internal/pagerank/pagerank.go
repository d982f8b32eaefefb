// Package pagerank runs the periodic PageRank pass over link_graph: it
// builds a directed graph from Crawl's edges, scores it with gonum, and
// writes the scaled result back to visited.page_rank, retrying individual
// writes that hit a transient SQLITE_BUSY/SQLITE_LOCKED error.
package pagerank

import (
	"context"

	"gonum.org/v1/gonum/graph/network"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/vigilare/vigilare/internal/config"
	"github.com/vigilare/vigilare/internal/observability"
	"github.com/vigilare/vigilare/internal/store/crawlstore"
	"github.com/vigilare/vigilare/internal/store/storeerr"
	"github.com/vigilare/vigilare/pkg/failure"
	"github.com/vigilare/vigilare/pkg/retry"
	"github.com/vigilare/vigilare/pkg/timeutil"
)

// convergenceTolerance bounds gonum's iterative PageRank solver; the
// spec's "standard convergence" isn't a numeric constant gonum exposes
// directly, so this plays that role.
const convergenceTolerance = 1e-6

// Runner owns one PageRank pass. It holds no state between runs — the
// indexer decides when to call Run again.
type Runner struct {
	crawl      *crawlstore.Store
	recorder   observability.Recorder
	retryParam retry.RetryParam
}

// New builds a Runner writing back to crawl, retrying a locked write up to
// config.PageRankMaxAttempts times with config.PageRankBackoff spacing.
func New(crawl *crawlstore.Store, recorder observability.Recorder, randomSeed int64) *Runner {
	backoff := timeutil.NewBackoffParam(config.PageRankBackoff, 1.0, config.PageRankBackoff)
	return &Runner{
		crawl:    crawl,
		recorder: recorder,
		retryParam: retry.NewRetryParam(
			config.PageRankBackoff, 0, randomSeed, config.PageRankMaxAttempts, backoff,
		),
	}
}

// Run reads every link_graph edge, computes PageRank over the resulting
// directed graph, and writes each scaled score back to visited.page_rank.
// Self-loops (a page linking itself) are dropped before graph construction
// since they cannot affect relative rank under gonum's implementation.
func (r *Runner) Run(ctx context.Context) error {
	edges, err := r.crawl.AllLinkGraphEdges()
	if err != nil {
		return err
	}
	if len(edges) == 0 {
		return nil
	}

	ids := make(map[string]int64)
	var nextID int64
	idFor := func(url string) int64 {
		id, ok := ids[url]
		if !ok {
			id = nextID
			ids[url] = id
			nextID++
		}
		return id
	}

	g := simple.NewDirectedGraph()
	for _, e := range edges {
		from, to := idFor(e.SourceURL), idFor(e.TargetURL)
		if from == to {
			continue
		}
		if g.Node(from) == nil {
			g.AddNode(simple.Node(from))
		}
		if g.Node(to) == nil {
			g.AddNode(simple.Node(to))
		}
		g.SetEdge(simple.Edge{F: simple.Node(from), T: simple.Node(to)})
	}

	scores := network.PageRank(g, config.PageRankDamping, convergenceTolerance)

	urlByID := make(map[int64]string, len(ids))
	for url, id := range ids {
		urlByID[id] = url
	}

	for id, score := range scores {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		url, ok := urlByID[id]
		if !ok {
			continue
		}
		scaled := int64(score * config.PageRankScale)

		result := retry.Retry(r.retryParam, func() (struct{}, failure.ClassifiedError) {
			if err := r.crawl.UpdatePageRank(url, scaled); err != nil {
				if se, ok := err.(*storeerr.Error); ok {
					return struct{}{}, se
				}
				return struct{}{}, &storeerr.Error{Op: "pagerank.Run", Message: err.Error(), Cause: storeerr.ErrCauseQueryFailure}
			}
			return struct{}{}, nil
		})
		if _, err := result.Unwrap(); err != nil {
			return err
		}
	}

	r.recorder.RecordEvent("pagerank", "completed")
	return nil
}
