// Package fetcher is the crawler's fetch pool: a fixed number of goroutines
// pulling URLs off the Fetch Queue, downloading them under the domain
// manager and robots policy, and handing successes to the Parse Queue.
//
// It generalizes internal/fetcher.HtmlFetcher's classify-then-return shape
// to a streamed download bounded by both a byte ceiling and a wall-clock
// ceiling, and replaces its single-shot metadata.MetadataSink/FetchError
// pairing with the shared internal/crawlerr taxonomy and internal/pipeline's
// queues.
package fetcher

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/vigilare/vigilare/internal/config"
	"github.com/vigilare/vigilare/internal/crawlerr"
	"github.com/vigilare/vigilare/internal/domainmgr"
	"github.com/vigilare/vigilare/internal/observability"
	"github.com/vigilare/vigilare/internal/pipeline"
	"github.com/vigilare/vigilare/internal/pipeline/queue"
)

// ErrTooManyRedirects is returned by the client's CheckRedirect once the
// redirect chain exceeds maxRedirects, classified as crawlerr.RedirectLoop.
var ErrTooManyRedirects = errors.New("fetcher: too many redirects")

const maxRedirects = 10

// Pool is a fixed-size pool of fetch goroutines sharing one Pipeline.
type Pool struct {
	pipe      *pipeline.Pipeline
	client    *http.Client
	userAgent string
	size      int
}

// New builds a Pool of config.FetcherPoolSize goroutines.
func New(pipe *pipeline.Pipeline, userAgent string) *Pool {
	return &Pool{
		pipe:      pipe,
		userAgent: userAgent,
		size:      config.FetcherPoolSize,
		client: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: config.ConnectTimeout}).DialContext,
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return ErrTooManyRedirects
				}
				return nil
			},
		},
	}
}

// Run starts size worker goroutines pulling from the Fetch Queue until ctx
// is cancelled.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.size; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker(ctx)
		}()
	}
	wg.Wait()
}

func (p *Pool) worker(ctx context.Context) {
	for {
		item, err := p.pipe.FetchQueue.Pop(ctx)
		if err != nil {
			return
		}
		p.process(ctx, item)
	}
}

// process runs one URL's domain check, robots check, and download, routing
// the outcome onto the Parse Queue or the Write Queue.
func (p *Pool) process(ctx context.Context, item queue.FetchItem) {
	u, err := url.Parse(item.URL)
	if err != nil {
		p.emitStatus(ctx, item.URL, statusError)
		return
	}
	domain := u.Hostname()

	switch p.pipe.Domains.Check(domain, item.RetryCount) {
	case domainmgr.VerdictCapReached:
		p.emitStatus(ctx, item.URL, statusCompleted)
		return
	case domainmgr.VerdictPenaltyFailed:
		p.emitStatus(ctx, item.URL, statusError)
		return
	case domainmgr.VerdictPenaltyRetry:
		p.emitRetry(ctx, item.URL, item.RetryCount+1)
		return
	case domainmgr.VerdictReschedule:
		p.emitReschedule(ctx, item.URL, config.RescheduleDelay)
		return
	}

	decision, robotsErr := p.pipe.Robots.Allowed(*u)
	if robotsErr != nil {
		p.recordError("robots", item.URL, robotsErr.Error())
		p.retryOrFail(ctx, item, crawlerr.ConnectionError())
		return
	}
	if !decision.Allowed {
		p.pipe.Recorder.RecordEvent("fetcher", "robots_disallowed", observability.NewAttr(observability.AttrURL, item.URL))
		p.emitStatus(ctx, item.URL, statusCompleted)
		return
	}

	p.pipe.Domains.MarkAccess(domain)

	start := time.Now()
	body, headers, status, fetchErr := p.download(ctx, *u)
	p.pipe.Recorder.RecordFetch(observability.FetchEvent{
		URL:        item.URL,
		HTTPStatus: status,
		Duration:   time.Since(start),
		RetryCount: item.RetryCount,
	})

	if fetchErr != nil {
		p.pipe.Domains.RecordFailure(domain)
		p.recordError("fetch", item.URL, fetchErr.Error())
		p.retryOrFail(ctx, item, fetchErr)
		return
	}

	p.pipe.Domains.RecordSuccess(domain)
	p.pipe.ParseQueue.Push(ctx, queue.ParseItem{
		URL:          item.URL,
		FetchedBytes: body,
		Headers:      headers,
		StatusCode:   status,
		RetryCount:   item.RetryCount,
	})
}

// retryOrFail sends a retry message while the error is retryable and the
// URL has attempts left, otherwise marks it permanently failed.
func (p *Pool) retryOrFail(ctx context.Context, item queue.FetchItem, fetchErr *crawlerr.Error) {
	if fetchErr.Retryable() && item.RetryCount < config.MaxFetchRetries {
		p.pipe.WriteQueue.Push(ctx, queue.WriteMessage{
			Kind:  queue.WriteKindRetry,
			Retry: queue.RetryPayload{URL: item.URL, RetryCount: item.RetryCount + 1},
		})
		return
	}
	p.emitStatus(ctx, item.URL, statusError)
}

const (
	statusCompleted = 2
	statusError     = 3
)

func (p *Pool) emitStatus(ctx context.Context, u string, status int) {
	p.pipe.WriteQueue.Push(ctx, queue.WriteMessage{
		Kind:         queue.WriteKindStatusUpdate,
		StatusUpdate: queue.StatusUpdatePayload{URL: u, Status: status},
	})
}

func (p *Pool) emitRetry(ctx context.Context, u string, retryCount int) {
	p.pipe.WriteQueue.Push(ctx, queue.WriteMessage{
		Kind:  queue.WriteKindRetry,
		Retry: queue.RetryPayload{URL: u, RetryCount: retryCount},
	})
}

func (p *Pool) emitReschedule(ctx context.Context, u string, delay time.Duration) {
	p.pipe.WriteQueue.Push(ctx, queue.WriteMessage{
		Kind:       queue.WriteKindReschedule,
		Reschedule: queue.ReschedulePayload{URL: u, DelaySeconds: delay.Seconds()},
	})
}

func (p *Pool) recordError(action, u, message string) {
	p.pipe.Recorder.RecordError(time.Now(), "fetcher", action, observability.CauseNetworkFailure, message,
		observability.NewAttr(observability.AttrURL, u))
}

// download streams u's body under the dual MaxDownloadTime/MaxBodyBytes
// ceilings, classifying any failure into the crawlerr taxonomy.
func (p *Pool) download(ctx context.Context, u url.URL) ([]byte, map[string][]string, int, *crawlerr.Error) {
	dlCtx, cancel := context.WithTimeout(ctx, config.MaxDownloadTime)
	defer cancel()

	req, err := http.NewRequestWithContext(dlCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, nil, 0, crawlerr.ConnectionError()
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, ErrTooManyRedirects) {
			return nil, nil, 0, crawlerr.RedirectLoop()
		}
		if isTimeout(err) {
			return nil, nil, 0, crawlerr.TimeoutConnect()
		}
		return nil, nil, 0, crawlerr.ConnectionError()
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		return nil, nil, resp.StatusCode, crawlerr.RedirectLoop()
	}
	if resp.StatusCode >= 400 {
		return nil, nil, resp.StatusCode, crawlerr.HTTPStatusError(resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !isHTML(contentType) {
		return nil, nil, resp.StatusCode, crawlerr.NotHTML()
	}

	if resp.ContentLength > config.MaxBodyBytes {
		return nil, nil, resp.StatusCode, crawlerr.TooLargeBody()
	}

	body, readErr := readBounded(resp.Body, config.MaxBodyBytes, config.ChunkSize)
	if readErr != nil {
		if errors.Is(readErr, errBodyTooLarge) {
			return nil, nil, resp.StatusCode, crawlerr.TooLargeBody()
		}
		if errors.Is(readErr, context.DeadlineExceeded) {
			return nil, nil, resp.StatusCode, crawlerr.TimeoutDuringRead()
		}
		return nil, nil, resp.StatusCode, crawlerr.ConnectionError()
	}

	return body, map[string][]string(resp.Header), resp.StatusCode, nil
}

var errBodyTooLarge = errors.New("fetcher: body exceeds MaxBodyBytes")

// readBounded reads r in chunkSize increments, failing once the total
// exceeds limit rather than buffering an unbounded body.
func readBounded(r io.Reader, limit int64, chunkSize int) ([]byte, error) {
	var buf bytes.Buffer
	chunk := make([]byte, chunkSize)
	var total int64
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			total += int64(n)
			if total > limit {
				return nil, errBodyTooLarge
			}
			buf.Write(chunk[:n])
		}
		if err == io.EOF {
			return buf.Bytes(), nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func isHTML(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml")
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
