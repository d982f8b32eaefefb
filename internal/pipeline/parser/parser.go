// Package parser is the crawler's parse pool: a fixed number of goroutines
// decoding fetched bytes, isolating the page's indexable text, and
// emitting a save_page message to the Write Queue.
//
// It generalizes the teacher's internal/extractor.DomExtractor — which
// isolates one "main content" node via goquery selectors and link-density
// scoring for markdown conversion — to the simpler, flatter extraction a
// search index needs: title, meta description, whole-page body text, and
// the h1/h2 headings, with noise elements stripped the same way the
// teacher's chrome-removal pass does.
package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/vigilare/vigilare/internal/canon"
	"github.com/vigilare/vigilare/internal/config"
	"github.com/vigilare/vigilare/internal/observability"
	"github.com/vigilare/vigilare/internal/pipeline"
	"github.com/vigilare/vigilare/internal/pipeline/queue"
	"github.com/vigilare/vigilare/internal/simhash"
)

// noiseSelector matches the elements stripped before text extraction.
const noiseSelector = "script, style, nav, footer, header, noscript, iframe, svg"

// Pool is a fixed-size pool of parse goroutines sharing one Pipeline.
type Pool struct {
	pipe *pipeline.Pipeline
	size int
}

// New builds a Pool of config.ParserPoolSize goroutines.
func New(pipe *pipeline.Pipeline) *Pool {
	return &Pool{pipe: pipe, size: config.ParserPoolSize}
}

// Run starts size worker goroutines pulling from the Parse Queue until ctx
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
		item, err := p.pipe.ParseQueue.Pop(ctx)
		if err != nil {
			return
		}
		p.process(ctx, item)
	}
}

// process decodes item, extracts its indexable fields, and pushes a
// save_page message onto the Write Queue.
func (p *Pool) process(ctx context.Context, item queue.ParseItem) {
	pageURL, err := url.Parse(item.URL)
	if err != nil {
		p.pipe.Recorder.RecordError(time.Now(), "parser", "process", observability.CauseContentInvalid, err.Error(),
			observability.NewAttr(observability.AttrURL, item.URL))
		return
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(decode(item.FetchedBytes)))
	if err != nil {
		p.pipe.Recorder.RecordError(time.Now(), "parser", "process", observability.CauseContentInvalid, err.Error(),
			observability.NewAttr(observability.AttrURL, item.URL))
		return
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	description, _ := doc.Find(`meta[name="description"]`).Attr("content")
	description = strings.TrimSpace(description)

	var h2s []string
	doc.Find("h2").Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			h2s = append(h2s, text)
		}
	})
	h1 := strings.TrimSpace(doc.Find("h1").First().Text())
	h2 := strings.Join(h2s, " ")

	var important []string
	doc.Find("strong, b, em, code").Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			important = append(important, text)
		}
	})
	importantText := truncate(strings.Join(important, " "), config.MaxTextChars)

	var links []string
	if p.pipe.FetchQueue.FreeSlots() > 0 {
		links = p.extractLinks(doc, pageURL)
	}

	doc.Find(noiseSelector).Remove()
	content := truncate(collapseWhitespace(doc.Text()), config.MaxTextChars)

	headersJSON, _ := json.Marshal(item.Headers)
	contentHash := simhash.Fingerprint(content)

	p.pipe.WriteQueue.Push(ctx, queue.WriteMessage{
		Kind: queue.WriteKindSavePage,
		SavePage: queue.SavePagePayload{
			URL:            item.URL,
			Title:          title,
			Description:    description,
			Content:        content,
			H1:             h1,
			H2:             h2,
			ImportantText:  importantText,
			ContentHash:    contentHash,
			CompressedHTML: item.FetchedBytes,
			HeadersJSON:    string(headersJSON),
			HTTPStatus:     item.StatusCode,
			OutLinksCount:  len(links),
			LinksFound:     links,
			SourceDomain:   pageURL.Hostname(),
		},
	})
}

// extractLinks resolves and canonicalises every a[href] against pageURL,
// discarding any that fail to resolve or canonicalise.
func (p *Pool) extractLinks(doc *goquery.Document, pageURL *url.URL) []string {
	seen := make(map[string]struct{})
	var out []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		resolved, err := canon.Canonicalize(href, pageURL)
		if err != nil {
			return
		}
		if _, dup := seen[resolved]; dup {
			return
		}
		seen[resolved] = struct{}{}
		out = append(out, resolved)
	})
	return out
}

// decode treats b as UTF-8, falling back to a byte-for-byte Latin-1
// decode (each byte is its own Unicode code point) when it is not valid
// UTF-8 — cheap and sufficient for the legacy-encoded pages a broad crawl
// occasionally meets.
func decode(b []byte) []byte {
	if utf8.Valid(b) {
		return b
	}
	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}
	return []byte(string(runes))
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
