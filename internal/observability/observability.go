// Package observability is the structured-logging doctrine shared by the
// crawler pipeline, the indexer, and the query engine: a closed cause
// taxonomy for errors, and a Recorder interface implemented by a
// log/slog-backed recorder. Nothing in this package may influence retry,
// continuation, or abort decisions — those stay local to the caller, which
// passes its own verdict in as an attribute if it wants it logged.
package observability

import (
	"log/slog"
	"os"
	"time"
)

// Cause is a closed, canonical classification used exclusively for
// observability. It must never be used to derive control flow.
type Cause int

const (
	CauseUnknown Cause = iota
	CauseNetworkFailure
	CausePolicyDisallow
	CauseContentInvalid
	CauseStorageFailure
	CauseInvariantViolation
)

func (c Cause) String() string {
	switch c {
	case CauseNetworkFailure:
		return "network_failure"
	case CausePolicyDisallow:
		return "policy_disallow"
	case CauseContentInvalid:
		return "content_invalid"
	case CauseStorageFailure:
		return "storage_failure"
	case CauseInvariantViolation:
		return "invariant_violation"
	default:
		return "unknown"
	}
}

// AttributeKey names one field of a structured log entry.
type AttributeKey string

const (
	AttrURL        AttributeKey = "url"
	AttrDomain     AttributeKey = "domain"
	AttrHost       AttributeKey = "host"
	AttrDepth      AttributeKey = "depth"
	AttrHTTPStatus AttributeKey = "http_status"
	AttrMessage    AttributeKey = "message"
	AttrComponent  AttributeKey = "component"
	AttrCount      AttributeKey = "count"
)

type Attribute struct {
	Key   AttributeKey
	Value string
}

func NewAttr(key AttributeKey, val string) Attribute {
	return Attribute{Key: key, Value: val}
}

// FetchEvent is a single fetch attempt's observable outcome.
type FetchEvent struct {
	URL         string
	HTTPStatus  int
	Duration    time.Duration
	ContentType string
	RetryCount  int
}

// Recorder is the sole observability surface every pipeline, indexer, and
// query-engine component is injected with. Implementations must not block
// the caller for long, and must never return an error: a broken log sink is
// not a reason to fail a crawl.
type Recorder interface {
	RecordFetch(event FetchEvent)
	RecordError(at time.Time, component, action string, cause Cause, message string, attrs ...Attribute)
	RecordEvent(component, action string, attrs ...Attribute)
}

// SlogRecorder is the production Recorder, backed by log/slog with a JSON
// handler writing structured records to stderr.
type SlogRecorder struct {
	logger *slog.Logger
}

// NewSlogRecorder builds a Recorder writing structured JSON to stderr,
// tagged with the given run name (e.g. "crawler", "indexer", "queryengine").
func NewSlogRecorder(runName string) *SlogRecorder {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	return &SlogRecorder{logger: slog.New(handler).With(slog.String("run", runName))}
}

func (r *SlogRecorder) RecordFetch(event FetchEvent) {
	r.logger.Info("fetch",
		slog.String("url", event.URL),
		slog.Int("http_status", event.HTTPStatus),
		slog.Duration("duration", event.Duration),
		slog.String("content_type", event.ContentType),
		slog.Int("retry_count", event.RetryCount),
	)
}

func (r *SlogRecorder) RecordError(at time.Time, component, action string, cause Cause, message string, attrs ...Attribute) {
	args := []any{
		slog.Time("at", at),
		slog.String("component", component),
		slog.String("action", action),
		slog.String("cause", cause.String()),
	}
	for _, a := range attrs {
		args = append(args, slog.String(string(a.Key), a.Value))
	}
	r.logger.Error(message, args...)
}

func (r *SlogRecorder) RecordEvent(component, action string, attrs ...Attribute) {
	args := []any{slog.String("component", component), slog.String("action", action)}
	for _, a := range attrs {
		args = append(args, slog.String(string(a.Key), a.Value))
	}
	r.logger.Info("event", args...)
}

var _ Recorder = (*SlogRecorder)(nil)

// RunSummary is a terminal, derived summary of one run of a pipeline
// component (a crawl session, an indexer tick batch, a PageRank pass). It is
// computed after the fact, recorded exactly once, and never consulted to
// drive further scheduling.
type RunSummary struct {
	Component   string
	ItemsOK     int
	ItemsFailed int
	Duration    time.Duration
}

// Finalizer records a RunSummary for one finished run. No command in this
// repository calls it; only its tests do.
type Finalizer interface {
	Finalize(summary RunSummary)
}

func (r *SlogRecorder) Finalize(summary RunSummary) {
	r.logger.Info("run_summary",
		slog.String("component", summary.Component),
		slog.Int("items_ok", summary.ItemsOK),
		slog.Int("items_failed", summary.ItemsFailed),
		slog.Duration("duration", summary.Duration),
	)
}

var _ Finalizer = (*SlogRecorder)(nil)
