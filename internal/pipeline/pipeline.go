// Package pipeline holds the crawler's process-wide shared state in one
// value constructed once at startup and passed by pointer to every
// worker — the dispatcher, fetcher pool, parser pool, and DB writer —
// instead of package-level globals (REDESIGN FLAG, honored).
package pipeline

import (
	"github.com/vigilare/vigilare/internal/bloomfilter"
	"github.com/vigilare/vigilare/internal/config"
	"github.com/vigilare/vigilare/internal/domainmgr"
	"github.com/vigilare/vigilare/internal/observability"
	"github.com/vigilare/vigilare/internal/pipeline/queue"
	"github.com/vigilare/vigilare/internal/pipeline/ring"
	"github.com/vigilare/vigilare/internal/robots"
)

// Pipeline is the crawler's shared, mutex-protected state. All fields are
// themselves safe for concurrent use; Pipeline just gives workers one
// thing to hold a pointer to.
type Pipeline struct {
	Bloom    *bloomfilter.Filter
	Domains  *domainmgr.Manager
	Robots   robots.Robot
	Ring     *ring.Ring
	Recorder observability.Recorder

	FetchQueue *queue.Queue[queue.FetchItem]
	ParseQueue *queue.Queue[queue.ParseItem]
	WriteQueue *queue.Queue[queue.WriteMessage]
}

// New wires a Pipeline from its constituent parts, sizing the three
// queues and the dispatched-recently ring from config.tunables.
func New(bloom *bloomfilter.Filter, domains *domainmgr.Manager, robot robots.Robot, recorder observability.Recorder) *Pipeline {
	return &Pipeline{
		Bloom:      bloom,
		Domains:    domains,
		Robots:     robot,
		Ring:       ring.New(config.DispatchedRingCapacity),
		Recorder:   recorder,
		FetchQueue: queue.New[queue.FetchItem](config.FetchQueueCapacity),
		ParseQueue: queue.New[queue.ParseItem](config.ParseQueueCapacity),
		WriteQueue: queue.New[queue.WriteMessage](config.WriteQueueCapacity),
	}
}
