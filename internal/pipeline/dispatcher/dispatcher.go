// Package dispatcher runs the crawler's single-threaded scheduling loop:
// it is the only component that reads the frontier's dispatchable set and
// decides what to reserve and hand to the fetcher pool.
package dispatcher

import (
	"context"
	"math/rand"
	"strconv"
	"time"

	"github.com/vigilare/vigilare/internal/config"
	"github.com/vigilare/vigilare/internal/observability"
	"github.com/vigilare/vigilare/internal/pipeline"
	"github.com/vigilare/vigilare/internal/pipeline/queue"
	"github.com/vigilare/vigilare/internal/store/crawlstore"
	"github.com/vigilare/vigilare/pkg/timeutil"
)

// Dispatcher is the sole writer of FetchQueue items and the sole reader of
// the frontier's dispatchable rows. It does not fetch, parse, or write
// visited rows itself — those decisions belong to the fetcher pool, parser
// pool, and DB writer respectively.
type Dispatcher struct {
	store    *crawlstore.Store
	pipe     *pipeline.Pipeline
	sleeper  timeutil.Sleeper
	recorder observability.Recorder
}

// New builds a Dispatcher over store, using pipe's ring and queues.
func New(store *crawlstore.Store, pipe *pipeline.Pipeline) *Dispatcher {
	return &Dispatcher{
		store:    store,
		pipe:     pipe,
		sleeper:  timeutil.NewRealSleeper(),
		recorder: pipe.Recorder,
	}
}

// NewWithSleeper is the test constructor, allowing a fake Sleeper so tests
// do not wait on real empty/busy sleeps.
func NewWithSleeper(store *crawlstore.Store, pipe *pipeline.Pipeline, sleeper timeutil.Sleeper) *Dispatcher {
	return &Dispatcher{
		store:    store,
		pipe:     pipe,
		sleeper:  sleeper,
		recorder: pipe.Recorder,
	}
}

// Run loops Tick until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if err := d.Tick(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			d.recorder.RecordError(time.Now(), "dispatcher", "Tick", observability.CauseStorageFailure, err.Error())
			d.sleeper.Sleep(config.DispatcherEmptySleep)
		}
	}
}

// Tick runs one dispatch cycle: select dispatchable rows, filter the
// dispatched-recently ring, shuffle the survivors, reserve them, and push
// them onto the Fetch Queue. It sleeps and returns when there is nothing to
// do or the Fetch Queue is still congested from the previous batch.
func (d *Dispatcher) Tick(ctx context.Context) error {
	if d.pipe.FetchQueue.FreeSlots() < config.DispatcherLowWaterSlots {
		d.sleeper.Sleep(config.DispatcherBusySleep)
		return nil
	}

	now := time.Now()
	rows, err := d.store.SelectDispatchable(now, config.ReservationLease, config.BatchSize)
	if err != nil {
		return err
	}

	survivors := rows[:0]
	for _, r := range rows {
		if d.pipe.Ring.Contains(r.URL) {
			continue
		}
		survivors = append(survivors, r)
	}

	if len(survivors) == 0 {
		d.sleeper.Sleep(config.DispatcherEmptySleep)
		return nil
	}

	rand.Shuffle(len(survivors), func(i, j int) { survivors[i], survivors[j] = survivors[j], survivors[i] })

	urls := make([]string, 0, len(survivors))
	for _, r := range survivors {
		urls = append(urls, r.URL)
	}

	if err := d.pipe.WriteQueue.Push(ctx, queue.WriteMessage{
		Kind:    queue.WriteKindReserve,
		Reserve: queue.ReservePayload{URLs: urls},
	}); err != nil {
		return err
	}

	for _, r := range survivors {
		d.pipe.Ring.Add(r.URL)
		if err := d.pipe.FetchQueue.Push(ctx, queue.FetchItem{URL: r.URL, RetryCount: r.RetryCount}); err != nil {
			return err
		}
	}

	d.recorder.RecordEvent("dispatcher", "dispatched",
		observability.NewAttr(observability.AttrCount, strconv.Itoa(len(survivors))))

	return nil
}
