package rpcperf

import (
	"context"
	"math/rand"

	"golang.org/x/sync/errgroup"
)

// resultBuffer sizes each worker's completion channel. Connections block on
// a full buffer rather than drop results; the collector only does counter
// arithmetic, so the buffer absorbs bursts.
const resultBuffer = 4096

// Worker owns poolsize connections to every endpoint plus the collector
// that folds their completions into the worker-local counters and histogram.
// Counters and histogram are touched only by the collector goroutine; the
// aggregator obtains them through the snapshot channel, never by locking.
type Worker struct {
	id    int
	conns []*connection

	results   chan result
	snapshots chan chan Snapshot

	counters Counters
	hist     *Histogram
}

// NewWorker builds worker id with its own connection set. Each connection
// gets an independent RNG derived from seed so runs are reproducible while
// connections never contend on draw state.
func NewWorker(id int, cfg *Config, codec Codec, gen *Generator, limiter *Ratelimiter, seed int64) *Worker {
	w := &Worker{
		id:        id,
		results:   make(chan result, resultBuffer),
		snapshots: make(chan chan Snapshot),
		hist:      NewLatencyHistogram(),
	}
	slot := 0
	for _, endpoint := range cfg.Target.Endpoints {
		for i := 0; i < cfg.Connection.Poolsize; i++ {
			rng := rand.New(rand.NewSource(seed + int64(slot)))
			w.conns = append(w.conns, newConnection(endpoint, slot, codec, gen, limiter, rng, w.results, cfg))
			slot++
		}
	}
	return w
}

// Run drives the connections and the collector until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, c := range w.conns {
		c := c
		g.Go(func() error {
			c.run(ctx)
			return nil
		})
	}
	g.Go(func() error {
		w.collect(ctx)
		return nil
	})
	return g.Wait()
}

// collect is the only goroutine that mutates the worker's stats. A snapshot
// request hands the current histogram over wholesale and starts the next
// window on a fresh one, so the hot path never shares a histogram with the
// aggregator.
func (w *Worker) collect(ctx context.Context) {
	for {
		select {
		case r := <-w.results:
			if r.closed {
				w.counters.Closed++
				continue
			}
			w.counters.record(r.outcome)
			w.hist.Record(int64(r.latency))
		case reply := <-w.snapshots:
			reply <- Snapshot{Counters: w.counters, Histogram: w.hist}
			w.counters.Clear()
			w.hist = NewLatencyHistogram()
		case <-ctx.Done():
			return
		}
	}
}

// Snapshot returns the worker's stats for the closing window and resets
// them. ok is false when the worker already stopped.
func (w *Worker) Snapshot(ctx context.Context) (Snapshot, bool) {
	reply := make(chan Snapshot, 1)
	select {
	case w.snapshots <- reply:
	case <-ctx.Done():
		return Snapshot{}, false
	}
	select {
	case s := <-reply:
		return s, true
	case <-ctx.Done():
		return Snapshot{}, false
	}
}
