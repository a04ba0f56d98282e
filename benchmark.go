// Package rpcperf implements the workload execution engine: a load
// generation client that drives synthetic request streams against RPC-style
// caching services, measures per-request latency and reports windowed
// statistics with a live admin control surface.
package rpcperf

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

const (
	Name    = "rpc-perf"
	Version = "0.1.0"
)

// workerSeedStride separates the RNG seed space of adjacent workers so that
// their per-connection seeds never collide.
const workerSeedStride = 1 << 20

// Benchmark wires the whole run together: keyspaces, generator, shared rate
// limiter, workers, aggregator and the admin surface.
type Benchmark struct {
	cfg      *Config
	codec    Codec
	limiter  *Ratelimiter
	gen      *Generator
	workers  []*Worker
	agg      *Aggregator
	admin    *Admin
	registry *prometheus.Registry
}

// NewBenchmark validates the workload against the codec and builds the run.
// All configuration errors surface here, before any connection is opened.
func NewBenchmark(cfg *Config, codec Codec, seed int64) (*Benchmark, error) {
	keyspaces := make([]*Keyspace, 0, len(cfg.Keyspaces))
	for _, kcfg := range cfg.Keyspaces {
		ks, err := NewKeyspace(kcfg, codec)
		if err != nil {
			return nil, err
		}
		keyspaces = append(keyspaces, ks)
	}

	gen, err := NewGenerator(keyspaces, seed)
	if err != nil {
		return nil, err
	}

	b := &Benchmark{
		cfg:      cfg,
		codec:    codec,
		limiter:  NewRatelimiter(cfg.Request.Ratelimit),
		gen:      gen,
		registry: prometheus.NewRegistry(),
	}

	metrics := NewMetrics(b.registry)
	for t := 0; t < cfg.General.Threads; t++ {
		b.workers = append(b.workers,
			NewWorker(t, cfg, codec, gen, b.limiter, seed+int64(t)*workerSeedStride))
	}
	b.agg = NewAggregator(cfg, b.workers, metrics)
	if cfg.General.Admin != "" {
		b.admin = NewAdmin(b.agg, b.limiter, b.registry)
	}
	return b, nil
}

// Ratelimiter returns the shared admission gate, the one piece of state the
// admin surface may mutate at runtime.
func (b *Benchmark) Ratelimiter() *Ratelimiter { return b.limiter }

// Aggregator returns the window aggregator, whose latest snapshot feeds the
// admin read path.
func (b *Benchmark) Aggregator() *Aggregator { return b.agg }

// Run executes the benchmark until the configured windows elapse, or until
// ctx is cancelled in service mode.
func (b *Benchmark) Run(ctx context.Context) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	for _, w := range b.workers {
		w := w
		g.Go(func() error {
			return w.Run(gctx)
		})
	}
	g.Go(func() error {
		return b.agg.Run(gctx, stop)
	})
	if b.admin != nil {
		g.Go(func() error {
			return b.admin.Run(gctx, b.cfg.General.Admin)
		})
	}
	return g.Wait()
}
