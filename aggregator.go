package rpcperf

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/twitter/rpc-perf/log"
)

// Aggregator closes each reporting window: it collects every worker's
// snapshot, merges them into one WindowStats, emits the report and publishes
// the result for the admin surface. The first window is warmup and is
// discarded so connection-establishment transients never reach a report.
type Aggregator struct {
	cfg     *Config
	workers []*Worker
	metrics *Metrics

	latest atomic.Pointer[WindowStats]
}

// NewAggregator builds an aggregator over the run's workers. metrics may be
// nil when the admin surface is disabled.
func NewAggregator(cfg *Config, workers []*Worker, metrics *Metrics) *Aggregator {
	return &Aggregator{cfg: cfg, workers: workers, metrics: metrics}
}

// Latest returns the most recently reported window, or nil before the first
// post-warmup window closes. It is safe to call from any goroutine.
func (a *Aggregator) Latest() *WindowStats {
	return a.latest.Load()
}

// Run emits windows until the configured count elapses, then calls stop to
// end the run. In service mode it keeps reporting until ctx is cancelled.
func (a *Aggregator) Run(ctx context.Context, stop context.CancelFunc) error {
	interval := a.cfg.IntervalDuration()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	warmup := true
	window := 0
	last := time.Now()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			stats, ok := a.merge(ctx, now.Sub(last))
			last = now
			if !ok {
				return nil
			}
			if warmup {
				log.Info("-----")
				log.Info("Warmup complete")
				warmup = false
				continue
			}
			window++
			stats.Window = window
			a.latest.Store(stats)
			a.report(stats)
			if a.metrics != nil {
				a.metrics.observeWindow(stats)
			}
			if !a.cfg.General.Service && window >= a.cfg.General.Windows {
				stop()
				return nil
			}
		}
	}
}

// merge gathers one snapshot per worker. Counter addition and histogram
// merge are associative and order independent, so slight wall-clock skew
// between workers only shifts samples between adjacent windows.
func (a *Aggregator) merge(ctx context.Context, elapsed time.Duration) (*WindowStats, bool) {
	stats := &WindowStats{
		Histogram: NewLatencyHistogram(),
		Elapsed:   elapsed,
	}
	for _, w := range a.workers {
		snap, ok := w.Snapshot(ctx)
		if !ok {
			return nil, false
		}
		stats.Counters.Add(snap.Counters)
		stats.Histogram.Merge(snap.Histogram)
	}
	return stats, true
}

func (a *Aggregator) report(w *WindowStats) {
	c := w.Counters
	log.Info("-----")
	log.Infof("Window: %d", w.Window)
	log.Infof("Requests: Total: %d Ok: %d Hit: %d Miss: %d Error: %d Closed: %d",
		c.Total, c.Ok, c.Hit, c.Miss, c.Error, c.Closed)
	log.Infof("Rate: %.2f rps Success: %.2f %% Hitrate: %.2f %%",
		w.Rate(), w.SuccessPercent(), w.HitratePercent())
	log.Infof("Latency: min: %d ns max: %d ns", w.Histogram.Min(), w.Histogram.Max())

	var b strings.Builder
	for i, p := range reportedPercentiles {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(percentileLabel(p))
		b.WriteString(": ")
		b.WriteString(time.Duration(w.Histogram.Percentile(p)).String())
	}
	log.Infof("Percentiles: %s", b.String())
}
