package rpcperf

import (
	hdrhistogram "github.com/HdrHistogram/hdrhistogram-go"
)

// Latency histogram bounds: 1ns to 60s, three significant figures, matching
// the reporting resolution of the windowed output.
const (
	histogramMin     = 1
	histogramMax     = 60_000_000_000
	histogramSigfigs = 3
)

// Histogram records latencies with a bounded relative error determined by
// the significant-figures parameter. Values outside [min, max] are clamped
// to the nearest bound so every recorded sample stays attributed. A
// Histogram is owned by a single goroutine; merging happens only on the
// aggregator after a snapshot handoff.
type Histogram struct {
	h   *hdrhistogram.Histogram
	min int64
	max int64
}

// NewHistogram creates a histogram covering [min, max] with the given number
// of significant figures.
func NewHistogram(min, max int64, sigfigs int) *Histogram {
	return &Histogram{
		h:   hdrhistogram.New(min, max, sigfigs),
		min: min,
		max: max,
	}
}

// NewLatencyHistogram creates a histogram with the engine's latency bounds.
func NewLatencyHistogram() *Histogram {
	return NewHistogram(histogramMin, histogramMax, histogramSigfigs)
}

// Record adds one sample.
func (h *Histogram) Record(v int64) {
	h.RecordN(v, 1)
}

// RecordN adds count samples of value v, clamping v into range first.
func (h *Histogram) RecordN(v int64, count int64) {
	if v < h.min {
		v = h.min
	} else if v > h.max {
		v = h.max
	}
	// In range after clamping, so this cannot fail.
	_ = h.h.RecordValues(v, count)
}

// Total returns the number of recorded samples.
func (h *Histogram) Total() int64 {
	return h.h.TotalCount()
}

// Percentile returns the value at percentile p in [0, 100]. p = 0 reports
// the minimum recorded value, p = 100 the maximum, both within the
// configured relative-error bound.
func (h *Histogram) Percentile(p float64) int64 {
	if h.h.TotalCount() == 0 {
		return 0
	}
	if p <= 0 {
		return h.h.Min()
	}
	if p >= 100 {
		return h.h.Max()
	}
	return h.h.ValueAtQuantile(p)
}

// Min returns the lowest recorded value, 0 when empty.
func (h *Histogram) Min() int64 {
	if h.h.TotalCount() == 0 {
		return 0
	}
	return h.h.Min()
}

// Max returns the highest recorded value, 0 when empty.
func (h *Histogram) Max() int64 {
	if h.h.TotalCount() == 0 {
		return 0
	}
	return h.h.Max()
}

// Merge adds other's buckets into h. Both histograms share the engine-wide
// construction parameters, so bucket boundaries always line up.
func (h *Histogram) Merge(other *Histogram) {
	if other == nil {
		return
	}
	h.h.Merge(other.h)
}

// Clear resets every bucket to zero.
func (h *Histogram) Clear() {
	h.h.Reset()
}
