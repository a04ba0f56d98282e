package rpcperf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistogramBasicPercentiles(t *testing.T) {
	h := NewHistogram(1, 60_000_000_000, 3)
	for v := int64(1); v <= 100; v++ {
		h.Record(v)
	}

	assert.Equal(t, int64(100), h.Total())
	assert.Equal(t, int64(1), h.Percentile(0))
	assert.Equal(t, int64(100), h.Percentile(100))
	// with 3 significant figures values this small are exact
	assert.Equal(t, int64(50), h.Percentile(50))
}

func TestHistogramClampsOutOfRange(t *testing.T) {
	h := NewHistogram(1, 1000, 3)
	h.Record(0)
	h.Record(-5)
	h.Record(5000)

	// clamped, never dropped
	require.Equal(t, int64(3), h.Total())
	assert.Equal(t, int64(1), h.Min())
	assert.Equal(t, int64(1000), h.Max())
}

func TestHistogramRelativeErrorBound(t *testing.T) {
	h := NewLatencyHistogram()
	const value = 1_234_567_890
	h.Record(value)

	got := h.Percentile(100)
	assert.InEpsilon(t, value, got, 0.001)
}

func TestHistogramMerge(t *testing.T) {
	a := NewLatencyHistogram()
	b := NewLatencyHistogram()
	for v := int64(1); v <= 50; v++ {
		a.Record(v)
	}
	for v := int64(51); v <= 100; v++ {
		b.Record(v)
	}

	a.Merge(b)
	assert.Equal(t, int64(100), a.Total())
	assert.Equal(t, int64(1), a.Min())
	assert.Equal(t, int64(100), a.Max())

	// merging nil is a no-op
	a.Merge(nil)
	assert.Equal(t, int64(100), a.Total())
}

func TestHistogramClear(t *testing.T) {
	h := NewLatencyHistogram()
	h.RecordN(10, 5)
	require.Equal(t, int64(5), h.Total())

	h.Clear()
	assert.Equal(t, int64(0), h.Total())
	assert.Equal(t, int64(0), h.Percentile(50))
	assert.Equal(t, int64(0), h.Min())
	assert.Equal(t, int64(0), h.Max())
}
