package rpcperf

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Counters is the per-window outcome tally. Every completed response
// increments Total; Ok and Error split it by success; Hit and Miss further
// classify successful reads; Closed counts connection teardowns.
type Counters struct {
	Total  uint64 `json:"total"`
	Ok     uint64 `json:"ok"`
	Hit    uint64 `json:"hit"`
	Miss   uint64 `json:"miss"`
	Error  uint64 `json:"error"`
	Closed uint64 `json:"closed"`
}

func (c *Counters) record(out Outcome) {
	c.Total++
	switch out {
	case OutcomeOK:
		c.Ok++
	case OutcomeHit:
		c.Ok++
		c.Hit++
	case OutcomeMiss:
		c.Ok++
		c.Miss++
	case OutcomeError:
		c.Error++
	}
}

// Add folds other into c. Addition is commutative and associative, so
// worker snapshots may merge in any order.
func (c *Counters) Add(other Counters) {
	c.Total += other.Total
	c.Ok += other.Ok
	c.Hit += other.Hit
	c.Miss += other.Miss
	c.Error += other.Error
	c.Closed += other.Closed
}

// Clear zeroes all counters.
func (c *Counters) Clear() {
	*c = Counters{}
}

// Snapshot is one worker's handoff to the aggregator: its counters and
// histogram for the closing window. Ownership of the histogram transfers
// with the snapshot; the worker starts the next window on a fresh one.
type Snapshot struct {
	Counters  Counters
	Histogram *Histogram
}

// WindowStats is the merged result of one reporting window.
type WindowStats struct {
	Window    int
	Counters  Counters
	Histogram *Histogram
	Elapsed   time.Duration
}

// Rate returns achieved requests per second over the window.
func (w *WindowStats) Rate() float64 {
	if w.Elapsed <= 0 {
		return 0
	}
	return float64(w.Counters.Total) / w.Elapsed.Seconds()
}

// SuccessPercent returns Ok as a percentage of all classified responses.
func (w *WindowStats) SuccessPercent() float64 {
	return percent(w.Counters.Ok, w.Counters.Ok+w.Counters.Error)
}

// HitratePercent returns Hit as a percentage of all read responses.
func (w *WindowStats) HitratePercent() float64 {
	return percent(w.Counters.Hit, w.Counters.Hit+w.Counters.Miss)
}

func percent(part, whole uint64) float64 {
	if whole == 0 {
		return 0
	}
	return 100 * float64(part) / float64(whole)
}

// reportedPercentiles are the latency percentiles included in every report.
var reportedPercentiles = []float64{50, 90, 99, 99.9, 99.99}

func percentileLabel(p float64) string {
	return "p" + strings.ReplaceAll(fmt.Sprintf("%g", p), ".", "")
}

// Vars returns the machine-readable form served by the admin surface.
func (w *WindowStats) Vars() map[string]interface{} {
	vars := map[string]interface{}{
		"window":             w.Window,
		"requests/total":     w.Counters.Total,
		"responses/ok":       w.Counters.Ok,
		"responses/hit":      w.Counters.Hit,
		"responses/miss":     w.Counters.Miss,
		"responses/error":    w.Counters.Error,
		"connections/closed": w.Counters.Closed,
		"rate/request":       w.Rate(),
		"success/percent":    w.SuccessPercent(),
		"hitrate/percent":    w.HitratePercent(),
	}
	if w.Histogram != nil {
		vars["latency/minimum"] = w.Histogram.Min()
		vars["latency/maximum"] = w.Histogram.Max()
		for _, p := range reportedPercentiles {
			vars["latency/"+percentileLabel(p)] = w.Histogram.Percentile(p)
		}
	}
	return vars
}

// Human returns the human-readable form served on the admin /vars endpoint,
// one "key: value" line per metric in sorted key order.
func (w *WindowStats) Human() string {
	vars := w.Vars()
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %v\n", k, vars[k])
	}
	return b.String()
}
