package rpcperf

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes window-level results to Prometheus scrapers on the admin
// surface. Everything here is written by the aggregator at window boundaries
// only; nothing on the request path touches a metric.
type Metrics struct {
	requestsTotal     prometheus.Counter
	responsesOk       prometheus.Counter
	responsesHit      prometheus.Counter
	responsesMiss     prometheus.Counter
	responsesError    prometheus.Counter
	connectionsClosed prometheus.Counter

	window            prometheus.Gauge
	requestRate       prometheus.Gauge
	latencyPercentile *prometheus.GaugeVec
}

// NewMetrics registers the benchmark metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace: "rpcperf",
			Name:      name,
			Help:      help,
		})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "rpcperf",
			Name:      name,
			Help:      help,
		})
	}
	return &Metrics{
		requestsTotal:     counter("requests_total", "Requests issued."),
		responsesOk:       counter("responses_ok_total", "Successful responses."),
		responsesHit:      counter("responses_hit_total", "Read responses that returned data."),
		responsesMiss:     counter("responses_miss_total", "Read responses for absent keys."),
		responsesError:    counter("responses_error_total", "Responses the target flagged as errors."),
		connectionsClosed: counter("connections_closed_total", "Connections closed."),
		window:            gauge("window", "Index of the last reported window."),
		requestRate:       gauge("request_rate", "Achieved request rate over the last window."),
		latencyPercentile: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "rpcperf",
			Name:      "latency_ns",
			Help:      "Latency percentile over the last window in nanoseconds.",
		}, []string{"percentile"}),
	}
}

func (m *Metrics) observeWindow(w *WindowStats) {
	c := w.Counters
	m.requestsTotal.Add(float64(c.Total))
	m.responsesOk.Add(float64(c.Ok))
	m.responsesHit.Add(float64(c.Hit))
	m.responsesMiss.Add(float64(c.Miss))
	m.responsesError.Add(float64(c.Error))
	m.connectionsClosed.Add(float64(c.Closed))

	m.window.Set(float64(w.Window))
	m.requestRate.Set(w.Rate())
	for _, p := range reportedPercentiles {
		m.latencyPercentile.WithLabelValues(percentileLabel(p)).Set(float64(w.Histogram.Percentile(p)))
	}
}
