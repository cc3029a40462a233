package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	pollsTotal    *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	outcomesTotal *prometheus.CounterVec
	opportunities prometheus.Histogram
	latency       *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		pollsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oppscan_polls_total",
				Help: "Total status polls by observed scan state",
			},
			[]string{"state"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oppscan_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		outcomesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oppscan_scan_outcomes_total",
				Help: "Terminal scan outcomes by fallback usage",
			},
			[]string{"fallback"},
		),
		opportunities: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "oppscan_opportunities_per_scan",
				Help:    "Opportunities returned per completed scan",
				Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
			},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "oppscan_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordPoll records one status poll and the state it observed.
func (r *Recorder) RecordPoll(state string) {
	r.pollsTotal.WithLabelValues(state).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordScanOutcome records a terminal scan outcome.
func (r *Recorder) RecordScanOutcome(opportunities int, fallback bool) {
	r.outcomesTotal.WithLabelValues(strconv.FormatBool(fallback)).Inc()
	r.opportunities.Observe(float64(opportunities))
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
