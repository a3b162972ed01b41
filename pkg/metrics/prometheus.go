package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	fetchTotal      *prometheus.CounterVec
	cacheTotal      *prometheus.CounterVec
	signalsTotal    *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	lastProbability *prometheus.GaugeVec
	latency         *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		fetchTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockpulse_fetch_total",
				Help: "Total number of bar fetch attempts by source and outcome",
			},
			[]string{"source", "outcome"},
		),
		cacheTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockpulse_result_cache_total",
				Help: "Result cache lookups by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		signalsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockpulse_signals_total",
				Help: "Total number of generated signals by action",
			},
			[]string{"signal"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockpulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastProbability: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stockpulse_last_probability",
				Help: "Last predicted up probability for a symbol",
			},
			[]string{"symbol"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stockpulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordFetch records a bar fetch attempt outcome for a source.
func (r *Recorder) RecordFetch(source, outcome string) {
	r.fetchTotal.WithLabelValues(source, outcome).Inc()
}

// RecordCacheLookup records a result cache hit or miss.
func (r *Recorder) RecordCacheLookup(kind, outcome string) {
	r.cacheTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordSignal records a generated trading signal.
func (r *Recorder) RecordSignal(signal string) {
	r.signalsTotal.WithLabelValues(signal).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordProbability records the last predicted probability for a symbol.
func (r *Recorder) RecordProbability(symbol string, p float64) {
	r.lastProbability.WithLabelValues(symbol).Set(p)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
