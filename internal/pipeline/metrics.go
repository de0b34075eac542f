// Package pipeline orchestrates the transcription-to-logs flow: extract,
// normalize and persist.
package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricSubmissions      = "pipeline_submissions_total"
	MetricExtractionErrors = "pipeline_extraction_errors_total"
	MetricLogsGenerated    = "pipeline_logs_generated_total"
	MetricCacheHits        = "pipeline_cache_hits_total"
	MetricPersistLatency   = "pipeline_persist_latency_seconds"
)

// Metrics contains Prometheus metrics for the pipeline.
// All operations are thread-safe.
type Metrics struct {
	submissions      prometheus.Counter
	extractionErrors prometheus.Counter
	logsGenerated    prometheus.Counter
	cacheHits        prometheus.Counter
	persistLatency   prometheus.Histogram
}

// NewMetrics creates and returns a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		submissions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricSubmissions,
			Help: "Total number of transcription submissions",
		}),
		extractionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricExtractionErrors,
			Help: "Total number of submissions that failed during extraction",
		}),
		logsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricLogsGenerated,
			Help: "Total number of activity logs generated from transcriptions",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricCacheHits,
			Help: "Total number of submissions served from the extraction cache",
		}),
		persistLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricPersistLatency,
			Help:    "Histogram of persistence latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncSubmissions increments the submissions counter.
func (m *Metrics) IncSubmissions() {
	m.submissions.Inc()
}

// IncExtractionErrors increments the extraction errors counter.
func (m *Metrics) IncExtractionErrors() {
	m.extractionErrors.Inc()
}

// AddLogsGenerated adds n to the logs generated counter.
func (m *Metrics) AddLogsGenerated(n int) {
	m.logsGenerated.Add(float64(n))
}

// IncCacheHits increments the cache hits counter.
func (m *Metrics) IncCacheHits() {
	m.cacheHits.Inc()
}

// ObservePersistLatency records a persistence latency sample.
func (m *Metrics) ObservePersistLatency(seconds float64) {
	m.persistLatency.Observe(seconds)
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.submissions,
		m.extractionErrors,
		m.logsGenerated,
		m.cacheHits,
		m.persistLatency,
	}
}
