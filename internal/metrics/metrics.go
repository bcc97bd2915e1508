package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the acquisition counters exported at /metrics.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	IndexerRequests     *prometheus.CounterVec
	SearchDuration      prometheus.Histogram
	DownloadTransitions *prometheus.CounterVec
	PollCycles          prometheus.Counter
	PollSkipped         prometheus.Counter
	ImportDuration      prometheus.Histogram
}

// New registers the counters with reg. Passing nil creates unregistered collectors.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		IndexerRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nimbus_indexer_requests_total",
			Help: "Indexer requests by indexer and outcome",
		}, []string{"indexer", "outcome"}),
		SearchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "nimbus_search_duration_seconds",
			Help:    "Duration of aggregate searches including pacing waits",
			Buckets: []float64{1, 2, 5, 10, 20, 40, 80},
		}),
		DownloadTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nimbus_download_transitions_total",
			Help: "Download state transitions by resulting status",
		}, []string{"status"}),
		PollCycles: factory.NewCounter(prometheus.CounterOpts{
			Name: "nimbus_poll_cycles_total",
			Help: "Completed orchestrator poll cycles",
		}),
		PollSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "nimbus_poll_skipped_total",
			Help: "Poll ticks skipped because a cycle was still running",
		}),
		ImportDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "nimbus_import_duration_seconds",
			Help:    "Duration of import pipeline runs",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// IndexerRequest counts one indexer request outcome
func (m *Metrics) IndexerRequest(indexer, outcome string) {
	if m == nil {
		return
	}
	m.IndexerRequests.WithLabelValues(indexer, outcome).Inc()
}

// ObserveSearch records an aggregate search duration in seconds
func (m *Metrics) ObserveSearch(seconds float64) {
	if m == nil {
		return
	}
	m.SearchDuration.Observe(seconds)
}

// Transition counts a download entering status
func (m *Metrics) Transition(status string) {
	if m == nil {
		return
	}
	m.DownloadTransitions.WithLabelValues(status).Inc()
}

// PollCycle counts a finished poll
func (m *Metrics) PollCycle() {
	if m == nil {
		return
	}
	m.PollCycles.Inc()
}

// PollSkip counts a skipped tick
func (m *Metrics) PollSkip() {
	if m == nil {
		return
	}
	m.PollSkipped.Inc()
}

// ObserveImport records an import duration in seconds
func (m *Metrics) ObserveImport(seconds float64) {
	if m == nil {
		return
	}
	m.ImportDuration.Observe(seconds)
}
