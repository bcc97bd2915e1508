package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.IndexerRequest("x", "ok")
	m.Transition("failed")
	m.PollCycle()
	m.PollSkip()
	m.ObserveSearch(1)
	m.ObserveImport(1)
}

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IndexerRequest("alpha", "ok")
	m.IndexerRequest("alpha", "ok")
	m.IndexerRequest("alpha", "error")
	m.Transition("completed")
	m.PollSkip()

	if got := testutil.ToFloat64(m.IndexerRequests.WithLabelValues("alpha", "ok")); got != 2 {
		t.Errorf("indexer ok = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.DownloadTransitions.WithLabelValues("completed")); got != 1 {
		t.Errorf("completed transitions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.PollSkipped); got != 1 {
		t.Errorf("skipped = %v, want 1", got)
	}
}
