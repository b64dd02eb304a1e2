// Package metrics exposes pipeline counters and gauges in Prometheus format.
// Collection is always on (the counters are cheap); the /metrics listener
// only starts when an address is configured.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Skip reasons for runs_skipped_total.
const (
	SkipUnhealthy = "unhealthy"
	SkipLocked    = "locked"
)

// Metrics holds the pipeline's Prometheus collectors. Use New for the
// default registry or NewWith for an isolated one in tests.
type Metrics struct {
	RunsTotal         prometheus.Counter
	RunsSkipped       *prometheus.CounterVec
	FilesProcessed    prometheus.Counter
	FilesFailed       prometheus.Counter
	FilesSkipped      prometheus.Counter
	RunDuration       prometheus.Histogram
	LastSuccessRate   prometheus.Gauge
	PendingCandidates prometheus.Gauge

	registry *prometheus.Registry
}

// New registers the collectors on a fresh registry and returns them.
func New() *Metrics {
	return NewWith(prometheus.NewRegistry())
}

// NewWith registers the collectors on reg.
func NewWith(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		RunsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "ingestd_runs_total",
			Help: "Completed batch runs.",
		}),
		RunsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ingestd_runs_skipped_total",
			Help: "Cycles skipped before execution, by reason.",
		}, []string{"reason"}),
		FilesProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "ingestd_files_processed_total",
			Help: "Candidates successfully processed by the engine.",
		}),
		FilesFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "ingestd_files_failed_total",
			Help: "Candidates that exhausted their retries.",
		}),
		FilesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "ingestd_files_skipped_total",
			Help: "Candidates skipped as already processed.",
		}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ingestd_run_duration_seconds",
			Help:    "Wall-clock duration of batch runs.",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 1800, 3600},
		}),
		LastSuccessRate: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ingestd_last_success_rate",
			Help: "Success rate of the most recent run (0-1).",
		}),
		PendingCandidates: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ingestd_pending_candidates",
			Help: "Candidates seen by the latest scan but not yet processed.",
		}),
	}
}

// ObserveRun records the aggregate outcome of one run.
func (m *Metrics) ObserveRun(processed, failed, skipped int, rate float64, dur time.Duration) {
	m.RunsTotal.Inc()
	m.FilesProcessed.Add(float64(processed))
	m.FilesFailed.Add(float64(failed))
	m.FilesSkipped.Add(float64(skipped))
	m.LastSuccessRate.Set(rate)
	m.RunDuration.Observe(dur.Seconds())
}

// Serve starts the /metrics HTTP listener on addr. It blocks until the
// listener stops, so callers run it in a goroutine.
func (m *Metrics) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	return http.ListenAndServe(addr, mux)
}
