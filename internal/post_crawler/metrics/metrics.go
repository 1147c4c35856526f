// Package metrics exposes Prometheus collectors for the crawler service.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result labels.
const (
	ResultCreated  = "created"
	ResultExisting = "existing"
	ResultFailed   = "failed"
)

type Metrics struct {
	summaries     *prometheus.CounterVec
	details       *prometheus.CounterVec
	walkTicks     *prometheus.CounterVec
	fetches       *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
}

// New registers the crawler collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		summaries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "post_crawler_summaries_total",
			Help: "Summary ingestions, labeled by result.",
		}, []string{"result"}),
		details: f.NewCounterVec(prometheus.CounterOpts{
			Name: "post_crawler_details_total",
			Help: "Detail ingestions, labeled by result.",
		}, []string{"result"}),
		walkTicks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "post_crawler_walk_ticks_total",
			Help: "Scheduler ticks, labeled by walk and outcome.",
		}, []string{"walk", "outcome"}),
		fetches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "post_crawler_fetches_total",
			Help: "Page fetches, labeled by page kind and status.",
		}, []string{"kind", "status"}),
		fetchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "post_crawler_fetch_duration_seconds",
			Help:    "Histogram of page fetch latencies, labeled by page kind.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"kind"}),
	}
}

func (m *Metrics) Summary(result string) {
	if m == nil {
		return
	}
	m.summaries.WithLabelValues(result).Inc()
}

func (m *Metrics) Detail(result string) {
	if m == nil {
		return
	}
	m.details.WithLabelValues(result).Inc()
}

// WalkTick counts one scheduler tick of walk ending in outcome.
func (m *Metrics) WalkTick(walk, outcome string) {
	if m == nil {
		return
	}
	m.walkTicks.WithLabelValues(walk, outcome).Inc()
}

// ObserveFetch records a fetch of the given page kind.
func (m *Metrics) ObserveFetch(kind string, err error, d time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.fetches.WithLabelValues(kind, status).Inc()
	m.fetchDuration.WithLabelValues(kind).Observe(d.Seconds())
}
