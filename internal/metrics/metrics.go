// Package metrics exposes Prometheus collectors for job processing.
package metrics

import (
	"net/http"
	"time"

	"github.com/JonMunkholm/moodlelogsmart/internal/classify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "moodlelogsmart"

// Metrics holds the collectors. Create one per registry.
type Metrics struct {
	registry *prometheus.Registry

	jobsSubmitted    prometheus.Counter
	jobsFinished     *prometheus.CounterVec
	pipelineDuration prometheus.Histogram
	eventsClassified *prometheus.CounterVec
	eventsDropped    prometheus.Counter
}

// New registers the collectors, plus Go and process collectors, on a fresh
// registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		jobsSubmitted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_submitted_total",
			Help:      "Uploads accepted for processing",
		}),
		jobsFinished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_finished_total",
			Help:      "Jobs that reached a terminal state",
		}, []string{"status"}),
		pipelineDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_duration_seconds",
			Help:      "Wall time of a pipeline run",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		}),
		eventsClassified: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_classified_total",
			Help:      "Classified events by Bloom level",
		}, []string{"bloom_level"}),
		eventsDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Rows removed by the cleaning filters",
		}),
	}
}

// JobSubmitted counts an accepted upload.
func (m *Metrics) JobSubmitted() {
	m.jobsSubmitted.Inc()
}

// JobFinished counts a terminal job and observes its duration.
func (m *Metrics) JobFinished(status string, d time.Duration) {
	m.jobsFinished.WithLabelValues(status).Inc()
	m.pipelineDuration.Observe(d.Seconds())
}

// EventsProcessed adds a completed job's classification counts.
func (m *Metrics) EventsProcessed(stats classify.Stats, dropped int) {
	for level, n := range stats.BloomDistribution {
		m.eventsClassified.WithLabelValues(level).Add(float64(n))
	}
	if dropped > 0 {
		m.eventsDropped.Add(float64(dropped))
	}
}

// Registry returns the registry backing the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
