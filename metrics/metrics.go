// Package metrics exposes prometheus instrumentation for the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	JobsCreated   prometheus.Counter
	JobsCompleted prometheus.Counter
	JobsFailed    *prometheus.CounterVec
	JobsActive    prometheus.Gauge
	StageDuration *prometheus.HistogramVec
}

// New registers the pipeline metrics on reg. Tests pass a fresh
// prometheus.NewRegistry to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		JobsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "podlight_jobs_created_total",
			Help: "Jobs created by the upload endpoint.",
		}),
		JobsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "podlight_jobs_completed_total",
			Help: "Jobs that reached the completed state.",
		}),
		JobsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "podlight_jobs_failed_total",
			Help: "Jobs that reached the failed state, by stage.",
		}, []string{"stage"}),
		JobsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "podlight_jobs_active",
			Help: "Jobs currently being processed.",
		}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "podlight_stage_duration_seconds",
			Help:    "Wall-clock duration of pipeline stages.",
			Buckets: prometheus.ExponentialBuckets(0.1, 4, 8),
		}, []string{"stage"}),
	}
}
