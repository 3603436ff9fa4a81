package core

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetricsRecorder exports operation timings and result counters to
// a prometheus registry.
type PrometheusMetricsRecorder struct {
	durations *prometheus.HistogramVec
	results   *prometheus.CounterVec
}

var _ MetricsRecorder = (*PrometheusMetricsRecorder)(nil)

// NewPrometheusMetricsRecorder registers the collectors with reg; nil reg
// uses the default registerer.
func NewPrometheusMetricsRecorder(reg prometheus.Registerer) *PrometheusMetricsRecorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &PrometheusMetricsRecorder{
		durations: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cellcore",
			Subsystem: "service",
			Name:      "operation_duration_seconds",
			Help:      "Duration of registration, validation, replay, and minification operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		results: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cellcore",
			Subsystem: "service",
			Name:      "operation_results_total",
			Help:      "Operation results by status.",
		}, []string{"operation", "status"}),
	}
}

// ObserveOperation records one timed operation result.
func (r *PrometheusMetricsRecorder) ObserveOperation(op string, duration time.Duration, status string) {
	r.durations.WithLabelValues(op).Observe(duration.Seconds())
	r.results.WithLabelValues(op, status).Inc()
}
