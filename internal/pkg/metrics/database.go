// Package metrics provides Prometheus metrics recording for internal packages.
// This package exists to avoid import cycles between the telemetry pipeline,
// the storage sinks and the HTTP middleware.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// sinkWriteDuration tracks storage write duration in seconds
	sinkWriteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "campaign_telemetry_write_duration_seconds",
			Help:    "Telemetry sink write duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"sink"},
	)

	// sinkSlowWrites tracks slow storage writes
	sinkSlowWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_telemetry_slow_writes_total",
			Help: "Total number of slow telemetry sink writes (>100ms)",
		},
		[]string{"sink"},
	)

	// dbSlowQueries tracks slow database queries outside the sinks
	dbSlowQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_db_slow_queries_total",
			Help: "Total number of slow database queries (>100ms)",
		},
		[]string{"database"},
	)
)

// RecordSinkWrite records the duration of one storage write
func RecordSinkWrite(sink string, duration time.Duration) {
	sinkWriteDuration.WithLabelValues(sink).Observe(duration.Seconds())

	if duration > 100*time.Millisecond {
		sinkSlowWrites.WithLabelValues(sink).Inc()
	}
}

// RecordSlowQuery records a slow database query
func RecordSlowQuery(database string) {
	dbSlowQueries.WithLabelValues(database).Inc()
}
