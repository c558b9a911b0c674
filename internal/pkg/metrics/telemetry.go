package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	persistTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_telemetry_persist_total",
			Help: "Persistence attempts by sink and terminal outcome",
		},
		[]string{"sink", "outcome"},
	)

	serializationFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "campaign_telemetry_serialization_fallbacks_total",
			Help: "Values replaced with a placeholder during serialization",
		},
	)

	protocolViolations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_telemetry_protocol_violations_total",
			Help: "End calls without an active counterpart",
		},
		[]string{"op"},
	)

	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "campaign_telemetry_active_sessions",
			Help: "Traces started but not yet ended",
		},
	)

	abandonedSessions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "campaign_telemetry_abandoned_sessions_total",
			Help: "Traces evicted after exceeding the session TTL",
		},
	)
)

// RecordPersist records the terminal outcome of one persistence attempt
func RecordPersist(sink, outcome string) {
	persistTotal.WithLabelValues(sink, outcome).Inc()
}

// RecordSerializationFallbacks records replaced values
func RecordSerializationFallbacks(n int) {
	if n > 0 {
		serializationFallbacks.Add(float64(n))
	}
}

// RecordProtocolViolation records an unmatched end call
func RecordProtocolViolation(op string) {
	protocolViolations.WithLabelValues(op).Inc()
}

// SetActiveSessions sets the live session gauge
func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}

// RecordAbandoned records evicted sessions
func RecordAbandoned(n int) {
	if n > 0 {
		abandonedSessions.Add(float64(n))
	}
}
