// Package metrics declares the Prometheus metric contracts for the
// recognition runtime. All metrics are low-cardinality: no profile/user/
// camera ids as label values, only coarse outcome/source/reason strings.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RecognitionTotal counts verification outcomes by result and
	// confidence bucket. Requests rejected before matching carry the
	// rejection reason (short_embedding, mode_disabled, empty_snapshot,
	// no_face_detected) in the bucket label instead.
	RecognitionTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recognition_total",
			Help: "Total recognition verifications by result and confidence bucket",
		},
		[]string{"result", "bucket"},
	)

	// AutoEnrollQueueDropsTotal counts observations dropped because the
	// bounded auto-enroll work queue was full.
	AutoEnrollQueueDropsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "auto_enroll_queue_drops_total",
			Help: "Total auto-enroll candidates dropped due to a full work queue",
		},
	)

	// AutoEnrollTotal counts auto-enroll outcomes by result reason.
	AutoEnrollTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auto_enroll_total",
			Help: "Total auto-enroll attempts by outcome",
		},
		[]string{"result"},
	)

	// RefreshTotal counts snapshot refresh attempts by source (leader,
	// follower) and result (success, failure). A follower's emergency
	// refresh that takes the lock is counted under leader.
	RefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refresh_total",
			Help: "Total snapshot refresh attempts by source and result",
		},
		[]string{"source", "result"},
	)

	// RefreshDurationMs tracks refresh latency by source.
	RefreshDurationMs = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "refresh_duration_ms",
			Help:    "Snapshot refresh duration in milliseconds",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"source"},
	)

	// SupervisorReconnectsTotal counts camera stream reconnect attempts.
	SupervisorReconnectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supervisor_reconnects_total",
			Help: "Total camera supervisor reconnect attempts by reason",
		},
		[]string{"reason"},
	)

	// SupervisorActiveSessions reports the number of live camera sessions.
	SupervisorActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "supervisor_active_sessions",
			Help: "Number of active camera supervisor sessions",
		},
	)

	// IncidentsTotal counts created incidents by severity.
	IncidentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "incidents_total",
			Help: "Total incidents created by severity",
		},
		[]string{"severity"},
	)

	// IncidentDedupeRejectionsTotal counts incident submissions rejected
	// because an equivalent open incident already exists.
	IncidentDedupeRejectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "incident_dedupe_rejections_total",
			Help: "Total incident submissions rejected by dedupe key",
		},
	)
)

// Handler returns the HTTP handler exposing metrics in text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
