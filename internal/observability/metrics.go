package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keyhouse_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "keyhouse_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// SlotBookings counts booking attempts by outcome (booked, unavailable, error).
	SlotBookings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keyhouse_slot_bookings_total",
		Help: "Slot booking attempts by outcome",
	}, []string{"outcome"})

	// StageTransitions counts application stage changes.
	StageTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keyhouse_stage_transitions_total",
		Help: "Application stage transitions by source and target stage",
	}, []string{"from", "to"})

	// StageGateFailures counts rejected advances by unmet condition.
	StageGateFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keyhouse_stage_gate_failures_total",
		Help: "Advance attempts rejected by an unmet stage gate",
	}, []string{"condition"})

	// ReviewDecisions counts review stage decisions by resource type and decision.
	ReviewDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keyhouse_review_decisions_total",
		Help: "Review stage decisions by resource type and decision",
	}, []string{"resource_type", "decision"})

	// RescheduleResolutions counts resolved reschedule negotiations.
	RescheduleResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keyhouse_reschedule_resolutions_total",
		Help: "Reschedule requests by final status",
	}, []string{"status"})

	// JobRuns counts periodic job runs and the rows each touched.
	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keyhouse_job_runs_total",
		Help: "Periodic job runs by job and result",
	}, []string{"job", "result"})

	// JobAffectedRows counts rows changed by periodic jobs.
	JobAffectedRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keyhouse_job_affected_rows_total",
		Help: "Rows changed by periodic jobs",
	}, []string{"job"})

	// EventsPublished counts outbound event descriptors by type and result.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keyhouse_events_published_total",
		Help: "Domain events handed to the notification channel",
	}, []string{"event_type", "result"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
