package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Job run outcomes used as the status label.
const (
	JobStatusSuccess = "success"
	JobStatusFailure = "failure"
	JobStatusSkipped = "skipped"
)

var (
	// JobRuns counts job runs by job and outcome.
	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_job_runs_total",
		Help: "Total number of engagement job runs by outcome",
	}, []string{"job", "status"})

	// JobDuration records wall-clock job duration.
	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pulse_job_duration_seconds",
		Help:    "Engagement job duration in seconds",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"job"})

	// RecordsUpdated counts records written back by a job.
	RecordsUpdated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_job_records_updated_total",
		Help: "Total number of records persisted by engagement jobs",
	}, []string{"job"})

	// RecordUpdateFailures counts records a job could not persist.
	RecordUpdateFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_job_record_update_failures_total",
		Help: "Total number of records engagement jobs failed to persist",
	}, []string{"job"})

	// StageAffected records how many users each daily stage touched in the last run.
	StageAffected = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pulse_daily_stage_affected_users",
		Help: "Users affected by each daily stage in the most recent run",
	}, []string{"stage"})

	// TopFanThreshold is the XP needed for the Top Fan badge after the last daily run.
	TopFanThreshold = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pulse_top_fan_min_xp",
		Help: "XP threshold for the Top Fan badge computed by the most recent daily run",
	})

	// RedisErrors counts Redis errors by command.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_redis_errors_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pulse_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}

// ObserveJob records the outcome and duration of one job run.
func ObserveJob(job, status string, elapsed time.Duration) {
	JobRuns.WithLabelValues(job, status).Inc()
	if status != JobStatusSkipped {
		JobDuration.WithLabelValues(job).Observe(elapsed.Seconds())
	}
}
