package leaderboardmetrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "srl"

// PrometheusMetrics implements LeaderboardMetrics on a Prometheus registry.
type PrometheusMetrics struct {
	attempts     *prometheus.CounterVec
	successes    *prometheus.CounterVec
	failures     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	leaderboards *prometheus.CounterVec
	appended     prometheus.Counter
	closed       prometheus.Counter
	runsFixed    prometheus.Counter
	streaks      prometheus.Counter
}

// NewPrometheusMetrics registers the leaderboard collectors on reg.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	m := &PrometheusMetrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "leaderboard",
			Name:      "operation_attempts_total",
			Help:      "Service operations started.",
		}, []string{"operation", "scope"}),
		successes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "leaderboard",
			Name:      "operation_success_total",
			Help:      "Service operations that completed.",
		}, []string{"operation", "scope"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "leaderboard",
			Name:      "operation_failures_total",
			Help:      "Service operations that failed.",
		}, []string{"operation", "scope"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "leaderboard",
			Name:      "operation_duration_seconds",
			Help:      "Service operation latency.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 4, 9),
		}, []string{"operation"}),
		leaderboards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run_history",
			Name:      "leaderboards_processed_total",
			Help:      "Leaderboards handled by a build, by outcome.",
		}, []string{"outcome"}),
		appended: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run_history",
			Name:      "entries_appended_total",
			Help:      "History entries inserted.",
		}),
		closed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run_history",
			Name:      "entries_closed_total",
			Help:      "History entries closed.",
		}),
		runsFixed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run_history",
			Name:      "runs_fixed_total",
			Help:      "Runs whose stored points or bonus were corrected.",
		}),
		streaks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "streaks",
			Name:      "awarded_total",
			Help:      "World-record streak bonuses awarded.",
		}),
	}

	reg.MustRegister(
		m.attempts, m.successes, m.failures, m.duration,
		m.leaderboards, m.appended, m.closed, m.runsFixed, m.streaks,
	)
	return m
}

func (m *PrometheusMetrics) RecordOperationAttempt(_ context.Context, operation, scope string) {
	m.attempts.WithLabelValues(operation, scope).Inc()
}

func (m *PrometheusMetrics) RecordOperationSuccess(_ context.Context, operation, scope string) {
	m.successes.WithLabelValues(operation, scope).Inc()
}

func (m *PrometheusMetrics) RecordOperationFailure(_ context.Context, operation, scope string) {
	m.failures.WithLabelValues(operation, scope).Inc()
}

func (m *PrometheusMetrics) RecordOperationDuration(_ context.Context, operation string, duration time.Duration) {
	m.duration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) RecordLeaderboardProcessed(_ context.Context, outcome string) {
	m.leaderboards.WithLabelValues(outcome).Inc()
}

func (m *PrometheusMetrics) RecordHistoryAppended(_ context.Context, count int) {
	m.appended.Add(float64(count))
}

func (m *PrometheusMetrics) RecordHistoryClosed(_ context.Context, count int) {
	m.closed.Add(float64(count))
}

func (m *PrometheusMetrics) RecordRunsFixed(_ context.Context, count int) {
	m.runsFixed.Add(float64(count))
}

func (m *PrometheusMetrics) RecordStreaksAwarded(_ context.Context, count int) {
	m.streaks.Add(float64(count))
}
