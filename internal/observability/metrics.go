package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ctfarena_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ctfarena_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// FlagSubmissions counts flag attempts by outcome.
	FlagSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ctfarena_flag_submissions_total",
		Help: "Total flag submissions by result",
	}, []string{"result"})

	// SolvesRecorded counts ledger writes by credit result.
	SolvesRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ctfarena_solves_recorded_total",
		Help: "Total solve ledger writes by result",
	}, []string{"result"})

	// SolveRetries counts transient conflicts retried while recording a solve.
	SolveRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ctfarena_solve_retries_total",
		Help: "Total retried solve ledger writes after transient storage conflicts",
	})

	// UpvotesRecorded counts upvote ledger writes by credit result.
	UpvotesRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ctfarena_upvotes_recorded_total",
		Help: "Total upvote ledger writes by result",
	}, []string{"result"})

	// ReviewDecisions counts submission review transitions by outcome.
	ReviewDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ctfarena_review_decisions_total",
		Help: "Total submission review decisions by outcome",
	}, []string{"outcome"})

	// ModerationDenials counts actions refused by the moderation gate.
	ModerationDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ctfarena_moderation_denials_total",
		Help: "Total moderation gate denials by action",
	}, []string{"action"})

	// LeaderboardCacheResults counts leaderboard cache lookups by hit or miss.
	LeaderboardCacheResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ctfarena_leaderboard_cache_total",
		Help: "Leaderboard cache lookups by result",
	}, []string{"result"})

	// WebSocketConnectionsTotal is the gauge of total WebSocket connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ctfarena_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ctfarena_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
