package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the game-companion gateway.
//
// Naming convention: namespace_subsystem_name
// - namespace: game_companion (application-level grouping)
// - subsystem: room, lock, event_bus, result (feature-level grouping)
// - name: specific metric (rooms_active, acquire_total, etc.)

var (
	// ActiveRooms tracks the current number of rooms with at least one present user.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "game_companion",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of rooms with at least one present user",
	})

	// RoomOccupancy tracks the number of seated users per room.
	RoomOccupancy = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "game_companion",
		Subsystem: "room",
		Name:      "seated_count",
		Help:      "Number of seated users in each room",
	}, []string{"room_id"})

	// RoomTransitions tracks the total number of room state transitions processed.
	RoomTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "game_companion",
		Subsystem: "room",
		Name:      "transitions_total",
		Help:      "Total room lifecycle transitions processed",
	}, []string{"transition", "outcome"})

	// RoomTransitionDuration tracks the time spent executing a room transition transaction.
	RoomTransitionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "game_companion",
		Subsystem: "room",
		Name:      "transition_duration_seconds",
		Help:      "Time spent executing a room lifecycle transition",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"transition"})

	// LockAcquireTotal tracks the total number of distributed lock acquire attempts.
	LockAcquireTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "game_companion",
		Subsystem: "lock",
		Name:      "acquire_total",
		Help:      "Total distributed lock acquire attempts",
	}, []string{"resource", "status"})

	// CircuitBreakerState tracks the current state of a named circuit breaker.
	// 0: Closed (Healthy), 1: Open (Failure), 2: Half-Open (Recovering)
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "game_companion",
		Subsystem: "circuit_breaker",
		Name:      "state",
		Help:      "Current state of the circuit breaker (0: Closed, 1: Open, 2: Half-Open)",
	}, []string{"service"})

	// CircuitBreakerFailures tracks the total number of requests rejected by a circuit breaker.
	CircuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "game_companion",
		Subsystem: "circuit_breaker",
		Name:      "failures_total",
		Help:      "Total requests rejected by the circuit breaker",
	}, []string{"service"})

	// RateLimitExceeded tracks the total number of requests that exceeded the rate limit.
	RateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "game_companion",
		Subsystem: "rate_limit",
		Name:      "exceeded_total",
		Help:      "Total number of requests that exceeded the rate limit",
	}, []string{"endpoint", "reason"})

	// RateLimitRequests tracks the total number of requests checked against the rate limiter.
	RateLimitRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "game_companion",
		Subsystem: "rate_limit",
		Name:      "requests_total",
		Help:      "Total number of requests checked against the rate limiter",
	}, []string{"endpoint"})

	// EventBusPublishTotal tracks the total number of event bus publish attempts.
	EventBusPublishTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "game_companion",
		Subsystem: "event_bus",
		Name:      "publish_total",
		Help:      "Total event bus publish attempts",
	}, []string{"topic", "status"})

	// EventBusPublishDuration tracks the duration of event bus publish calls.
	EventBusPublishDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "game_companion",
		Subsystem: "event_bus",
		Name:      "publish_duration_seconds",
		Help:      "Duration of event bus publish calls",
		Buckets:   prometheus.DefBuckets,
	}, []string{"topic"})

	// ResultIngestTotal tracks the total number of game result ingestion attempts.
	ResultIngestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "game_companion",
		Subsystem: "result",
		Name:      "ingest_total",
		Help:      "Total game result ingestion attempts",
	}, []string{"status"})

	// MongoOperationsTotal tracks the total number of Mongo operations.
	MongoOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "game_companion",
		Subsystem: "mongo",
		Name:      "operations_total",
		Help:      "Total number of Mongo operations",
	}, []string{"operation", "status"})

	// MongoOperationDuration tracks the duration of Mongo operations.
	MongoOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "game_companion",
		Subsystem: "mongo",
		Name:      "operation_duration_seconds",
		Help:      "Duration of Mongo operations",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	// RedisOperationsTotal tracks the total number of Redis operations.
	RedisOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "game_companion",
		Subsystem: "redis",
		Name:      "operations_total",
		Help:      "Total number of Redis operations",
	}, []string{"operation", "status"})

	// RedisOperationDuration tracks the duration of Redis operations.
	RedisOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "game_companion",
		Subsystem: "redis",
		Name:      "operation_duration_seconds",
		Help:      "Duration of Redis operations",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	// BackgroundTasksScheduled tracks the total number of delayed background tasks scheduled.
	BackgroundTasksScheduled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "game_companion",
		Subsystem: "background",
		Name:      "scheduled_total",
		Help:      "Total delayed background tasks scheduled",
	}, []string{"task"})

	// BackgroundTasksFired tracks the total number of delayed background tasks that actually fired.
	BackgroundTasksFired = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "game_companion",
		Subsystem: "background",
		Name:      "fired_total",
		Help:      "Total delayed background tasks that fired without being superseded",
	}, []string{"task"})
)

func IncRoomActive() {
	ActiveRooms.Inc()
}

func DecRoomActive() {
	ActiveRooms.Dec()
}
