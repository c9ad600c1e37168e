// Package metrics declares the Prometheus collectors for the coordinator,
// session, and transport layers, following the
// namespace_subsystem_name convention the teacher backend uses
// (namespace: carcassonne).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveWebSocketConnections tracks the current number of connected sessions.
	ActiveWebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "carcassonne",
		Subsystem: "websocket",
		Name:      "connections_active",
		Help:      "Current number of active WebSocket connections",
	})

	// ActiveRooms tracks the number of live rooms held by the coordinator.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "carcassonne",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of active rooms",
	})

	// PublicRoomsAvailable tracks the size of the matchmaking pool.
	PublicRoomsAvailable = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "carcassonne",
		Subsystem: "room",
		Name:      "public_rooms_available",
		Help:      "Current number of public rooms open to matchmaking",
	})

	// RoomPlayers tracks player count per room.
	RoomPlayers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "carcassonne",
		Subsystem: "room",
		Name:      "players_count",
		Help:      "Number of players in each room",
	}, []string{"room_id"})

	// CoordinatorRequests tracks total coordinator requests processed, by kind and outcome.
	CoordinatorRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "carcassonne",
		Subsystem: "coordinator",
		Name:      "requests_total",
		Help:      "Total coordinator requests processed",
	}, []string{"request", "outcome"})

	// CoordinatorRequestDuration tracks per-request processing latency.
	CoordinatorRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "carcassonne",
		Subsystem: "coordinator",
		Name:      "request_duration_seconds",
		Help:      "Time spent processing a coordinator request",
		Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1},
	}, []string{"request"})

	// CoordinatorMailboxDepth tracks the number of requests currently queued.
	CoordinatorMailboxDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "carcassonne",
		Subsystem: "coordinator",
		Name:      "mailbox_depth",
		Help:      "Number of requests currently queued in the coordinator inbox",
	})

	// RelayMessages tracks total relay fan-out messages delivered.
	RelayMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "carcassonne",
		Subsystem: "relay",
		Name:      "messages_total",
		Help:      "Total relay messages fanned out to in-game players",
	}, []string{"status"})

	// CircuitBreakerState tracks the events-bus circuit breaker state (0 closed, 1 open, 2 half-open).
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "carcassonne",
		Subsystem: "circuit_breaker",
		Name:      "state",
		Help:      "Current state of the events bus circuit breaker",
	}, []string{"service"})

	// RateLimitExceeded tracks requests rejected by the login rate limiter.
	RateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "carcassonne",
		Subsystem: "rate_limit",
		Name:      "exceeded_total",
		Help:      "Total requests that exceeded the login rate limit",
	}, []string{"reason"})
)
