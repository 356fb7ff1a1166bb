package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the realtime relay.
//
// Naming convention: namespace_subsystem_name
// - namespace: driftspace (application-level grouping)
// - subsystem: websocket, room, broadcast, voice, matchmaking, persistence
// - name: specific metric (connections_active, frames_total, etc.)
//
// Metric Types:
// - Gauge: Current state (connections, rooms, occupancy, queue depth)
// - Counter: Cumulative events (messages relayed, send failures)
// - Histogram: Latency distributions (message handling time)

var (
	// ActiveConnections tracks the current number of active WebSocket connections (Gauge - current state)
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "driftspace",
		Subsystem: "websocket",
		Name:      "connections_active",
		Help:      "Current number of active WebSocket connections",
	})

	// ActiveRooms tracks the current number of active rooms (Gauge - current state)
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "driftspace",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of active rooms",
	})

	// RoomOccupancy tracks the number of players in each room (GaugeVec with room_id label)
	RoomOccupancy = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "driftspace",
		Subsystem: "room",
		Name:      "occupancy",
		Help:      "Number of players in each room",
	}, []string{"room_id"})

	// MessagesRelayed tracks the total number of game messages handled (CounterVec - cumulative)
	MessagesRelayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "driftspace",
		Subsystem: "websocket",
		Name:      "messages_total",
		Help:      "Total game messages processed",
	}, []string{"message_type", "status"})

	// MessageHandlingDuration tracks the time spent handling inbound messages (HistogramVec - latency distribution)
	MessageHandlingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "driftspace",
		Subsystem: "websocket",
		Name:      "message_handling_seconds",
		Help:      "Time spent handling inbound game messages",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"message_type"})

	// BroadcastsTotal counts room broadcasts initiated (CounterVec - cumulative)
	BroadcastsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "driftspace",
		Subsystem: "broadcast",
		Name:      "fanouts_total",
		Help:      "Total room broadcasts initiated",
	}, []string{"message_type"})

	// BroadcastSendFailures counts per-recipient delivery failures during fan-out
	BroadcastSendFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "driftspace",
		Subsystem: "broadcast",
		Name:      "send_failures_total",
		Help:      "Per-recipient delivery failures during broadcast fan-out",
	})

	// VoiceFramesRelayed counts voice frames fanned out to channel members
	VoiceFramesRelayed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "driftspace",
		Subsystem: "voice",
		Name:      "frames_total",
		Help:      "Total voice frames relayed",
	})

	// VoiceChannelMembers tracks current enrollment per voice channel
	VoiceChannelMembers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "driftspace",
		Subsystem: "voice",
		Name:      "channel_members",
		Help:      "Current number of players enrolled in each voice channel",
	}, []string{"room_id"})

	// MatchmakingQueueDepth tracks queued players per game (GaugeVec)
	MatchmakingQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "driftspace",
		Subsystem: "matchmaking",
		Name:      "queue_depth",
		Help:      "Number of players waiting in each game queue",
	}, []string{"game_id"})

	// MatchmakingCohorts counts cohorts formed per game
	MatchmakingCohorts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "driftspace",
		Subsystem: "matchmaking",
		Name:      "cohorts_total",
		Help:      "Total matchmaking cohorts formed",
	}, []string{"game_id"})

	// RateLimitRequests counts requests that passed a rate limit check
	RateLimitRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "driftspace",
		Subsystem: "ratelimit",
		Name:      "requests_total",
		Help:      "Requests admitted by the rate limiter",
	}, []string{"endpoint"})

	// RateLimitExceeded counts requests rejected by a rate limit
	RateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "driftspace",
		Subsystem: "ratelimit",
		Name:      "exceeded_total",
		Help:      "Requests rejected for exceeding a rate limit",
	}, []string{"endpoint", "limit_type"})

	// SnapshotOperations counts persistence operations by kind and outcome
	SnapshotOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "driftspace",
		Subsystem: "persistence",
		Name:      "snapshots_total",
		Help:      "Total profile snapshot operations",
	}, []string{"operation", "status"})

	// CircuitBreakerState reports the snapshot store breaker state (0=closed, 1=half-open, 2=open)
	CircuitBreakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "driftspace",
		Subsystem: "persistence",
		Name:      "circuit_breaker_state",
		Help:      "Snapshot store circuit breaker state (0=closed, 1=half-open, 2=open)",
	})
)

func IncConnection() {
	ActiveConnections.Inc()
}

func DecConnection() {
	ActiveConnections.Dec()
}
