package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the quiz-game platform.
//
// Naming convention: namespace_subsystem_name
// - namespace: quizbox
// - subsystem: websocket, room, cms, blob
//
// Gauges track current state, counters cumulative events, histograms
// latency distributions.

var (
	// ActiveSockets tracks the current number of live websocket connections.
	ActiveSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "quizbox",
		Subsystem: "websocket",
		Name:      "connections_active",
		Help:      "Current number of active WebSocket connections",
	})

	// ActiveRooms tracks the current number of live rooms.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "quizbox",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of active rooms",
	})

	// ReapedRooms counts rooms removed by the idle reaper.
	ReapedRooms = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quizbox",
		Subsystem: "room",
		Name:      "rooms_reaped_total",
		Help:      "Total rooms removed due to inactivity",
	})

	// CommandEvents tracks commands dispatched on room endpoints.
	CommandEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quizbox",
		Subsystem: "websocket",
		Name:      "commands_total",
		Help:      "Total endpoint commands processed",
	}, []string{"command", "status"})

	// CommandDuration tracks time spent processing endpoint commands.
	CommandDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "quizbox",
		Subsystem: "websocket",
		Name:      "command_processing_seconds",
		Help:      "Time spent processing endpoint commands",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"command"})

	// EpisodeSaves counts debounced episode writes from edit rooms.
	EpisodeSaves = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quizbox",
		Subsystem: "cms",
		Name:      "episode_saves_total",
		Help:      "Total durable episode writes from edit sessions",
	}, []string{"status"})

	// RateLimitExceeded counts requests rejected by a rate limiter.
	RateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quizbox",
		Subsystem: "websocket",
		Name:      "rate_limit_exceeded_total",
		Help:      "Total requests rejected by rate limiting",
	}, []string{"endpoint"})

	// BlobUploads counts blob uploads by outcome.
	BlobUploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quizbox",
		Subsystem: "blob",
		Name:      "uploads_total",
		Help:      "Total blob uploads",
	}, []string{"status"})
)

func IncConnection() {
	ActiveSockets.Inc()
}

func DecConnection() {
	ActiveSockets.Dec()
}
