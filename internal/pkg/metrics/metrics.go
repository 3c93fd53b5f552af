package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesReceived counts messages accepted by the exchange, labelled
	// by message type.
	MessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleethub_messages_received_total",
			Help: "Total number of messages accepted by the exchange.",
		},
		[]string{"type"},
	)

	// WaitersWoken counts long-poll waiters released with data.
	WaitersWoken = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleethub_waiters_woken_total",
			Help: "Total number of long-poll waiters released with a payload.",
		},
		[]string{"queue"},
	)

	// WaitTimeouts counts long-poll waits that elapsed without data.
	WaitTimeouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleethub_wait_timeouts_total",
			Help: "Total number of long-poll waits that timed out empty.",
		},
		[]string{"queue"},
	)

	// ConnectedCars tracks the number of currently connected cars.
	ConnectedCars = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleethub_connected_cars",
			Help: "Number of cars currently considered connected.",
		},
	)

	// CommandsInvalidated counts commands deleted by reconnect invalidation.
	CommandsInvalidated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fleethub_commands_invalidated_total",
			Help: "Total number of stale commands deleted on device reconnect.",
		},
	)

	// StoreOpDuration times message store operations.
	StoreOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleethub_store_operation_duration_seconds",
			Help:    "Latency of message store operations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// StoreRestarts counts automatic store restarts after operational errors.
	StoreRestarts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fleethub_store_restarts_total",
			Help: "Total number of automatic message store restarts.",
		},
	)
)
