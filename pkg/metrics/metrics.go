package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Detection loop metrics
var (
	// ScansTotal counts detection-loop iterations by loop name and outcome
	ScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proxywatch_scans_total",
			Help: "Detection loop iterations by loop and status",
		},
		[]string{"loop", "status"},
	)

	// EventsScanned counts telemetry events examined per loop
	EventsScanned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proxywatch_events_scanned_total",
			Help: "Telemetry events examined by detection loop",
		},
		[]string{"loop"},
	)

	// AlertsSent counts alerts delivered by category
	AlertsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proxywatch_alerts_sent_total",
			Help: "Alerts broadcast to subscribers by category",
		},
		[]string{"category"},
	)

	// AlertsSuppressed counts alerts withheld by the cooldown gate or the
	// broadcast rate limiter
	AlertsSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proxywatch_alerts_suppressed_total",
			Help: "Alerts suppressed by reason (cooldown, rate_limit)",
		},
		[]string{"reason"},
	)

	// MalformedRecords counts skipped events with unparseable timestamps
	MalformedRecords = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "proxywatch_malformed_records_total",
			Help: "Telemetry events skipped due to malformed timestamps",
		},
	)
)

// Broadcast hub metrics
var (
	// HubSubscribers tracks active subscribers per hub
	HubSubscribers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "proxywatch_hub_subscribers",
			Help: "Active subscribers per broadcast hub",
		},
		[]string{"hub"},
	)

	// BroadcastFailures counts subscriber send failures per hub
	BroadcastFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proxywatch_broadcast_failures_total",
			Help: "Subscriber send failures per broadcast hub",
		},
		[]string{"hub"},
	)
)

// Liveness metrics
var (
	// ClientsOnline tracks the number of clients currently classified online
	ClientsOnline = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "proxywatch_clients_online",
			Help: "Clients currently classified as online",
		},
	)

	// StatusTransitions counts liveness transitions by direction
	StatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proxywatch_status_transitions_total",
			Help: "Client liveness transitions by new status",
		},
		[]string{"status"},
	)
)
