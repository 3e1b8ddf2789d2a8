package models

import (
	"time"
)

// ClientStatus classifies a monitored client's liveness.
type ClientStatus uint8

const (
	StatusOffline ClientStatus = iota
	StatusOnline
)

func (s ClientStatus) String() string {
	switch s {
	case StatusOnline:
		return "Online"
	case StatusOffline:
		return "Offline"
	default:
		return "Unknown"
	}
}

// MessageType identifies the kind of payload pushed to subscribers.
type MessageType string

const (
	MessageAlert   MessageType = "alert"
	MessageWarning MessageType = "warning"
	MessagePing    MessageType = "ping"
	MessagePong    MessageType = "pong"
)

// Fallback values for optional event fields.
const (
	UnknownClient = "Unknown"
	NoDomain      = "N/A"
)

// ProxyEvent is a single telemetry record pulled from the log store.
// Optional fields carry their documented fallbacks instead of empty strings.
type ProxyEvent struct {
	RawTimestamp string `json:"@timestamp"`
	ClientID     string `json:"client_id"`
	ClientName   string `json:"client_name"`
	Domain       string `json:"domain"`
}

// HasDomain reports whether the event carries a real destination domain.
func (e ProxyEvent) HasDomain() bool {
	return e.Domain != "" && e.Domain != NoDomain
}

// Time parses the event timestamp. The store writes RFC3339 timestamps;
// anything else is a malformed record.
func (e ProxyEvent) Time() (time.Time, error) {
	return time.Parse(time.RFC3339, e.RawTimestamp)
}

// AlertMessage is the wire payload pushed on the alert channel.
type AlertMessage struct {
	ID        string      `json:"id,omitempty"`
	Type      MessageType `json:"type"`
	Message   string      `json:"message"`
	Timestamp string      `json:"timestamp"`
}

// StatusUpdate is the wire payload pushed on the status channel when a
// client's liveness changes.
type StatusUpdate struct {
	ClientID string `json:"client_id"`
	Status   string `json:"status"`
}

// Client is one registered endpoint from the roster.
type Client struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// ClientLiveness is the cached liveness state exposed to API consumers.
type ClientLiveness struct {
	ClientID       string       `json:"client_id"`
	Status         ClientStatus `json:"-"`
	StatusText     string       `json:"status"`
	LastObservedAt time.Time    `json:"last_observed_at"`
}

// DetectorStats summarizes detection-loop activity for the stats API.
type DetectorStats struct {
	RestrictedScans   uint64    `json:"restricted_scans"`
	OffHoursScans     uint64    `json:"offhours_scans"`
	LivenessPolls     uint64    `json:"liveness_polls"`
	AlertsSent        uint64    `json:"alerts_sent"`
	AlertsSuppressed  uint64    `json:"alerts_suppressed"`
	MalformedRecords  uint64    `json:"malformed_records"`
	LastAlertAt       time.Time `json:"last_alert_at"`
	RestrictedDomains int       `json:"restricted_domains"`
}

// HourBucket is one hour of aggregated event volume.
type HourBucket struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

// VisualizationSnapshot is the aggregated view streamed to dashboards.
type VisualizationSnapshot struct {
	Type           string         `json:"type"`
	TotalEvents    int            `json:"total_events"`
	EventsByClient map[string]int `json:"events_by_client"`
	EventsByHour   []HourBucket   `json:"events_by_hour"`
	GeneratedAt    time.Time      `json:"generated_at"`
}
