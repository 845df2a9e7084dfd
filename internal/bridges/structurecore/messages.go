package structurecore

import (
	"time"

	"github.com/nerrad567/depthcore/internal/structure"
)

// BridgeName identifies this bridge in health topics and messages.
const BridgeName = "structurecore"

// Command names accepted on {prefix}/command/{serial}.
const (
	CommandStart       = "start"
	CommandStop        = "stop"
	CommandReboot      = "reboot"
	CommandSetExposure = "set_exposure"
)

// CommandMessage is a remote control request for one sensor.
type CommandMessage struct {
	// ID correlates the command with its ack. Filled with a UUID when empty.
	ID string `json:"id,omitempty"`

	// Command is one of start, stop, reboot or set_exposure.
	Command string `json:"command"`

	// TimeoutMS bounds how long start waits for readiness. Zero defers the
	// start until the sensor reports Ready.
	TimeoutMS int `json:"timeout_ms,omitempty"`

	// Exposure (seconds) and Gain are required by set_exposure.
	Exposure *float32 `json:"exposure,omitempty"`
	Gain     *float32 `json:"gain,omitempty"`

	// Visible targets the visible camera instead of the infrared pair.
	Visible bool `json:"visible,omitempty"`
}

// AckStatus is the outcome of a command.
type AckStatus string

// Ack statuses.
const (
	AckAccepted AckStatus = "accepted"
	AckFailed   AckStatus = "failed"
)

// AckMessage is published to {prefix}/sensor/{serial}/ack.
type AckMessage struct {
	ID        string    `json:"id"`
	Serial    string    `json:"serial"`
	Command   string    `json:"command"`
	Status    AckStatus `json:"status"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// StateMessage is the retained payload on {prefix}/sensor/{serial}/state.
type StateMessage struct {
	Serial    string    `json:"serial"`
	State     string    `json:"state"`
	Ready     bool      `json:"ready"`
	Streaming bool      `json:"streaming"`
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	Attached  bool      `json:"attached"`
	SessionID uint64    `json:"session_id,omitempty"`
	Terminal  bool      `json:"terminal,omitempty"`
}

// EventMessage is published to {prefix}/sensor/{serial}/event.
type EventMessage struct {
	Serial    string    `json:"serial"`
	Event     string    `json:"event"`
	State     string    `json:"state"`
	Terminal  bool      `json:"terminal"`
	Attached  bool      `json:"attached"`
	Timestamp time.Time `json:"timestamp"`
}

// stateFromNotification builds the state payload for a routed event.
func stateFromNotification(n structure.Notification) StateMessage {
	state := "unattached"
	if n.Attached {
		state = n.State.String()
	}
	return StateMessage{
		Serial:    n.Serial,
		State:     state,
		Ready:     n.Ready,
		Streaming: n.Streaming,
		Event:     n.Event.String(),
		Timestamp: n.Time,
		Attached:  n.Attached,
		SessionID: uint64(n.SessionID),
		Terminal:  n.Terminal,
	}
}

func eventFromState(s StateMessage) EventMessage {
	return EventMessage{
		Serial:    s.Serial,
		Event:     s.Event,
		State:     s.State,
		Terminal:  s.Terminal,
		Attached:  s.Attached,
		Timestamp: s.Timestamp,
	}
}

// HealthStatus is the bridge's operational status.
type HealthStatus string

// Health statuses.
const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthOffline  HealthStatus = "offline"
	HealthStarting HealthStatus = "starting"
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage is the retained payload on the bridge health topic.
type HealthMessage struct {
	Bridge        string           `json:"bridge"`
	Timestamp     time.Time        `json:"timestamp"`
	Status        HealthStatus     `json:"status"`
	Version       string           `json:"version,omitempty"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Sensors       int              `json:"sensors"`
	Statistics    BridgeStatistics `json:"statistics"`
	Reason        string           `json:"reason,omitempty"`
}

// BridgeStatistics counts bridge traffic since start.
type BridgeStatistics struct {
	EventsPublished  uint64 `json:"events_published"`
	EventsDropped    uint64 `json:"events_dropped"`
	CommandsReceived uint64 `json:"commands_received"`
	CommandsFailed   uint64 `json:"commands_failed"`
	PublishErrors    uint64 `json:"publish_errors"`
}

// NewLWTMessage returns the offline message the broker publishes if the
// service disappears without a clean shutdown.
func NewLWTMessage() HealthMessage {
	return HealthMessage{
		Bridge: BridgeName,
		Status: HealthOffline,
		Reason: "unexpected_disconnect",
	}
}
