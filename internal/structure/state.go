package structure

// State is the lifecycle state of a sensor as seen by its Device.
//
// Transitions are driven only by session events. Calls such as Start and
// Stop request a transition; the event stream confirms it.
//
//	Unconfigured → Monitoring → {Connected|Error} → Ready → Streaming → Ready → Disconnected
type State int32

// Device states.
const (
	StateUnconfigured State = iota
	StateMonitoring
	StateConnected
	StateReady
	StateStreaming
	StateDisconnected
	StateError
)

var stateNames = [...]string{
	StateUnconfigured: "unconfigured",
	StateMonitoring:   "monitoring",
	StateConnected:    "connected",
	StateReady:        "ready",
	StateStreaming:    "streaming",
	StateDisconnected: "disconnected",
	StateError:        "error",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Active reports whether the sensor has been configured and not yet lost.
func (s State) Active() bool {
	switch s {
	case StateMonitoring, StateConnected, StateReady, StateStreaming:
		return true
	default:
		return false
	}
}
