package mqtt

import "fmt"

// DefaultTopicPrefix is used when the configuration leaves topic_prefix empty.
const DefaultTopicPrefix = "depthcore"

// Topics builds depthcore MQTT topics under a configurable prefix.
//
// Sensor topics are keyed by hardware serial:
//
//	topics := mqtt.NewTopics("depthcore")
//	topics.SensorState("ST-0042")   // depthcore/sensor/ST-0042/state
//	topics.Command("ST-0042")       // depthcore/command/ST-0042
type Topics struct {
	Prefix string
}

// NewTopics returns a Topics for prefix, falling back to DefaultTopicPrefix.
func NewTopics(prefix string) Topics {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{Prefix: prefix}
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// SensorState returns the retained lifecycle state topic for a sensor.
//
// Example: depthcore/sensor/ST-0042/state
func (t Topics) SensorState(serial string) string {
	return fmt.Sprintf("%s/sensor/%s/state", t.prefix(), serial)
}

// SensorEvent returns the topic carrying each routed capture event.
//
// Example: depthcore/sensor/ST-0042/event
func (t Topics) SensorEvent(serial string) string {
	return fmt.Sprintf("%s/sensor/%s/event", t.prefix(), serial)
}

// SensorAck returns the topic for command acknowledgements.
//
// Example: depthcore/sensor/ST-0042/ack
func (t Topics) SensorAck(serial string) string {
	return fmt.Sprintf("%s/sensor/%s/ack", t.prefix(), serial)
}

// Command returns the topic on which commands for a sensor arrive.
//
// Example: depthcore/command/ST-0042
func (t Topics) Command(serial string) string {
	return fmt.Sprintf("%s/command/%s", t.prefix(), serial)
}

// BridgeHealth returns the retained health topic for a bridge.
//
// Example: depthcore/bridge/structurecore/health
func (t Topics) BridgeHealth(bridge string) string {
	return fmt.Sprintf("%s/bridge/%s/health", t.prefix(), bridge)
}

// SystemStatus returns the service status topic, also used for the LWT.
//
// Example: depthcore/system/status
func (t Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", t.prefix())
}

// AllCommands matches commands for every sensor.
//
// Pattern: depthcore/command/+
func (t Topics) AllCommands() string {
	return fmt.Sprintf("%s/command/+", t.prefix())
}

// AllSensorStates matches every sensor's state topic.
//
// Pattern: depthcore/sensor/+/state
func (t Topics) AllSensorStates() string {
	return fmt.Sprintf("%s/sensor/+/state", t.prefix())
}

// All matches every depthcore topic. Use with caution.
//
// Pattern: depthcore/#
func (t Topics) All() string {
	return t.prefix() + "/#"
}
