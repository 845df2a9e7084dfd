// Package structurecore bridges Structure Core sensors to MQTT.
//
// The bridge observes the adapter core's Router and mirrors every routed
// event onto the broker, and it turns remote commands into Device calls.
//
// # Architecture
//
//	┌──────────────────┐  Notification  ┌──────────────┐   MQTT   ┌────────┐
//	│ structure.Router │───────────────►│    Bridge    │◄────────►│ Broker │
//	└──────────────────┘                │  (this pkg)  │          └────────┘
//	┌──────────────────┐   commands     │              │
//	│ structure.Device │◄───────────────│              │
//	└──────────────────┘                └──────────────┘
//
// # Topics
//
// All topics sit under the configured prefix (default "depthcore"):
//
//   - {prefix}/sensor/{serial}/state   retained lifecycle state
//   - {prefix}/sensor/{serial}/event   each routed capture event
//   - {prefix}/sensor/{serial}/ack     command acknowledgements
//   - {prefix}/command/{serial}        inbound commands
//   - {prefix}/bridge/structurecore/health   retained health, LWT offline
//
// # Thread Safety
//
// HandleNotification runs on the Router's dispatch goroutine and never
// blocks; publishing happens on the bridge's own worker. Commands run on
// their own goroutines because Start may wait for readiness.
package structurecore
