// Package capture declares the contract between depthcore and a Structure
// Core capture layer.
//
// Nothing in this package talks to hardware. It describes what the adapter
// core (package structure) consumes from the vendor SDK: a Layer that
// enumerates sensors, one Session per sensor, and a Delegate that receives
// events and samples on the layer's own background goroutine.
//
// # Key Types
//
//   - Layer: enumerates sessions, equivalent to the vendor device manager
//   - Session: one physical sensor's streaming pipeline
//   - Delegate: receives OnEvent and OnSample callbacks
//   - Sample: tagged union of depth, infrared, visible and IMU data
//   - Settings: flat configuration snapshot applied at StartMonitoring
//
// # Threading
//
// Delegate callbacks arrive on a goroutine owned by the layer. A Delegate
// must return quickly and must never call back into StopStreaming from the
// callback goroutine, since StopStreaming waits for that goroutine.
//
// # Range Presets
//
// RangeToMM maps each DepthRangeMode preset to its estimated working range
// in millimetres:
//
//	VeryShort     350 -   920
//	Short         410 -  1360
//	Medium        520 -  5230
//	Long          580 -  8000
//	VeryLong      580 - 10000
//	Hybrid        350 - 10000
//	BodyScanning  410 -  1360
package capture
