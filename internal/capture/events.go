package capture

// EventID identifies an asynchronous session event reported by the capture layer.
type EventID int

// Session events, in the order the vendor SDK declares them.
const (
	EventUnknown EventID = iota
	EventConnected
	EventBooting
	EventReady
	EventDisconnected
	EventError
	EventUsbError
	EventLowPowerMode
	EventRecoveryMode
	EventProdDataCorrupt
	EventCalibrationMissingOrInvalid
	EventFWVersionMismatch
	EventFWUpdate
	EventFWUpdateComplete
	EventFWUpdateFailed
	EventFWCorrupt
	EventEndOfFile
	EventUSBDriverNotInstalled
	EventStreaming
	EventDetected
)

var eventNames = [...]string{
	EventUnknown:                     "unknown",
	EventConnected:                   "connected",
	EventBooting:                     "booting",
	EventReady:                       "ready",
	EventDisconnected:                "disconnected",
	EventError:                       "error",
	EventUsbError:                    "usb_error",
	EventLowPowerMode:                "low_power_mode",
	EventRecoveryMode:                "recovery_mode",
	EventProdDataCorrupt:             "prod_data_corrupt",
	EventCalibrationMissingOrInvalid: "calibration_missing_or_invalid",
	EventFWVersionMismatch:           "fw_version_mismatch",
	EventFWUpdate:                    "fw_update",
	EventFWUpdateComplete:            "fw_update_complete",
	EventFWUpdateFailed:              "fw_update_failed",
	EventFWCorrupt:                   "fw_corrupt",
	EventEndOfFile:                   "end_of_file",
	EventUSBDriverNotInstalled:       "usb_driver_not_installed",
	EventStreaming:                   "streaming",
	EventDetected:                    "detected",
}

// String returns the stable snake_case name used in logs, MQTT topics and the API.
func (e EventID) String() string {
	if e < 0 || int(e) >= len(eventNames) {
		return eventNames[EventUnknown]
	}
	return eventNames[e]
}

// MarshalText implements encoding.TextMarshaler.
func (e EventID) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// ParseEventID returns the event with the given name, or EventUnknown.
func ParseEventID(name string) EventID {
	for i, n := range eventNames {
		if n == name {
			return EventID(i)
		}
	}
	return EventUnknown
}

// Terminal reports whether the event leaves the physical unit unusable
// until it is serviced. Terminal events never crash the process.
func (e EventID) Terminal() bool {
	switch e { //nolint:exhaustive // only terminal events are listed
	case EventFWCorrupt, EventProdDataCorrupt, EventCalibrationMissingOrInvalid, EventFWVersionMismatch:
		return true
	default:
		return false
	}
}

// IsError reports whether the event signals a device failure.
func (e EventID) IsError() bool {
	switch e { //nolint:exhaustive // only error-class events are listed
	case EventError, EventUsbError, EventUSBDriverNotInstalled, EventFWUpdateFailed:
		return true
	default:
		return e.Terminal()
	}
}

// SampleType identifies the payload carried by a Sample.
type SampleType int

// Sample types delivered through Delegate.OnSample.
const (
	SampleInvalid SampleType = iota
	SampleAccelerometerEvent
	SampleGyroscopeEvent
	SampleInfraredFrame
	SampleDepthFrame
	SampleVisibleFrame
	SampleExternalColorFrame
	SampleSynchronizedFrames
	SampleMultiCameraColorFrame
)

var sampleNames = [...]string{
	SampleInvalid:               "invalid",
	SampleAccelerometerEvent:    "accelerometer",
	SampleGyroscopeEvent:        "gyroscope",
	SampleInfraredFrame:         "infrared",
	SampleDepthFrame:            "depth",
	SampleVisibleFrame:          "visible",
	SampleExternalColorFrame:    "external_color",
	SampleSynchronizedFrames:    "synchronized",
	SampleMultiCameraColorFrame: "multi_camera_color",
}

// String returns the sample type name.
func (t SampleType) String() string {
	if t < 0 || int(t) >= len(sampleNames) {
		return sampleNames[SampleInvalid]
	}
	return sampleNames[t]
}
