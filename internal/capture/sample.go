package capture

import "time"

// Vec3 is a three-axis IMU reading.
type Vec3 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

// Intrinsics describes the pinhole model of the depth camera.
type Intrinsics struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Fx     float64 `json:"fx"`
	Fy     float64 `json:"fy"`
	Cx     float64 `json:"cx"`
	Cy     float64 `json:"cy"`
	K1     float64 `json:"k1"`
	K2     float64 `json:"k2"`
	K3     float64 `json:"k3"`
	P1     float64 `json:"p1"`
	P2     float64 `json:"p2"`
}

// DepthFrame is one depth image in millimetres. Zero or NaN means no reading.
type DepthFrame struct {
	Width       int
	Height      int
	Millimeters []float32
	Intrinsics  Intrinsics
	Timestamp   time.Time
	Valid       bool
}

// InfraredFrame is one 16-bit infrared image. When both cameras are enabled
// the frames are packed side by side.
type InfraredFrame struct {
	Width     int
	Height    int
	Data      []uint16
	Timestamp time.Time
	Valid     bool
}

// VisibleFrame is one RGB8 colour image.
type VisibleFrame struct {
	Width     int
	Height    int
	RGB       []uint8
	Timestamp time.Time
	Valid     bool
}

// IMUEvent is one accelerometer or gyroscope reading.
type IMUEvent struct {
	Value     Vec3
	Timestamp time.Time
	Valid     bool
}

// Sample is a tagged union of everything a session can deliver. Only the
// parts implied by Type are meaningful, and each of those carries its own
// Valid flag. A SynchronizedFrames sample may carry any subset of Depth,
// Infrared and Visible.
//
// The layer hands ownership of the pixel slices to the receiver and must not
// reuse them after OnSample returns.
type Sample struct {
	Type          SampleType
	Depth         DepthFrame
	Infrared      InfraredFrame
	Visible       VisibleFrame
	Accelerometer IMUEvent
	Gyroscope     IMUEvent
}

// FirmwareVersion is a reported firmware version triple.
type FirmwareVersion struct {
	Valid    bool `json:"valid"`
	Major    int  `json:"major"`
	Minor    int  `json:"minor"`
	Revision int  `json:"revision"`
}

// UnknownSerial is the serial reported by a session that has not yet identified itself.
const UnknownSerial = "unknown"

// SensorInfo describes the physical unit behind a session.
type SensorInfo struct {
	SerialNumber   string          `json:"serial_number"`
	DriverFirmware FirmwareVersion `json:"driver_firmware"`
	SensorFirmware FirmwareVersion `json:"sensor_firmware"`
	Temperature    float32         `json:"temperature"`
}

// Identified reports whether the serial number is usable as a routing key.
func (i SensorInfo) Identified() bool {
	return IsKnownSerial(i.SerialNumber)
}

// IsKnownSerial reports whether a serial is neither empty nor UnknownSerial.
func IsKnownSerial(serial string) bool {
	return serial != "" && serial != UnknownSerial
}
