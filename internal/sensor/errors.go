package sensor

import "errors"

// Domain errors for the sensor package.
var (
	// ErrSensorNotFound is returned when a serial is not in the registry.
	ErrSensorNotFound = errors.New("sensor: not found")

	// ErrInvalidSerial is returned for an empty or "unknown" serial.
	ErrInvalidSerial = errors.New("sensor: invalid serial")
)
