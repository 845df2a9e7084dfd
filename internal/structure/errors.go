package structure

import "errors"

// Domain errors for the structure package.
var (
	// ErrNotInitialised is returned when the manager is used before Initialize.
	ErrNotInitialised = errors.New("structure: manager not initialised")

	// ErrAlreadyInitialised is returned when Initialize is called twice.
	ErrAlreadyInitialised = errors.New("structure: manager already initialised")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("structure: closed")

	// ErrNoSensor is returned when no sensor is available for a device.
	ErrNoSensor = errors.New("structure: no sensor available")

	// ErrDeviceNotFound is returned when no device is attached to a serial.
	ErrDeviceNotFound = errors.New("structure: device not found")
)
