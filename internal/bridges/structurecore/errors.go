package structurecore

import "errors"

// Domain errors for the Structure Core bridge.
var (
	// ErrUnknownCommand is returned for a command name the bridge does not handle.
	ErrUnknownCommand = errors.New("structurecore: unknown command")

	// ErrSensorNotAttached is returned when no Device owns the target serial.
	ErrSensorNotAttached = errors.New("structurecore: no device attached to sensor")

	// ErrInvalidPayload is returned for a command body that is not valid JSON
	// or lacks required parameters.
	ErrInvalidPayload = errors.New("structurecore: invalid command payload")

	// ErrCommandRejected is returned when the device refuses a command.
	ErrCommandRejected = errors.New("structurecore: command rejected by device")
)
