package capture

import "errors"

// Domain errors for the capture package.
var (
	// ErrInvalidSettings is returned when Settings validation fails.
	ErrInvalidSettings = errors.New("capture: invalid settings")

	// ErrUnknownDriver is returned when no driver is registered under a name.
	ErrUnknownDriver = errors.New("capture: unknown driver")

	// ErrAlreadyInitialised is returned when Initialize is called twice on a layer.
	ErrAlreadyInitialised = errors.New("capture: layer already initialised")

	// ErrNotInitialised is returned when a layer is used before Initialize.
	ErrNotInitialised = errors.New("capture: layer not initialised")
)
