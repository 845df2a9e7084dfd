package influxdb

import "errors"

var (
	// ErrTelemetryDisabled is returned by Connect when influxdb.enabled is false.
	ErrTelemetryDisabled = errors.New("influxdb: telemetry disabled")

	// ErrUnreachable is returned by Connect when the server does not answer
	// a ping or reports itself unhealthy.
	ErrUnreachable = errors.New("influxdb: server unreachable")

	// ErrSinkClosed is returned by HealthCheck after Close.
	ErrSinkClosed = errors.New("influxdb: telemetry sink closed")
)
