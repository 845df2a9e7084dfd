// Package api implements the HTTP REST API and WebSocket server for depthcore.
//
// This package provides:
//   - REST endpoints for the sensor registry and attached devices
//   - start, stop, reboot and exposure control of attached sensors
//   - a WebSocket hub relaying routed capture events
//   - JWT bearer authentication when a secret is configured
//
// # Architecture
//
// Reads come from the sensor registry merged with live Device state.
// Control requests call the Device directly; exposure and gain are applied
// by the sensor asynchronously, so PUT /exposure answers 202 Accepted and a
// later GET reflects the new values.
//
// # Security
//
// With security.jwt.secret empty every route is open. Otherwise all routes
// except /health and /metrics require an HS256 bearer token. The WebSocket
// endpoint also accepts the token as an access_token query parameter.
package api
