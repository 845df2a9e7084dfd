// Package logging provides structured logging for depthcore.
//
// It wraps log/slog with JSON or text output, level filtering and default
// service and version fields.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	mgr := structure.NewManager(layer, structure.WithLogger(logger.Component("capture")))
//	logger.Info("starting service", "sensors", len(cfg.Sensors))
//
// Never log secrets, tokens or passwords.
package logging
