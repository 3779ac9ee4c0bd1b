// Package logging provides structured logging for the appliance bridge.
//
// It wraps log/slog with the bridge's defaults: JSON or text output, a
// configurable level, and service/version attributes on every entry.
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
//	dev := logger.Component("device").With("device_id", "ac-1")
//	dev.Warn("transform failed", "property", "mode", "error", err)
//
// Never log MQTT passwords or InfluxDB tokens.
package logging
