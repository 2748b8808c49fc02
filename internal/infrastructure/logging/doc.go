// Package logging provides structured logging for the specification store.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across every component.
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
//	repo.SetLogger(logger.With("component", "device"))
//	logger.Error("store unavailable", "error", err)
//
// Never log broker passwords or InfluxDB tokens.
package logging
