// Package logging provides structured logging for r2upnpav.
//
// This package wraps Go's standard log/slog package so every component logs
// with the same handler and default fields.
//
// # Features
//
//   - Text output for terminals and journald, JSON for log shippers
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Thread-safe for concurrent use
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "text"     # text, json
//	  output: "stderr"   # stderr, stdout
//
// The --verbose flag forces debug level, which also traces every SOAP
// action and LastChange notification.
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Component("lirc").Info("lircd connected", "socket", socket)
package logging
