// Package logging provides structured logging for GaragePi.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the controller.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "text"     # json, text
//	  output: "stdout"   # stdout, stderr, file
//	  file: "/var/log/garagepi.log"
//
// # Usage
//
//	logger, closeLog, err := logging.Open(cfg.Logging, version)
//	defer closeLog()
//	logger.Info("door state changed", "door", 1, "state", "open")
//
// Never log broker passwords.
package logging
