// Package logging provides structured logging for the AV control core.
//
// This package wraps Go's standard log/slog package so every component logs
// with the same handler, level filtering, and default fields.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text, auto
//	  output: "stdout"   # stdout, stderr, file
//	  file:
//	    path: "./logs/avcontrol.log"
//	    max_size: 50     # MB before rotation
//	    max_backups: 5
//	    max_age: 28      # days
//	    compress: true
//
// File output is rotated by lumberjack. The "auto" format writes text when
// the output is a terminal and JSON otherwise.
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	defer logger.Close()
//	logger.Info("matrix routed", "input", 9, "output", 3)
package logging
