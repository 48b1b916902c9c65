// Package logging provides structured logging with per-module log level configuration.
//
// # Overview
//
// The logging system uses Go's slog package with automatic output routing:
//   - Logs to systemd journal when available (Linux systems with journald)
//   - Logs to stdout when a terminal, pipe, or file is connected
//   - Logs to both when both are available
//   - Always records into an in-memory ring buffer replayed by /api/logs/stream
//
// # Usage
//
// Initialize the logging system once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",      // Global log level: debug, info, warn, error
//		Format: "text",      // Output format: text or json
//		Modules: map[string]string{
//			"streams": "debug",  // Per-module overrides
//			"api":     "warn",
//		},
//	})
//
// Get a logger for your module:
//
//	logger := logging.GetLogger("mymodule")
//	logger.Info("Starting up", "port", 8080)
//	logger.Debug("Details", "config", cfg)
//	logger.Warn("Something unusual", "error", err)
//	logger.Error("Failed", "error", err)
//
// Add contextual attributes:
//
//	logger := logging.GetLogger("streams").With("camera_id", id)
//	logger.Info("Stream started")  // Includes camera_id in all logs
//
// Levels can be changed at runtime, for example on config reload:
//
//	logging.SetLevels(cfg.Logging)
//
// # Log Levels
//
//	debug - Verbose debugging information
//	info  - General operational messages
//	warn  - Warning conditions
//	error - Error conditions
//
// # Output Destinations
//
// The system automatically detects available outputs:
//
//	Journal available + stdout available → MultiHandler (both + buffer)
//	Journal available only              → MultiHandler (journal + buffer)
//	Stdout available only               → MultiHandler (stdout + buffer)
//
// Journal availability is checked via [github.com/coreos/go-systemd/v22/journal.Enabled].
//
// # Viewing Logs
//
// When running as a systemd service or on a system with journald:
//
//	journalctl -t camnode              # All camnode logs
//	journalctl -t camnode -f           # Follow live
//	journalctl -t camnode --since "5m" # Last 5 minutes
//	journalctl -t camnode -p err       # Errors only
//
// Filter by structured fields:
//
//	journalctl -t camnode MODULE=streams
//	journalctl -t camnode CAMERA_ID=front-door
//
// # Configuration
//
// Module levels sit next to the global level in the [logging] table and
// override it for that module only:
//
//	[logging]
//	level = "info"
//	format = "text"
//	streams = "debug"
//	ffmpeg = "warn"
package logging
