// Package logging provides structured logging with per-module log level configuration.
//
// # Overview
//
// The logging system uses Go's slog package with automatic output routing:
//   - Logs to systemd journal when available (Linux systems with journald)
//   - Logs to stdout when a terminal, pipe, or file is connected
//   - Keeps the most recent entries in memory for the HTTP API
//
// # Usage
//
// Initialize the logging system once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",      // Global log level: debug, info, warn, error
//		Format: "text",      // Output format: text or json
//		Modules: map[string]string{
//			"query":     "debug", // Per-module overrides
//			"minecraft": "warn",  // Server console echo
//		},
//	})
//
// Get a logger for your module:
//
//	logger := logging.GetLogger("region")
//	logger.Info("Region query complete", "players", 3)
//
// Calling Initialize again (for example after the config file changed)
// updates the level of every logger already handed out.
//
// # Viewing Logs
//
//	journalctl -t candy-tools                   # All logs
//	journalctl -t candy-tools -f                # Follow live
//	journalctl -t candy-tools MODULE=minecraft  # Server console only
//	journalctl -t candy-tools QUERY_ID=q_1a2b3c4d
//
// # Configuration
//
//	[logging]
//	level = "info"
//	format = "text"
//	history_size = 1000
//
//	[logging.modules]
//	query = "debug"
//	minecraft = "warn"
package logging
