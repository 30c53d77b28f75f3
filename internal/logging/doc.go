// Package logging provides structured logging for the hearth hub.
//
// This package wraps zap logger with convenience functions for common logging
// patterns used throughout the hub and its command-line tools. It provides
// both general logging functions and specialized functions for hub-specific
// logging needs.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Detailed debugging info (command payloads, preview updates)
//   - Info: Normal operations (connections, flow progress, entry setup)
//   - Warn: Non-fatal issues (connection drops, rejected commands)
//   - Error: Fatal issues (startup failures, persistence errors)
//
// # Structured Logging
//
// All log functions use structured fields for queryability:
//
//	logging.Info("Config entry created",
//	    zap.String("entry_id", entry.EntryID),
//	    zap.String("domain", entry.Domain),
//	    zap.String("title", entry.Title),
//	)
//
// # Specialized Logging
//
// The package provides domain-specific logging functions:
//
//	logging.LogConnection(remoteAddr, "websocket_connected")
//	logging.LogCommand(remoteAddr, msgID, "time_date/start_preview")
//	logging.LogFlowEvent(flowID, "time_date", "created_entry")
//
// # Configuration
//
// Initialize logging at daemon startup:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// CLI tools that want silent-by-default behavior use InitializeFromEnv,
// which only enables output when HEARTH_LOG_LEVEL is set.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. The underlying zap logger
// handles synchronization automatically.
package logging
