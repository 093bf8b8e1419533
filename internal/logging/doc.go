// Package logging provides structured logging for the Imaje dialog
// client.
//
// This package wraps zap logger with convenience functions for common
// logging patterns used throughout the client, simulator, and CLI.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Wire-level detail (hex dumps of frames, decode steps)
//   - Info: Normal operations (connections, exchanges, state changes)
//   - Warn: Non-fatal issues (discarded trailing bytes, forced closes)
//   - Error: Fatal issues (startup failures)
//
// # Structured Logging
//
// All log functions use structured fields for queryability:
//
//	logging.Info("Dialog exchange",
//	    zap.String("remote_addr", "192.168.1.1:2101"),
//	    zap.String("command", "start-stop"),
//	    zap.Bool("acknowledged", true),
//	)
//
// # Wire Debugging
//
// LogRawBytes emits both a hex and a printable-ASCII rendering of a
// frame, which is the fastest way to compare live traffic against a
// grammar profile:
//
//	logging.LogRawBytes("request sent", frame)
//
// # Configuration
//
// Logging is silent by default so CLI output stays clean. Set the
// IMAJE_LOG_LEVEL environment variable ("debug", "info", "warn",
// "error") or call Initialize explicitly:
//
//	if err := logging.InitializeFromEnv(); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. The underlying
// zap logger handles synchronization automatically.
package logging
