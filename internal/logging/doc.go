// Package logging provides structured logging for smtpsync.
//
// This package wraps a zap logger with a handful of convenience functions
// used by the session client and the CLI. Logging is silent by default so
// the curated CLI output stays clean; set SMTPSYNC_LOG_LEVEL (or pass
// --log-level) to "debug", "info", "warn" or "error" to enable it.
//
// # Structured Logging
//
//	logging.Info("SMTP configuration fetched",
//	    zap.String("path", "/api/v1/smtp"),
//	    zap.Int("status", 200),
//	)
//
// # HTTP Exchange Logging
//
//	logging.LogHTTPRequest(method, path, req.Header)
//	logging.LogHTTPResponse(method, path, status, size)
//
// Header values for authentication headers are masked before they reach the
// encoder. Request and response bodies are never logged, because they may
// carry the SMTP password or the device login password.
//
// # Run Correlation
//
// WithRunID attaches a random run identifier to every subsequent entry, so
// the lines of one CLI invocation can be grouped:
//
//	runID := logging.WithRunID()
//	defer logging.Sync()
package logging
