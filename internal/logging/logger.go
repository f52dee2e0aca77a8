package logging

import (
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger   *zap.Logger
	loggerMu sync.RWMutex
)

// LogLevelEnvVar is the environment variable that controls logging verbosity.
// When unset or empty, logging is silent (no zap output).
// Valid values: "debug", "info", "warn", "error"
const LogLevelEnvVar = "SMTPSYNC_LOG_LEVEL"

// maskedValue replaces secret header values in log output
const maskedValue = "********"

// secretHeaders are never logged in clear text
var secretHeaders = map[string]bool{
	"x-auth-token":  true,
	"refresh-token": true,
	"authorization": true,
	"cookie":        true,
}

// Initialize creates a new logger with the specified level.
// If level is empty, it checks SMTPSYNC_LOG_LEVEL environment variable.
// If neither is set, logging is disabled (silent mode).
func Initialize(level string) error {
	if level == "" {
		level = os.Getenv(LogLevelEnvVar)
	}

	if level == "" {
		setLogger(zap.NewNop())
		return nil
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(ParseLevel(level)),
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	built, err := config.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	setLogger(built)

	return nil
}

// ParseLevel maps a level name to a zap level.
// Unknown names fall back to info, since the caller explicitly asked for output.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// SetLogger replaces the global logger. Tests use it with zaptest/observer.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	setLogger(l)
}

func setLogger(l *zap.Logger) {
	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()
}

// GetLogger returns the global logger instance
func GetLogger() *zap.Logger {
	loggerMu.RLock()
	l := logger
	loggerMu.RUnlock()
	if l == nil {
		// Silent until initialized, so CLI output is never interleaved with logs
		l = zap.NewNop()
		setLogger(l)
	}
	return l
}

// WithRunID generates a run identifier, attaches it to the global logger and
// returns it.
func WithRunID() string {
	id := uuid.New().String()
	setLogger(GetLogger().With(zap.String("run_id", id)))
	return id
}

// Info logs an info message
func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

// Debug logs a debug message
func Debug(msg string, fields ...zap.Field) {
	GetLogger().Debug(msg, fields...)
}

// Warn logs a warning message
func Warn(msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, fields...)
}

// Error logs an error message
func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, fields...)
}

// LogHTTPRequest logs an outgoing HTTP request. Only header names and masked
// secret values are recorded; the body is never logged.
func LogHTTPRequest(method string, path string, headers http.Header) {
	Debug("HTTP request sent",
		zap.String("method", method),
		zap.String("path", path),
		zap.Any("headers", RedactHeaders(headers)),
	)
}

// LogHTTPResponse logs the status of an HTTP response
func LogHTTPResponse(method string, path string, statusCode int, size int) {
	Debug("HTTP response received",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status_code", statusCode),
		zap.Int("length", size),
	)
}

// RedactHeaders flattens headers into a map suitable for logging, masking
// authentication header values.
func RedactHeaders(headers http.Header) map[string]string {
	out := make(map[string]string, len(headers))
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if secretHeaders[strings.ToLower(k)] {
			out[k] = maskedValue
			continue
		}
		out[k] = strings.Join(headers[k], ", ")
	}
	return out
}

// Sync flushes any buffered log entries
func Sync() {
	_ = GetLogger().Sync()
}
