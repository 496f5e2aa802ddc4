// Package slogger provides structured logging for the halyard client.
// It wraps log/slog with a colorized terminal handler and supports passing a
// logger through a context.
package slogger

import (
	"context"
	"strings"
)

// DefaultLogger is used when no logger is configured. It discards all output
// so that library code can log unconditionally.
var DefaultLogger Logger = NewDevNullLogger()

// Logger is the logging interface used throughout the client. It supports
// structured key-value logging and is compatible in shape with slog and
// zerolog-style loggers.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)

	// With returns a new Logger with the given key-value pairs attached.
	With(keysAndValues ...any) Logger
}

type contextKey string

const loggerKey contextKey = "halyard.logger"

// WithLogger returns a new context carrying the given logger.
func WithLogger(ctx context.Context, logger Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, loggerKey, logger)
}

// Ctx returns the logger carried by the context, or DefaultLogger.
func Ctx(ctx context.Context) Logger {
	if ctx == nil {
		return DefaultLogger
	}
	if logger, ok := ctx.Value(loggerKey).(Logger); ok {
		return logger
	}
	return DefaultLogger
}

// LevelFromString converts a level name to a LogLevel, defaulting to info.
func LevelFromString(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return DefaultLogLevel
	}
}

// DevNullLogger discards everything. It backs DefaultLogger so callers never
// need a nil check before logging.
type DevNullLogger struct{}

func NewDevNullLogger() *DevNullLogger {
	return &DevNullLogger{}
}

func (l *DevNullLogger) Debug(msg string, keysAndValues ...any) {}
func (l *DevNullLogger) Info(msg string, keysAndValues ...any)  {}
func (l *DevNullLogger) Warn(msg string, keysAndValues ...any)  {}
func (l *DevNullLogger) Error(msg string, keysAndValues ...any) {}
func (l *DevNullLogger) With(keysAndValues ...any) Logger       { return l }
