// Package logger wraps slog for consistent JSON logging across the service
package logger

import (
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog with service-wide defaults
type Logger struct {
	*slog.Logger
}

// New creates a logger at the level named by LOG_LEVEL (info when unset)
func New() *Logger {
	return NewWithLevel(levelFromEnv())
}

// NewWithLevel creates a logger with the specified level
func NewWithLevel(level slog.Level) *Logger {
	return &Logger{
		Logger: slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})).With("service", "ekadashi"),
	}
}

// WithField returns a logger with a pre-set field
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{
		Logger: l.With(key, value),
	}
}

// WithFields returns a logger with multiple pre-set fields
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &Logger{
		Logger: l.With(args...),
	}
}

func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
