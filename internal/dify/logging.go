package dify

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogLevel controls client logging verbosity.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	// LevelOff disables all logging; the default for library use.
	LevelOff
)

// Logger wraps slog for the client. A nil or off logger discards everything,
// so call sites never need to guard.
type Logger struct {
	slog  *slog.Logger
	level LogLevel
}

// NewLogger creates a logger writing to w at the given level.
func NewLogger(level LogLevel, w io.Writer) *Logger {
	if w == nil {
		w = os.Stderr
	}

	var slogLevel slog.Level
	switch level {
	case LevelDebug:
		slogLevel = slog.LevelDebug
	case LevelWarn:
		slogLevel = slog.LevelWarn
	case LevelError:
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: slogLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(a.Value.Time().Format("15:04:05.000"))
			}
			return a
		},
	})
	return &Logger{slog: slog.New(handler), level: level}
}

// NewLoggerFromEnv builds a logger from the DIFY_LOG_LEVEL environment
// variable. Unset or unrecognized values disable logging.
func NewLoggerFromEnv() *Logger {
	switch strings.ToUpper(os.Getenv("DIFY_LOG_LEVEL")) {
	case "DEBUG":
		return NewLogger(LevelDebug, os.Stderr)
	case "INFO":
		return NewLogger(LevelInfo, os.Stderr)
	case "WARN", "WARNING":
		return NewLogger(LevelWarn, os.Stderr)
	case "ERROR":
		return NewLogger(LevelError, os.Stderr)
	}
	return &Logger{level: LevelOff}
}

func (l *Logger) enabled(at LogLevel) bool {
	return l != nil && l.slog != nil && l.level <= at
}

func (l *Logger) Debug(msg string, args ...any) {
	if l.enabled(LevelDebug) {
		l.slog.Debug(msg, args...)
	}
}

func (l *Logger) Info(msg string, args ...any) {
	if l.enabled(LevelInfo) {
		l.slog.Info(msg, args...)
	}
}

func (l *Logger) Warn(msg string, args ...any) {
	if l.enabled(LevelWarn) {
		l.slog.Warn(msg, args...)
	}
}

func (l *Logger) Error(msg string, args ...any) {
	if l.enabled(LevelError) {
		l.slog.Error(msg, args...)
	}
}
