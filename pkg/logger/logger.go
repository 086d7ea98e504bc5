// Package logger provides slog loggers for the reranking service, with an
// ANSI color handler for terminal output and a JSON handler for structured
// collection.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New creates a logger writing to w in the given format ("text" or "json")
func New(w io.Writer, level slog.Level, format string) *slog.Logger {
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(NewColorHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewDefault creates a colored stderr logger at the given level
func NewDefault(level slog.Level) *slog.Logger {
	return New(os.Stderr, level, "text")
}

// ParseLevel maps a config level string to a slog.Level, defaulting to info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
