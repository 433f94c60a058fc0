package config

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds the application logger from the logger settings
func NewLogger(settings LoggerSettings) *slog.Logger {
	return newLogger(settings, os.Stderr)
}

func newLogger(settings LoggerSettings, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(settings.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(settings.Format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}
