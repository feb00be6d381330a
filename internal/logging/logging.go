package logging

import (
	"log/slog"
	"os"
	"strings"
)

type Logger = slog.Logger

func New(level string) *slog.Logger {
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(level)})
	return slog.New(h).With("app", "reachbot")
}

// NewWithRecorder builds the app logger and a recorder capturing the most
// recent log lines for the status surface.
func NewWithRecorder(level string, keep int) (*slog.Logger, *Recorder) {
	inner := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(level)})
	rec := NewRecorder(inner, keep)
	return slog.New(rec).With("app", "reachbot"), rec
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
