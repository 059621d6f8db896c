// Package wlog sets up the structured logger every worker role shares,
// matching the rest of the module's log/slog usage with a level parsed from
// the runtime Config.
package wlog

import (
	"log/slog"
	"os"
	"strings"
)

// New builds a slog.Logger writing text-handler output to stderr at the
// given level name ("debug", "info", "warn", "error"; unrecognized or empty
// values fall back to "info"). Each record is tagged with the worker role so
// multiplexed worker-process logs stay attributable when merged.
func New(levelName string, role string) *slog.Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(levelName),
	})
	logger := slog.New(handler)
	if role != "" {
		logger = logger.With("role", role)
	}
	return logger
}

func parseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
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
