package configuration

import (
	"log/slog"
	"os"
)

// NewLogger builds a JSON structured logger honoring the configured minimum
// level. Unrecognized levels fall back to info.
func NewLogger(cfg ObservabilityConfig) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}
