package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger from configuration. LOG_FORMAT=json
// selects machine-readable output with source locations for log shipping;
// any other value falls back to plain text for local runs. Production
// logs at Info, everything else at Debug.
func NewLogger(cfg *Config) *slog.Logger {
	level := slog.LevelDebug
	if cfg.IsProduction() {
		level = slog.LevelInfo
	}
	if cfg != nil && cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     level,
			AddSource: true,
		}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
