package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Config selects the global logger's level and output format.
type Config struct {
	Level  string `json:"level,omitempty"`  // debug, info, warn, error
	Format string `json:"format,omitempty"` // text or json
}

var logger *slog.Logger

func init() {
	Init(Config{})
}

// Init installs the global logger. Zero values mean info level with the
// text handler.
func Init(cfg Config) {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(cfg.Level),
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	logger = slog.New(handler)
	slog.SetDefault(logger)
}

// ParseLevel maps a level name to its slog level, defaulting to info for
// anything unrecognized.
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

// GetLogger returns the global logger instance.
func GetLogger() *slog.Logger {
	return logger
}
