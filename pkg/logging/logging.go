// Package logging configures structured logging with log/slog.
//
// Development gets colored output via tint; production gets JSON.
//
// Environment variables:
//
//	LOG_LEVEL: debug, info, warn, error (default: info)
package logging

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Setup configures the default logger. When json is true the output is
// machine-readable JSON; otherwise colored text for a terminal. The level
// comes from the LOG_LEVEL env var.
func Setup(json bool) {
	SetupWithLevel(levelFromEnv(), json)
}

// SetupWithLevel configures the default logger at an explicit level.
func SetupWithLevel(level slog.Level, json bool) {
	var handler slog.Handler
	if json {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	}
	slog.SetDefault(slog.New(handler))
}

func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
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
