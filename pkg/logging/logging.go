// Package logging builds the process-wide slog logger: colored output with
// tint for development and JSON for production.
//
// Usage:
//
//	logger := logging.New(logging.Options{Level: slog.LevelDebug})
//	slog.SetDefault(logger)
//
// LevelFromEnv reads LOG_LEVEL: debug, info, warn, error (default: info).
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Options configures New.
type Options struct {
	Level slog.Level

	// JSON selects the production handler.
	JSON bool

	// Output defaults to os.Stderr.
	Output io.Writer
}

// New returns a logger for opts.
func New(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	if opts.JSON {
		return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
			Level: opts.Level,
		}))
	}
	return slog.New(tint.NewHandler(out, &tint.Options{
		Level:      opts.Level,
		TimeFormat: time.Kitchen,
		AddSource:  true,
		NoColor:    out != os.Stderr && out != os.Stdout,
	}))
}

// Setup builds a logger with New and installs it as the slog default.
func Setup(opts Options) *slog.Logger {
	logger := New(opts)
	slog.SetDefault(logger)
	return logger
}

// LevelFromEnv parses LOG_LEVEL.
func LevelFromEnv() slog.Level {
	return ParseLevel(os.Getenv("LOG_LEVEL"))
}

// ParseLevel maps a level name to an slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
