// Package logger builds the structured loggers used by both binaries.
//
// The learner agent and the profile server log through log/slog; this
// package owns handler selection (text for humans, JSON for log
// aggregators) and the level mapping from configuration strings, so
// the two entry points cannot drift apart in log shape.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options configures the logger factory.
type Options struct {
	// Level is the minimum level: debug, info, warn, error.
	// Unknown values fall back to info.
	Level string

	// Format selects the handler: "json" or "text" (default text).
	Format string

	// Output defaults to os.Stdout.
	Output io.Writer

	// AddSource annotates records with the file:line of the call site.
	AddSource bool
}

// New builds a *slog.Logger from the options and installs it as the
// process default, so library code falling back to slog.Default()
// agrees with the binary that loaded it.
func New(opts Options) *slog.Logger {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	handlerOpts := &slog.HandlerOptions{
		Level:     ParseLevel(opts.Level),
		AddSource: opts.AddSource,
	}

	var handler slog.Handler
	if strings.EqualFold(strings.TrimSpace(opts.Format), "json") {
		handler = slog.NewJSONHandler(opts.Output, handlerOpts)
	} else {
		handler = slog.NewTextHandler(opts.Output, handlerOpts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)

	return log
}

// Default returns a text logger at info level.
func Default() *slog.Logger {
	return New(Options{})
}

// ParseLevel maps a configuration string to a slog level.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// WithComponent tags a logger with the component attribute that every
// subsystem logs under, e.g. "sync_engine" or "http_server".
func WithComponent(log *slog.Logger, name string) *slog.Logger {
	if log == nil {
		log = slog.Default()
	}
	return log.With("component", name)
}
