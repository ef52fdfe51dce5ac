package log

import (
	"log/slog"
	"os"
	"strings"
)

// Option configures the logger produced by New.
type Option func(*options)

type options struct {
	level     slog.Level
	addSource bool
	text      bool
}

// WithLevel sets the minimum level from a verbosity string
// (debug, info, warn, error). Unknown values fall back to info.
func WithLevel(verbose string) Option {
	return func(o *options) {
		switch strings.ToLower(verbose) {
		case "debug":
			o.level = slog.LevelDebug
			o.text = true // human-readable output for debug runs
		case "info":
			o.level = slog.LevelInfo
		case "warn", "warning":
			o.level = slog.LevelWarn
		case "error":
			o.level = slog.LevelError
		default:
			o.level = slog.LevelInfo
		}
	}
}

// WithSource includes the caller position in every record.
func WithSource() Option {
	return func(o *options) {
		o.addSource = true
	}
}

// New builds the application logger. JSON output by default,
// text output when the verbosity asks for debug.
func New(opts ...Option) *slog.Logger {
	o := &options{level: slog.LevelInfo}
	for _, opt := range opts {
		opt(o)
	}

	handlerOpts := &slog.HandlerOptions{
		Level:     o.level,
		AddSource: o.addSource,
	}

	var handler slog.Handler
	if o.text {
		handler = slog.NewTextHandler(os.Stdout, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, handlerOpts)
	}

	return slog.New(handler)
}
