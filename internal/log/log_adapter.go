package log

import (
	"log"
	"log/slog"
	"strings"
)

type logAdapter struct {
	slog *slog.Logger
}

// NewLogAdapter bridges a *slog.Logger to consumers that want the
// standard library logger (http.Server.ErrorLog, chi request logging,
// the bot library's middleware logger).
func NewLogAdapter(logger *slog.Logger) *log.Logger {
	return log.New(&logAdapter{slog: logger}, "", 0)
}

func (a *logAdapter) Write(p []byte) (n int, err error) {
	// Forward the line into slog, trimming the trailing newline
	// the stdlib logger appends.
	a.slog.Info(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}
