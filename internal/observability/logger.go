package observability

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger returns the process logger: JSON to stdout, debug level in dev,
// trace/span ids attached whenever the context carries a span.
func NewLogger(env, service string) *slog.Logger {
	return newLogger(os.Stdout, env, service)
}

func newLogger(w io.Writer, env, service string) *slog.Logger {
	level := slog.LevelInfo
	if env == "dev" {
		level = slog.LevelDebug
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})

	log := slog.New(NewTraceHandler(handler))
	if service != "" {
		log = log.With("service", service)
	}
	return log
}
