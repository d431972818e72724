package observability

import (
	"log/slog"
	"os"
)

// NewLogger builds the process-wide slog logger. JSON lines on stdout,
// debug level in dev, info everywhere else. Every record carries the
// service name so multi-service log streams stay attributable.
func NewLogger(env string) *slog.Logger {
	level := slog.LevelInfo
	if env == "dev" {
		level = slog.LevelDebug
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})

	return slog.New(handler).With("service", "bloghub", "env", env)
}
