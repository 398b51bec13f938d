package slogger

import (
	"log/slog"
	"os"
)

// New returns a JSON slog logger tagged with the component name, for the
// background jobs and the uplink runtime.
func New(component string) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return slog.New(handler).With("component", component)
}
