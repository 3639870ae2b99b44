package logger

import (
	"log/slog"
	"os"
)

// New returns a JSON slog logger writing to stdout. Services log with
// key/value attrs so downstream log pipelines can index request_id and
// tenant_id without parsing message text.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
