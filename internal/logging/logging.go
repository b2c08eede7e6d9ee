package logging

import (
	"log/slog"
	"os"

	"github.com/ogembed/api/internal/config"
)

// Setup configures the default slog logger based on the provided config.
// When extra is non-nil (e.g. an OTLP bridge handler), records are fanned
// out to it as well as the local handler.
func Setup(cfg config.LogConfig, extra slog.Handler) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	if extra != nil {
		handler = fanout{handler, extra}
	}

	slog.SetDefault(slog.New(handler))
}
