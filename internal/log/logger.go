// Package log wires slog with a per-binary component attribute so the
// API server and the worker are distinguishable in shared output.
package log

import (
	"log/slog"
	"os"
)

type Config struct {
	Level     slog.Level
	Component string
	Handler   slog.Handler
}

func DefaultConfig(component string) Config {
	return Config{
		Level:     slog.LevelInfo,
		Component: component,
	}
}

// New builds a component-tagged logger. A nil Handler gets a text
// handler on stdout at the configured level.
func New(config Config) *slog.Logger {
	handler := config.Handler
	if handler == nil {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: config.Level,
		})
	}
	logger := slog.New(handler)
	if config.Component != "" {
		logger = logger.With("component", config.Component)
	}
	return logger
}

// SetDefault installs the logger process-wide so package-level slog
// calls carry the component attribute too.
func SetDefault(logger *slog.Logger) {
	slog.SetDefault(logger)
}
