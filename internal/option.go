package internal

import (
	"log/slog"

	"github.com/starford/othala/internal/layer"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config     *Config
	logger     *slog.Logger
	effectSink func(layer.Effect)
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogger overrides the JSON logger normally built from the config.
func WithLogger(l *slog.Logger) Option {
	return func(a *application) {
		a.logger = l
	}
}

// WithEffectSink registers an extra consumer of write effects alongside the
// SSE broker. Embedding callers use it to observe invalidations in-process.
func WithEffectSink(sink func(layer.Effect)) Option {
	return func(a *application) {
		a.effectSink = sink
	}
}
