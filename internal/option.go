package internal

import (
	"io"

	"github.com/starford/cardring/internal/scene"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config  *Config
	out     io.Writer
	fetcher scene.Fetcher
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithOutput sets where command results are written. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(a *application) {
		a.out = w
	}
}

// WithFetcher replaces the page source built from the configuration.
func WithFetcher(f scene.Fetcher) Option {
	return func(a *application) {
		a.fetcher = f
	}
}
