// Package config loads runtime configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the process configuration.
type Config struct {
	StatsAPIURL string `env:"STATS_API_URL,required"`

	// Both set: display names come from Spotify public profiles instead of
	// the stats API.
	SpotifyID     string `env:"SPOTIFY_ID"`
	SpotifySecret string `env:"SPOTIFY_SECRET"`

	// Empty disables the warm cache.
	DatabaseURL string `env:"DATABASE_URL"`

	Addr                string        `env:"ADDR" envDefault:"127.0.0.1:8080"`
	LogLevel            string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat           string        `env:"LOG_FORMAT" envDefault:"json"`
	PrefetchConcurrency int           `env:"PREFETCH_CONCURRENCY" envDefault:"4"`
	HTTPTimeout         time.Duration `env:"HTTP_TIMEOUT" envDefault:"10s"`
}

// Load reads the process environment.
func Load() (Config, error) {
	return parse(env.Options{})
}

// LoadFrom reads the given variables only.
func LoadFrom(environ map[string]string) (Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](opts)
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values the tags cannot express.
func (c Config) Validate() error {
	var errs []error
	if c.PrefetchConcurrency < 1 {
		errs = append(errs, fmt.Errorf("PREFETCH_CONCURRENCY must be at least 1, got %d", c.PrefetchConcurrency))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, fmt.Errorf("HTTP_TIMEOUT must be positive, got %s", c.HTTPTimeout))
	}
	if (c.SpotifyID == "") != (c.SpotifySecret == "") {
		errs = append(errs, errors.New("SPOTIFY_ID and SPOTIFY_SECRET must be set together"))
	}
	return errors.Join(errs...)
}

// UseSpotify reports whether Spotify credentials are configured.
func (c Config) UseSpotify() bool {
	return c.SpotifyID != "" && c.SpotifySecret != ""
}
