package loopdeck

import (
	"log/slog"
	"math/rand/v2"

	"github.com/cbegin/loopdeck-go/internal/config"
)

type Option func(*engineConfig)

type engineConfig struct {
	cfg    config.Config
	log    *slog.Logger
	output *bool
	rand   rand.Source
}

func defaultEngineConfig() engineConfig {
	return engineConfig{cfg: config.Default(), log: slog.Default()}
}

// WithConfig replaces the default engine settings.
func WithConfig(cfg config.Config) Option {
	return func(ec *engineConfig) {
		ec.cfg = cfg
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(ec *engineConfig) {
		if log != nil {
			ec.log = log
		}
	}
}

// WithOutput overrides whether Init opens the audio device. Without it an
// engine only produces audio through Process and Render.
func WithOutput(enabled bool) Option {
	return func(ec *engineConfig) {
		ec.output = &enabled
	}
}

// WithRandSource seeds RandomizeParameters, mostly for tests.
func WithRandSource(src rand.Source) Option {
	return func(ec *engineConfig) {
		ec.rand = src
	}
}
