package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds engine settings. Fields omitted from a loaded file keep
// their defaults; an explicit zero overrides them.
type Config struct {
	SampleRate        int     `yaml:"sampleRate"`
	AnalyserBins      int     `yaml:"analyserBins"`
	AnalyserSmoothing float64 `yaml:"analyserSmoothing"`
	LookaheadFrames   int     `yaml:"lookaheadFrames"`
	LoopBars          int     `yaml:"loopBars"`
	MasterGainDB      float64 `yaml:"masterGainDb"`
	ReverbDecaySec    float64 `yaml:"reverbDecaySec"`
	ReverbSend        float64 `yaml:"reverbSend"`
	DelayNote         string  `yaml:"delayNote"`
	DelayFeedback     float64 `yaml:"delayFeedback"`
	DelaySend         float64 `yaml:"delaySend"`
	TempoRampSec      float64 `yaml:"tempoRampSec"`
	GainRampSec       float64 `yaml:"gainRampSec"`
	PanRampSec        float64 `yaml:"panRampSec"`
	TrackEffects      *bool   `yaml:"trackEffects"`
	Output            *bool   `yaml:"output"`
	LogLevel          string  `yaml:"logLevel"`
}

var ErrInvalid = errors.New("invalid config")

func Default() Config {
	on := true
	out := true
	return Config{
		SampleRate:        48000,
		AnalyserBins:      256,
		AnalyserSmoothing: 0.8,
		LookaheadFrames:   512,
		LoopBars:          4,
		MasterGainDB:      -10,
		ReverbDecaySec:    2,
		ReverbSend:        0.2,
		DelayNote:         "8n",
		DelayFeedback:     0.5,
		DelaySend:         0.2,
		TempoRampSec:      1,
		GainRampSec:       0.1,
		PanRampSec:        1,
		TrackEffects:      &on,
		Output:            &out,
		LogLevel:          "info",
	}
}

// Load reads a YAML config file on top of Default.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("%w: sampleRate must be positive", ErrInvalid)
	case c.AnalyserBins <= 0 || c.AnalyserBins&(c.AnalyserBins-1) != 0:
		return fmt.Errorf("%w: analyserBins must be a power of two", ErrInvalid)
	case c.AnalyserSmoothing < 0 || c.AnalyserSmoothing >= 1:
		return fmt.Errorf("%w: analyserSmoothing must be in [0,1)", ErrInvalid)
	case c.LookaheadFrames <= 0:
		return fmt.Errorf("%w: lookaheadFrames must be positive", ErrInvalid)
	case c.LoopBars <= 0:
		return fmt.Errorf("%w: loopBars must be positive", ErrInvalid)
	case c.ReverbSend < 0 || c.ReverbSend > 1 || c.DelaySend < 0 || c.DelaySend > 1:
		return fmt.Errorf("%w: send levels must be in [0,1]", ErrInvalid)
	case c.DelayFeedback < 0 || c.DelayFeedback >= 1:
		return fmt.Errorf("%w: delayFeedback must be in [0,1)", ErrInvalid)
	case c.TempoRampSec < 0 || c.GainRampSec < 0 || c.PanRampSec < 0:
		return fmt.Errorf("%w: ramp times must not be negative", ErrInvalid)
	}
	return nil
}

func (c Config) TrackEffectsEnabled() bool { return c.TrackEffects == nil || *c.TrackEffects }

func (c Config) OutputEnabled() bool { return c.Output == nil || *c.Output }

// Frames converts seconds to frames at the configured sample rate.
func (c Config) Frames(sec float64) int {
	return int(sec * float64(c.SampleRate))
}

func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
