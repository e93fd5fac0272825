// config.go - Startup configuration surface

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/NetAudio
License: GPLv3 or later
*/

package main

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var ErrBadConfig = errors.New("invalid configuration")

// Config is the immutable startup surface of the pipeline. Loaded once
// before any processing starts; malformed values are fatal there, since a
// crash mid-stream is worse than refusing to start.
type Config struct {
	SampleRate  int     `yaml:"sample_rate"`
	BlockSize   int     `yaml:"block_size"`
	QueueSize   int     `yaml:"queue_size"`
	Polyphony   int     `yaml:"polyphony"`
	Channels    int     `yaml:"channels"`
	WindowSize  float64 `yaml:"window_size"` // seconds, batch mode
	SmoothingMS float64 `yaml:"smoothing_ms"`
	Profile     string  `yaml:"profile"`

	// FeatureRanges overrides the normalizer's declared [min,max] per
	// feature. Unlisted features keep their defaults.
	FeatureRanges map[string][2]float32 `yaml:"feature_ranges"`
}

func DefaultConfig() Config {
	return Config{
		SampleRate:  44100,
		BlockSize:   1024,
		QueueSize:   256,
		Polyphony:   16,
		Channels:    1,
		WindowSize:  1.0,
		SmoothingMS: 50,
		Profile:     PROFILE_AMBIENT,
	}
}

// LoadConfig reads a YAML file over the defaults. A missing path returns
// plain defaults; a present but malformed file is a fatal configuration
// error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("%w: %v", ErrBadConfig, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %v", ErrBadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("%w: sample_rate %d", ErrBadConfig, c.SampleRate)
	}
	if c.BlockSize <= 0 {
		return fmt.Errorf("%w: block_size %d", ErrBadConfig, c.BlockSize)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("%w: queue_size %d", ErrBadConfig, c.QueueSize)
	}
	if c.Polyphony <= 0 {
		return fmt.Errorf("%w: polyphony %d", ErrBadConfig, c.Polyphony)
	}
	if c.Channels != 1 {
		// The whole render path is mono; pan folds into amplitude.
		return fmt.Errorf("%w: channels %d (mono only)", ErrBadConfig, c.Channels)
	}
	if c.WindowSize <= 0 {
		return fmt.Errorf("%w: window_size %g", ErrBadConfig, c.WindowSize)
	}
	if c.SmoothingMS < 0 {
		return fmt.Errorf("%w: smoothing_ms %g", ErrBadConfig, c.SmoothingMS)
	}
	for name, r := range c.FeatureRanges {
		if r[0] >= r[1] {
			return fmt.Errorf("%w: feature range %q [%g,%g]", ErrBadConfig, name, r[0], r[1])
		}
	}
	return nil
}

// NormalizerRanges merges configured overrides over the default feature
// ranges.
func (c Config) NormalizerRanges() map[string][2]float32 {
	ranges := DefaultFeatureRanges()
	for name, r := range c.FeatureRanges {
		ranges[name] = r
	}
	return ranges
}
