// Package config loads daeblt settings with koanf.
//
// Sources are layered with increasing priority: built-in defaults, the
// project file (.daeblt.yaml, or the path given with --config), then
// DAEBLT_-prefixed environment variables. Command-line flags are applied on
// top by the CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultFile is the project config file looked up in the working directory.
const DefaultFile = ".daeblt.yaml"

// EnvPrefix marks environment variables that override file settings.
// DAEBLT_MAX_AUGMENT_STEPS sets max_augment_steps; DAEBLT_SPY__WIDTH sets
// spy.width.
const EnvPrefix = "DAEBLT_"

// Config holds the analysis and output settings.
type Config struct {
	// Format is the CLI output format: "text" or "json".
	Format string `koanf:"format"`
	// Parallelism bounds concurrently matched components. Zero means
	// GOMAXPROCS.
	Parallelism int `koanf:"parallelism"`
	// MaxAugmentSteps bounds the augmenting-path search. Zero disables the
	// bound.
	MaxAugmentSteps int `koanf:"max_augment_steps"`
	// Color enables colored text output when writing to a terminal.
	Color bool `koanf:"color"`
	// Spy sizes the incidence plot.
	Spy SpyConfig `koanf:"spy"`
}

// SpyConfig sizes the rendered incidence plot, in centimeters.
type SpyConfig struct {
	Width  float64 `koanf:"width"`
	Height float64 `koanf:"height"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Format: "text",
		Color:  true,
		Spy:    SpyConfig{Width: 12, Height: 12},
	}
}

// Defaults returns the built-in settings keyed by koanf path.
func Defaults() map[string]any {
	d := Default()
	return map[string]any{
		"format":            d.Format,
		"parallelism":       d.Parallelism,
		"max_augment_steps": d.MaxAugmentSteps,
		"color":             d.Color,
		"spy.width":         d.Spy.Width,
		"spy.height":        d.Spy.Height,
	}
}

// Load layers defaults, the config file and the environment. An empty path
// uses DefaultFile when it exists; an explicit path must exist.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	for key, value := range Defaults() {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("setting default %s: %w", key, err)
		}
	}

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config %s: %w", path, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment config: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps DAEBLT_SPY__WIDTH to spy.width.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.Format != "text" && c.Format != "json" {
		errs = append(errs, fmt.Errorf("format: must be text or json, got %q", c.Format))
	}
	if c.Parallelism < 0 {
		errs = append(errs, fmt.Errorf("parallelism: must be >= 0, got %d", c.Parallelism))
	}
	if c.MaxAugmentSteps < 0 {
		errs = append(errs, fmt.Errorf("max_augment_steps: must be >= 0, got %d", c.MaxAugmentSteps))
	}
	if c.Spy.Width <= 0 || c.Spy.Height <= 0 {
		errs = append(errs, fmt.Errorf("spy: width and height must be positive, got %gx%g", c.Spy.Width, c.Spy.Height))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
