// Package config provides configuration loading from YAML files.
package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Prompt   string         `yaml:"prompt" default:"tunebox> "`
	Library  LibraryConfig  `yaml:"library"`
	Playback PlaybackConfig `yaml:"playback"`
	Audio    AudioConfig    `yaml:"audio"`
	MPRIS    MPRISConfig    `yaml:"mpris"`
	Notify   NotifyConfig   `yaml:"notify"`
	Log      LogConfig      `yaml:"log"`
}

// LibraryConfig represents library storage configuration.
type LibraryConfig struct {
	Database   string   `yaml:"database" default:"~/.local/share/tunebox/library.db" validate:"required"`
	Extensions []string `yaml:"extensions" default:"[\"mp3\",\"flac\",\"wav\",\"ogg\"]" validate:"min=1,dive,required"`
	Watch      bool     `yaml:"watch" default:"true"`
}

// PlaybackConfig represents playback control configuration.
type PlaybackConfig struct {
	Volume      float64 `yaml:"volume" default:"1.0" validate:"gte=0"`
	VolumeStep  float64 `yaml:"volume_step" default:"0.3" validate:"gt=0,lte=1"`
	SeekStepSec int     `yaml:"seek_step_sec" default:"5" validate:"gte=1,lte=600"`
	Loop        string  `yaml:"loop" default:"off" validate:"oneof=off track playlist"`
	Shuffle     bool    `yaml:"shuffle"`
}

// AudioConfig selects the output backend. Settings are backend specific and
// decoded by the backend itself.
type AudioConfig struct {
	Backend  string         `yaml:"backend" default:"beep" validate:"oneof=beep null"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// MPRISConfig represents the D-Bus remote control configuration.
type MPRISConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Name    string `yaml:"name" default:"tunebox" validate:"required,alphanum"`
}

// NotifyConfig represents desktop notification configuration.
type NotifyConfig struct {
	Desktop bool `yaml:"desktop"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	Output string `yaml:"output" default:"stderr" validate:"oneof=stderr stdout file"`
	Level  string `yaml:"level" default:"warn" validate:"oneof=debug info warn error"`
	File   string `yaml:"file" validate:"required_if=Output file"`
}

// Default returns the configuration used when no file is present.
func Default() (*Config, error) {
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	return &cfg, nil
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment variables take precedence over file values.
func Load(path string) (*Config, error) {
	// Defaults go in first so that explicit zero values in the file survive.
	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, errors.Wrap(err, "failed to read config file")
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, errors.Wrap(err, "failed to parse config file")
			}
		}
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("TUNEBOX_DATABASE"); v != "" {
		c.Library.Database = v
	}
	if v := os.Getenv("TUNEBOX_AUDIO_BACKEND"); v != "" {
		c.Audio.Backend = v
	}
	if v := os.Getenv("TUNEBOX_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}

// DatabasePath returns the database location with a leading ~ expanded.
// The in-memory name is returned untouched.
func (c *Config) DatabasePath() (string, error) {
	p := c.Library.Database
	if p == ":memory:" || !strings.HasPrefix(p, "~") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to resolve home directory")
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}

// SeekStep returns the seek forward/backward amount.
func (c *Config) SeekStep() time.Duration {
	return time.Duration(c.Playback.SeekStepSec) * time.Second
}
