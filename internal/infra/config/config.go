// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server    ServerConfig              `yaml:"server"`
	Playback  PlaybackConfig            `yaml:"playback"`
	TTS       TTSConfig                 `yaml:"tts"`
	Streamd   StreamdConfig             `yaml:"streamd"`
	Gateway   GatewayConfig             `yaml:"gateway"`
	Autoplay  AutoplayConfig            `yaml:"autoplay"`
	Admission map[string]AdmissionEntry `yaml:"admission"`
}

// ServerConfig represents HTTP server configuration.
type ServerConfig struct {
	Addr string `yaml:"addr" default:":8080"`
}

// PlaybackConfig represents playback engine configuration.
type PlaybackConfig struct {
	IdleTimeoutSec    int     `yaml:"idle_timeout_sec" default:"600" validate:"gt=0"`
	ResolveTimeoutSec int     `yaml:"resolve_timeout_sec" default:"15" validate:"gt=0"`
	DefaultVolume     float64 `yaml:"default_volume" default:"1.0" validate:"gt=0"`
}

// IdleTimeout returns the idle disconnect interval as a duration.
func (p PlaybackConfig) IdleTimeout() time.Duration {
	return time.Duration(p.IdleTimeoutSec) * time.Second
}

// ResolveTimeout returns the bounded wait applied to resolution calls.
func (p PlaybackConfig) ResolveTimeout() time.Duration {
	return time.Duration(p.ResolveTimeoutSec) * time.Second
}

// TTSConfig represents the speech-synthesis backend configuration.
type TTSConfig struct {
	BaseURL     string `yaml:"base_url" validate:"required,url"`
	DefaultLang string `yaml:"default_lang" default:"en"`
}

// StreamdConfig represents the stream-resolution backend configuration.
type StreamdConfig struct {
	BaseURL string `yaml:"base_url" validate:"required,url"`
}

// GatewayConfig represents the voice gateway backend configuration.
type GatewayConfig struct {
	BaseURL string `yaml:"base_url" validate:"required,url"`
}

// AutoplayConfig represents autoplay filler configuration.
type AutoplayConfig struct {
	Providers []ProviderConfig `yaml:"providers"`
}

// ProviderConfig represents a single autoplay provider configuration.
type ProviderConfig struct {
	Type     string         `yaml:"type" validate:"required"`
	Settings map[string]any `yaml:"settings"`
}

// AdmissionEntry represents one admission filter's configuration.
type AdmissionEntry struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for backend URLs.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	cfg.overrideFromEnv()

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("FOXBOX_TTS_URL"); v != "" {
		c.TTS.BaseURL = v
	}
	if v := os.Getenv("FOXBOX_STREAMD_URL"); v != "" {
		c.Streamd.BaseURL = v
	}
	if v := os.Getenv("FOXBOX_GATEWAY_URL"); v != "" {
		c.Gateway.BaseURL = v
	}
	if v := os.Getenv("FOXBOX_ADDR"); v != "" {
		c.Server.Addr = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}

// IsFilterEnabled checks if an admission filter is enabled.
func (c *Config) IsFilterEnabled(name string) bool {
	if f, ok := c.Admission[name]; ok {
		return f.Enabled
	}
	return false
}

// FilterSettings returns the settings block for an admission filter.
func (c *Config) FilterSettings(name string) map[string]any {
	if f, ok := c.Admission[name]; ok {
		return f.Settings
	}
	return nil
}
