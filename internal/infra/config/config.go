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
	Server    ServerConfig    `yaml:"server"`
	Admin     AdminConfig     `yaml:"admin"`
	Content   ContentConfig   `yaml:"content"`
	Sequencer SequencerConfig `yaml:"sequencer"`
	Playback  PlaybackConfig  `yaml:"playback"`
	Audio     AudioConfig     `yaml:"audio"`
	State     StateConfig     `yaml:"state"`
}

// ServerConfig represents HTTP trigger server configuration.
type ServerConfig struct {
	Addr  string      `yaml:"addr" default:":8080"`
	Hooks HooksConfig `yaml:"hooks"`
}

// HooksConfig holds shell commands run at server lifecycle points.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// AdminConfig represents admin-related configuration.
type AdminConfig struct {
	Token string `yaml:"token" validate:"required"`
}

// ContentConfig represents the content store configuration.
type ContentConfig struct {
	Root        string `yaml:"root" validate:"required"`
	SequenceDir string `yaml:"sequence_dir" default:"sequences"`
	ClipDir     string `yaml:"clip_dir" default:"clips"`
	Format      string `yaml:"format" default:"json" validate:"oneof=json yaml"`
	Cache       *bool  `yaml:"cache" default:"true"`
	Watch       bool   `yaml:"watch"`
}

// SequencerConfig represents sequencing policy configuration.
type SequencerConfig struct {
	ClipAgeMaximumSec int `yaml:"clip_age_maximum_sec" default:"300" validate:"gt=0"`
}

// PlaybackConfig represents clip playback configuration.
type PlaybackConfig struct {
	ResourceTimeoutMs int   `yaml:"resource_timeout_ms" default:"2000" validate:"gt=0,lte=60000"`
	TimeoutDisplaySec int   `yaml:"timeout_display_sec" default:"10" validate:"gt=0,lte=300"`
	ShowText          *bool `yaml:"show_text" default:"true"`
}

// AudioConfig represents audio resource configuration.
type AudioConfig struct {
	Sources []AudioSourceConfig `yaml:"sources" validate:"required,min=1,dive"`
}

// AudioSourceConfig represents a single audio source configuration.
type AudioSourceConfig struct {
	Type        string         `yaml:"type" validate:"required,oneof=file polly"`
	DisplayName string         `yaml:"display_name"`
	Settings    map[string]any `yaml:"settings"`
}

// StateConfig represents session state persistence configuration.
type StateConfig struct {
	File string `yaml:"file"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("NARRATOR_ADMIN_TOKEN"); v != "" {
		c.Admin.Token = v
	}
	if v := os.Getenv("NARRATOR_CONTENT_ROOT"); v != "" {
		c.Content.Root = v
	}
	if v := os.Getenv("NARRATOR_SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("NARRATOR_STATE_FILE"); v != "" {
		c.State.File = v
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

// ClipAgeMaximum returns the maximum queued clip age.
func (c *Config) ClipAgeMaximum() time.Duration {
	return time.Duration(c.Sequencer.ClipAgeMaximumSec) * time.Second
}

// ResourceTimeout returns how long playback waits for an audio resource.
func (c *Config) ResourceTimeout() time.Duration {
	return time.Duration(c.Playback.ResourceTimeoutMs) * time.Millisecond
}

// TimeoutDisplayTime returns how long text is shown when audio timed out.
func (c *Config) TimeoutDisplayTime() time.Duration {
	return time.Duration(c.Playback.TimeoutDisplaySec) * time.Second
}

// ShowText reports whether clip text is displayed.
func (c *Config) ShowText() bool {
	return c.Playback.ShowText == nil || *c.Playback.ShowText
}

// CacheContent reports whether loaded content is cached.
func (c *Config) CacheContent() bool {
	return c.Content.Cache == nil || *c.Content.Cache
}
