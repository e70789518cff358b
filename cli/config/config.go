package config

import (
	"fmt"
	"time"

	"github.com/justapithecus/teller/types"
)

// Config represents a teller.yaml configuration file.
// All values are optional and act as defaults for teller chat flags.
// CLI flags always override config values.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Poll     PollConfig     `yaml:"poll"`
	Notify   NotifyConfig   `yaml:"notify"`
	Cache    CacheConfig    `yaml:"cache"`
	Defaults DefaultsConfig `yaml:"defaults"`
}

// ServerConfig holds backend connection defaults from the config file.
type ServerConfig struct {
	URL     string   `yaml:"url"`
	Timeout Duration `yaml:"timeout,omitempty"`
}

// PollConfig holds job-status polling defaults from the config file.
type PollConfig struct {
	Interval Duration `yaml:"interval,omitempty"`
}

// NotifyConfig holds push-notification defaults from the config file.
// When URL is empty the client runs on polling alone.
type NotifyConfig struct {
	URL     string `yaml:"url,omitempty"`
	Channel string `yaml:"channel,omitempty"`
}

// CacheConfig holds local record cache defaults from the config file.
// When Dir is empty no records are cached on disk.
type CacheConfig struct {
	Dir string `yaml:"dir,omitempty"`
}

// DefaultsConfig holds chat creation defaults from the config file.
type DefaultsConfig struct {
	Strategy    string   `yaml:"strategy,omitempty"`
	TargetAPY   *float64 `yaml:"target_apy,omitempty"`
	MaxDrawdown *float64 `yaml:"max_drawdown,omitempty"`
}

// Validate checks config values that can be rejected before any request
// is made. Empty values are fine, they fall back to flag defaults.
func (c *Config) Validate() error {
	if s := c.Defaults.Strategy; s != "" && !types.Strategy(s).Valid() {
		return fmt.Errorf("defaults.strategy: unknown strategy %q", s)
	}
	if v := c.Defaults.TargetAPY; v != nil && (*v < 0 || *v > 200) {
		return fmt.Errorf("defaults.target_apy: %v outside [0, 200]", *v)
	}
	if v := c.Defaults.MaxDrawdown; v != nil && (*v < 0 || *v > 100) {
		return fmt.Errorf("defaults.max_drawdown: %v outside [0, 100]", *v)
	}
	if c.Poll.Interval.Duration < 0 {
		return fmt.Errorf("poll.interval: negative duration %v", c.Poll.Interval.Duration)
	}
	return nil
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}
