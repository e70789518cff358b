// Package cmd provides CLI commands for the teller binary.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/teller/cache"
	"github.com/justapithecus/teller/cli/config"
	"github.com/justapithecus/teller/client"
	"github.com/justapithecus/teller/log"
	"github.com/justapithecus/teller/types"
)

// Shared flags.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// ConfigFlag points at a teller.yaml config file.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to teller.yaml (default: ./teller.yaml, then ~/.config/teller/teller.yaml)",
	}

	// ServerFlag overrides the backend URL.
	ServerFlag = &cli.StringFlag{
		Name:  "server",
		Usage: "Advisor backend URL",
	}
)

// ReadOnlyFlags returns the shared flags for read-only commands.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		ConfigFlag,
		ServerFlag,
	}
}

// chatFlags returns the flags shared by chat and ask.
func chatFlags() []cli.Flag {
	return []cli.Flag{
		ConfigFlag,
		ServerFlag,
		&cli.StringFlag{
			Name:  "strategy",
			Usage: "Portfolio strategy: Passive, Conservative, Aggressive",
		},
		&cli.Float64Flag{
			Name:  "target-apy",
			Usage: "Target APY percentage",
		},
		&cli.Float64Flag{
			Name:  "max-drawdown",
			Usage: "Maximum drawdown percentage",
		},
		&cli.DurationFlag{
			Name:  "poll-interval",
			Usage: "Job status poll interval",
		},
		&cli.StringFlag{
			Name:  "notify-url",
			Usage: "Redis URL for push update notifications",
		},
		&cli.StringFlag{
			Name:  "notify-channel",
			Usage: "Redis channel for update notifications",
		},
		&cli.StringFlag{
			Name:  "cache-dir",
			Usage: "Directory for the local record cache",
		},
	}
}

// defaultServerURL is used when neither config nor flags name the backend.
const defaultServerURL = "http://localhost:8000"

// settings is the merged view of teller.yaml and CLI flags. Flags always
// override config values.
type settings struct {
	serverURL     string
	timeout       time.Duration
	pollInterval  time.Duration
	notifyURL     string
	notifyChannel string
	cacheDir      string
	defaults      types.ChatCreateRequest
}

// resolveSettings loads the config file (if any) and applies flag overrides.
func resolveSettings(c *cli.Context) (*settings, error) {
	s := &settings{
		serverURL: defaultServerURL,
		defaults: types.ChatCreateRequest{
			Strategy:    types.StrategyConservative,
			TargetAPY:   10,
			MaxDrawdown: 20,
		},
	}

	path := c.String("config")
	explicit := path != ""
	if path == "" {
		path = findConfig()
	}
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			if explicit {
				return nil, err
			}
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
		s.applyConfig(cfg)
	}

	if v := c.String("server"); v != "" {
		s.serverURL = v
	}
	if v := c.Duration("poll-interval"); v > 0 {
		s.pollInterval = v
	}
	if v := c.String("notify-url"); v != "" {
		s.notifyURL = v
	}
	if v := c.String("notify-channel"); v != "" {
		s.notifyChannel = v
	}
	if v := c.String("cache-dir"); v != "" {
		s.cacheDir = v
	}
	if v := c.String("strategy"); v != "" {
		s.defaults.Strategy = types.Strategy(v)
	}
	if c.IsSet("target-apy") {
		s.defaults.TargetAPY = c.Float64("target-apy")
	}
	if c.IsSet("max-drawdown") {
		s.defaults.MaxDrawdown = c.Float64("max-drawdown")
	}

	return s, nil
}

func (s *settings) applyConfig(cfg *config.Config) {
	if cfg.Server.URL != "" {
		s.serverURL = cfg.Server.URL
	}
	s.timeout = cfg.Server.Timeout.Duration
	s.pollInterval = cfg.Poll.Interval.Duration
	s.notifyURL = cfg.Notify.URL
	s.notifyChannel = cfg.Notify.Channel
	s.cacheDir = cfg.Cache.Dir
	if cfg.Defaults.Strategy != "" {
		s.defaults.Strategy = types.Strategy(cfg.Defaults.Strategy)
	}
	if cfg.Defaults.TargetAPY != nil {
		s.defaults.TargetAPY = *cfg.Defaults.TargetAPY
	}
	if cfg.Defaults.MaxDrawdown != nil {
		s.defaults.MaxDrawdown = *cfg.Defaults.MaxDrawdown
	}
}

// findConfig returns the first config path that exists: ./teller.yaml, then
// ~/.config/teller/teller.yaml. Empty when neither does.
func findConfig() string {
	if _, err := os.Stat("teller.yaml"); err == nil {
		return "teller.yaml"
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	path := filepath.Join(home, ".config", "teller", "teller.yaml")
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}

// newClient builds the API client from settings.
func (s *settings) newClient(logger *log.Logger) (*client.Client, error) {
	return client.New(client.Config{
		BaseURL: s.serverURL,
		Timeout: s.timeout,
		Logger:  logger,
	})
}

// openCache opens the record cache when a directory is configured.
// Returns nil without error when caching is off.
func (s *settings) openCache(logger *log.Logger) (*cache.Store, error) {
	if s.cacheDir == "" {
		return nil, nil
	}
	return cache.NewStore(s.cacheDir, logger)
}
