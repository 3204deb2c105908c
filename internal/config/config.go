package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Defaults for a local development backend.
const (
	defaultServerURL = "http://localhost:3000"
	defaultHomeName  = ".pulse"
)

type Config struct {
	// ServerURL is the agent backend base URL.
	ServerURL string `mapstructure:"server_url"`
	// PortalURL enables the portal relay channel when set.
	PortalURL string `mapstructure:"portal_url"`
	// HomeDir holds persisted credentials and local state.
	HomeDir string `mapstructure:"home_dir"`
	// Widget forces widget mode on or off; unset means auto-detect.
	Widget bool `mapstructure:"widget"`
	// Debug enables verbose logging regardless of the log level setting.
	Debug bool `mapstructure:"debug"`

	Log LogConfig `mapstructure:"log"`

	// widgetSet distinguishes an explicit Widget value from the zero value.
	widgetSet bool
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from an optional YAML file plus PULSE_-prefixed
// environment variables; the environment wins. configPath may be empty, in
// which case config.yaml under the home directory is used when present.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server_url", defaultServerURL)
	v.SetDefault("home_dir", defaultHome())
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetEnvPrefix("PULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(defaultHome())
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.widgetSet = v.IsSet("widget")

	if cfg.Debug {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// ExplicitWidget returns the forced widget-mode value, or nil when the mode
// should be auto-detected.
func (c *Config) ExplicitWidget() *bool {
	if !c.widgetSet {
		return nil
	}
	w := c.Widget
	return &w
}

func defaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultHomeName
	}
	return filepath.Join(home, defaultHomeName)
}
