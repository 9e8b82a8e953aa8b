// Package config provides configuration management for PostNexus with YAML
// config loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config stores PostNexus configuration loaded from
// ~/.config/postnexus/config.yaml.
type Config struct {
	DataDir  string       `yaml:"data_dir"`
	LogLevel string       `yaml:"log_level"`
	Remote   RemoteConfig `yaml:"remote"`
}

// RemoteConfig holds the publish API settings.
type RemoteConfig struct {
	APIURL string `yaml:"api_url"`
	APIKey string `yaml:"api_key"`

	// PublishTimeoutSeconds bounds each remote call during publish.
	PublishTimeoutSeconds int `yaml:"publish_timeout_seconds"`
}

// HasRemote returns true if remote publishing is configured.
func (c *Config) HasRemote() bool {
	return c.Remote.APIURL != "" && c.Remote.APIKey != ""
}

// PublishTimeout returns the configured publish timeout, or zero when unset
// so callers apply their default.
func (c *Config) PublishTimeout() time.Duration {
	if c.Remote.PublishTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Remote.PublishTimeoutSeconds) * time.Second
}

// GetDataDir returns the configured data directory, defaulting to
// ~/.local/share/postnexus.
func (c *Config) GetDataDir() (string, error) {
	if c.DataDir != "" {
		return ExpandPath(c.DataDir)
	}
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "postnexus"), nil
}

// GetConfigPath returns the config file path.
func GetConfigPath() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "postnexus", "config.yaml"), nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return home, nil
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}

// Load reads config from disk, then applies environment overrides. Returns a
// default config if the file doesn't exist.
func Load() (*Config, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overrides file values from the environment.
func (c *Config) applyEnv() {
	if v := os.Getenv("POSTNEXUS_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("POSTNEXUS_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("POSTNEXUS_API_URL"); v != "" {
		c.Remote.APIURL = v
	}
	if v := os.Getenv("POSTNEXUS_API_KEY"); v != "" {
		c.Remote.APIKey = v
	}
}

// Save writes config to disk.
func (c *Config) Save() error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
