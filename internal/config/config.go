// Package config provides configuration management for the edgectl CLI.
// It handles loading and parsing YAML configuration files, and provides
// structured access to application settings including the authentication
// directory, debug settings, proxy configuration, and callback port.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultAuthDir is where credentials are stored when the configuration
// does not override it. A leading tilde expands to the user's home directory.
const DefaultAuthDir = "~/.edgectl"

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	// AuthDir is the directory where authentication tokens are stored.
	AuthDir string `yaml:"auth-dir" json:"auth-dir"`

	// ProxyURL is the URL of an optional proxy server to use for outbound requests.
	ProxyURL string `yaml:"proxy-url" json:"proxy-url"`

	// Debug enables verbose logging when true.
	Debug bool `yaml:"debug" json:"debug"`

	// LoggingToFile switches log output from stdout to rotating files.
	LoggingToFile bool `yaml:"logging-to-file" json:"logging-to-file"`

	// CallbackPort overrides the local OAuth callback port. Zero selects the
	// provider default.
	CallbackPort int `yaml:"oauth-callback-port" json:"oauth-callback-port"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		AuthDir: DefaultAuthDir,
	}
}

// LoadConfig reads and parses the configuration file at the given path.
func LoadConfig(configFile string) (*Config, error) {
	return LoadConfigOptional(configFile, false)
}

// LoadConfigOptional behaves like LoadConfig but, when optional is true, a
// missing file yields the default configuration instead of an error.
func LoadConfigOptional(configFile string, optional bool) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err = yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if cfg.AuthDir == "" {
		cfg.AuthDir = DefaultAuthDir
	}
	return cfg, nil
}
