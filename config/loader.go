package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cyberinferno/chatrelay/logger"
	"github.com/cyberinferno/chatrelay/relay"
)

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML config data after expanding ${VAR} references.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	return &cfg, nil
}

// LoadWithDefaults loads config and applies default values.
func LoadWithDefaults(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadAndValidate loads config, applies defaults, and validates. An empty
// path yields the defaults.
func LoadAndValidate(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = LoadWithDefaults(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Relay converts the server section into relay settings.
func (c *Config) Relay() relay.Config {
	return relay.Config{
		Addr:             c.Server.Addr,
		WriteTimeout:     max(c.Server.WriteTimeout, 0),
		HandshakeTimeout: c.Server.HandshakeTimeout,
		MaxLineBytes:     c.Server.MaxLineBytes,
		WriteQueue:       c.Server.WriteQueue,
	}
}

// Logger converts the log section into logger options.
func (c *Config) Logger() logger.Options {
	return logger.Options{
		Service: c.Instance.Name,
		Level:   c.Log.Level,
		Console: c.Log.Console,
		Dir:     c.Log.Dir,
	}
}
