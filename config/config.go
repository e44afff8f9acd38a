// Package config loads the relay's YAML configuration.
package config

import "time"

// Config is the top-level relay configuration.
type Config struct {
	Instance InstanceConfig `yaml:"instance"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Admin    AdminConfig    `yaml:"admin"`
	Status   StatusConfig   `yaml:"status"`
}

// InstanceConfig identifies this relay in logs and status keys.
type InstanceConfig struct {
	Name string `yaml:"name"`
}

// ServerConfig holds the chat listener settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// WriteTimeout bounds each write to a client. Negative disables it.
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	MaxLineBytes     int           `yaml:"max_line_bytes"`
	WriteQueue       int           `yaml:"write_queue"`
}

// LogConfig selects log level and outputs.
type LogConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
	Dir     string `yaml:"dir"`
}

// AdminConfig holds the HTTP admin endpoint settings.
type AdminConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// IsEnabled reports whether the admin endpoint should run. Unset means on.
func (a AdminConfig) IsEnabled() bool {
	return a.Enabled == nil || *a.Enabled
}

// StatusConfig controls the cached status snapshot.
type StatusConfig struct {
	TTL       time.Duration `yaml:"ttl"`
	KeyPrefix string        `yaml:"key_prefix"`
	Redis     RedisConfig   `yaml:"redis"`
}

// RedisConfig points the status cache at Redis. An empty Addr keeps the
// cache in memory.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	DB       int    `yaml:"db"`
	Password string `yaml:"password"`
}
