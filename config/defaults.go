package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultInstanceName     = "chatrelay"
	DefaultServerAddr       = "0.0.0.0:8080"
	DefaultWriteTimeout     = 10 * time.Second
	DefaultHandshakeTimeout = 5 * time.Second
	DefaultMaxLineBytes     = 64 * 1024
	DefaultWriteQueue       = 16
	DefaultLogLevel         = "info"
	DefaultAdminAddr        = "127.0.0.1:9090"
	DefaultStatusTTL        = 1 * time.Second
	DefaultStatusKeyPrefix  = "chatrelay"
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Instance.Name == "" {
		c.Instance.Name = DefaultInstanceName
	}

	// Server defaults
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = DefaultWriteTimeout
	}
	if c.Server.HandshakeTimeout == 0 {
		c.Server.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Server.MaxLineBytes == 0 {
		c.Server.MaxLineBytes = DefaultMaxLineBytes
	}
	if c.Server.WriteQueue == 0 {
		c.Server.WriteQueue = DefaultWriteQueue
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}

	if c.Admin.Addr == "" {
		c.Admin.Addr = DefaultAdminAddr
	}

	// Status defaults
	if c.Status.TTL == 0 {
		c.Status.TTL = DefaultStatusTTL
	}
	if c.Status.KeyPrefix == "" {
		c.Status.KeyPrefix = DefaultStatusKeyPrefix
	}
}
