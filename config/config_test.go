package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeTempFile(t, `
instance:
  name: relay-eu-1
server:
  addr: 127.0.0.1:7000
  write_timeout: 3s
  max_line_bytes: 1024
log:
  level: debug
  console: true
admin:
  enabled: false
status:
  redis:
    addr: localhost:6379
    db: 2
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "relay-eu-1", cfg.Instance.Name)
	assert.Equal(t, "127.0.0.1:7000", cfg.Server.Addr)
	assert.Equal(t, 3*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 1024, cfg.Server.MaxLineBytes)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Console)
	assert.False(t, cfg.Admin.IsEnabled())
	assert.Equal(t, "localhost:6379", cfg.Status.Redis.Addr)
	assert.Equal(t, 2, cfg.Status.Redis.DB)
}

func TestLoad_errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "read config file")
	})

	t.Run("invalid yaml", func(t *testing.T) {
		_, err := Load(writeTempFile(t, "server: [unclosed"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse config yaml")
	})
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_REDIS_PASSWORD", "secret123")
	t.Setenv("TEST_RELAY_ADDR", "0.0.0.0:9999")

	cfg, err := Load(writeTempFile(t, `
server:
  addr: ${TEST_RELAY_ADDR}
status:
  redis:
    addr: localhost:6379
    password: ${TEST_REDIS_PASSWORD}
`))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9999", cfg.Server.Addr)
	assert.Equal(t, "secret123", cfg.Status.Redis.Password)
}

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := LoadWithDefaults(writeTempFile(t, "instance:\n  name: relay-1\n"))
	require.NoError(t, err)

	assert.Equal(t, "relay-1", cfg.Instance.Name)
	assert.Equal(t, DefaultServerAddr, cfg.Server.Addr)
	assert.Equal(t, DefaultWriteTimeout, cfg.Server.WriteTimeout)
	assert.Equal(t, DefaultHandshakeTimeout, cfg.Server.HandshakeTimeout)
	assert.Equal(t, DefaultMaxLineBytes, cfg.Server.MaxLineBytes)
	assert.Equal(t, DefaultWriteQueue, cfg.Server.WriteQueue)
	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
	assert.True(t, cfg.Admin.IsEnabled())
	assert.Equal(t, DefaultAdminAddr, cfg.Admin.Addr)
	assert.Equal(t, DefaultStatusTTL, cfg.Status.TTL)
	assert.Equal(t, DefaultStatusKeyPrefix, cfg.Status.KeyPrefix)
	assert.Empty(t, cfg.Status.Redis.Addr)
}

func TestLoadAndValidate_emptyPathUsesDefaults(t *testing.T) {
	cfg, err := LoadAndValidate("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{name: "blank instance name", mutate: func(c *Config) { c.Instance.Name = " " }, wantErr: "instance.name is required"},
		{name: "server addr without port", mutate: func(c *Config) { c.Server.Addr = "localhost" }, wantErr: "server.addr must be host:port"},
		{name: "negative max line", mutate: func(c *Config) { c.Server.MaxLineBytes = -1 }, wantErr: "server.max_line_bytes must be >= 1"},
		{name: "negative write queue", mutate: func(c *Config) { c.Server.WriteQueue = -4 }, wantErr: "server.write_queue must be >= 1"},
		{name: "unknown log level", mutate: func(c *Config) { c.Log.Level = "verbose" }, wantErr: "log.level must be one of"},
		{name: "bad admin addr", mutate: func(c *Config) { c.Admin.Addr = "nowhere" }, wantErr: "admin.addr must be host:port"},
		{name: "bad admin addr ignored when disabled", mutate: func(c *Config) {
			disabled := false
			c.Admin.Enabled = &disabled
			c.Admin.Addr = "nowhere"
		}},
		{name: "negative ttl", mutate: func(c *Config) { c.Status.TTL = -time.Second }, wantErr: "status.ttl must be > 0"},
		{name: "bad redis addr", mutate: func(c *Config) { c.Status.Redis.Addr = "redis" }, wantErr: "status.redis.addr must be host:port"},
		{name: "negative redis db", mutate: func(c *Config) { c.Status.Redis.DB = -1 }, wantErr: "status.redis.db must be >= 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_Relay(t *testing.T) {
	cfg := Default()
	cfg.Server.WriteTimeout = -time.Second

	rc := cfg.Relay()

	assert.Equal(t, DefaultServerAddr, rc.Addr)
	assert.Zero(t, rc.WriteTimeout, "a negative timeout disables write deadlines")
	assert.Equal(t, DefaultHandshakeTimeout, rc.HandshakeTimeout)
	assert.Equal(t, DefaultMaxLineBytes, rc.MaxLineBytes)
	assert.Equal(t, DefaultWriteQueue, rc.WriteQueue)
}

func TestConfig_Logger(t *testing.T) {
	cfg := Default()
	cfg.Log.Dir = "/var/log/chatrelay"

	opts := cfg.Logger()

	assert.Equal(t, DefaultInstanceName, opts.Service)
	assert.Equal(t, DefaultLogLevel, opts.Level)
	assert.Equal(t, "/var/log/chatrelay", opts.Dir)
}
