package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

var validLevels = map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Instance.Name) == "" {
		return errors.New("instance.name is required")
	}

	if err := validateAddr("server.addr", c.Server.Addr); err != nil {
		return err
	}
	if c.Server.HandshakeTimeout < 0 {
		return errors.New("server.handshake_timeout must be >= 0")
	}
	if c.Server.MaxLineBytes < 1 {
		return errors.New("server.max_line_bytes must be >= 1")
	}
	if c.Server.WriteQueue < 1 {
		return errors.New("server.write_queue must be >= 1")
	}

	if !validLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}

	if c.Admin.IsEnabled() {
		if err := validateAddr("admin.addr", c.Admin.Addr); err != nil {
			return err
		}
	}

	if c.Status.TTL <= 0 {
		return errors.New("status.ttl must be > 0")
	}
	if c.Status.Redis.Addr != "" {
		if err := validateAddr("status.redis.addr", c.Status.Redis.Addr); err != nil {
			return err
		}
	}
	if c.Status.Redis.DB < 0 {
		return errors.New("status.redis.db must be >= 0")
	}

	return nil
}

func validateAddr(field, addr string) error {
	if addr == "" {
		return fmt.Errorf("%s is required", field)
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("%s must be host:port, got %q: %w", field, addr, err)
	}
	return nil
}
