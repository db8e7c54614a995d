package config

import (
	"fmt"
	"time"

	"github.com/vietddude/cachekit/internal/core/cursor"
	redisclient "github.com/vietddude/cachekit/internal/infra/redis"
	"github.com/vietddude/cachekit/internal/infra/rpc/provider"
	"github.com/vietddude/cachekit/internal/infra/rpc/retry"
	"github.com/vietddude/cachekit/internal/topic"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Transport    provider.Config    `yaml:"transport"`
	Retry        retry.Config       `yaml:"retry"`
	Subscription topic.Config       `yaml:"subscription"`
	Redis        redisclient.Config `yaml:"redis"`
	Cursor       cursor.Config      `yaml:"cursor"`
	Server       ServerConfig       `yaml:"server"`
	Logging      LoggingConfig      `yaml:"logging"`
	Topics       []TopicConfig      `yaml:"topics"`
}

// TopicConfig names a topic the agent keeps subscribed.
type TopicConfig struct {
	Cache string `yaml:"cache"`
	Topic string `yaml:"topic"`
}

// ServerConfig holds health server settings.
type ServerConfig struct {
	Port           int           `yaml:"port"`
	HealthCacheTTL time.Duration `yaml:"health_cache_ttl"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// ApplyDefaults fills zero-valued fields in every section.
func (c *AppConfig) ApplyDefaults() {
	c.Transport.ApplyDefaults()
	c.Retry.ApplyDefaults()
	c.Subscription.ApplyDefaults()

	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.HealthCacheTTL == 0 {
		c.Server.HealthCacheTTL = 2 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks every section.
func (c *AppConfig) Validate() error {
	if err := c.Transport.Validate(); err != nil {
		return fmt.Errorf("transport: %w", err)
	}
	if err := c.Retry.Validate(); err != nil {
		return fmt.Errorf("retry: %w", err)
	}
	if err := c.Subscription.Validate(); err != nil {
		return fmt.Errorf("subscription: %w", err)
	}
	if c.Cursor.Retention < 0 {
		return fmt.Errorf("cursor: retention must be non-negative, got %s", c.Cursor.Retention)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server: invalid port %d", c.Server.Port)
	}
	for i, tc := range c.Topics {
		if tc.Cache == "" || tc.Topic == "" {
			return fmt.Errorf("topics[%d]: cache and topic are required", i)
		}
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging: unknown level %q", c.Logging.Level)
	}
	return nil
}
