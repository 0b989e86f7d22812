// Package config provides configuration loading for continuityd.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Storage   StorageConfig   `koanf:"storage"`
	Logging   LoggingConfig   `koanf:"logging"`
	Quota     QuotaConfig     `koanf:"quota"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// StorageConfig holds SQLite settings.
type StorageConfig struct {
	// Path is the database file. Defaults to
	// ~/.local/share/continuityd/continuity.db.
	Path string `koanf:"path"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `koanf:"level"`
	// Format is json or console.
	Format string `koanf:"format"`
}

// QuotaConfig holds tier limits.
type QuotaConfig struct {
	// BaseTierMemoryLimit caps memories for base-tier owners.
	BaseTierMemoryLimit int `koanf:"base_tier_memory_limit"`
}

// RateLimitConfig holds ingestion rate limiting settings.
type RateLimitConfig struct {
	Enabled bool `koanf:"enabled"`
	// RPS is sustained requests per second per client IP.
	RPS float64 `koanf:"rps"`
	// Burst is the short-term burst allowance.
	Burst int `koanf:"burst"`
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be positive, got %s", c.Server.ShutdownTimeout)
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	if c.Quota.BaseTierMemoryLimit < 1 {
		return fmt.Errorf("quota.base_tier_memory_limit must be positive, got %d", c.Quota.BaseTierMemoryLimit)
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.RPS <= 0 {
			return fmt.Errorf("ratelimit.rps must be positive, got %v", c.RateLimit.RPS)
		}
		if c.RateLimit.Burst < 1 {
			return fmt.Errorf("ratelimit.burst must be positive, got %d", c.RateLimit.Burst)
		}
	}
	return nil
}
