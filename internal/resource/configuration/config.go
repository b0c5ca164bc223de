// Package configuration holds the typed configuration tree for the resource
// management layer, with production defaults, struct validation, and loading
// from file and environment.
package configuration

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// validate is the package-level validator instance used for struct validation.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Config holds the complete configuration for the resource management layer.
type Config struct {
	// Pool configures per-endpoint connection pools.
	Pool PoolConfig `json:"pool" mapstructure:"pool"`

	// Cache configures the TTL key/value store.
	Cache CacheConfig `json:"cache" mapstructure:"cache"`

	// RateLimit configures per-endpoint admission control.
	RateLimit RateLimitConfig `json:"rate_limit" mapstructure:"rate_limit"`

	// Serialization configures the payload codec and profiling.
	Serialization SerializationConfig `json:"serialization" mapstructure:"serialization"`

	// Reaper configures the background reclamation task.
	Reaper ReaperConfig `json:"reaper" mapstructure:"reaper"`

	// Observability configures logging behavior.
	Observability ObservabilityConfig `json:"observability" mapstructure:"observability"`
}

// PoolConfig controls connection pool defaults. Per-pool options supplied at
// creation time override these values.
type PoolConfig struct {
	// MaxConns bounds the number of connections one pool may own.
	MaxConns int `json:"max_conns" mapstructure:"max_conns" validate:"gt=0"`

	// AcquireTimeout bounds how long a saturated acquisition may wait.
	AcquireTimeout time.Duration `json:"acquire_timeout" mapstructure:"acquire_timeout" validate:"gt=0"`

	// IdleTimeout is how long a connection may sit idle before the reaper
	// evicts it.
	IdleTimeout time.Duration `json:"idle_timeout" mapstructure:"idle_timeout" validate:"gt=0"`
}

// CacheConfig controls the cache store.
type CacheConfig struct {
	// DefaultTTL applies to writes that do not supply an explicit TTL.
	DefaultTTL time.Duration `json:"default_ttl" mapstructure:"default_ttl" validate:"gt=0"`
}

// RateLimitConfig controls the rate limiter registry.
type RateLimitConfig struct {
	// DefaultMaxPerMinute applies to limiters created without an explicit
	// per-minute budget. Zero disables admission for such limiters, so it
	// must be positive.
	DefaultMaxPerMinute int `json:"default_max_per_minute" mapstructure:"default_max_per_minute" validate:"gt=0"`
}

// SerializationConfig controls payload encoding.
type SerializationConfig struct {
	// Codec selects the exchange format: "json" or "msgpack".
	Codec string `json:"codec" mapstructure:"codec" validate:"oneof=json msgpack"`
}

// ReaperConfig controls the background reclamation task.
type ReaperConfig struct {
	// Interval is the sweep period.
	Interval time.Duration `json:"interval" mapstructure:"interval" validate:"gt=0"`
}

// ObservabilityConfig controls structured logging.
type ObservabilityConfig struct {
	// LogLevel selects the minimum slog level: debug, info, warn, or error.
	LogLevel string `json:"log_level" mapstructure:"log_level" validate:"oneof=debug info warn error"`
}

// Validate checks the configuration tree for invalid values.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
