package configuration

import "time"

// Connection pool constants.
const (
	// DefaultMaxConns bounds each pool to a moderate connection footprint.
	DefaultMaxConns = 10

	// DefaultAcquireTimeout bounds saturated acquisition waits.
	DefaultAcquireTimeout = 30 * time.Second

	// DefaultIdleTimeout is how long a connection may idle before eviction.
	DefaultIdleTimeout = 60 * time.Second
)

// Cache and rate limiting constants.
const (
	// DefaultCacheTTL applies to cache writes without an explicit TTL.
	DefaultCacheTTL = 60 * time.Second

	// DefaultMaxPerMinute is the per-endpoint admission budget when a
	// limiter is created without one.
	DefaultMaxPerMinute = 60
)

// Background reclamation constants.
const (
	// DefaultReaperInterval is the sweep period for idle connections,
	// expired cache entries, and stale limiter windows.
	DefaultReaperInterval = 5 * time.Second
)

// DefaultCodec is the exchange format used when none is configured.
const DefaultCodec = "json"

// DefaultConfig returns a production-ready configuration with balanced
// settings for bounded resource usage and timely reclamation.
func DefaultConfig() *Config {
	return &Config{
		Pool: PoolConfig{
			MaxConns:       DefaultMaxConns,
			AcquireTimeout: DefaultAcquireTimeout,
			IdleTimeout:    DefaultIdleTimeout,
		},
		Cache: CacheConfig{
			DefaultTTL: DefaultCacheTTL,
		},
		RateLimit: RateLimitConfig{
			DefaultMaxPerMinute: DefaultMaxPerMinute,
		},
		Serialization: SerializationConfig{
			Codec: DefaultCodec,
		},
		Reaper: ReaperConfig{
			Interval: DefaultReaperInterval,
		},
		Observability: ObservabilityConfig{
			LogLevel: "info",
		},
	}
}
