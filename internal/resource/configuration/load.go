package configuration

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variable overrides, e.g.
// TOOLPOOL_POOL_MAX_CONNS.
const EnvPrefix = "TOOLPOOL"

// Load reads configuration from the given path (or defaults when path is
// empty) with environment variable overrides. Precedence is defaults, then
// file values, then environment.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults mirror DefaultConfig so a missing file yields the same tree.
	v.SetDefault("pool.max_conns", DefaultMaxConns)
	v.SetDefault("pool.acquire_timeout", DefaultAcquireTimeout)
	v.SetDefault("pool.idle_timeout", DefaultIdleTimeout)
	v.SetDefault("cache.default_ttl", DefaultCacheTTL)
	v.SetDefault("rate_limit.default_max_per_minute", DefaultMaxPerMinute)
	v.SetDefault("serialization.codec", DefaultCodec)
	v.SetDefault("reaper.interval", DefaultReaperInterval)
	v.SetDefault("observability.log_level", "info")

	// Environment
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// File
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
