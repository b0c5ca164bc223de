package resource

import (
	"time"

	"github.com/toolpool-dev/toolpool/internal/resource/cache"
	"github.com/toolpool-dev/toolpool/internal/resource/pool"
	"github.com/toolpool-dev/toolpool/internal/resource/ratelimit"
	"github.com/toolpool-dev/toolpool/internal/resource/serialization"
)

// Snapshot is the composed, read-only view of every subsystem's statistics
// for observability consumers. A snapshot shares no memory with live state;
// values across subsystems are individually consistent but not taken under
// one global lock.
type Snapshot struct {
	// Timestamp records when the snapshot was taken.
	Timestamp time.Time `json:"timestamp"`

	// Pools aggregates connection pool state.
	Pools pool.Stats `json:"pools"`

	// Cache aggregates cache store counters.
	Cache cache.Stats `json:"cache"`

	// RateLimits aggregates admission control counters.
	RateLimits ratelimit.Stats `json:"rate_limits"`

	// Serialization aggregates encode/decode timing statistics.
	Serialization serialization.Stats `json:"serialization"`
}

// Snapshot returns the current state of all four subsystems.
func (m *Manager) Snapshot() Snapshot {
	return Snapshot{
		Timestamp:     time.Now(),
		Pools:         m.pools.GetStats(),
		Cache:         m.cache.GetStats(),
		RateLimits:    m.limiters.GetStats(),
		Serialization: m.serializer.GetStats(),
	}
}
