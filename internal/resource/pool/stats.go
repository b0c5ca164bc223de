package pool

import (
	"sort"
	"time"
)

// PoolStats is a point-in-time snapshot of one pool.
type PoolStats struct {
	// ID is the pool identifier.
	ID string `json:"id"`

	// Endpoint is the remote address the pool serves.
	Endpoint string `json:"endpoint"`

	// Status is the pool lifecycle state at snapshot time.
	Status Status `json:"status"`

	// MaxConns is the configured connection bound.
	MaxConns int `json:"max_conns"`

	// Active is the number of checked-out connections.
	Active int `json:"active"`

	// Idle is the number of connections available for reuse.
	Idle int `json:"idle"`

	// Waiters is the number of parked acquisitions.
	Waiters int `json:"waiters"`

	// CreatedAt records when the pool was created.
	CreatedAt time.Time `json:"created_at"`
}

// Stats aggregates all pools for observability consumers.
type Stats struct {
	// Pools is the number of registered pools.
	Pools int `json:"pools"`

	// Conns is the total number of owned connections across pools.
	Conns int `json:"conns"`

	// Active is the total number of checked-out connections.
	Active int `json:"active"`

	// Idle is the total number of reusable connections.
	Idle int `json:"idle"`

	// Waiters is the total number of parked acquisitions.
	Waiters int `json:"waiters"`

	// PerPool holds one snapshot per pool, ordered by endpoint.
	PerPool []PoolStats `json:"per_pool"`
}

// GetStats returns a snapshot of every pool. The snapshot shares no memory
// with manager state.
func (m *Manager) GetStats() Stats {
	m.mu.Lock()
	stats := Stats{
		Pools:   len(m.pools),
		PerPool: make([]PoolStats, 0, len(m.pools)),
	}
	for _, p := range m.pools {
		ps := m.poolStatsLocked(p)
		stats.Conns += ps.Active + ps.Idle
		stats.Active += ps.Active
		stats.Idle += ps.Idle
		stats.Waiters += ps.Waiters
		stats.PerPool = append(stats.PerPool, ps)
	}
	m.mu.Unlock()

	sort.Slice(stats.PerPool, func(i, j int) bool {
		return stats.PerPool[i].Endpoint < stats.PerPool[j].Endpoint
	})
	return stats
}

// GetPool returns a snapshot of one pool by id.
func (m *Manager) GetPool(poolID string) (PoolStats, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pools[poolID]
	if !ok {
		return PoolStats{}, false
	}
	return m.poolStatsLocked(p), true
}

// poolStatsLocked snapshots one pool. Caller holds the manager lock.
func (m *Manager) poolStatsLocked(p *Pool) PoolStats {
	active, idle := p.counts()
	return PoolStats{
		ID:        p.ID,
		Endpoint:  p.Endpoint,
		Status:    p.Status,
		MaxConns:  p.MaxConns,
		Active:    active,
		Idle:      idle,
		Waiters:   len(p.waiters),
		CreatedAt: p.CreatedAt,
	}
}
