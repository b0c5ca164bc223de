package cache

// Stats holds cache performance counters for observability consumers.
type Stats struct {
	// Entries is the number of entries held, including not-yet-swept
	// expired ones.
	Entries int `json:"entries"`

	// Hits is the total number of present, unexpired lookups.
	Hits int64 `json:"hits"`

	// Misses is the total number of absent or expired lookups.
	Misses int64 `json:"misses"`

	// HitRate is the ratio of hits to total lookups, zero when no lookups
	// have happened.
	HitRate float64 `json:"hit_rate"`
}

// GetStats returns a snapshot of cache performance counters. Counters are
// read atomically and the snapshot shares no memory with the store.
func (s *Store[V]) GetStats() Stats {
	hits := s.hits.Load()
	misses := s.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return Stats{
		Entries: s.Len(),
		Hits:    hits,
		Misses:  misses,
		HitRate: hitRate,
	}
}
