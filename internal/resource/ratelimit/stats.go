package ratelimit

// Stats holds admission control counters for observability consumers.
type Stats struct {
	// Limiters is the number of registered limiters.
	Limiters int `json:"limiters"`

	// Throttled is the number of limiters currently in the throttled state.
	Throttled int `json:"throttled"`

	// Allowed is the total number of admitted checks, including fail-open
	// checks against unknown limiter ids.
	Allowed int64 `json:"allowed"`

	// Denied is the total number of denied checks.
	Denied int64 `json:"denied"`
}

// GetStats returns a snapshot of admission counters and limiter state.
func (r *Registry) GetStats() Stats {
	r.mu.Lock()
	throttled := 0
	for _, lim := range r.limiters {
		if lim.throttled {
			throttled++
		}
	}
	count := len(r.limiters)
	r.mu.Unlock()

	return Stats{
		Limiters:  count,
		Throttled: throttled,
		Allowed:   r.allowed.Load(),
		Denied:    r.denied.Load(),
	}
}
