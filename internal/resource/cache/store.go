// Package cache provides an in-memory key/value store with per-entry expiry
// and hit/miss accounting. Expired entries are treated as absent on lookup
// but remain in memory until the background reaper sweeps them or a write
// replaces them; reclamation is deliberately deferred off the read path.
package cache

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/toolpool-dev/toolpool/internal/resource/configuration"
	"github.com/toolpool-dev/toolpool/pkg/audit"
	"github.com/toolpool-dev/toolpool/pkg/telemetry"
)

// actorName identifies this component in audit records.
const actorName = "cache-store"

// Entry is one cached value with its expiry and usage accounting.
// All mutation happens under the owning store's lock.
type Entry[V any] struct {
	// Key is the lookup key the entry is stored under.
	Key string

	// Value is the cached payload.
	Value V

	// CreatedAt records when the entry was written.
	CreatedAt time.Time

	// ExpiresAt is the instant after which lookups treat the entry as absent.
	ExpiresAt time.Time

	// Hits counts successful lookups of this entry.
	Hits int64
}

// Store is a TTL key/value cache scoped to one payload type. The zero value
// is not usable; construct with New.
type Store[V any] struct {
	mu         sync.RWMutex
	entries    map[string]*Entry[V]
	defaultTTL time.Duration

	// Process-wide counters, read on hot paths without the lock.
	hits   atomic.Int64
	misses atomic.Int64

	tracer  telemetry.Tracer
	auditor audit.Auditor
	logger  *slog.Logger

	// now is the clock source, overridable in tests.
	now func() time.Time
}

// New returns an empty store. A non-positive write TTL falls back to
// cfg.DefaultTTL. Nil collaborators fall back to no-op implementations.
func New[V any](cfg configuration.CacheConfig, tracer telemetry.Tracer, auditor audit.Auditor, logger *slog.Logger) *Store[V] {
	if tracer == nil {
		tracer = telemetry.NewNoopTracer()
	}
	if auditor == nil {
		auditor = audit.NewNoopAuditor()
	}
	if logger == nil {
		logger = slog.Default()
	}
	ttl := cfg.DefaultTTL
	if ttl <= 0 {
		ttl = configuration.DefaultCacheTTL
	}

	return &Store[V]{
		entries:    make(map[string]*Entry[V]),
		defaultTTL: ttl,
		tracer:     tracer,
		auditor:    auditor,
		logger:     logger.With("component", "cache"),
		now:        time.Now,
	}
}

// Set stores value under key with an expiry of now + ttl, unconditionally
// replacing any existing entry. A non-positive ttl uses the store default.
func (s *Store[V]) Set(key string, value V, ttl time.Duration) {
	span := s.tracer.StartSpan("cache.set", telemetry.Attrs{telemetry.AttrCacheKey: key})
	defer span.End()

	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	now := s.now()

	s.mu.Lock()
	s.entries[key] = &Entry[V]{
		Key:       key,
		Value:     value,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	s.mu.Unlock()

	span.AddEvent("stored", telemetry.Attrs{"ttl": ttl.String()})
}

// Get returns the value under key when present and unexpired. An expired
// entry counts as a miss but is not removed here; the reaper or the next Set
// on the key reclaims it.
func (s *Store[V]) Get(key string) (V, bool) {
	span := s.tracer.StartSpan("cache.get", telemetry.Attrs{telemetry.AttrCacheKey: key})
	defer span.End()

	now := s.now()

	s.mu.Lock()
	entry, ok := s.entries[key]
	if !ok || now.After(entry.ExpiresAt) {
		s.mu.Unlock()
		s.misses.Add(1)
		span.AddEvent("lookup", telemetry.Attrs{telemetry.AttrOutcome: telemetry.OutcomeMiss})
		var zero V
		return zero, false
	}
	entry.Hits++
	value := entry.Value
	s.mu.Unlock()

	s.hits.Add(1)
	span.AddEvent("lookup", telemetry.Attrs{telemetry.AttrOutcome: telemetry.OutcomeHit})
	return value, true
}

// Clear removes one entry and reports whether it was present.
func (s *Store[V]) Clear(key string) bool {
	span := s.tracer.StartSpan("cache.clear", telemetry.Attrs{telemetry.AttrCacheKey: key})
	defer span.End()

	s.mu.Lock()
	_, ok := s.entries[key]
	delete(s.entries, key)
	s.mu.Unlock()

	span.SetAttribute(telemetry.AttrOutcome, strconv.FormatBool(ok))
	return ok
}

// ClearAll removes every entry and returns the count removed. The bulk clear
// is recorded to the auditor; individual hits and misses are not.
func (s *Store[V]) ClearAll(ctx context.Context) int {
	span := s.tracer.StartSpan("cache.clear_all", nil)
	defer span.End()

	s.mu.Lock()
	removed := len(s.entries)
	s.entries = make(map[string]*Entry[V])
	s.mu.Unlock()

	span.AddEvent("cleared", telemetry.Attrs{telemetry.AttrCount: strconv.Itoa(removed)})

	rec := audit.NewRecord(actorName, "cache.clear_all", "cache", "success", audit.SeverityInfo)
	rec.Details = map[string]string{"entries_removed": strconv.Itoa(removed)}
	if err := s.auditor.RecordAudit(ctx, rec); err != nil {
		s.logger.Warn("audit record failed", "action", rec.Action, "error", err)
	}

	return removed
}

// SweepExpired removes every entry whose expiry has passed and returns the
// count removed. Called periodically by the background reaper.
func (s *Store[V]) SweepExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, entry := range s.entries {
		if now.After(entry.ExpiresAt) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of entries currently held, including expired ones
// not yet swept.
func (s *Store[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
