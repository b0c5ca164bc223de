// Package resource is the composition root of the remote-endpoint resource
// management layer. A Manager owns one instance of each subsystem
// (connection pools, cache store, rate limiter registry, serialization
// profiler, and the background reaper), constructed once per process and
// passed by reference to consumers.
package resource

import (
	"context"
	"log/slog"
	"time"

	"github.com/toolpool-dev/toolpool/internal/resource/cache"
	"github.com/toolpool-dev/toolpool/internal/resource/configuration"
	"github.com/toolpool-dev/toolpool/internal/resource/pool"
	"github.com/toolpool-dev/toolpool/internal/resource/ratelimit"
	"github.com/toolpool-dev/toolpool/internal/resource/reaper"
	"github.com/toolpool-dev/toolpool/internal/resource/serialization"
	"github.com/toolpool-dev/toolpool/pkg/audit"
	"github.com/toolpool-dev/toolpool/pkg/telemetry"
)

// Manager composes the resource management subsystems behind the flat
// operation set callers consume. All methods are safe for concurrent use.
type Manager struct {
	cfg *configuration.Config

	pools      *pool.Manager
	cache      *cache.Store[any]
	limiters   *ratelimit.Registry
	serializer *serialization.Profiler
	reaper     *reaper.Reaper

	logger *slog.Logger
}

// Option customizes Manager construction.
type Option func(*options)

type options struct {
	tracer  telemetry.Tracer
	auditor audit.Auditor
	logger  *slog.Logger
	codec   serialization.Codec
}

// WithTracer wires the telemetry collaborator. Defaults to a no-op tracer.
func WithTracer(t telemetry.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithAuditor wires the governance collaborator. Defaults to a no-op auditor.
func WithAuditor(a audit.Auditor) Option {
	return func(o *options) { o.auditor = a }
}

// WithLogger wires the structured logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithCodec overrides the serialization codec selected by configuration.
func WithCodec(c serialization.Codec) Option {
	return func(o *options) { o.codec = c }
}

// NewManager validates cfg, constructs every subsystem, and starts the
// background reaper. A nil cfg uses the production defaults.
func NewManager(cfg *configuration.Config, opts ...Option) (*Manager, error) {
	if cfg == nil {
		cfg = configuration.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.tracer == nil {
		o.tracer = telemetry.NewNoopTracer()
	}
	if o.auditor == nil {
		o.auditor = audit.NewNoopAuditor()
	}
	if o.logger == nil {
		o.logger = configuration.NewLogger(cfg.Observability)
	}
	if o.codec == nil {
		codec, err := serialization.ForName(cfg.Serialization.Codec)
		if err != nil {
			return nil, err
		}
		o.codec = codec
	}

	m := &Manager{
		cfg:        cfg,
		pools:      pool.NewManager(cfg.Pool, o.tracer, o.auditor, o.logger),
		cache:      cache.New[any](cfg.Cache, o.tracer, o.auditor, o.logger),
		limiters:   ratelimit.NewRegistry(cfg.RateLimit, o.tracer, o.auditor, o.logger),
		serializer: serialization.NewProfiler(o.codec, o.tracer, o.logger),
		logger:     o.logger.With("component", "resource"),
	}
	m.reaper = reaper.New(cfg.Reaper, m.pools, m.cache, m.limiters, o.logger)
	m.reaper.Start()

	return m, nil
}

// Close stops the background reaper and drains every pool. The ctx bounds
// how long the drain may wait for in-flight connections.
func (m *Manager) Close(ctx context.Context) error {
	m.reaper.Stop()
	return m.pools.CloseAll(ctx)
}

// CreatePool registers a connection pool for the endpoint and returns its
// identifier. Idempotent per endpoint.
func (m *Manager) CreatePool(ctx context.Context, endpoint string, opts pool.Options) (string, error) {
	return m.pools.Create(ctx, endpoint, opts)
}

// GetConnection checks a connection out of the pool for the labeled
// operation, waiting for capacity when the pool is saturated.
func (m *Manager) GetConnection(ctx context.Context, poolID, label string) (*pool.Conn, error) {
	return m.pools.Acquire(ctx, poolID, label)
}

// ReleaseConnection returns a connection to its pool. Best-effort: never
// fails, even for unknown pools or connections.
func (m *Manager) ReleaseConnection(poolID, connID string) {
	m.pools.Release(poolID, connID)
}

// LookupConnection finds a connection by id, surfacing structural errors.
func (m *Manager) LookupConnection(poolID, connID string) (*pool.Conn, error) {
	return m.pools.GetConn(poolID, connID)
}

// CloseConnectionPool drains the pool and removes it from the registry once
// every active connection has been released.
func (m *Manager) CloseConnectionPool(ctx context.Context, poolID string) error {
	return m.pools.Close(ctx, poolID)
}

// CacheSet stores a value with an expiry of now + ttl. A non-positive ttl
// uses the configured default.
func (m *Manager) CacheSet(key string, value any, ttl time.Duration) {
	m.cache.Set(key, value, ttl)
}

// CacheGet returns the cached value when present and unexpired.
func (m *Manager) CacheGet(key string) (any, bool) {
	return m.cache.Get(key)
}

// CacheClear removes one cache entry and reports whether it was present.
func (m *Manager) CacheClear(key string) bool {
	return m.cache.Clear(key)
}

// CacheClearAll removes every cache entry and returns the count removed.
func (m *Manager) CacheClearAll(ctx context.Context) int {
	return m.cache.ClearAll(ctx)
}

// CreateRateLimiter registers an admission limiter for the endpoint and
// returns its identifier. Idempotent per endpoint.
func (m *Manager) CreateRateLimiter(endpoint string, maxPerMinute int) string {
	return m.limiters.Create(endpoint, maxPerMinute)
}

// CheckRateLimit runs one admission decision. Unknown limiter ids fail open.
func (m *Manager) CheckRateLimit(ctx context.Context, limiterID string) ratelimit.Decision {
	return m.limiters.Check(ctx, limiterID)
}

// Encode converts a value to its exchange-format representation, recording
// the attempt in the serialization statistics.
func (m *Manager) Encode(v any) (string, error) {
	return m.serializer.Encode(v)
}

// Decode populates out from exchange-format text, recording the attempt in
// the serialization statistics.
func (m *Manager) Decode(text string, out any) error {
	return m.serializer.Decode(text, out)
}
