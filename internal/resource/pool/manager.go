package pool

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/toolpool-dev/toolpool/internal/resource/configuration"
	reserrors "github.com/toolpool-dev/toolpool/internal/resource/errors"
	"github.com/toolpool-dev/toolpool/pkg/audit"
	"github.com/toolpool-dev/toolpool/pkg/telemetry"
)

// actorName identifies this component in audit records.
const actorName = "pool-manager"

// saturationLogInterval throttles the "pool saturated" warning so a stuck
// pool cannot flood the log pipeline.
const saturationLogInterval = 10 * time.Second

// Manager owns every connection pool, keyed by deterministic pool ID.
// All methods are safe for concurrent use.
type Manager struct {
	mu    sync.Mutex
	pools map[string]*Pool

	defaults configuration.PoolConfig

	tracer  telemetry.Tracer
	auditor audit.Auditor
	logger  *slog.Logger
	satLog  rate.Sometimes

	// now is the clock source, overridable in tests.
	now func() time.Time
}

// NewManager returns an empty pool registry. Nil collaborators fall back to
// no-op implementations; zero defaults fall back to the package constants.
func NewManager(cfg configuration.PoolConfig, tracer telemetry.Tracer, auditor audit.Auditor, logger *slog.Logger) *Manager {
	if tracer == nil {
		tracer = telemetry.NewNoopTracer()
	}
	if auditor == nil {
		auditor = audit.NewNoopAuditor()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = configuration.DefaultMaxConns
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = configuration.DefaultAcquireTimeout
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = configuration.DefaultIdleTimeout
	}

	return &Manager{
		pools:    make(map[string]*Pool),
		defaults: cfg,
		tracer:   tracer,
		auditor:  auditor,
		logger:   logger.With("component", "pool"),
		satLog:   rate.Sometimes{First: 3, Interval: saturationLogInterval},
		now:      time.Now,
	}
}

// Create registers a pool for the endpoint and returns its identifier.
// Creation is idempotent: a second call for the same endpoint returns the
// existing pool's identifier and leaves it untouched.
func (m *Manager) Create(ctx context.Context, endpoint string, opts Options) (string, error) {
	span := m.tracer.StartSpan("pool.create", telemetry.Attrs{telemetry.AttrEndpoint: endpoint})
	defer span.End()

	if endpoint == "" {
		err := fmt.Errorf("endpoint address is required")
		span.RecordError(err)
		return "", err
	}

	id := ID(endpoint)
	span.SetAttribute(telemetry.AttrPoolID, id)

	maxConns := opts.MaxConns
	if maxConns <= 0 {
		maxConns = m.defaults.MaxConns
	}
	acquireTimeout := opts.AcquireTimeout
	if acquireTimeout <= 0 {
		acquireTimeout = m.defaults.AcquireTimeout
	}
	idleTimeout := opts.IdleTimeout
	if idleTimeout <= 0 {
		idleTimeout = m.defaults.IdleTimeout
	}

	m.mu.Lock()
	if _, ok := m.pools[id]; ok {
		m.mu.Unlock()
		span.AddEvent("exists", telemetry.Attrs{telemetry.AttrOutcome: telemetry.OutcomeReused})
		return id, nil
	}
	m.pools[id] = &Pool{
		ID:             id,
		Endpoint:       endpoint,
		MaxConns:       maxConns,
		AcquireTimeout: acquireTimeout,
		IdleTimeout:    idleTimeout,
		Status:         StatusActive,
		CreatedAt:      m.now(),
		conns:          make(map[string]*Conn),
	}
	m.mu.Unlock()

	span.AddEvent("created", telemetry.Attrs{telemetry.AttrOutcome: telemetry.OutcomeCreated})
	m.logger.Info("connection pool created",
		"pool_id", id, "endpoint", endpoint, "max_conns", maxConns)

	rec := audit.NewRecord(actorName, "pool.create", id, "success", audit.SeverityInfo)
	rec.Details = map[string]string{
		"endpoint":  endpoint,
		"max_conns": strconv.Itoa(maxConns),
	}
	if err := m.auditor.RecordAudit(ctx, rec); err != nil {
		m.logger.Warn("audit record failed", "action", rec.Action, "error", err)
	}

	return id, nil
}

// Acquire checks a connection out of the pool for the labeled operation.
// Priority order: reuse an idle connection, create one under capacity, or
// park until a release hands one over. The wait honors ctx and the pool's
// acquire timeout. A successfully returned connection is exclusively owned
// by the caller until released.
func (m *Manager) Acquire(ctx context.Context, poolID, label string) (*Conn, error) {
	span := m.tracer.StartSpan("pool.acquire", telemetry.Attrs{
		telemetry.AttrPoolID:    poolID,
		telemetry.AttrOperation: label,
	})
	defer span.End()

	m.mu.Lock()
	p, ok := m.pools[poolID]
	if !ok {
		m.mu.Unlock()
		err := &reserrors.PoolUnavailableError{PoolID: poolID, Status: "missing"}
		span.RecordError(err)
		return nil, err
	}
	if p.Status != StatusActive {
		status := string(p.Status)
		m.mu.Unlock()
		err := &reserrors.PoolUnavailableError{PoolID: poolID, Status: status}
		span.RecordError(err)
		return nil, err
	}

	now := m.now()

	// Reuse is the common, cheap path.
	if c := p.takeIdle(); c != nil {
		c.Status = ConnActive
		c.LastUsed = now
		c.UseCount++
		c.Label = label
		m.mu.Unlock()
		span.AddEvent("acquired", telemetry.Attrs{
			telemetry.AttrOutcome: telemetry.OutcomeReused,
			telemetry.AttrConnID:  c.ID,
		})
		return c, nil
	}

	if len(p.conns) < p.MaxConns {
		c := &Conn{
			ID:        uuid.NewString(),
			Status:    ConnActive,
			CreatedAt: now,
			LastUsed:  now,
			UseCount:  1,
			Label:     label,
		}
		p.conns[c.ID] = c
		m.mu.Unlock()
		span.AddEvent("acquired", telemetry.Attrs{
			telemetry.AttrOutcome: telemetry.OutcomeCreated,
			telemetry.AttrConnID:  c.ID,
		})
		return c, nil
	}

	// Saturated: park on the waiter queue until a release hands a
	// connection over, the deadline passes, or the caller gives up.
	w := &waiter{ch: make(chan *Conn, 1), label: label}
	p.waiters = append(p.waiters, w)
	acquireTimeout := p.AcquireTimeout
	m.mu.Unlock()

	m.satLog.Do(func() {
		m.logger.Warn("pool saturated, caller parked",
			"pool_id", poolID, "operation", label)
	})
	span.AddEvent("parked", nil)

	timer := time.NewTimer(acquireTimeout)
	defer timer.Stop()

	select {
	case c, open := <-w.ch:
		if !open {
			err := &reserrors.PoolUnavailableError{PoolID: poolID, Status: string(StatusDraining)}
			span.RecordError(err)
			return nil, err
		}
		span.AddEvent("acquired", telemetry.Attrs{
			telemetry.AttrOutcome: telemetry.OutcomeReused,
			telemetry.AttrConnID:  c.ID,
		})
		return c, nil

	case <-ctx.Done():
		m.abandonWaiter(poolID, w)
		span.RecordError(ctx.Err())
		return nil, fmt.Errorf("acquire connection from pool %s: %w", poolID, ctx.Err())

	case <-timer.C:
		m.abandonWaiter(poolID, w)
		err := fmt.Errorf("pool %s: %w", poolID, reserrors.ErrAcquireTimeout)
		span.RecordError(err)
		return nil, err
	}
}

// abandonWaiter removes w from the pool's queue after a timeout or
// cancellation. If a release delivered a connection in the meantime the
// connection is handed straight back so it is not leaked.
func (m *Manager) abandonWaiter(poolID string, w *waiter) {
	m.mu.Lock()
	if p, ok := m.pools[poolID]; ok {
		for i, cand := range p.waiters {
			if cand == w {
				p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
				m.mu.Unlock()
				return
			}
		}
	}
	m.mu.Unlock()

	// Not queued anymore: a delivery or pool close raced the abandonment.
	// Deliveries are buffered, so a non-blocking receive observes them.
	select {
	case c, open := <-w.ch:
		if open && c != nil {
			m.Release(poolID, c.ID)
		}
	default:
	}
}

// Release returns a connection to its pool. Release is best-effort and never
// fails: unknown pools or connections are logged and ignored because release
// commonly runs in cleanup paths. A parked waiter, if any, receives the
// connection directly without it ever appearing idle.
func (m *Manager) Release(poolID, connID string) {
	span := m.tracer.StartSpan("pool.release", telemetry.Attrs{
		telemetry.AttrPoolID: poolID,
		telemetry.AttrConnID: connID,
	})
	defer span.End()

	m.mu.Lock()
	p, ok := m.pools[poolID]
	if !ok {
		m.mu.Unlock()
		m.logger.Warn("release for unknown pool", "pool_id", poolID, "conn_id", connID)
		span.AddEvent("release", telemetry.Attrs{telemetry.AttrOutcome: "unknown_pool"})
		return
	}
	c, ok := p.conns[connID]
	if !ok {
		m.mu.Unlock()
		m.logger.Warn("release for unknown connection", "pool_id", poolID, "conn_id", connID)
		span.AddEvent("release", telemetry.Attrs{telemetry.AttrOutcome: "unknown_conn"})
		return
	}

	now := m.now()

	// Draining pools discard released connections immediately; the last one
	// out completes the close.
	if p.Status == StatusDraining {
		c.Status = ConnClosing
		delete(p.conns, connID)
		closedNow := false
		if active, _ := p.counts(); active == 0 {
			m.finishDrainLocked(p)
			closedNow = true
		}
		m.mu.Unlock()
		span.AddEvent("release", telemetry.Attrs{telemetry.AttrOutcome: "discarded"})
		if closedNow {
			m.auditPoolClosed(context.Background(), p)
		}
		return
	}

	if len(p.waiters) > 0 {
		w := p.waiters[0]
		p.waiters = p.waiters[1:]
		c.LastUsed = now
		c.UseCount++
		c.Label = w.label
		w.ch <- c // buffered, never blocks
		m.mu.Unlock()
		span.AddEvent("release", telemetry.Attrs{telemetry.AttrOutcome: "handoff"})
		return
	}

	c.Status = ConnIdle
	c.LastUsed = now
	c.Label = ""
	m.mu.Unlock()
	span.AddEvent("release", telemetry.Attrs{telemetry.AttrOutcome: "idle"})
}

// GetConn looks up a connection by id. Unlike Release, an explicit lookup
// surfaces structural errors to the caller.
func (m *Manager) GetConn(poolID, connID string) (*Conn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pools[poolID]
	if !ok {
		return nil, &reserrors.PoolUnavailableError{PoolID: poolID, Status: "missing"}
	}
	c, ok := p.conns[connID]
	if !ok {
		return nil, &reserrors.ConnectionNotFoundError{PoolID: poolID, ConnID: connID}
	}
	return c, nil
}

// Close transitions the pool to draining, fails parked waiters, discards
// idle connections immediately, and blocks until every active connection is
// released, at which point the pool is removed from the registry. The wait
// honors ctx; the drain itself continues regardless and the last release
// completes the removal.
func (m *Manager) Close(ctx context.Context, poolID string) error {
	span := m.tracer.StartSpan("pool.close", telemetry.Attrs{telemetry.AttrPoolID: poolID})
	defer span.End()

	m.mu.Lock()
	p, ok := m.pools[poolID]
	if !ok {
		m.mu.Unlock()
		err := &reserrors.PoolUnavailableError{PoolID: poolID, Status: "missing"}
		span.RecordError(err)
		return err
	}

	if p.Status == StatusActive {
		p.Status = StatusDraining

		for _, w := range p.waiters {
			close(w.ch)
		}
		p.waiters = nil

		for id, c := range p.conns {
			if c.Status == ConnIdle {
				c.Status = ConnClosing
				delete(p.conns, id)
			}
		}
		m.logger.Info("pool draining", "pool_id", poolID, "endpoint", p.Endpoint)
		span.AddEvent("draining", nil)
	}

	if active, _ := p.counts(); active == 0 {
		m.finishDrainLocked(p)
		m.mu.Unlock()
		span.AddEvent("closed", nil)
		m.auditPoolClosed(ctx, p)
		return nil
	}

	if p.drained == nil {
		p.drained = make(chan struct{})
	}
	drained := p.drained
	m.mu.Unlock()

	select {
	case <-drained:
		span.AddEvent("closed", nil)
		return nil
	case <-ctx.Done():
		span.RecordError(ctx.Err())
		return fmt.Errorf("close pool %s: %w", poolID, ctx.Err())
	}
}

// CloseAll drains every pool, used on manager shutdown.
func (m *Manager) CloseAll(ctx context.Context) error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.pools))
	for id := range m.pools {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	var firstErr error
	for _, id := range ids {
		if err := m.Close(ctx, id); err != nil && !reserrors.IsPoolUnavailable(err) {
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// finishDrainLocked removes a fully drained pool from the registry. Caller
// holds the manager lock.
func (m *Manager) finishDrainLocked(p *Pool) {
	p.Status = StatusClosed
	delete(m.pools, p.ID)
	if p.drained != nil {
		close(p.drained)
		p.drained = nil
	}
	m.logger.Info("pool closed", "pool_id", p.ID, "endpoint", p.Endpoint)
}

// auditPoolClosed emits the closure record once a pool has left the registry.
func (m *Manager) auditPoolClosed(ctx context.Context, p *Pool) {
	rec := audit.NewRecord(actorName, "pool.close", p.ID, "success", audit.SeverityInfo)
	rec.Details = map[string]string{"endpoint": p.Endpoint}
	if err := m.auditor.RecordAudit(ctx, rec); err != nil {
		m.logger.Warn("audit record failed", "action", rec.Action, "error", err)
	}
}

// SweepIdle evicts idle connections whose last use is older than their
// pool's idle timeout. Evicted connections are never reused. Called
// periodically by the background reaper; returns the number evicted.
func (m *Manager) SweepIdle(now time.Time) int {
	m.mu.Lock()
	evicted := 0
	for _, p := range m.pools {
		if p.Status != StatusActive {
			continue
		}
		for id, c := range p.conns {
			if c.Status == ConnIdle && now.Sub(c.LastUsed) > p.IdleTimeout {
				c.Status = ConnClosing
				delete(p.conns, id)
				evicted++
			}
		}
	}
	m.mu.Unlock()

	if evicted > 0 {
		m.logger.Debug("evicted idle connections", "count", evicted)
	}
	return evicted
}
