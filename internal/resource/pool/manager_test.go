package pool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolpool-dev/toolpool/internal/resource/configuration"
	reserrors "github.com/toolpool-dev/toolpool/internal/resource/errors"
	"github.com/toolpool-dev/toolpool/pkg/audit"
	"github.com/toolpool-dev/toolpool/pkg/telemetry"
)

// newTestManager creates a manager with short timeouts suitable for tests.
func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(configuration.PoolConfig{
		MaxConns:       2,
		AcquireTimeout: 200 * time.Millisecond,
		IdleTimeout:    time.Minute,
	}, nil, nil, nil)
}

// assertInvariant verifies active + idle == owned <= max for one pool.
func assertInvariant(t *testing.T, m *Manager, poolID string) {
	t.Helper()
	ps, ok := m.GetPool(poolID)
	require.True(t, ok, "pool %s should exist", poolID)
	assert.LessOrEqual(t, ps.Active+ps.Idle, ps.MaxConns)
}

func TestManager_CreateIsIdempotent(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	first, err := m.Create(ctx, "https://tools.example.com/analyzer", Options{})
	require.NoError(t, err)

	second, err := m.Create(ctx, "https://tools.example.com/analyzer", Options{MaxConns: 99})
	require.NoError(t, err)

	assert.Equal(t, first, second, "same endpoint must map to the same pool")

	ps, ok := m.GetPool(first)
	require.True(t, ok)
	assert.Equal(t, StatusActive, ps.Status)
	assert.Equal(t, 2, ps.MaxConns, "second create must not reconfigure the pool")
	assert.Equal(t, 1, m.GetStats().Pools)
}

func TestManager_CreateRejectsEmptyEndpoint(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Create(context.Background(), "", Options{})
	require.Error(t, err)
}

func TestManager_CreateIDIsDeterministic(t *testing.T) {
	assert.Equal(t, ID("https://a.example.com"), ID("https://a.example.com"))
	assert.NotEqual(t, ID("https://a.example.com"), ID("https://b.example.com"))
}

func TestManager_AcquireUnknownPool(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Acquire(context.Background(), "no-such-pool", "fetch")
	require.Error(t, err)
	assert.True(t, reserrors.IsPoolUnavailable(err))
}

func TestManager_AcquireCreatesThenReuses(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	id, err := m.Create(ctx, "https://tools.example.com/quotes", Options{})
	require.NoError(t, err)

	c1, err := m.Acquire(ctx, id, "fetch-quote")
	require.NoError(t, err)
	assert.Equal(t, ConnActive, c1.Status)
	assert.Equal(t, "fetch-quote", c1.Label)
	assert.Equal(t, int64(1), c1.UseCount)
	assertInvariant(t, m, id)

	m.Release(id, c1.ID)

	ps, ok := m.GetPool(id)
	require.True(t, ok)
	assert.Equal(t, 1, ps.Idle)
	assert.Equal(t, 0, ps.Active)

	// The idle connection must be reused rather than a new one created.
	c2, err := m.Acquire(ctx, id, "fetch-history")
	require.NoError(t, err)
	assert.Equal(t, c1.ID, c2.ID)
	assert.Equal(t, int64(2), c2.UseCount)
	assert.Equal(t, "fetch-history", c2.Label)
	assertInvariant(t, m, id)
}

func TestManager_ReleaseClearsLabelAndMarksIdle(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	id, err := m.Create(ctx, "https://tools.example.com/fx", Options{})
	require.NoError(t, err)

	c, err := m.Acquire(ctx, id, "convert")
	require.NoError(t, err)

	m.Release(id, c.ID)

	got, err := m.GetConn(id, c.ID)
	require.NoError(t, err)
	assert.Equal(t, ConnIdle, got.Status)
	assert.Empty(t, got.Label)
}

func TestManager_ReleaseUnknownIsSilent(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	id, err := m.Create(ctx, "https://tools.example.com/fx", Options{})
	require.NoError(t, err)

	// Neither call may panic or surface an error.
	m.Release("no-such-pool", "c1")
	m.Release(id, "no-such-conn")
}

func TestManager_GetConnUnknown(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	id, err := m.Create(ctx, "https://tools.example.com/fx", Options{})
	require.NoError(t, err)

	_, err = m.GetConn(id, "no-such-conn")
	require.Error(t, err)
	assert.True(t, reserrors.IsConnectionNotFound(err))

	_, err = m.GetConn("no-such-pool", "c1")
	require.Error(t, err)
	assert.True(t, reserrors.IsPoolUnavailable(err))
}

func TestManager_SaturatedAcquireReceivesHandoff(t *testing.T) {
	m := NewManager(configuration.PoolConfig{
		MaxConns:       1,
		AcquireTimeout: 2 * time.Second,
		IdleTimeout:    time.Minute,
	}, nil, nil, nil)
	ctx := context.Background()

	id, err := m.Create(ctx, "https://tools.example.com/search", Options{})
	require.NoError(t, err)

	c1, err := m.Acquire(ctx, id, "first")
	require.NoError(t, err)

	type result struct {
		conn *Conn
		err  error
	}
	results := make(chan result, 1)
	go func() {
		c, acqErr := m.Acquire(ctx, id, "second")
		results <- result{conn: c, err: acqErr}
	}()

	// Wait until the second acquisition is parked.
	require.Eventually(t, func() bool {
		ps, ok := m.GetPool(id)
		return ok && ps.Waiters == 1
	}, time.Second, 5*time.Millisecond)

	m.Release(id, c1.ID)

	select {
	case res := <-results:
		require.NoError(t, res.err)
		assert.Equal(t, c1.ID, res.conn.ID, "waiter must receive the released connection")
		assert.Equal(t, "second", res.conn.Label)
		assert.Equal(t, int64(2), res.conn.UseCount)
	case <-time.After(time.Second):
		t.Fatal("parked acquisition was never fulfilled")
	}

	// A handed-off connection never appears idle.
	ps, ok := m.GetPool(id)
	require.True(t, ok)
	assert.Equal(t, 1, ps.Active)
	assert.Equal(t, 0, ps.Idle)
	assert.Equal(t, 0, ps.Waiters)
}

func TestManager_SaturatedAcquireHonorsContextCancel(t *testing.T) {
	m := NewManager(configuration.PoolConfig{
		MaxConns:       1,
		AcquireTimeout: time.Minute,
		IdleTimeout:    time.Minute,
	}, nil, nil, nil)
	ctx := context.Background()

	id, err := m.Create(ctx, "https://tools.example.com/search", Options{})
	require.NoError(t, err)

	_, err = m.Acquire(ctx, id, "holder")
	require.NoError(t, err)

	waitCtx, cancel := context.WithCancel(ctx)
	errs := make(chan error, 1)
	go func() {
		_, acqErr := m.Acquire(waitCtx, id, "canceled")
		errs <- acqErr
	}()

	require.Eventually(t, func() bool {
		ps, ok := m.GetPool(id)
		return ok && ps.Waiters == 1
	}, time.Second, 5*time.Millisecond)

	cancel()

	select {
	case acqErr := <-errs:
		require.Error(t, acqErr)
		assert.ErrorIs(t, acqErr, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("canceled acquisition did not return")
	}

	// No ghost waiter may remain behind.
	require.Eventually(t, func() bool {
		ps, ok := m.GetPool(id)
		return ok && ps.Waiters == 0
	}, time.Second, 5*time.Millisecond)
}

func TestManager_SaturatedAcquireTimesOut(t *testing.T) {
	m := NewManager(configuration.PoolConfig{
		MaxConns:       1,
		AcquireTimeout: 50 * time.Millisecond,
		IdleTimeout:    time.Minute,
	}, nil, nil, nil)
	ctx := context.Background()

	id, err := m.Create(ctx, "https://tools.example.com/search", Options{})
	require.NoError(t, err)

	_, err = m.Acquire(ctx, id, "holder")
	require.NoError(t, err)

	_, err = m.Acquire(ctx, id, "starved")
	require.Error(t, err)
	assert.ErrorIs(t, err, reserrors.ErrAcquireTimeout)
}

func TestManager_ConcurrentAcquireReleaseKeepsInvariant(t *testing.T) {
	m := NewManager(configuration.PoolConfig{
		MaxConns:       4,
		AcquireTimeout: 2 * time.Second,
		IdleTimeout:    time.Minute,
	}, nil, nil, nil)
	ctx := context.Background()

	id, err := m.Create(ctx, "https://tools.example.com/bulk", Options{})
	require.NoError(t, err)

	const workers = 16
	const iterations = 25

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				c, acqErr := m.Acquire(ctx, id, "bulk-op")
				if acqErr != nil {
					continue
				}
				m.Release(id, c.ID)
			}
		}()
	}
	wg.Wait()

	ps, ok := m.GetPool(id)
	require.True(t, ok)
	assert.Equal(t, 0, ps.Active, "all connections must be released")
	assert.LessOrEqual(t, ps.Idle, ps.MaxConns)
	assert.Equal(t, 0, ps.Waiters)
}

func TestManager_SweepIdleEvictsOnlyAfterTimeout(t *testing.T) {
	m := NewManager(configuration.PoolConfig{
		MaxConns:       2,
		AcquireTimeout: time.Second,
		IdleTimeout:    60 * time.Second,
	}, nil, nil, nil)

	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return current }

	ctx := context.Background()
	id, err := m.Create(ctx, "https://tools.example.com/slow", Options{})
	require.NoError(t, err)

	c, err := m.Acquire(ctx, id, "warmup")
	require.NoError(t, err)
	m.Release(id, c.ID)

	// Before the timeout elapses nothing may be evicted.
	current = current.Add(59 * time.Second)
	assert.Zero(t, m.SweepIdle(current))
	ps, _ := m.GetPool(id)
	assert.Equal(t, 1, ps.Idle)

	// Strictly past the timeout the connection goes away.
	current = current.Add(2 * time.Second)
	assert.Equal(t, 1, m.SweepIdle(current))
	ps, _ = m.GetPool(id)
	assert.Equal(t, 0, ps.Idle)
	assert.Equal(t, 0, ps.Active)

	// Evicted connections are never reused: the next acquire creates fresh.
	c2, err := m.Acquire(ctx, id, "fresh")
	require.NoError(t, err)
	assert.NotEqual(t, c.ID, c2.ID)
}

func TestManager_SweepIdleLeavesActiveConnections(t *testing.T) {
	m := newTestManager(t)
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return current }

	ctx := context.Background()
	id, err := m.Create(ctx, "https://tools.example.com/slow", Options{})
	require.NoError(t, err)

	_, err = m.Acquire(ctx, id, "long-running")
	require.NoError(t, err)

	current = current.Add(time.Hour)
	assert.Zero(t, m.SweepIdle(current), "active connections are not idle-evicted")
}

func TestManager_CloseDrainsThenRemovesPool(t *testing.T) {
	recorder := telemetry.NewRecorder()
	auditor := audit.NewMemoryAuditor()
	m := NewManager(configuration.PoolConfig{
		MaxConns:       2,
		AcquireTimeout: time.Second,
		IdleTimeout:    time.Minute,
	}, recorder, auditor, nil)
	ctx := context.Background()

	id, err := m.Create(ctx, "https://tools.example.com/drain", Options{})
	require.NoError(t, err)

	c, err := m.Acquire(ctx, id, "in-flight")
	require.NoError(t, err)

	closed := make(chan error, 1)
	go func() { closed <- m.Close(ctx, id) }()

	// While a connection is in flight the pool must linger in draining.
	require.Eventually(t, func() bool {
		ps, ok := m.GetPool(id)
		return ok && ps.Status == StatusDraining
	}, time.Second, 5*time.Millisecond)

	// New acquisitions are rejected during the drain.
	_, err = m.Acquire(ctx, id, "late")
	require.Error(t, err)
	assert.True(t, reserrors.IsPoolUnavailable(err))

	m.Release(id, c.ID)

	select {
	case closeErr := <-closed:
		require.NoError(t, closeErr)
	case <-time.After(time.Second):
		t.Fatal("close did not complete after the last release")
	}

	_, ok := m.GetPool(id)
	assert.False(t, ok, "drained pool must be removed from the registry")

	_, ok = auditor.FindAction("pool.close")
	assert.True(t, ok, "pool closure must be audited")
}

func TestManager_CloseDiscardsIdleImmediately(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	id, err := m.Create(ctx, "https://tools.example.com/drain", Options{})
	require.NoError(t, err)

	c, err := m.Acquire(ctx, id, "warmup")
	require.NoError(t, err)
	m.Release(id, c.ID)

	require.NoError(t, m.Close(ctx, id))

	_, ok := m.GetPool(id)
	assert.False(t, ok, "pool with only idle connections closes at once")
}

func TestManager_CloseFailsParkedWaiters(t *testing.T) {
	m := NewManager(configuration.PoolConfig{
		MaxConns:       1,
		AcquireTimeout: time.Minute,
		IdleTimeout:    time.Minute,
	}, nil, nil, nil)
	ctx := context.Background()

	id, err := m.Create(ctx, "https://tools.example.com/drain", Options{})
	require.NoError(t, err)

	c, err := m.Acquire(ctx, id, "holder")
	require.NoError(t, err)

	errs := make(chan error, 1)
	go func() {
		_, acqErr := m.Acquire(ctx, id, "doomed")
		errs <- acqErr
	}()

	require.Eventually(t, func() bool {
		ps, ok := m.GetPool(id)
		return ok && ps.Waiters == 1
	}, time.Second, 5*time.Millisecond)

	closed := make(chan error, 1)
	go func() { closed <- m.Close(ctx, id) }()

	select {
	case acqErr := <-errs:
		require.Error(t, acqErr)
		assert.True(t, reserrors.IsPoolUnavailable(acqErr))
	case <-time.After(time.Second):
		t.Fatal("parked waiter was not failed by the drain")
	}

	m.Release(id, c.ID)
	require.NoError(t, <-closed)
}

func TestManager_CloseUnknownPool(t *testing.T) {
	m := newTestManager(t)

	err := m.Close(context.Background(), "no-such-pool")
	require.Error(t, err)
	assert.True(t, reserrors.IsPoolUnavailable(err))
}

func TestManager_CloseAllDrainsEveryPool(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	for _, endpoint := range []string{
		"https://tools.example.com/a",
		"https://tools.example.com/b",
	} {
		_, err := m.Create(ctx, endpoint, Options{})
		require.NoError(t, err)
	}

	require.NoError(t, m.CloseAll(ctx))
	assert.Zero(t, m.GetStats().Pools)
}

func TestManager_CreateEmitsTelemetryAndAudit(t *testing.T) {
	recorder := telemetry.NewRecorder()
	auditor := audit.NewMemoryAuditor()
	m := NewManager(configuration.PoolConfig{
		MaxConns:       2,
		AcquireTimeout: time.Second,
		IdleTimeout:    time.Minute,
	}, recorder, auditor, nil)

	id, err := m.Create(context.Background(), "https://tools.example.com/traced", Options{})
	require.NoError(t, err)

	span := recorder.FindSpan("pool.create")
	require.NotNil(t, span, "pool creation must open a span")
	assert.True(t, span.Ended)
	assert.Contains(t, span.EventNames(), "created")

	rec, ok := auditor.FindAction("pool.create")
	require.True(t, ok, "pool creation must be audited")
	assert.Equal(t, id, rec.Resource)
	assert.Equal(t, audit.SeverityInfo, rec.Severity)
}
