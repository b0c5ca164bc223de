// Package reaper runs the periodic reclamation task for the resource
// management layer: it evicts idle connections past their timeout, purges
// expired cache entries, and resets stale rate-limiter windows. The reaper
// never surfaces errors to callers; a fault in one sweep is logged and the
// remaining sweeps continue.
package reaper

import (
	"log/slog"
	"sync"
	"time"

	"github.com/toolpool-dev/toolpool/internal/resource/configuration"
)

// ConnSweeper evicts idle connections whose last use is older than their
// pool's idle timeout.
type ConnSweeper interface {
	SweepIdle(now time.Time) int
}

// CacheSweeper removes expired cache entries.
type CacheSweeper interface {
	SweepExpired(now time.Time) int
}

// LimiterSweeper rolls over expired rate-limit windows and clears expired
// throttles.
type LimiterSweeper interface {
	Sweep(now time.Time) int
}

// Reaper periodically sweeps the three stateful subsystems. Start and Stop
// are idempotent and thread-safe; Stop waits for the sweep goroutine to
// finish, so no sweep runs after Stop returns.
type Reaper struct {
	interval time.Duration

	conns    ConnSweeper
	cache    CacheSweeper
	limiters LimiterSweeper

	mu     sync.Mutex
	ticker *time.Ticker
	stop   chan struct{}
	done   sync.WaitGroup

	logger *slog.Logger

	// now is the clock source, overridable in tests.
	now func() time.Time
}

// New returns a stopped reaper over the given sweepers. Any sweeper may be
// nil, in which case its sweep is skipped. A non-positive interval falls
// back to the package default.
func New(cfg configuration.ReaperConfig, conns ConnSweeper, cache CacheSweeper, limiters LimiterSweeper, logger *slog.Logger) *Reaper {
	if logger == nil {
		logger = slog.Default()
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = configuration.DefaultReaperInterval
	}

	return &Reaper{
		interval: interval,
		conns:    conns,
		cache:    cache,
		limiters: limiters,
		logger:   logger.With("component", "reaper"),
		now:      time.Now,
	}
}

// Start launches the background sweep goroutine. Calling Start on a running
// reaper is a no-op.
func (r *Reaper) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ticker != nil {
		return // Idempotent: already started, no-op
	}

	r.stop = make(chan struct{})
	r.ticker = time.NewTicker(r.interval)

	r.done.Add(1)
	go r.loop(r.ticker, r.stop)

	r.logger.Info("reaper started", "interval", r.interval)
}

// Stop terminates the sweep goroutine and waits for it to finish. Calling
// Stop on a stopped reaper is a no-op.
func (r *Reaper) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ticker == nil {
		return // Idempotent: not started or already stopped, no-op
	}

	close(r.stop)
	r.ticker.Stop()
	r.done.Wait()

	r.ticker = nil
	r.logger.Info("reaper stopped")
}

// loop waits for ticks and runs the sweeps until signaled to stop.
func (r *Reaper) loop(ticker *time.Ticker, stop chan struct{}) {
	defer r.done.Done()

	for {
		select {
		case <-ticker.C:
			r.RunSweeps()
		case <-stop:
			return
		}
	}
}

// RunSweeps performs the three independent sweeps once. Exported so shutdown
// paths and tests can force a deterministic sweep without waiting for a tick.
func (r *Reaper) RunSweeps() {
	now := r.now()

	if r.conns != nil {
		r.guarded("connections", func() {
			if n := r.conns.SweepIdle(now); n > 0 {
				r.logger.Debug("idle connections evicted", "count", n)
			}
		})
	}
	if r.cache != nil {
		r.guarded("cache", func() {
			if n := r.cache.SweepExpired(now); n > 0 {
				r.logger.Debug("expired cache entries purged", "count", n)
			}
		})
	}
	if r.limiters != nil {
		r.guarded("ratelimit", func() {
			if n := r.limiters.Sweep(now); n > 0 {
				r.logger.Debug("stale limiter windows reset", "count", n)
			}
		})
	}
}

// guarded runs one sweep, converting a panic into a log line so a fault in
// one subsystem cannot stop the others.
func (r *Reaper) guarded(name string, sweep func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("sweep panicked", "sweep", name, "panic", rec)
		}
	}()
	sweep()
}
