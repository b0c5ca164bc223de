// Package ratelimit implements per-endpoint fixed-window admission control.
// Each endpoint gets one limiter counting requests inside a fixed one-minute
// window; exhausting the budget throttles the endpoint until the window
// boundary. Window-edge bursts are an accepted property of fixed windows.
package ratelimit

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/toolpool-dev/toolpool/internal/resource/configuration"
	"github.com/toolpool-dev/toolpool/pkg/audit"
	"github.com/toolpool-dev/toolpool/pkg/telemetry"
)

// Window is the fixed admission window length.
const Window = time.Minute

// actorName identifies this component in audit records.
const actorName = "rate-limiter"

// limiterNamespace seeds deterministic limiter IDs so the same endpoint
// always maps to the same identifier.
var limiterNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("toolpool/ratelimit"))

// Limiter holds the fixed-window admission state for one endpoint.
// All fields are guarded by the owning registry's mutex.
type Limiter struct {
	// ID is the deterministic identifier derived from the endpoint.
	ID string

	// Endpoint is the remote address this limiter is scoped to.
	Endpoint string

	// MaxPerMinute is the request budget per window.
	MaxPerMinute int

	count         int
	windowStart   time.Time
	throttled     bool
	throttleUntil time.Time
}

// Decision is the outcome of one admission check. Denial is data, not an
// error: callers decide whether to back off, queue, or fail upstream.
type Decision struct {
	// Allowed reports whether the request may proceed.
	Allowed bool

	// Remaining is the budget left in the current window after this check.
	Remaining int

	// RetryAfter is how long a denied caller should wait before retrying.
	// Zero when Allowed.
	RetryAfter time.Duration
}

// Registry owns every limiter, keyed by deterministic limiter ID.
type Registry struct {
	mu         sync.Mutex
	limiters   map[string]*Limiter
	defaultMax int

	allowed atomic.Int64
	denied  atomic.Int64

	tracer  telemetry.Tracer
	auditor audit.Auditor
	logger  *slog.Logger

	// now is the clock source, overridable in tests.
	now func() time.Time
}

// NewRegistry returns an empty limiter registry. Nil collaborators fall back
// to no-op implementations.
func NewRegistry(cfg configuration.RateLimitConfig, tracer telemetry.Tracer, auditor audit.Auditor, logger *slog.Logger) *Registry {
	if tracer == nil {
		tracer = telemetry.NewNoopTracer()
	}
	if auditor == nil {
		auditor = audit.NewNoopAuditor()
	}
	if logger == nil {
		logger = slog.Default()
	}
	max := cfg.DefaultMaxPerMinute
	if max <= 0 {
		max = configuration.DefaultMaxPerMinute
	}

	return &Registry{
		limiters:   make(map[string]*Limiter),
		defaultMax: max,
		tracer:     tracer,
		auditor:    auditor,
		logger:     logger.With("component", "ratelimit"),
		now:        time.Now,
	}
}

// LimiterID returns the deterministic identifier for an endpoint address.
func LimiterID(endpoint string) string {
	return uuid.NewSHA1(limiterNamespace, []byte(endpoint)).String()
}

// Create registers a limiter for the endpoint and returns its identifier.
// Creation is idempotent: a second call for the same endpoint returns the
// existing limiter unchanged. A non-positive maxPerMinute uses the registry
// default.
func (r *Registry) Create(endpoint string, maxPerMinute int) string {
	span := r.tracer.StartSpan("ratelimit.create", telemetry.Attrs{telemetry.AttrEndpoint: endpoint})
	defer span.End()

	if maxPerMinute <= 0 {
		maxPerMinute = r.defaultMax
	}
	id := LimiterID(endpoint)
	span.SetAttribute(telemetry.AttrLimiterID, id)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.limiters[id]; ok {
		span.AddEvent("exists", telemetry.Attrs{telemetry.AttrOutcome: telemetry.OutcomeReused})
		return id
	}

	r.limiters[id] = &Limiter{
		ID:           id,
		Endpoint:     endpoint,
		MaxPerMinute: maxPerMinute,
		windowStart:  r.now(),
	}
	span.AddEvent("created", telemetry.Attrs{telemetry.AttrOutcome: telemetry.OutcomeCreated})
	r.logger.Info("rate limiter created",
		"limiter_id", id, "endpoint", endpoint, "max_per_minute", maxPerMinute)
	return id
}

// Check runs one admission decision for the limiter. An unknown limiter id
// fails open: a missing limiter must never block traffic.
func (r *Registry) Check(ctx context.Context, limiterID string) Decision {
	span := r.tracer.StartSpan("ratelimit.check", telemetry.Attrs{telemetry.AttrLimiterID: limiterID})
	defer span.End()

	now := r.now()

	r.mu.Lock()
	lim, ok := r.limiters[limiterID]
	if !ok {
		r.mu.Unlock()
		r.allowed.Add(1)
		r.logger.Debug("unknown limiter, failing open", "limiter_id", limiterID)
		span.AddEvent("decision", telemetry.Attrs{telemetry.AttrOutcome: telemetry.OutcomeAllowed})
		return Decision{Allowed: true}
	}

	decision, becameThrottled := lim.check(now)
	endpoint := lim.Endpoint
	limit := lim.MaxPerMinute
	r.mu.Unlock()

	if decision.Allowed {
		r.allowed.Add(1)
		span.AddEvent("decision", telemetry.Attrs{telemetry.AttrOutcome: telemetry.OutcomeAllowed})
	} else {
		r.denied.Add(1)
		span.AddEvent("decision", telemetry.Attrs{
			telemetry.AttrOutcome: telemetry.OutcomeThrottled,
			"retry_after":         decision.RetryAfter.String(),
		})
	}

	// Audit only the transition into the throttled state, not every denial.
	if becameThrottled {
		r.logger.Warn("rate limit exceeded, throttling endpoint",
			"limiter_id", limiterID, "endpoint", endpoint, "limit", limit)
		rec := audit.NewRecord(actorName, "ratelimit.throttle", limiterID, "denied", audit.SeverityWarning)
		rec.Details = map[string]string{
			"endpoint":       endpoint,
			"max_per_minute": strconv.Itoa(limit),
		}
		if err := r.auditor.RecordAudit(ctx, rec); err != nil {
			r.logger.Warn("audit record failed", "action", rec.Action, "error", err)
		}
	}

	return decision
}

// check evaluates the fixed-window decision table. Caller holds the registry
// lock. Returns the decision and whether this check flipped the limiter into
// the throttled state.
func (l *Limiter) check(now time.Time) (Decision, bool) {
	// Throttled: deny until the throttle expiry passes, then clear the flag
	// and fall through to the window logic.
	if l.throttled {
		if now.Before(l.throttleUntil) {
			return Decision{RetryAfter: l.throttleUntil.Sub(now)}, false
		}
		l.throttled = false
		l.throttleUntil = time.Time{}
	}

	// Window rollover discards the old count, counting this request.
	if now.Sub(l.windowStart) > Window {
		l.windowStart = now
		l.count = 1
		return Decision{Allowed: true, Remaining: l.MaxPerMinute - 1}, false
	}

	// Budget exhausted: throttle until the window boundary.
	if l.count >= l.MaxPerMinute {
		l.throttled = true
		l.throttleUntil = l.windowStart.Add(Window)
		return Decision{RetryAfter: l.throttleUntil.Sub(now)}, true
	}

	l.count++
	return Decision{Allowed: true, Remaining: l.MaxPerMinute - l.count}, false
}

// Sweep rolls over expired windows and clears expired throttles. Called
// periodically by the background reaper; returns the number of limiters
// touched.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	touched := 0
	for _, lim := range r.limiters {
		changed := false
		if lim.throttled && now.After(lim.throttleUntil) {
			lim.throttled = false
			lim.throttleUntil = time.Time{}
			changed = true
		}
		if now.Sub(lim.windowStart) > Window {
			lim.windowStart = now
			lim.count = 0
			changed = true
		}
		if changed {
			touched++
		}
	}
	return touched
}

// Len returns the number of registered limiters.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.limiters)
}
