// Package telemetry defines the tracing contract consumed by the resource
// management layer. The layer never stores or visualizes spans itself; it
// emits them to whatever Tracer implementation the host application wires in.
//
// Attribute keys form a closed set of well-known names so that Tracer
// implementations can rely on a checkable contract instead of free-form maps.
package telemetry

// Well-known span and event attribute keys.
//
// Operations in this layer only attach attributes using these names. New keys
// are added here, never inlined at call sites.
const (
	// AttrEndpoint is the remote endpoint address an operation targets.
	AttrEndpoint = "endpoint"

	// AttrPoolID identifies a connection pool.
	AttrPoolID = "pool.id"

	// AttrConnID identifies a pooled connection.
	AttrConnID = "conn.id"

	// AttrLimiterID identifies a rate limiter.
	AttrLimiterID = "limiter.id"

	// AttrCacheKey is the cache key an operation touched.
	AttrCacheKey = "cache.key"

	// AttrOperation is the caller-supplied label describing the in-flight work.
	AttrOperation = "operation"

	// AttrOutcome records the result of an operation, such as "created",
	// "reused", "hit", "miss", "allowed", "throttled", or "error".
	AttrOutcome = "outcome"

	// AttrCodec names the serialization codec used for an encode/decode.
	AttrCodec = "codec"

	// AttrCount carries a numeric result, such as entries removed by a sweep.
	AttrCount = "count"

	// AttrErrorType classifies a failure recorded on a span.
	AttrErrorType = "error.type"
)

// Common outcome attribute values.
const (
	OutcomeCreated   = "created"
	OutcomeReused    = "reused"
	OutcomeHit       = "hit"
	OutcomeMiss      = "miss"
	OutcomeAllowed   = "allowed"
	OutcomeThrottled = "throttled"
	OutcomeError     = "error"
)

// Attrs is a flat string key/value attribute set attached to spans and events.
// Implementations must not mutate a received Attrs map.
type Attrs map[string]string

// Span represents one in-flight traced operation. Spans are append-only:
// implementations must tolerate events and attributes arriving from the
// operation goroutine without additional coordination by the caller.
type Span interface {
	// AddEvent records a named point-in-time event on the span.
	AddEvent(name string, attrs Attrs)

	// SetAttribute sets or overwrites a single span attribute.
	SetAttribute(key, value string)

	// RecordError marks the span as failed and records the error as an
	// exception event. A nil error is a no-op.
	RecordError(err error)

	// End completes the span. Calls after the first are no-ops.
	End()
}

// Tracer creates spans for the public operations of this layer. Every public
// operation opens exactly one span on entry and ends it on exit, recording at
// least one event describing the outcome.
type Tracer interface {
	StartSpan(name string, attrs Attrs) Span
}

// NoopTracer discards all spans. It is the default collaborator when the host
// application does not wire a real tracer, keeping instrumentation call sites
// unconditional.
type NoopTracer struct{}

// NewNoopTracer returns a tracer that discards all data.
func NewNoopTracer() *NoopTracer { return &NoopTracer{} }

// StartSpan implements Tracer with a span that ignores all input.
func (t *NoopTracer) StartSpan(string, Attrs) Span { return noopSpan{} }

type noopSpan struct{}

func (noopSpan) AddEvent(string, Attrs)      {}
func (noopSpan) SetAttribute(string, string) {}
func (noopSpan) RecordError(error)           {}
func (noopSpan) End()                        {}

// CloneAttrs returns a copy of attrs so later mutation by the caller cannot
// alias into a retained span. Returns nil for nil input.
func CloneAttrs(attrs Attrs) Attrs {
	if attrs == nil {
		return nil
	}
	out := make(Attrs, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
