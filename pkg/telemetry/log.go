package telemetry

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LogTracer writes spans and events to a structured logger. It is intended
// for development and for deployments that have no dedicated tracing backend
// but still want operation-level visibility.
type LogTracer struct {
	logger *slog.Logger
}

// NewLogTracer returns a tracer that logs span lifecycles through logger.
// A nil logger falls back to slog.Default.
func NewLogTracer(logger *slog.Logger) *LogTracer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogTracer{logger: logger.With("component", "telemetry")}
}

// StartSpan implements Tracer. The span logs events at debug level as they
// arrive and a single summary line with duration when it ends.
func (t *LogTracer) StartSpan(name string, attrs Attrs) Span {
	return &logSpan{
		logger: t.logger,
		name:   name,
		id:     uuid.NewString(),
		start:  time.Now(),
		attrs:  CloneAttrs(attrs),
	}
}

type logSpan struct {
	logger *slog.Logger
	name   string
	id     string
	start  time.Time

	mu     sync.Mutex
	attrs  Attrs
	failed bool
	ended  bool
}

func (s *logSpan) AddEvent(name string, attrs Attrs) {
	fields := []any{"span", s.name, "span_id", s.id, "event", name}
	for k, v := range attrs {
		fields = append(fields, k, v)
	}
	s.logger.Debug("span event", fields...)
}

func (s *logSpan) SetAttribute(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attrs == nil {
		s.attrs = make(Attrs, 1)
	}
	s.attrs[key] = value
}

func (s *logSpan) RecordError(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	s.failed = true
	s.mu.Unlock()
	s.logger.Warn("span error", "span", s.name, "span_id", s.id, "error", err.Error())
}

func (s *logSpan) End() {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	failed := s.failed
	fields := []any{
		"span", s.name,
		"span_id", s.id,
		"duration_ms", time.Since(s.start).Milliseconds(),
	}
	for k, v := range s.attrs {
		fields = append(fields, k, v)
	}
	s.mu.Unlock()

	if failed {
		s.logger.Warn("span completed with error", fields...)
		return
	}
	s.logger.Debug("span completed", fields...)
}
