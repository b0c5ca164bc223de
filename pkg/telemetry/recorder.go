package telemetry

import "sync"

// Recorder is an in-memory Tracer that retains every span it creates.
// It exists for tests and development tooling that need to assert on the
// exact spans and events an operation produced.
type Recorder struct {
	mu    sync.Mutex
	spans []*RecordedSpan
}

// RecordedSpan captures the full history of one span created by a Recorder.
type RecordedSpan struct {
	Name   string
	Attrs  Attrs
	Events []RecordedEvent
	Errors []error
	Ended  bool

	mu       sync.Mutex
	recorder *Recorder
}

// RecordedEvent is one event added to a recorded span.
type RecordedEvent struct {
	Name  string
	Attrs Attrs
}

// NewRecorder returns an empty recording tracer.
func NewRecorder() *Recorder { return &Recorder{} }

// StartSpan implements Tracer.
func (r *Recorder) StartSpan(name string, attrs Attrs) Span {
	span := &RecordedSpan{
		Name:     name,
		Attrs:    CloneAttrs(attrs),
		recorder: r,
	}
	r.mu.Lock()
	r.spans = append(r.spans, span)
	r.mu.Unlock()
	return span
}

// Spans returns a snapshot of all spans started so far, in creation order.
func (r *Recorder) Spans() []*RecordedSpan {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*RecordedSpan, len(r.spans))
	copy(out, r.spans)
	return out
}

// FindSpan returns the first span with the given name, or nil.
func (r *Recorder) FindSpan(name string) *RecordedSpan {
	for _, s := range r.Spans() {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// AddEvent implements Span.
func (s *RecordedSpan) AddEvent(name string, attrs Attrs) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, RecordedEvent{Name: name, Attrs: CloneAttrs(attrs)})
}

// SetAttribute implements Span.
func (s *RecordedSpan) SetAttribute(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Attrs == nil {
		s.Attrs = make(Attrs, 1)
	}
	s.Attrs[key] = value
}

// RecordError implements Span.
func (s *RecordedSpan) RecordError(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Errors = append(s.Errors, err)
}

// End implements Span.
func (s *RecordedSpan) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Ended = true
}

// EventNames returns the names of all events on the span, in order.
func (s *RecordedSpan) EventNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.Events))
	for i, e := range s.Events {
		names[i] = e.Name
	}
	return names
}
