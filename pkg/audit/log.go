package audit

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// LogAuditor writes records to a structured logger. It gives deployments
// without a governance backend a durable-enough trail through their existing
// log pipeline.
type LogAuditor struct {
	logger *slog.Logger
}

// NewLogAuditor returns an auditor that logs records through logger.
// A nil logger falls back to slog.Default.
func NewLogAuditor(logger *slog.Logger) *LogAuditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogAuditor{logger: logger.With("component", "audit")}
}

// RecordAudit implements Auditor by emitting one log line per record.
// The log level follows the record severity.
func (a *LogAuditor) RecordAudit(ctx context.Context, rec Record) error {
	fields := []any{
		"audit_id", rec.ID,
		"actor", rec.Actor,
		"action", rec.Action,
		"resource", rec.Resource,
		"outcome", rec.Outcome,
	}
	for k, v := range rec.Details {
		fields = append(fields, "detail_"+k, v)
	}
	if len(rec.Tags) > 0 {
		fields = append(fields, "tags", strings.Join(rec.Tags, ","))
	}

	switch rec.Severity {
	case SeverityError:
		a.logger.ErrorContext(ctx, "audit record", fields...)
	case SeverityWarning:
		a.logger.WarnContext(ctx, "audit record", fields...)
	default:
		a.logger.InfoContext(ctx, "audit record", fields...)
	}
	return nil
}

// MemoryAuditor retains records in memory. It exists for tests that assert on
// the audit trail an operation produced.
type MemoryAuditor struct {
	mu      sync.Mutex
	records []Record
}

// NewMemoryAuditor returns an empty in-memory auditor.
func NewMemoryAuditor() *MemoryAuditor { return &MemoryAuditor{} }

// RecordAudit implements Auditor by appending to the in-memory trail.
func (a *MemoryAuditor) RecordAudit(_ context.Context, rec Record) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, rec)
	return nil
}

// Records returns a snapshot of all records received so far.
func (a *MemoryAuditor) Records() []Record {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Record, len(a.records))
	copy(out, a.records)
	return out
}

// FindAction returns the first record with the given action, or false.
func (a *MemoryAuditor) FindAction(action string) (Record, bool) {
	for _, rec := range a.Records() {
		if rec.Action == action {
			return rec, true
		}
	}
	return Record{}, false
}
