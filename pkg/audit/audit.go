// Package audit defines the governance record contract consumed by the
// resource management layer. Audit records capture administratively
// interesting state changes (pool creation and closure, throttle violations,
// bulk cache clears) rather than request-frequency events like individual
// cache hits.
//
// The interface is designed to be failure-tolerant: audit sink errors must
// never fail the operation that produced the record. Callers log and move on.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Severity classifies how urgently a record should be reviewed.
type Severity string

const (
	// SeverityInfo marks routine lifecycle records.
	SeverityInfo Severity = "info"

	// SeverityWarning marks records indicating degraded behavior, such as a
	// rate limiter entering the throttled state.
	SeverityWarning Severity = "warning"

	// SeverityError marks records for faults that degraded an endpoint.
	SeverityError Severity = "error"
)

// Record is one structured governance entry.
type Record struct {
	// ID uniquely identifies this record instance.
	ID string `json:"id"`

	// Timestamp records when the audited action happened.
	Timestamp time.Time `json:"timestamp"`

	// Actor identifies the component that performed the action,
	// such as "pool-manager" or "reaper".
	Actor string `json:"actor"`

	// Action names what happened, such as "pool.create" or "cache.clear_all".
	Action string `json:"action"`

	// Resource identifies what the action was applied to, typically a pool,
	// limiter, or endpoint identifier.
	Resource string `json:"resource"`

	// Outcome states how the action concluded, such as "success" or "denied".
	Outcome string `json:"outcome"`

	// Severity classifies the record for review triage.
	Severity Severity `json:"severity"`

	// Details carries structured context specific to the action.
	Details map[string]string `json:"details,omitempty"`

	// Tags support downstream filtering and routing.
	Tags []string `json:"tags,omitempty"`
}

// Auditor receives governance records with best-effort delivery.
// Implementations should return quickly and handle their own durability;
// callers never fail their primary operation on an audit error.
type Auditor interface {
	RecordAudit(ctx context.Context, rec Record) error
}

// NewRecord builds a Record with a generated ID and current timestamp.
// The caller fills in the remaining fields before submission.
func NewRecord(actor, action, resource, outcome string, severity Severity) Record {
	return Record{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Actor:     actor,
		Action:    action,
		Resource:  resource,
		Outcome:   outcome,
		Severity:  severity,
	}
}

// NoopAuditor discards every record. It is the default collaborator when the
// host application does not wire a real auditor.
type NoopAuditor struct{}

// NewNoopAuditor returns an auditor that discards all records.
func NewNoopAuditor() *NoopAuditor { return &NoopAuditor{} }

// RecordAudit implements Auditor with no-op behavior.
func (a *NoopAuditor) RecordAudit(context.Context, Record) error { return nil }
