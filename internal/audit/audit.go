// Package audit records the engine's audit trail: one structured entry per
// reconciliation run or manual match, logged as JSON and optionally persisted.
package audit

import (
	"context"
	"time"

	"golang-revenue-reconciliation/pkg/logger"
)

// Status is the outcome recorded by an audit entry.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusWarning Status = "warning"
)

// Entry is a single audit record.
type Entry struct {
	Action    string                 `json:"action"`
	ActorID   string                 `json:"actor_id,omitempty"`
	Status    Status                 `json:"status"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Recorder accepts audit entries. Recording must never fail the operation
// being audited.
type Recorder interface {
	Record(ctx context.Context, entry Entry)
}

// Store persists audit entries.
type Store interface {
	AppendAuditEntry(ctx context.Context, entry Entry) error
}

// LogRecorder emits each entry as a structured log line and best-effort
// persists it through an optional Store. A persistence failure is logged and
// swallowed: the log stream is the backup record, and audit storage being
// temporarily unavailable must not block reconciliation.
type LogRecorder struct {
	log   logger.Logger
	store Store
}

// NewRecorder creates a LogRecorder. The store may be nil, in which case
// entries are only logged.
func NewRecorder(log logger.Logger, store Store) *LogRecorder {
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	return &LogRecorder{
		log:   log.WithComponent("audit"),
		store: store,
	}
}

// Record implements Recorder.
func (r *LogRecorder) Record(ctx context.Context, entry Entry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	fields := logger.Fields{
		"event_type": "audit",
		"action":     entry.Action,
		"status":     string(entry.Status),
		"timestamp":  entry.Timestamp.Format(time.RFC3339),
	}
	if entry.ActorID != "" {
		fields["actor_id"] = entry.ActorID
	}
	for key, value := range entry.Details {
		fields[key] = value
	}

	log := r.log.WithFields(fields)
	if entry.Status == StatusFailure {
		log.Warn("audit entry")
	} else {
		log.Info("audit entry")
	}

	if r.store == nil {
		return
	}

	if err := r.store.AppendAuditEntry(ctx, entry); err != nil {
		r.log.WithError(err).Error("failed to persist audit entry")
	}
}
