// Package telemetry forwards audit events to external pipelines (Kafka, OTel logs).
package telemetry

import (
	"context"

	auditdomain "nettoria/backend/internal/audit/domain"
)

// EventEmitter publishes audit events. Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *auditdomain.AuditLog) error
}

// Multi fans an event out to every non-nil emitter and returns the first error.
type Multi []EventEmitter

func (m Multi) Emit(ctx context.Context, event *auditdomain.AuditLog) error {
	var first error
	for _, e := range m {
		if e == nil {
			continue
		}
		if err := e.Emit(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}
