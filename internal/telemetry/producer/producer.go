// Package producer streams audit events to a message broker.
package producer

import (
	"context"

	auditdomain "nettoria/backend/internal/audit/domain"
)

// Producer emits audit events. Callers use it best-effort: log and ignore errors.
type Producer interface {
	Emit(ctx context.Context, event *auditdomain.AuditLog) error
	// Close releases resources (e.g. Kafka writer). Safe to call if already closed.
	Close() error
}
