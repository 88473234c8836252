package telemetry

import (
	"context"
	"time"

	"go.uber.org/zap"

	auditdomain "nettoria/backend/internal/audit/domain"
)

// emitTimeout is the max time allowed for a single async emit.
const emitTimeout = 5 * time.Second

// ShutdownDrainDuration is how long to wait after the HTTP server stops before shutting
// down OTel providers and Kafka writers, so in-flight emits can finish. Must be >= emitTimeout.
const ShutdownDrainDuration = emitTimeout

// EmitAsync runs Emit in a goroutine with a short timeout so the caller is not blocked.
// The goroutine uses context.Background() so request cancellation does not abort the emit.
func EmitAsync(logger *zap.Logger, emitter EventEmitter, event *auditdomain.AuditLog) {
	if emitter == nil || event == nil {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	go func() {
		emitCtx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()
		if err := emitter.Emit(emitCtx, event); err != nil {
			logger.Warn("telemetry: async emit failed", zap.String("action", event.Action), zap.Error(err))
		}
	}()
}
