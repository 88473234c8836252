// Package audit records security-relevant events. Each event is persisted through
// the audit repository and forwarded to the configured telemetry emitters.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nettoria/backend/internal/audit/domain"
	auditrepo "nettoria/backend/internal/audit/repository"
	"nettoria/backend/internal/telemetry"
)

// IPExtractor returns the client IP from the request context.
type IPExtractor func(context.Context) string

// AuditLogger writes a single audit event. LogEvent is best-effort: failures
// are logged and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, userID, action string, metadata map[string]string)
}

// Logger implements AuditLogger using the audit repository, an optional IP
// extractor and optional emitters.
type Logger struct {
	repo        auditrepo.Repository
	ipExtractor IPExtractor
	emitter     telemetry.EventEmitter
	logger      *zap.Logger
	nowF        func() time.Time
}

// NewLogger returns an AuditLogger that persists to repo and uses ipExtractor for client IP.
// ipExtractor may be nil; then IP is recorded as "unknown". emitter may be nil.
func NewLogger(repo auditrepo.Repository, ipExtractor IPExtractor, emitter telemetry.EventEmitter, logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{
		repo:        repo,
		ipExtractor: ipExtractor,
		emitter:     emitter,
		logger:      logger,
		nowF:        time.Now,
	}
}

// LogEvent writes one audit log entry. metadata must not carry secrets.
func (l *Logger) LogEvent(ctx context.Context, userID, action string, metadata map[string]string) {
	ip := "unknown"
	if l.ipExtractor != nil {
		if v := l.ipExtractor(ctx); v != "" {
			ip = v
		}
	}
	var meta string
	if len(metadata) > 0 {
		b, err := json.Marshal(metadata)
		if err == nil {
			meta = string(b)
		}
	}
	entry := &domain.AuditLog{
		ID:        uuid.New().String(),
		UserID:    userID,
		Action:    action,
		IP:        ip,
		Metadata:  meta,
		CreatedAt: l.nowF().UTC(),
	}
	if l.repo != nil {
		if err := l.repo.Create(ctx, entry); err != nil {
			l.logger.Error("audit: failed to log event", zap.String("action", action), zap.Error(err))
		}
	}
	telemetry.EmitAsync(l.logger, l.emitter, entry)
}

// Nop discards every event.
type Nop struct{}

func (Nop) LogEvent(context.Context, string, string, map[string]string) {}
