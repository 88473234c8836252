package repository

import (
	"context"

	"nettoria/backend/internal/audit/domain"
)

// DefaultListLimit applies when a filter has no limit.
const DefaultListLimit = 50

// MaxListLimit caps a single page.
const MaxListLimit = 500

// Repository defines persistence for audit logs.
type Repository interface {
	Create(ctx context.Context, a *domain.AuditLog) error
	// List returns entries newest first.
	List(ctx context.Context, f domain.Filter) ([]*domain.AuditLog, error)
}

func clampLimit(n int) int {
	if n <= 0 {
		return DefaultListLimit
	}
	if n > MaxListLimit {
		return MaxListLimit
	}
	return n
}
