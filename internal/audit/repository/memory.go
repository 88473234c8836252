package repository

import (
	"context"
	"sort"
	"sync"

	"nettoria/backend/internal/audit/domain"
)

// MemoryRepository keeps audit logs in process. Used when no database is configured.
type MemoryRepository struct {
	mu      sync.Mutex
	entries []domain.AuditLog
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *a)
	return nil
}

func (r *MemoryRepository) List(ctx context.Context, f domain.Filter) ([]*domain.AuditLog, error) {
	r.mu.Lock()
	matched := make([]*domain.AuditLog, 0, len(r.entries))
	for i := range r.entries {
		e := r.entries[i]
		if f.UserID != "" && e.UserID != f.UserID {
			continue
		}
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		matched = append(matched, &e)
	}
	r.mu.Unlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	offset := max(f.Offset, 0)
	if offset >= len(matched) {
		return nil, nil
	}
	end := min(offset+clampLimit(f.Limit), len(matched))
	return matched[offset:end], nil
}
