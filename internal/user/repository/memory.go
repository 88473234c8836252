package repository

import (
	"context"
	"sync"
	"time"

	"nettoria/backend/internal/user/domain"
)

// MemoryRepository is an in-process Repository used when no DATABASE_URL is
// configured and in tests. It enforces the same uniqueness rules as the schema.
type MemoryRepository struct {
	mu        sync.Mutex
	byID      map[string]*domain.User
	totpSteps map[string]int64
	now       func() time.Time
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:      make(map[string]*domain.User),
		totpSteps: make(map[string]int64),
		now:       time.Now,
	}
}

// GetByID returns a copy of the user with id, or nil.
func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneUser(r.byID[id]), nil
}

// GetByEmail returns the user with email, or nil.
func (r *MemoryRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Email == email }), nil
}

func (r *MemoryRepository) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Phone == phone }), nil
}

func (r *MemoryRepository) find(match func(*domain.User) bool) *domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if match(u) {
			return cloneUser(u)
		}
	}
	return nil
}

// Create stores a copy of u, rejecting a taken email, phone or national id.
func (r *MemoryRepository) Create(ctx context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		switch {
		case existing.Email == u.Email:
			return domain.ErrEmailTaken
		case existing.Phone == u.Phone:
			return domain.ErrPhoneTaken
		case u.NationalID != "" && existing.NationalID == u.NationalID:
			return domain.ErrNationalIDTaken
		}
	}
	r.byID[u.ID] = cloneUser(u)
	return nil
}

func (r *MemoryRepository) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return r.update(id, func(u *domain.User) bool { u.PasswordHash = hash; return true })
}

func (r *MemoryRepository) UpdateSuccessPasswordHash(ctx context.Context, id, hash string) error {
	return r.update(id, func(u *domain.User) bool { u.SuccessPasswordHash = hash; return true })
}

// SetTwoFactorSecret stores secret and disables 2FA until it is confirmed.
func (r *MemoryRepository) SetTwoFactorSecret(ctx context.Context, id, secret string) error {
	return r.update(id, func(u *domain.User) bool {
		u.TwoFactorSecret = secret
		u.TwoFactorEnabled = false
		return true
	})
}

// EnableTwoFactor fails with domain.ErrNotFound when no secret is stored.
func (r *MemoryRepository) EnableTwoFactor(ctx context.Context, id string) error {
	return r.update(id, func(u *domain.User) bool {
		if u.TwoFactorSecret == "" {
			return false
		}
		u.TwoFactorEnabled = true
		return true
	})
}

// AdvanceTwoFactorStep records step for id unless an equal or later step was already recorded.
func (r *MemoryRepository) AdvanceTwoFactorStep(ctx context.Context, id string, step int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return false, domain.ErrNotFound
	}
	if last, seen := r.totpSteps[id]; seen && step <= last {
		return false, nil
	}
	r.totpSteps[id] = step
	return true, nil
}

func (r *MemoryRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.update(id, func(u *domain.User) bool {
		t := at.UTC()
		u.LastLoginAt = &t
		return true
	})
}

func (r *MemoryRepository) UpdateRole(ctx context.Context, id string, role domain.Role) error {
	return r.update(id, func(u *domain.User) bool { u.Role = role; return true })
}

func (r *MemoryRepository) UpdateStatus(ctx context.Context, id string, status domain.Status) error {
	return r.update(id, func(u *domain.User) bool { u.Status = status; return true })
}

// MarkChannelVerified sets the phone or email verified flag. channel is "phone" or "email".
func (r *MemoryRepository) MarkChannelVerified(ctx context.Context, id, channel string) error {
	return r.update(id, func(u *domain.User) bool {
		switch channel {
		case "phone":
			u.PhoneVerified = true
		case "email":
			u.EmailVerified = true
		default:
			return false
		}
		return true
	})
}

func (r *MemoryRepository) update(id string, fn func(*domain.User) bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok || !fn(u) {
		return domain.ErrNotFound
	}
	u.UpdatedAt = r.now().UTC()
	return nil
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	c := *u
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		c.LastLoginAt = &t
	}
	return &c
}
