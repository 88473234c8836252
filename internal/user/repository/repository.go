package repository

import (
	"context"
	"time"

	"nettoria/backend/internal/user/domain"
)

// Repository defines persistence for users. Getters return (nil, nil) when no
// row matches; updates return domain.ErrNotFound.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
	// Create inserts u. Duplicate email, phone or national id return the matching domain.Err*Taken.
	Create(ctx context.Context, u *domain.User) error
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	UpdateSuccessPasswordHash(ctx context.Context, id, hash string) error
	// SetTwoFactorSecret stores a pending secret and clears the enabled flag.
	SetTwoFactorSecret(ctx context.Context, id, secret string) error
	EnableTwoFactor(ctx context.Context, id string) error
	// AdvanceTwoFactorStep records the last accepted TOTP step and reports
	// false when step is not newer than the recorded one.
	AdvanceTwoFactorStep(ctx context.Context, id string, step int64) (bool, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	UpdateRole(ctx context.Context, id string, role domain.Role) error
	UpdateStatus(ctx context.Context, id string, status domain.Status) error
}
