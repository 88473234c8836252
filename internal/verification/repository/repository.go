package repository

import (
	"context"
	"time"

	"nettoria/backend/internal/verification/domain"
)

// CodeRepository persists pending codes. Consume is the only way a code
// leaves the store successfully and is atomic with respect to concurrent callers.
type CodeRepository interface {
	// Upsert stores c, replacing any code for (c.UserID, c.Purpose) whose SentAt
	// is not after notSentAfter. Returns false, nil when a newer code blocks the write.
	Upsert(ctx context.Context, c *domain.PendingCode, notSentAfter time.Time) (bool, error)
	// Get returns the pending code or nil when none exists.
	Get(ctx context.Context, userID string, purpose domain.Purpose) (*domain.PendingCode, error)
	// Consume deletes and returns the code when codeHash matches and it has not
	// expired at now. For verification purposes the user's matching verified
	// flag is set in the same operation. Returns nil, nil when nothing matched.
	Consume(ctx context.Context, userID string, purpose domain.Purpose, codeHash string, now time.Time) (*domain.PendingCode, error)
	// RecordFailedAttempt increments the attempt counter; when it reaches
	// maxAttempts (if > 0) the code is deleted. Returns the new count.
	RecordFailedAttempt(ctx context.Context, userID string, purpose domain.Purpose, maxAttempts int) (int, error)
	Delete(ctx context.Context, userID string, purpose domain.Purpose) error
}

// TokenRepository persists one-time login tokens.
type TokenRepository interface {
	CreateToken(ctx context.Context, t *domain.LoginToken) error
	// ConsumeToken marks the token consumed when it is unconsumed and unexpired
	// at now, returning its user id. Returns "", nil when nothing matched.
	ConsumeToken(ctx context.Context, tokenHash string, now time.Time) (string, error)
	// GetToken returns the token or nil.
	GetToken(ctx context.Context, tokenHash string) (*domain.LoginToken, error)
}
