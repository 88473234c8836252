package repository

import (
	"context"
	"sync"
	"time"

	"nettoria/backend/internal/verification/domain"
)

// ChannelVerifier sets a user's phone or email verified flag.
type ChannelVerifier interface {
	MarkChannelVerified(ctx context.Context, userID, channel string) error
}

type codeKey struct {
	userID  string
	purpose domain.Purpose
}

// MemoryRepository implements CodeRepository and TokenRepository in process.
// A single mutex makes Consume and ConsumeToken compare-and-clear operations.
type MemoryRepository struct {
	mu       sync.Mutex
	codes    map[codeKey]domain.PendingCode
	tokens   map[string]domain.LoginToken
	verifier ChannelVerifier
}

// NewMemoryRepository returns an empty repository. verifier may be nil when
// no user store needs its flags updated.
func NewMemoryRepository(verifier ChannelVerifier) *MemoryRepository {
	return &MemoryRepository{
		codes:    make(map[codeKey]domain.PendingCode),
		tokens:   make(map[string]domain.LoginToken),
		verifier: verifier,
	}
}

// Upsert replaces the code for c's user and purpose unless the stored one was
// sent after notSentAfter.
func (r *MemoryRepository) Upsert(ctx context.Context, c *domain.PendingCode, notSentAfter time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := codeKey{c.UserID, c.Purpose}
	if existing, ok := r.codes[k]; ok && existing.SentAt.After(notSentAfter) {
		return false, nil
	}
	stored := *c
	stored.Attempts = 0
	r.codes[k] = stored
	return true, nil
}

// Get returns a copy of the pending code, or nil.
func (r *MemoryRepository) Get(ctx context.Context, userID string, purpose domain.Purpose) (*domain.PendingCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.codes[codeKey{userID, purpose}]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// Consume deletes and returns the code when codeHash matches and it has not
// expired, flagging the verified channel on the user store.
func (r *MemoryRepository) Consume(ctx context.Context, userID string, purpose domain.Purpose, codeHash string, now time.Time) (*domain.PendingCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := codeKey{userID, purpose}
	c, ok := r.codes[k]
	if !ok || c.CodeHash != codeHash || c.Expired(now) {
		return nil, nil
	}
	if ch := purpose.VerifiesChannel(); ch != "" && r.verifier != nil {
		if err := r.verifier.MarkChannelVerified(ctx, userID, string(ch)); err != nil {
			return nil, err
		}
	}
	delete(r.codes, k)
	return &c, nil
}

// RecordFailedAttempt counts a wrong guess and drops the code at maxAttempts.
func (r *MemoryRepository) RecordFailedAttempt(ctx context.Context, userID string, purpose domain.Purpose, maxAttempts int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := codeKey{userID, purpose}
	c, ok := r.codes[k]
	if !ok {
		return 0, nil
	}
	c.Attempts++
	if maxAttempts > 0 && c.Attempts >= maxAttempts {
		delete(r.codes, k)
	} else {
		r.codes[k] = c
	}
	return c.Attempts, nil
}

// Delete removes the pending code, if any.
func (r *MemoryRepository) Delete(ctx context.Context, userID string, purpose domain.Purpose) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.codes, codeKey{userID, purpose})
	return nil
}

// CreateToken stores t keyed by its hash.
func (r *MemoryRepository) CreateToken(ctx context.Context, t *domain.LoginToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[t.TokenHash] = *t
	return nil
}

// ConsumeToken returns the token's user ID and marks it used, or "" when it is
// unknown, used or expired.
func (r *MemoryRepository) ConsumeToken(ctx context.Context, tokenHash string, now time.Time) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[tokenHash]
	if !ok || t.ConsumedAt != nil || now.After(t.ExpiresAt) {
		return "", nil
	}
	at := now.UTC()
	t.ConsumedAt = &at
	r.tokens[tokenHash] = t
	return t.UserID, nil
}

// GetToken returns a copy of the token by hash.
func (r *MemoryRepository) GetToken(ctx context.Context, tokenHash string) (*domain.LoginToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[tokenHash]
	if !ok {
		return nil, nil
	}
	return &t, nil
}
