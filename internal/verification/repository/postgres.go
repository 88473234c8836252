package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"nettoria/backend/internal/db"
	"nettoria/backend/internal/verification/domain"
)

const codeColumns = `user_id, purpose, channel, target, code_hash, expires_at, sent_at, attempts`

// PostgresRepository implements CodeRepository and TokenRepository.
type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns a verification repository backed by db.
func NewPostgresRepository(db db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert writes c over any code for the same user and purpose, resetting the
// attempt count. An existing row sent after notSentAfter is kept and Upsert
// reports false.
func (r *PostgresRepository) Upsert(ctx context.Context, c *domain.PendingCode, notSentAfter time.Time) (bool, error) {
	query := `INSERT INTO verification_codes (` + codeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0)
		ON CONFLICT (user_id, purpose) DO UPDATE SET
			channel = EXCLUDED.channel,
			target = EXCLUDED.target,
			code_hash = EXCLUDED.code_hash,
			expires_at = EXCLUDED.expires_at,
			sent_at = EXCLUDED.sent_at,
			attempts = 0
		WHERE verification_codes.sent_at <= $8`
	res, err := r.db.ExecContext(ctx, query,
		c.UserID, string(c.Purpose), string(c.Channel), c.Target, c.CodeHash,
		c.ExpiresAt.UTC(), c.SentAt.UTC(), notSentAfter.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

// Get returns the pending code for (userID, purpose), or nil if none is stored.
func (r *PostgresRepository) Get(ctx context.Context, userID string, purpose domain.Purpose) (*domain.PendingCode, error) {
	query := `SELECT ` + codeColumns + ` FROM verification_codes WHERE user_id = $1 AND purpose = $2`
	c, err := scanCode(r.db.QueryRowContext(ctx, query, userID, string(purpose)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

// Consume runs as one statement: the delete and the verified-flag update
// either both happen or neither does.
func (r *PostgresRepository) Consume(ctx context.Context, userID string, purpose domain.Purpose, codeHash string, now time.Time) (*domain.PendingCode, error) {
	query := `WITH consumed AS (
			DELETE FROM verification_codes
			WHERE user_id = $1 AND purpose = $2 AND code_hash = $3 AND expires_at >= $4
			RETURNING ` + codeColumns + `
		), flagged AS (
			UPDATE users u SET
				is_phone_verified = u.is_phone_verified OR c.purpose = 'phone_verification',
				is_email_verified = u.is_email_verified OR c.purpose = 'email_verification',
				updated_at = $4
			FROM consumed c
			WHERE u.id = c.user_id AND c.purpose IN ('phone_verification', 'email_verification')
			RETURNING u.id
		)
		SELECT ` + codeColumns + ` FROM consumed`
	c, err := scanCode(r.db.QueryRowContext(ctx, query, userID, string(purpose), codeHash, now.UTC()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

// RecordFailedAttempt increments the attempt counter and deletes the code once
// it reaches maxAttempts. It returns 0 when no code is pending.
func (r *PostgresRepository) RecordFailedAttempt(ctx context.Context, userID string, purpose domain.Purpose, maxAttempts int) (int, error) {
	var attempts int
	err := r.db.QueryRowContext(ctx,
		`UPDATE verification_codes SET attempts = attempts + 1 WHERE user_id = $1 AND purpose = $2 RETURNING attempts`,
		userID, string(purpose),
	).Scan(&attempts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	if maxAttempts > 0 && attempts >= maxAttempts {
		if err := r.Delete(ctx, userID, purpose); err != nil {
			return attempts, err
		}
	}
	return attempts, nil
}

// Delete removes the pending code, if any.
func (r *PostgresRepository) Delete(ctx context.Context, userID string, purpose domain.Purpose) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM verification_codes WHERE user_id = $1 AND purpose = $2`, userID, string(purpose))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// CreateToken stores a hashed login token.
func (r *PostgresRepository) CreateToken(ctx context.Context, t *domain.LoginToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO login_tokens (token_hash, user_id, expires_at, created_at) VALUES ($1, $2, $3, $4)`,
		t.TokenHash, t.UserID, t.ExpiresAt.UTC(), t.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ConsumeToken marks an unexpired, unused token consumed and returns its user
// ID, or "" when the token cannot be used.
func (r *PostgresRepository) ConsumeToken(ctx context.Context, tokenHash string, now time.Time) (string, error) {
	var userID string
	err := r.db.QueryRowContext(ctx,
		`UPDATE login_tokens SET consumed_at = $2
		 WHERE token_hash = $1 AND consumed_at IS NULL AND expires_at >= $2
		 RETURNING user_id`,
		tokenHash, now.UTC(),
	).Scan(&userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return userID, nil
}

// GetToken returns the token row by hash, consumed or not.
func (r *PostgresRepository) GetToken(ctx context.Context, tokenHash string) (*domain.LoginToken, error) {
	var t domain.LoginToken
	var consumed sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT token_hash, user_id, expires_at, consumed_at, created_at FROM login_tokens WHERE token_hash = $1`,
		tokenHash,
	).Scan(&t.TokenHash, &t.UserID, &t.ExpiresAt, &consumed, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if consumed.Valid {
		at := consumed.Time
		t.ConsumedAt = &at
	}
	return &t, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCode(row rowScanner) (*domain.PendingCode, error) {
	var c domain.PendingCode
	var purpose, channel string
	if err := row.Scan(&c.UserID, &purpose, &channel, &c.Target, &c.CodeHash, &c.ExpiresAt, &c.SentAt, &c.Attempts); err != nil {
		return nil, err
	}
	c.Purpose = domain.Purpose(purpose)
	c.Channel = domain.Channel(channel)
	return &c, nil
}
