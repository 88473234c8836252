package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"nettoria/backend/internal/db"
	"nettoria/backend/internal/platform/apperr"
	"nettoria/backend/internal/user/domain"
)

const (
	pgUniqueViolation = "23505"
	pgStringTooLong   = "22001"
)

const userColumns = `id, first_name, last_name, email, phone, national_id,
	password_hash, success_password_hash, is_email_verified, is_phone_verified,
	two_factor_secret, two_factor_enabled, role, status, last_login_at, created_at, updated_at`

// PostgresRepository stores users in the users table.
type PostgresRepository struct {
	db  db.DBTX
	now func() time.Time
}

// NewPostgresRepository returns a user repository backed by db.
func NewPostgresRepository(db db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db, now: time.Now}
}

// GetByID returns the user with id, or nil if there is none.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByEmail looks a user up by normalized email. Returns nil, nil when no row matches.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

// GetByPhone looks a user up by normalized phone number.
func (r *PostgresRepository) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE phone = $1`, phone)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

// Create inserts u. Unique violations map to the domain Err*Taken errors and
// values wider than their column to a validation error.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	query := `INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`
	_, err := r.db.ExecContext(ctx, query,
		u.ID, u.FirstName, u.LastName, u.Email, u.Phone, nullString(u.NationalID),
		u.PasswordHash, nullString(u.SuccessPasswordHash), u.EmailVerified, u.PhoneVerified,
		nullString(u.TwoFactorSecret), u.TwoFactorEnabled, string(u.Role), string(u.Status),
		u.LastLoginAt, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if dup := duplicateError(err); dup != nil {
			return dup
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgStringTooLong {
			return apperr.New(apperr.KindValidation, "field value too long").Wrap(err)
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// UpdatePasswordHash replaces the login password hash.
func (r *PostgresRepository) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return r.exec(ctx, `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`, id, hash, r.now().UTC())
}

// UpdateSuccessPasswordHash replaces the step-up password hash.
func (r *PostgresRepository) UpdateSuccessPasswordHash(ctx context.Context, id, hash string) error {
	return r.exec(ctx, `UPDATE users SET success_password_hash = $2, updated_at = $3 WHERE id = $1`, id, hash, r.now().UTC())
}

// SetTwoFactorSecret stores a new TOTP secret and disables 2FA until it is confirmed.
func (r *PostgresRepository) SetTwoFactorSecret(ctx context.Context, id, secret string) error {
	return r.exec(ctx, `UPDATE users SET two_factor_secret = $2, two_factor_enabled = FALSE, updated_at = $3 WHERE id = $1`, id, secret, r.now().UTC())
}

// EnableTwoFactor turns 2FA on. It returns domain.ErrNotFound when no secret is stored.
func (r *PostgresRepository) EnableTwoFactor(ctx context.Context, id string) error {
	return r.exec(ctx, `UPDATE users SET two_factor_enabled = TRUE, updated_at = $2 WHERE id = $1 AND two_factor_secret IS NOT NULL`, id, r.now().UTC())
}

// AdvanceTwoFactorStep stores step as the last accepted TOTP step when it is
// newer than the stored one. It reports false for a step already used.
func (r *PostgresRepository) AdvanceTwoFactorStep(ctx context.Context, id string, step int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET two_factor_last_step = $2
		WHERE id = $1 AND (two_factor_last_step IS NULL OR two_factor_last_step < $2)`, id, step)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}

// UpdateLastLogin records a successful sign-in. It leaves updated_at alone.
func (r *PostgresRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx, `UPDATE users SET last_login_at = $2 WHERE id = $1`, id, at.UTC())
}

// UpdateRole sets the account role.
func (r *PostgresRepository) UpdateRole(ctx context.Context, id string, role domain.Role) error {
	return r.exec(ctx, `UPDATE users SET role = $2, updated_at = $3 WHERE id = $1`, id, string(role), r.now().UTC())
}

// UpdateStatus sets the account status.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, status domain.Status) error {
	return r.exec(ctx, `UPDATE users SET status = $2, updated_at = $3 WHERE id = $1`, id, string(status), r.now().UTC())
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var u domain.User
	var nationalID, successHash, totpSecret sql.NullString
	var role, status string
	var lastLogin sql.NullTime
	err := row.Scan(
		&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Phone, &nationalID,
		&u.PasswordHash, &successHash, &u.EmailVerified, &u.PhoneVerified,
		&totpSecret, &u.TwoFactorEnabled, &role, &status, &lastLogin, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.NationalID = nationalID.String
	u.SuccessPasswordHash = successHash.String
	u.TwoFactorSecret = totpSecret.String
	u.Role = domain.Role(role)
	u.Status = domain.Status(status)
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLoginAt = &t
	}
	return &u, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// duplicateError maps a unique violation to the conflicting field's error.
func duplicateError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return nil
	}
	switch {
	case strings.Contains(pgErr.ConstraintName, "email"):
		return domain.ErrEmailTaken
	case strings.Contains(pgErr.ConstraintName, "phone"):
		return domain.ErrPhoneTaken
	case strings.Contains(pgErr.ConstraintName, "national_id"):
		return domain.ErrNationalIDTaken
	default:
		return apperr.New(apperr.KindConflict, "record already exists").Wrap(err)
	}
}
