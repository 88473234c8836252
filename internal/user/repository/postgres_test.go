package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"nettoria/backend/internal/platform/apperr"
	"nettoria/backend/internal/user/domain"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

var columns = []string{
	"id", "first_name", "last_name", "email", "phone", "national_id",
	"password_hash", "success_password_hash", "is_email_verified", "is_phone_verified",
	"two_factor_secret", "two_factor_enabled", "role", "status", "last_login_at", "created_at", "updated_at",
}

func TestGetByEmail_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows(columns).AddRow(
		"u-1", "Ada", "Lovelace", "ada@example.com", "+15550100", nil,
		"hash", nil, false, true,
		"SECRET", true, "admin", "active", now, now, now,
	)
	mock.ExpectQuery(`(?s)^SELECT\s+id,.*FROM users WHERE email = \$1$`).
		WithArgs("ada@example.com").
		WillReturnRows(rows)

	u, err := repo.GetByEmail(context.Background(), "ada@example.com")
	if err != nil {
		t.Fatalf("GetByEmail error: %v", err)
	}
	if u.ID != "u-1" || u.Role != domain.RoleAdmin || !u.PhoneVerified || u.TwoFactorSecret != "SECRET" {
		t.Fatalf("unexpected user: %+v", u)
	}
	if u.NationalID != "" || u.SuccessPasswordHash != "" {
		t.Errorf("NULL columns should map to empty strings: %+v", u)
	}
	if u.LastLoginAt == nil {
		t.Error("last_login_at lost")
	}
}

func TestGetByPhone_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM users WHERE phone = \$1`).
		WithArgs("+15550100").
		WillReturnError(sql.ErrNoRows)

	u, err := repo.GetByPhone(context.Background(), "+15550100")
	if u != nil || err != nil {
		t.Fatalf("want nil, nil; got %v, %v", u, err)
	}
}

func TestGetByID_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM users WHERE id = \$1`).
		WithArgs("u-1").
		WillReturnError(errors.New("db down"))

	_, err := repo.GetByID(context.Background(), "u-1")
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestCreate_DuplicateEmail(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`^INSERT INTO users`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	err := repo.Create(context.Background(), &domain.User{ID: "u-1", Email: "ada@example.com", Role: domain.RoleUser, Status: domain.StatusActive})
	if !errors.Is(err, domain.ErrEmailTaken) {
		t.Fatalf("want ErrEmailTaken, got %v", err)
	}
}

func TestCreate_DuplicatePhone(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`^INSERT INTO users`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_phone_key"})

	err := repo.Create(context.Background(), &domain.User{ID: "u-1"})
	if !errors.Is(err, domain.ErrPhoneTaken) {
		t.Fatalf("want ErrPhoneTaken, got %v", err)
	}
}

func TestCreate_ValueTooLong(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`^INSERT INTO users`).
		WillReturnError(&pgconn.PgError{Code: "22001", Message: "value too long for type character varying(100)"})

	err := repo.Create(context.Background(), &domain.User{ID: "u-1"})
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("kind = %v, want VALIDATION_ERROR (err %v)", apperr.KindOf(err), err)
	}
}

func TestAdvanceTwoFactorStep(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`^UPDATE users SET two_factor_last_step = \$2`).
		WithArgs("u-1", int64(59000)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`^UPDATE users SET two_factor_last_step = \$2`).
		WithArgs("u-1", int64(59000)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	fresh, err := repo.AdvanceTwoFactorStep(context.Background(), "u-1", 59000)
	if err != nil || !fresh {
		t.Fatalf("first = %v, %v", fresh, err)
	}
	fresh, err = repo.AdvanceTwoFactorStep(context.Background(), "u-1", 59000)
	if err != nil || fresh {
		t.Fatalf("replay = %v, %v", fresh, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestUpdateRole(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`^UPDATE users SET role = \$2, updated_at = \$3 WHERE id = \$1$`).
		WithArgs("u-1", "admin", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateRole(context.Background(), "u-1", domain.RoleAdmin); err != nil {
		t.Fatalf("UpdateRole: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestUpdateStatus_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`^UPDATE users SET status`).
		WithArgs("ghost", "suspended", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.UpdateStatus(context.Background(), "ghost", domain.StatusSuspended); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}
