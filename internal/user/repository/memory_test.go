package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"nettoria/backend/internal/user/domain"
)

func newUser(id, email, phone string) *domain.User {
	now := time.Now().UTC()
	return &domain.User{
		ID: id, FirstName: "Ada", LastName: "Lovelace", Email: email, Phone: phone,
		PasswordHash: "hash", Role: domain.RoleUser, Status: domain.StatusActive,
		CreatedAt: now, UpdatedAt: now,
	}
}

func TestMemoryRepository_CreateAndGet(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	if err := r.Create(ctx, newUser("u1", "ada@example.com", "+15550100")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	byEmail, _ := r.GetByEmail(ctx, "ada@example.com")
	byPhone, _ := r.GetByPhone(ctx, "+15550100")
	if byEmail == nil || byPhone == nil || byEmail.ID != "u1" || byPhone.ID != "u1" {
		t.Fatalf("lookups: email=%v phone=%v", byEmail, byPhone)
	}
	missing, err := r.GetByID(ctx, "nope")
	if missing != nil || err != nil {
		t.Errorf("missing user: got %v, %v", missing, err)
	}
}

func TestMemoryRepository_Duplicates(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	first := newUser("u1", "ada@example.com", "+15550100")
	first.NationalID = "0012345678"
	_ = r.Create(ctx, first)

	if err := r.Create(ctx, newUser("u2", "ada@example.com", "+15550199")); !errors.Is(err, domain.ErrEmailTaken) {
		t.Errorf("duplicate email: got %v", err)
	}
	if err := r.Create(ctx, newUser("u3", "bob@example.com", "+15550100")); !errors.Is(err, domain.ErrPhoneTaken) {
		t.Errorf("duplicate phone: got %v", err)
	}
	dupNID := newUser("u4", "eve@example.com", "+15550111")
	dupNID.NationalID = "0012345678"
	if err := r.Create(ctx, dupNID); !errors.Is(err, domain.ErrNationalIDTaken) {
		t.Errorf("duplicate national id: got %v", err)
	}
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	_ = r.Create(ctx, newUser("u1", "ada@example.com", "+15550100"))
	u, _ := r.GetByID(ctx, "u1")
	u.Role = domain.RoleAdmin
	again, _ := r.GetByID(ctx, "u1")
	if again.Role != domain.RoleUser {
		t.Error("mutating a returned user must not change the store")
	}
}

func TestMemoryRepository_TwoFactor(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	_ = r.Create(ctx, newUser("u1", "ada@example.com", "+15550100"))

	if err := r.EnableTwoFactor(ctx, "u1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("enable without secret: got %v", err)
	}
	_ = r.SetTwoFactorSecret(ctx, "u1", "SECRET")
	if err := r.EnableTwoFactor(ctx, "u1"); err != nil {
		t.Fatalf("EnableTwoFactor: %v", err)
	}
	u, _ := r.GetByID(ctx, "u1")
	if !u.TwoFactorEnabled || u.TwoFactorSecret != "SECRET" {
		t.Errorf("2FA state: %+v", u)
	}
	_ = r.SetTwoFactorSecret(ctx, "u1", "OTHER")
	u, _ = r.GetByID(ctx, "u1")
	if u.TwoFactorEnabled {
		t.Error("new secret must reset the enabled flag")
	}
}

func TestMemoryRepository_AdvanceTwoFactorStep(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	_ = r.Create(ctx, newUser("u1", "ada@example.com", "+15550100"))

	for _, tc := range []struct {
		step int64
		want bool
	}{{100, true}, {100, false}, {99, false}, {101, true}} {
		got, err := r.AdvanceTwoFactorStep(ctx, "u1", tc.step)
		if err != nil || got != tc.want {
			t.Errorf("step %d = %v, %v; want %v", tc.step, got, err, tc.want)
		}
	}
	if _, err := r.AdvanceTwoFactorStep(ctx, "ghost", 1); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown user err = %v", err)
	}
}

func TestMemoryRepository_MarkChannelVerified(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	_ = r.Create(ctx, newUser("u1", "ada@example.com", "+15550100"))
	if err := r.MarkChannelVerified(ctx, "u1", "phone"); err != nil {
		t.Fatalf("MarkChannelVerified: %v", err)
	}
	u, _ := r.GetByID(ctx, "u1")
	if !u.PhoneVerified || u.EmailVerified {
		t.Errorf("flags: phone=%v email=%v", u.PhoneVerified, u.EmailVerified)
	}
	if err := r.MarkChannelVerified(ctx, "u1", "fax"); err == nil {
		t.Error("unknown channel should fail")
	}
}

func TestMemoryRepository_UpdateMissing(t *testing.T) {
	r := NewMemoryRepository()
	if err := r.UpdateRole(context.Background(), "ghost", domain.RoleAdmin); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}
