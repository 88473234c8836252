package domain

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"nettoria/backend/internal/platform/apperr"
)

// User is a Nettoria account. Users are never hard-deleted; Status carries deactivation.
type User struct {
	ID         string
	FirstName  string
	LastName   string
	Email      string
	Phone      string
	NationalID string // optional

	PasswordHash        string
	SuccessPasswordHash string // empty until the user sets a success password

	EmailVerified bool
	PhoneVerified bool

	TwoFactorSecret  string // empty when no enrollment was started
	TwoFactorEnabled bool

	Role        Role
	Status      Status
	LastLoginAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return r == RoleUser || r == RoleAdmin }

type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusSuspended Status = "suspended"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusInactive || s == StatusSuspended
}

// FullName joins first and last name.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// HasSuccessPassword reports whether a success password is set.
func (u *User) HasSuccessPassword() bool { return u.SuccessPasswordHash != "" }

var (
	ErrNotFound        = apperr.New(apperr.KindNotFound, "user not found")
	ErrEmailTaken      = apperr.NewCode(apperr.KindConflict, "EMAIL_TAKEN", "email already registered")
	ErrPhoneTaken      = apperr.NewCode(apperr.KindConflict, "PHONE_TAKEN", "phone number already registered")
	ErrNationalIDTaken = apperr.NewCode(apperr.KindConflict, "NATIONAL_ID_TAKEN", "national id already registered")
)

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	phoneRegex = regexp.MustCompile(`^\+?[0-9]{8,15}$`)
)

// Column widths of the users table, in characters.
const (
	MaxNameLength       = 100
	MaxEmailLength      = 255
	MaxNationalIDLength = 32
)

// LengthProblems lists the profile fields longer than their column allows.
// Values are compared as given, so callers pass them trimmed and normalized.
func LengthProblems(firstName, lastName, email, nationalID string) []string {
	var problems []string
	if utf8.RuneCountInString(firstName) > MaxNameLength {
		problems = append(problems, "firstName is too long")
	}
	if utf8.RuneCountInString(lastName) > MaxNameLength {
		problems = append(problems, "lastName is too long")
	}
	if utf8.RuneCountInString(email) > MaxEmailLength {
		problems = append(problems, "email is too long")
	}
	if utf8.RuneCountInString(nationalID) > MaxNationalIDLength {
		problems = append(problems, "nationalId is too long")
	}
	return problems
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail reports whether email (already normalized) looks deliverable.
func ValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// NormalizePhone strips spaces, dashes, dots and parentheses, keeping a leading '+'.
// Returns "" when the result is not 8 to 15 digits.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(phone) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '.' || r == '(' || r == ')':
		default:
			return ""
		}
	}
	out := b.String()
	if !phoneRegex.MatchString(out) {
		return ""
	}
	return out
}

// MaskEmail hides most of the local part (e.g. "al***@example.com").
func MaskEmail(email string) string {
	at := strings.LastIndexByte(email, '@')
	if at <= 0 {
		return "***"
	}
	local := email[:at]
	keep := 2
	if len(local) <= keep {
		keep = 1
	}
	return local[:keep] + "***" + email[at:]
}

// MaskPhone keeps only the last four digits.
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
