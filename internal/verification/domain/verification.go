package domain

import (
	"time"

	"nettoria/backend/internal/platform/apperr"
)

// Purpose scopes a pending code. At most one code is active per (user, purpose).
type Purpose string

const (
	PurposePhoneVerification Purpose = "phone_verification"
	PurposeEmailVerification Purpose = "email_verification"
	PurposeLogin             Purpose = "login"
	PurposePasswordReset     Purpose = "password_reset"
)

// Valid reports whether p is a known purpose.
func (p Purpose) Valid() bool {
	switch p {
	case PurposePhoneVerification, PurposeEmailVerification, PurposeLogin, PurposePasswordReset:
		return true
	}
	return false
}

// Channel is where a code is delivered.
type Channel string

const (
	ChannelPhone Channel = "phone"
	ChannelEmail Channel = "email"
)

// VerifiesChannel returns the channel whose verified flag is set when a code
// for p is consumed, or "" when p does not verify a channel.
func (p Purpose) VerifiesChannel() Channel {
	switch p {
	case PurposePhoneVerification:
		return ChannelPhone
	case PurposeEmailVerification:
		return ChannelEmail
	}
	return ""
}

// PendingCode is an issued, not yet consumed verification code. Only the
// hash of the code is kept.
type PendingCode struct {
	UserID    string
	Purpose   Purpose
	Channel   Channel
	Target    string
	CodeHash  string
	ExpiresAt time.Time
	SentAt    time.Time
	Attempts  int
}

// Expired reports whether the code is past its expiry at now.
func (c *PendingCode) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// LoginToken is a single-use token that authenticates its holder as UserID.
type LoginToken struct {
	TokenHash  string
	UserID     string
	ExpiresAt  time.Time
	ConsumedAt *time.Time
	CreatedAt  time.Time
}

var (
	ErrCodeNotFound    = apperr.New(apperr.KindNotFound, "no pending verification code")
	ErrCodeExpired     = apperr.New(apperr.KindExpired, "verification code expired")
	ErrCodeMismatch    = apperr.New(apperr.KindMismatch, "verification code does not match")
	ErrTooManyAttempts = apperr.NewCode(apperr.KindRateLimited, "TOO_MANY_ATTEMPTS", "too many wrong codes; request a new one")
	ErrResendTooSoon   = apperr.NewCode(apperr.KindRateLimited, "RESEND_TOO_SOON", "a code was sent recently; try again later")
	ErrDeliveryFailed  = apperr.New(apperr.KindDeliveryFailed, "could not deliver verification code")
	ErrTokenInvalid    = apperr.NewCode(apperr.KindUnauthorized, "INVALID_TOKEN", "login token is invalid")
	ErrTokenExpired    = apperr.New(apperr.KindExpired, "login token expired")
	ErrNoTarget        = apperr.New(apperr.KindValidation, "no delivery address on file for this purpose")
	ErrInvalidPurpose  = apperr.New(apperr.KindValidation, "unknown verification purpose")
)
