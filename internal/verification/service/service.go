package service

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"html"
	"strconv"
	"time"

	"go.uber.org/zap"

	"nettoria/backend/internal/audit"
	auditdomain "nettoria/backend/internal/audit/domain"
	"nettoria/backend/internal/mfa"
	"nettoria/backend/internal/notify"
	"nettoria/backend/internal/platform/apperr"
	"nettoria/backend/internal/security"
	userdomain "nettoria/backend/internal/user/domain"
	"nettoria/backend/internal/verification/domain"
	"nettoria/backend/internal/verification/repository"
)

var (
	// ErrTwoFactorEnabled is returned by SetupTwoFactor once 2FA is active.
	ErrTwoFactorEnabled = apperr.NewCode(apperr.KindConflict, "TWO_FACTOR_ENABLED", "two-factor authentication is already enabled")
	// ErrTwoFactorNotSetup is returned when no TOTP secret was generated.
	ErrTwoFactorNotSetup = apperr.NewCode(apperr.KindNotFound, "TWO_FACTOR_NOT_SETUP", "two-factor authentication has not been set up")
	// ErrTwoFactorMismatch is returned for a wrong TOTP code.
	ErrTwoFactorMismatch = apperr.NewCode(apperr.KindMismatch, "TWO_FACTOR_MISMATCH", "two-factor code does not match")
)

// UserRepo is the minimal user repository needed by the verification service.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	SetTwoFactorSecret(ctx context.Context, id, secret string) error
	EnableTwoFactor(ctx context.Context, id string) error
	AdvanceTwoFactorStep(ctx context.Context, id string, step int64) (bool, error)
}

// Config holds the verification lifetimes and limits.
type Config struct {
	CodeTTL        time.Duration
	ResendInterval time.Duration // 0 disables the reissue throttle
	MaxAttempts    int           // 0 disables the attempt cap
	LoginTokenTTL  time.Duration
	TOTPIssuer     string
}

// IssueResult describes a dispatched code without revealing it.
type IssueResult struct {
	Channel      domain.Channel
	MaskedTarget string
	ExpiresAt    time.Time
}

// IssuedToken is a freshly minted one-time login token. Token is returned to
// the caller exactly once; only its hash is stored.
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
}

// TwoFactorSetup is what the client needs to enroll an authenticator app.
type TwoFactorSetup struct {
	Secret        string
	OTPAuthURL    string
	QRCodeDataURL string
}

// Service is the verification state machine: it issues and consumes
// single-use codes and login tokens and manages TOTP enrollment.
type Service struct {
	users  UserRepo
	codes  repository.CodeRepository
	tokens repository.TokenRepository
	sender notify.Sender
	gen    mfa.Generator
	audit  audit.AuditLogger
	logger *zap.Logger
	cfg    Config
	nowF   func() time.Time
}

// NewService returns a Service. gen, auditLogger and logger may be nil.
func NewService(
	users UserRepo,
	codes repository.CodeRepository,
	tokens repository.TokenRepository,
	sender notify.Sender,
	gen mfa.Generator,
	auditLogger audit.AuditLogger,
	logger *zap.Logger,
	cfg Config,
) *Service {
	if gen == nil {
		gen = mfa.CryptoGenerator{}
	}
	if auditLogger == nil {
		auditLogger = audit.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = 2 * time.Minute
	}
	if cfg.LoginTokenTTL <= 0 {
		cfg.LoginTokenTTL = 15 * time.Minute
	}
	return &Service{
		users:  users,
		codes:  codes,
		tokens: tokens,
		sender: sender,
		gen:    gen,
		audit:  auditLogger,
		logger: logger,
		cfg:    cfg,
		nowF:   time.Now,
	}
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) { s.nowF = now }

func (s *Service) now() time.Time { return s.nowF().UTC() }

// DefaultChannel is where codes for p go when the caller does not choose.
func DefaultChannel(p domain.Purpose) domain.Channel {
	if p == domain.PurposeEmailVerification {
		return domain.ChannelEmail
	}
	return domain.ChannelPhone
}

// IssueCode issues a code for purpose over its default channel.
func (s *Service) IssueCode(ctx context.Context, userID string, purpose domain.Purpose) (*IssueResult, error) {
	return s.IssueCodeVia(ctx, userID, purpose, DefaultChannel(purpose))
}

// IssueCodeVia generates a code, stores its hash for (userID, purpose) replacing
// any earlier code, and sends it to the user's address on channel. The stored
// state is committed before delivery; a delivery failure leaves it in place.
func (s *Service) IssueCodeVia(ctx context.Context, userID string, purpose domain.Purpose, channel domain.Channel) (*IssueResult, error) {
	if !purpose.Valid() {
		return nil, domain.ErrInvalidPurpose
	}
	if v := purpose.VerifiesChannel(); v != "" && v != channel {
		return nil, domain.ErrInvalidPurpose
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if user == nil {
		return nil, userdomain.ErrNotFound
	}
	target := user.Phone
	if channel == domain.ChannelEmail {
		target = user.Email
	}
	if target == "" {
		return nil, domain.ErrNoTarget
	}

	code, err := s.gen.NumericCode(mfa.CodeDigits)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	now := s.now()
	pending := &domain.PendingCode{
		UserID:    userID,
		Purpose:   purpose,
		Channel:   channel,
		Target:    target,
		CodeHash:  mfa.HashCode(code),
		ExpiresAt: now.Add(s.cfg.CodeTTL),
		SentAt:    now,
	}
	written, err := s.codes.Upsert(ctx, pending, now.Add(-s.cfg.ResendInterval))
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if !written {
		return nil, domain.ErrResendTooSoon
	}

	result := &IssueResult{Channel: channel, MaskedTarget: mask(channel, target), ExpiresAt: pending.ExpiresAt}
	if err := s.sender.Send(ctx, codeMessage(purpose, channel, target, code, s.cfg.CodeTTL)); err != nil {
		s.logger.Warn("verification code delivery failed",
			zap.String("user_id", userID),
			zap.String("purpose", string(purpose)),
			zap.String("channel", string(channel)),
			zap.Error(err),
		)
		return result, domain.ErrDeliveryFailed.Wrap(err)
	}
	s.audit.LogEvent(ctx, userID, auditdomain.ActionCodeIssued, map[string]string{
		"purpose": string(purpose),
		"channel": string(channel),
	})
	return result, nil
}

// VerifyCode consumes the pending code for (userID, purpose) when submitted
// matches and it has not expired. A consumed phone or email verification code
// sets the matching verified flag in the same step.
func (s *Service) VerifyCode(ctx context.Context, userID string, purpose domain.Purpose, submitted string) error {
	if !purpose.Valid() {
		return domain.ErrInvalidPurpose
	}
	now := s.now()
	consumed, err := s.codes.Consume(ctx, userID, purpose, mfa.HashCode(submitted), now)
	if err != nil {
		return apperr.Internal(err)
	}
	if consumed != nil {
		s.audit.LogEvent(ctx, userID, auditdomain.ActionCodeVerified, map[string]string{"purpose": string(purpose)})
		return nil
	}

	pending, err := s.codes.Get(ctx, userID, purpose)
	if err != nil {
		return apperr.Internal(err)
	}
	if pending == nil {
		return domain.ErrCodeNotFound
	}
	if pending.Expired(now) {
		if err := s.codes.Delete(ctx, userID, purpose); err != nil {
			s.logger.Warn("delete expired code", zap.String("user_id", userID), zap.Error(err))
		}
		return domain.ErrCodeExpired
	}
	attempts, err := s.codes.RecordFailedAttempt(ctx, userID, purpose, s.cfg.MaxAttempts)
	if err != nil {
		return apperr.Internal(err)
	}
	if attempts == 0 {
		// Consumed or replaced between the two reads.
		return domain.ErrCodeNotFound
	}
	if s.cfg.MaxAttempts > 0 {
		if attempts >= s.cfg.MaxAttempts {
			return domain.ErrTooManyAttempts
		}
		return domain.ErrCodeMismatch.WithDetails("attempts_remaining=" + strconv.Itoa(s.cfg.MaxAttempts-attempts))
	}
	return domain.ErrCodeMismatch
}

// IssueOneTimeLoginToken mints a single-use login token for userID.
func (s *Service) IssueOneTimeLoginToken(ctx context.Context, userID string) (*IssuedToken, error) {
	token, err := s.gen.OpaqueToken(mfa.TokenBytes)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	now := s.now()
	t := &domain.LoginToken{
		TokenHash: security.HashToken(token),
		UserID:    userID,
		ExpiresAt: now.Add(s.cfg.LoginTokenTTL),
		CreatedAt: now,
	}
	if err := s.tokens.CreateToken(ctx, t); err != nil {
		return nil, apperr.Internal(err)
	}
	s.audit.LogEvent(ctx, userID, auditdomain.ActionLoginTokenIssued, nil)
	return &IssuedToken{Token: token, ExpiresAt: t.ExpiresAt}, nil
}

// ConsumeOneTimeLoginToken marks token used and returns its user id.
func (s *Service) ConsumeOneTimeLoginToken(ctx context.Context, token string) (string, error) {
	if !wellFormedToken(token) {
		return "", domain.ErrTokenInvalid
	}
	hash := security.HashToken(token)
	now := s.now()
	userID, err := s.tokens.ConsumeToken(ctx, hash, now)
	if err != nil {
		return "", apperr.Internal(err)
	}
	if userID != "" {
		s.audit.LogEvent(ctx, userID, auditdomain.ActionLoginTokenUsed, nil)
		return userID, nil
	}
	t, err := s.tokens.GetToken(ctx, hash)
	if err != nil {
		return "", apperr.Internal(err)
	}
	if t == nil || t.ConsumedAt != nil {
		return "", domain.ErrTokenInvalid
	}
	if now.After(t.ExpiresAt) {
		return "", domain.ErrTokenExpired
	}
	return "", domain.ErrTokenInvalid
}

// SetupTwoFactor generates and stores a new TOTP secret with 2FA left disabled
// until ConfirmTwoFactor succeeds.
func (s *Service) SetupTwoFactor(ctx context.Context, userID string) (*TwoFactorSetup, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if user == nil {
		return nil, userdomain.ErrNotFound
	}
	if user.TwoFactorEnabled {
		return nil, ErrTwoFactorEnabled
	}
	enrollment, err := mfa.NewTOTPEnrollment(s.cfg.TOTPIssuer, user.Email)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if err := s.users.SetTwoFactorSecret(ctx, userID, enrollment.Secret); err != nil {
		return nil, apperr.Internal(err)
	}
	s.audit.LogEvent(ctx, userID, auditdomain.ActionTwoFactorSetup, nil)
	return &TwoFactorSetup{
		Secret:        enrollment.Secret,
		OTPAuthURL:    enrollment.OTPAuthURL,
		QRCodeDataURL: enrollment.QRCodeDataURL,
	}, nil
}

// ConfirmTwoFactor enables 2FA when code is valid for the stored secret.
func (s *Service) ConfirmTwoFactor(ctx context.Context, userID, code string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return apperr.Internal(err)
	}
	if user == nil {
		return userdomain.ErrNotFound
	}
	if err := s.ValidateTwoFactor(ctx, user, code); err != nil {
		return err
	}
	if user.TwoFactorEnabled {
		return nil
	}
	if err := s.users.EnableTwoFactor(ctx, userID); err != nil {
		return apperr.Internal(err)
	}
	s.audit.LogEvent(ctx, userID, auditdomain.ActionTwoFactorEnabled, nil)
	return nil
}

// ValidateTwoFactor checks code against user's TOTP secret at the server clock.
// The matched time step is recorded, so a code is accepted at most once even
// though it stays inside the skew window for up to three steps.
func (s *Service) ValidateTwoFactor(ctx context.Context, user *userdomain.User, code string) error {
	step, ok, err := mfa.MatchTOTP(user.TwoFactorSecret, code, s.now())
	if err != nil {
		if errors.Is(err, mfa.ErrTOTPSecretMissing) {
			return ErrTwoFactorNotSetup
		}
		return apperr.Internal(err)
	}
	if !ok {
		return ErrTwoFactorMismatch
	}
	fresh, err := s.users.AdvanceTwoFactorStep(ctx, user.ID, step)
	if err != nil {
		return apperr.Internal(err)
	}
	if !fresh {
		s.logger.Info("totp step reused", zap.String("user_id", user.ID), zap.Int64("step", step))
		return ErrTwoFactorMismatch
	}
	return nil
}

func wellFormedToken(token string) bool {
	if len(token) != mfa.TokenBytes*2 {
		return false
	}
	_, err := hex.DecodeString(token)
	return err == nil
}

func mask(channel domain.Channel, target string) string {
	if channel == domain.ChannelEmail {
		return userdomain.MaskEmail(target)
	}
	return userdomain.MaskPhone(target)
}

var subjects = map[domain.Purpose]string{
	domain.PurposePhoneVerification: "Verify your phone number",
	domain.PurposeEmailVerification: "Verify your email address",
	domain.PurposeLogin:             "Your Nettoria sign-in code",
	domain.PurposePasswordReset:     "Reset your Nettoria password",
}

func codeMessage(purpose domain.Purpose, channel domain.Channel, target, code string, ttl time.Duration) notify.Message {
	minutes := int(ttl.Round(time.Minute) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	if channel == domain.ChannelEmail {
		return notify.Message{
			Channel: notify.ChannelEmail,
			To:      target,
			Subject: subjects[purpose],
			Body: fmt.Sprintf("<p>Your Nettoria verification code is <strong>%s</strong>.</p><p>It expires in %d minute(s).</p>",
				html.EscapeString(code), minutes),
			Secret: code,
		}
	}
	return notify.Message{
		Channel: notify.ChannelSMS,
		To:      target,
		Body:    fmt.Sprintf("Your Nettoria verification code is %s. It expires in %d minute(s).", code, minutes),
		Secret:  code,
	}
}
