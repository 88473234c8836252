package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nettoria/backend/internal/audit"
	auditdomain "nettoria/backend/internal/audit/domain"
	"nettoria/backend/internal/notify"
	"nettoria/backend/internal/platform/apperr"
	"nettoria/backend/internal/security"
	userdomain "nettoria/backend/internal/user/domain"
	userrepo "nettoria/backend/internal/user/repository"
	vdomain "nettoria/backend/internal/verification/domain"
	vservice "nettoria/backend/internal/verification/service"
)

// Sentinel errors for the auth service; respond maps their kinds to HTTP statuses.
var (
	ErrInvalidCredentials   = apperr.New(apperr.KindInvalidCredentials, "invalid credentials")
	ErrTwoFactorRequired    = apperr.New(apperr.KindTwoFactorRequired, "two-factor code required")
	ErrAccountInactive      = apperr.NewCode(apperr.KindForbidden, "ACCOUNT_INACTIVE", "account is not active")
	ErrWeakPassword         = apperr.NewCode(apperr.KindValidation, "WEAK_PASSWORD", "password does not meet the password policy")
	ErrPhoneMismatch        = apperr.NewCode(apperr.KindMismatch, "PHONE_MISMATCH", "phone number does not match the account")
	ErrSuccessPasswordUnset = apperr.NewCode(apperr.KindNotFound, "SUCCESS_PASSWORD_NOT_SET", "success password has not been set")
	ErrLoginLinkDisabled    = apperr.NewCode(apperr.KindValidation, "LOGIN_LINK_DISABLED", "login links are not configured")
)

// AuthResult is a successful sign-in.
type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	User      *userdomain.User
}

// RegisterInput carries the registration form.
type RegisterInput struct {
	FirstName  string
	LastName   string
	Email      string
	Phone      string
	Password   string
	NationalID string
}

// RegisterResult is the created user plus the outcome of the phone code dispatch.
// PhoneCode is nil and PhoneCodeError set when the code could not be issued or sent.
type RegisterResult struct {
	User           *userdomain.User
	PhoneCode      *vservice.IssueResult
	PhoneCodeError error
}

// Verifier is the part of the verification service the auth flows use.
type Verifier interface {
	IssueCode(ctx context.Context, userID string, purpose vdomain.Purpose) (*vservice.IssueResult, error)
	IssueCodeVia(ctx context.Context, userID string, purpose vdomain.Purpose, channel vdomain.Channel) (*vservice.IssueResult, error)
	VerifyCode(ctx context.Context, userID string, purpose vdomain.Purpose, submitted string) error
	IssueOneTimeLoginToken(ctx context.Context, userID string) (*vservice.IssuedToken, error)
	ConsumeOneTimeLoginToken(ctx context.Context, token string) (string, error)
	ValidateTwoFactor(ctx context.Context, user *userdomain.User, code string) error
}

// AuthService implements registration, the login flows, channel verification,
// password reset and the success password.
type AuthService struct {
	users        userrepo.Repository
	verifier     Verifier
	sender       notify.Sender
	hasher       *security.Hasher
	tokens       *security.TokenProvider
	audit        audit.AuditLogger
	logger       *zap.Logger
	loginLinkURL string
	nowF         func() time.Time
}

// NewAuthService returns an AuthService with the given dependencies. loginLinkURL
// is the page that receives ?token=; empty disables login links.
func NewAuthService(
	users userrepo.Repository,
	verifier Verifier,
	sender notify.Sender,
	hasher *security.Hasher,
	tokens *security.TokenProvider,
	auditLogger audit.AuditLogger,
	logger *zap.Logger,
	loginLinkURL string,
) *AuthService {
	if auditLogger == nil {
		auditLogger = audit.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:        users,
		verifier:     verifier,
		sender:       sender,
		hasher:       hasher,
		tokens:       tokens,
		audit:        auditLogger,
		logger:       logger,
		loginLinkURL: loginLinkURL,
		nowF:         time.Now,
	}
}

// Register creates an active user with role user and sends a phone verification code.
// A failed code dispatch does not fail the registration.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	email := userdomain.NormalizeEmail(in.Email)
	phone := userdomain.NormalizePhone(in.Phone)
	var problems []string
	if strings.TrimSpace(in.FirstName) == "" {
		problems = append(problems, "firstName is required")
	}
	if strings.TrimSpace(in.LastName) == "" {
		problems = append(problems, "lastName is required")
	}
	if !userdomain.ValidEmail(email) {
		problems = append(problems, "email is invalid")
	}
	if phone == "" {
		problems = append(problems, "phoneNumber is invalid")
	}
	problems = append(problems, userdomain.LengthProblems(
		strings.TrimSpace(in.FirstName), strings.TrimSpace(in.LastName), email, strings.TrimSpace(in.NationalID))...)
	if len(problems) > 0 {
		return nil, apperr.New(apperr.KindValidation, "invalid registration").WithDetails(problems...)
	}
	if err := checkPassword(in.Password); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	now := s.nowF().UTC()
	user := &userdomain.User{
		ID:           uuid.New().String(),
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Email:        email,
		Phone:        phone,
		NationalID:   strings.TrimSpace(in.NationalID),
		PasswordHash: hash,
		Role:         userdomain.RoleUser,
		Status:       userdomain.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if apperr.KindOf(err) == apperr.KindConflict {
			return nil, err
		}
		return nil, apperr.Internal(err)
	}
	s.audit.LogEvent(ctx, user.ID, auditdomain.ActionRegister, nil)

	res := &RegisterResult{User: user}
	res.PhoneCode, res.PhoneCodeError = s.verifier.IssueCode(ctx, user.ID, vdomain.PurposePhoneVerification)
	if res.PhoneCodeError != nil {
		res.PhoneCode = nil
		s.logger.Warn("registration phone code not sent", zap.String("user_id", user.ID), zap.Error(res.PhoneCodeError))
	}
	return res, nil
}

// Login authenticates by email or phone and password. When 2FA is enabled a
// valid TOTP code is also required.
func (s *AuthService) Login(ctx context.Context, identifier, password, twoFactorCode string) (*AuthResult, error) {
	user, err := s.lookup(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if user == nil {
		s.hasher.Verify("", password)
		s.loginFailure(ctx, "", identifier, "unknown_identifier")
		return nil, ErrInvalidCredentials
	}
	if !s.hasher.Verify(user.PasswordHash, password) {
		s.loginFailure(ctx, user.ID, identifier, "bad_password")
		return nil, ErrInvalidCredentials
	}
	if user.Status != userdomain.StatusActive {
		s.loginFailure(ctx, user.ID, identifier, "inactive")
		return nil, ErrAccountInactive
	}
	if user.TwoFactorEnabled {
		if strings.TrimSpace(twoFactorCode) == "" {
			return nil, ErrTwoFactorRequired
		}
		if err := s.verifier.ValidateTwoFactor(ctx, user, twoFactorCode); err != nil {
			if apperr.KindOf(err) == apperr.KindInternal {
				return nil, err
			}
			s.loginFailure(ctx, user.ID, identifier, "bad_two_factor")
			return nil, ErrInvalidCredentials
		}
	}
	return s.issueSession(ctx, user, "password")
}

// LoginWithToken exchanges a one-time login token for a session.
func (s *AuthService) LoginWithToken(ctx context.Context, token string) (*AuthResult, error) {
	userID, err := s.verifier.ConsumeOneTimeLoginToken(ctx, token)
	if err != nil {
		return nil, err
	}
	user, err := s.activeUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.issueSession(ctx, user, "login_token")
}

// RequestLoginLink emails a one-time login link. Unknown addresses succeed
// silently so the endpoint does not reveal which emails are registered.
func (s *AuthService) RequestLoginLink(ctx context.Context, email string) error {
	if s.loginLinkURL == "" {
		return ErrLoginLinkDisabled
	}
	email = userdomain.NormalizeEmail(email)
	if !userdomain.ValidEmail(email) {
		return apperr.New(apperr.KindValidation, "email is invalid")
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return apperr.Internal(err)
	}
	if user == nil || user.Status != userdomain.StatusActive {
		return nil
	}
	issued, err := s.verifier.IssueOneTimeLoginToken(ctx, user.ID)
	if err != nil {
		return s.silence(user.ID, "login_link", err)
	}
	link, err := buildLoginLink(s.loginLinkURL, issued.Token)
	if err != nil {
		return apperr.Internal(err)
	}
	msg := notify.Message{
		Channel: notify.ChannelEmail,
		To:      user.Email,
		Subject: "Your Nettoria sign-in link",
		Body: fmt.Sprintf(`<p>Hi %s,</p><p><a href="%s">Sign in to Nettoria</a></p><p>The link works once and expires at %s UTC.</p>`,
			html.EscapeString(user.FirstName), html.EscapeString(link), issued.ExpiresAt.UTC().Format("15:04")),
		Secret: issued.Token,
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		return s.silence(user.ID, "login_link", vdomain.ErrDeliveryFailed.Wrap(err))
	}
	return nil
}

// RequestLoginOTP sends a login code by SMS. It returns nil, nil for unknown
// or inactive numbers, and for throttled or undeliverable sends to known ones.
func (s *AuthService) RequestLoginOTP(ctx context.Context, phone string) (*vservice.IssueResult, error) {
	normalized := userdomain.NormalizePhone(phone)
	if normalized == "" {
		return nil, apperr.New(apperr.KindValidation, "phoneNumber is invalid")
	}
	user, err := s.users.GetByPhone(ctx, normalized)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if user == nil || user.Status != userdomain.StatusActive {
		return nil, nil
	}
	res, err := s.verifier.IssueCode(ctx, user.ID, vdomain.PurposeLogin)
	if err != nil {
		return nil, s.silence(user.ID, "login_otp", err)
	}
	return res, nil
}

// VerifyLoginOTP consumes a login code and issues a session.
func (s *AuthService) VerifyLoginOTP(ctx context.Context, phone, code string) (*AuthResult, error) {
	normalized := userdomain.NormalizePhone(phone)
	if normalized == "" {
		return nil, apperr.New(apperr.KindValidation, "phoneNumber is invalid")
	}
	user, err := s.users.GetByPhone(ctx, normalized)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if user == nil {
		return nil, vdomain.ErrCodeNotFound
	}
	if err := s.verifier.VerifyCode(ctx, user.ID, vdomain.PurposeLogin, code); err != nil {
		return nil, err
	}
	if user.Status != userdomain.StatusActive {
		return nil, ErrAccountInactive
	}
	return s.issueSession(ctx, user, "login_otp")
}

// RequestPhoneVerification (re)sends the phone verification code.
func (s *AuthService) RequestPhoneVerification(ctx context.Context, userID string) (*vservice.IssueResult, error) {
	user, err := s.userByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.PhoneVerified {
		return nil, apperr.NewCode(apperr.KindConflict, "PHONE_ALREADY_VERIFIED", "phone number is already verified")
	}
	return s.verifier.IssueCode(ctx, userID, vdomain.PurposePhoneVerification)
}

// VerifyPhone marks the user's phone verified. phone must be the number on file.
func (s *AuthService) VerifyPhone(ctx context.Context, userID, phone, code string) error {
	user, err := s.userByID(ctx, userID)
	if err != nil {
		return err
	}
	if userdomain.NormalizePhone(phone) != user.Phone {
		return ErrPhoneMismatch
	}
	return s.verifier.VerifyCode(ctx, userID, vdomain.PurposePhoneVerification, code)
}

// RequestEmailVerification sends the email verification code.
func (s *AuthService) RequestEmailVerification(ctx context.Context, userID string) (*vservice.IssueResult, error) {
	user, err := s.userByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.EmailVerified {
		return nil, apperr.NewCode(apperr.KindConflict, "EMAIL_ALREADY_VERIFIED", "email is already verified")
	}
	return s.verifier.IssueCode(ctx, userID, vdomain.PurposeEmailVerification)
}

// VerifyEmail marks the user's email verified.
func (s *AuthService) VerifyEmail(ctx context.Context, userID, code string) error {
	if _, err := s.userByID(ctx, userID); err != nil {
		return err
	}
	return s.verifier.VerifyCode(ctx, userID, vdomain.PurposeEmailVerification, code)
}

// RequestPasswordReset sends a reset code to the identifier's channel: email
// for an email address, SMS otherwise. Unknown identifiers return nil, nil, as
// do throttled or undeliverable sends.
func (s *AuthService) RequestPasswordReset(ctx context.Context, identifier string) (*vservice.IssueResult, error) {
	user, err := s.lookup(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if user == nil || user.Status != userdomain.StatusActive {
		return nil, nil
	}
	res, err := s.verifier.IssueCodeVia(ctx, user.ID, vdomain.PurposePasswordReset, identifierChannel(identifier))
	if err != nil {
		return nil, s.silence(user.ID, "password_reset", err)
	}
	return res, nil
}

// ResetPassword consumes a reset code and replaces the password.
func (s *AuthService) ResetPassword(ctx context.Context, identifier, code, newPassword string) error {
	if err := checkPassword(newPassword); err != nil {
		return err
	}
	user, err := s.lookup(ctx, identifier)
	if err != nil {
		return err
	}
	if user == nil {
		return vdomain.ErrCodeNotFound
	}
	if err := s.verifier.VerifyCode(ctx, user.ID, vdomain.PurposePasswordReset, code); err != nil {
		return err
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return apperr.Internal(err)
	}
	if err := s.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return apperr.Internal(err)
	}
	s.audit.LogEvent(ctx, user.ID, auditdomain.ActionPasswordReset, nil)
	return nil
}

// SetSuccessPassword stores the hash of the step-up password.
func (s *AuthService) SetSuccessPassword(ctx context.Context, userID, password string) error {
	if err := checkPassword(password); err != nil {
		return err
	}
	if _, err := s.userByID(ctx, userID); err != nil {
		return err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return apperr.Internal(err)
	}
	if err := s.users.UpdateSuccessPasswordHash(ctx, userID, hash); err != nil {
		return apperr.Internal(err)
	}
	s.audit.LogEvent(ctx, userID, auditdomain.ActionSuccessPasswordSet, nil)
	return nil
}

// VerifySuccessPassword checks password against the stored success password.
func (s *AuthService) VerifySuccessPassword(ctx context.Context, userID, password string) error {
	user, err := s.userByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.HasSuccessPassword() {
		s.hasher.Verify("", password)
		return ErrSuccessPasswordUnset
	}
	if !s.hasher.Verify(user.SuccessPasswordHash, password) {
		return ErrInvalidCredentials
	}
	return nil
}

// Me returns the caller's account.
func (s *AuthService) Me(ctx context.Context, userID string) (*userdomain.User, error) {
	return s.userByID(ctx, userID)
}

func (s *AuthService) issueSession(ctx context.Context, user *userdomain.User, method string) (*AuthResult, error) {
	token, expiresAt, err := s.tokens.IssueSession(user.ID, string(user.Role))
	if err != nil {
		return nil, apperr.Internal(err)
	}
	now := s.nowF().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("update last login", zap.String("user_id", user.ID), zap.Error(err))
	} else {
		user.LastLoginAt = &now
	}
	s.audit.LogEvent(ctx, user.ID, auditdomain.ActionLoginSuccess, map[string]string{"method": method})
	return &AuthResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

func (s *AuthService) loginFailure(ctx context.Context, userID, identifier, reason string) {
	s.audit.LogEvent(ctx, userID, auditdomain.ActionLoginFailure, map[string]string{
		"identifier": maskIdentifier(identifier),
		"reason":     reason,
	})
}

// lookup finds a user by email first, then by phone. Returns nil, nil when neither matches.
func (s *AuthService) lookup(ctx context.Context, identifier string) (*userdomain.User, error) {
	if email := userdomain.NormalizeEmail(identifier); userdomain.ValidEmail(email) {
		u, err := s.users.GetByEmail(ctx, email)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		if u != nil {
			return u, nil
		}
	}
	if phone := userdomain.NormalizePhone(identifier); phone != "" {
		u, err := s.users.GetByPhone(ctx, phone)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		return u, nil
	}
	return nil, nil
}

func (s *AuthService) userByID(ctx context.Context, userID string) (*userdomain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if user == nil {
		return nil, userdomain.ErrNotFound
	}
	return user, nil
}

func (s *AuthService) activeUser(ctx context.Context, userID string) (*userdomain.User, error) {
	user, err := s.userByID(ctx, userID)
	if err != nil {
		if errors.Is(err, userdomain.ErrNotFound) {
			return nil, vdomain.ErrTokenInvalid
		}
		return nil, err
	}
	if user.Status != userdomain.StatusActive {
		return nil, ErrAccountInactive
	}
	return user, nil
}

// silence drops rate-limit and delivery errors on flows whose answer must not
// depend on whether the account exists. Anything else is returned as is.
func (s *AuthService) silence(userID, flow string, err error) error {
	switch apperr.KindOf(err) {
	case apperr.KindRateLimited, apperr.KindDeliveryFailed:
		s.logger.Warn("silent flow send suppressed",
			zap.String("flow", flow), zap.String("user_id", userID), zap.Error(err))
		return nil
	}
	return err
}

func checkPassword(password string) error {
	if failed := security.CheckPasswordPolicy(password); len(failed) > 0 {
		return ErrWeakPassword.WithDetails(failed...)
	}
	return nil
}

func identifierChannel(identifier string) vdomain.Channel {
	if strings.Contains(identifier, "@") {
		return vdomain.ChannelEmail
	}
	return vdomain.ChannelPhone
}

func maskIdentifier(identifier string) string {
	if strings.Contains(identifier, "@") {
		return userdomain.MaskEmail(userdomain.NormalizeEmail(identifier))
	}
	return userdomain.MaskPhone(strings.TrimSpace(identifier))
}

func buildLoginLink(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
