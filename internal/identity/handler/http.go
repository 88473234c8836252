// Package handler exposes registration, sign-in, channel verification, 2FA
// enrollment and the success password over HTTP.
package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"nettoria/backend/internal/identity/service"
	"nettoria/backend/internal/platform/apperr"
	"nettoria/backend/internal/platform/respond"
	"nettoria/backend/internal/server/middleware"
	userhandler "nettoria/backend/internal/user/handler"
	vservice "nettoria/backend/internal/verification/service"
)

// Generic answer for requests that must not reveal whether an account exists.
const silentMessage = "if the account exists, a message has been sent"

var errBadBody = apperr.New(apperr.KindValidation, "invalid request body")

// TwoFactor is the TOTP enrollment part of the verification service.
type TwoFactor interface {
	SetupTwoFactor(ctx context.Context, userID string) (*vservice.TwoFactorSetup, error)
	ConfirmTwoFactor(ctx context.Context, userID, code string) error
}

// Handler serves /auth, /2fa and /success-password.
type Handler struct {
	auth      *service.AuthService
	twoFactor TwoFactor
}

// NewHandler returns a Handler.
func NewHandler(auth *service.AuthService, twoFactor TwoFactor) *Handler {
	return &Handler{auth: auth, twoFactor: twoFactor}
}

// Register mounts every route on r. requireAuth guards the Bearer routes; limit,
// when non-nil, guards the endpoints that send codes or check them.
func (h *Handler) Register(r fiber.Router, requireAuth, limit fiber.Handler) {
	limited := func(handler fiber.Handler) []fiber.Handler {
		if limit == nil {
			return []fiber.Handler{handler}
		}
		return []fiber.Handler{limit, handler}
	}

	auth := r.Group("/auth")
	auth.Post("/register", h.RegisterUser)
	auth.Post("/login", limited(h.Login)...)
	auth.Post("/verify-phone", limited(h.VerifyPhone)...)
	auth.Post("/resend-phone-code", limited(h.ResendPhoneCode)...)
	auth.Post("/request-login-otp", limited(h.RequestLoginOTP)...)
	auth.Post("/verify-login-otp", limited(h.VerifyLoginOTP)...)
	auth.Post("/verify-email", limited(h.VerifyEmail)...)
	auth.Post("/request-login-link", limited(h.RequestLoginLink)...)
	auth.Post("/login-link", limited(h.LoginWithLink)...)
	auth.Post("/forgot-password", limited(h.ForgotPassword)...)
	auth.Post("/reset-password", limited(h.ResetPassword)...)
	auth.Post("/request-email-verification", append([]fiber.Handler{requireAuth}, limited(h.RequestEmailVerification)...)...)
	auth.Get("/me", requireAuth, h.Me)

	twoFA := r.Group("/2fa", requireAuth)
	twoFA.Post("/generate-secret", h.GenerateSecret)
	twoFA.Post("/verify", limited(h.ConfirmTwoFactor)...)

	sp := r.Group("/success-password", requireAuth)
	sp.Post("/set", h.SetSuccessPassword)
	sp.Post("/verify", limited(h.VerifySuccessPassword)...)
}

type issueResponse struct {
	Channel     string    `json:"channel"`
	Destination string    `json:"destination"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

func newIssueResponse(r *vservice.IssueResult) *issueResponse {
	if r == nil {
		return nil
	}
	return &issueResponse{Channel: string(r.Channel), Destination: r.MaskedTarget, ExpiresAt: r.ExpiresAt}
}

type sessionResponse struct {
	Token     string                    `json:"token"`
	ExpiresAt time.Time                 `json:"expiresAt"`
	User      *userhandler.UserResponse `json:"user"`
}

func newSessionResponse(r *service.AuthResult) sessionResponse {
	return sessionResponse{Token: r.Token, ExpiresAt: r.ExpiresAt, User: userhandler.NewUserResponse(r.User)}
}

func parse(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return errBadBody
	}
	return nil
}

func callerID(c *fiber.Ctx) (string, error) {
	userID, ok := middleware.GetUserID(c.UserContext())
	if !ok {
		return "", middleware.ErrUnauthorized
	}
	return userID, nil
}

type registerRequest struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
	Password    string `json:"password"`
	NationalID  string `json:"nationalId"`
}

// RegisterUser creates an account and sends the phone verification code.
func (h *Handler) RegisterUser(c *fiber.Ctx) error {
	var req registerRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	res, err := h.auth.Register(c.UserContext(), service.RegisterInput{
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Email:      req.Email,
		Phone:      req.PhoneNumber,
		Password:   req.Password,
		NationalID: req.NationalID,
	})
	if err != nil {
		return err
	}
	phone := fiber.Map{"sent": res.PhoneCode != nil}
	if res.PhoneCode != nil {
		phone["code"] = newIssueResponse(res.PhoneCode)
	} else if ae := apperr.As(res.PhoneCodeError); ae != nil {
		phone["error"] = ae.Code
	}
	return respond.JSON(c, fiber.StatusCreated, "registered", fiber.Map{
		"user":              userhandler.NewUserResponse(res.User),
		"phoneVerification": phone,
	})
}

type loginRequest struct {
	Identifier    string `json:"identifier"`
	Password      string `json:"password"`
	TwoFactorCode string `json:"twoFactorCode"`
}

// Login signs in with email or phone and password.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	res, err := h.auth.Login(c.UserContext(), req.Identifier, req.Password, req.TwoFactorCode)
	if err != nil {
		return err
	}
	return respond.OK(c, "logged in", newSessionResponse(res))
}

type verifyPhoneRequest struct {
	UserID           string `json:"userId"`
	PhoneNumber      string `json:"phoneNumber"`
	VerificationCode string `json:"verificationCode"`
}

// VerifyPhone consumes the phone verification code.
func (h *Handler) VerifyPhone(c *fiber.Ctx) error {
	var req verifyPhoneRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	if err := h.auth.VerifyPhone(c.UserContext(), req.UserID, req.PhoneNumber, req.VerificationCode); err != nil {
		return err
	}
	return respond.OK(c, "phone number verified", nil)
}

type userIDRequest struct {
	UserID string `json:"userId"`
}

// ResendPhoneCode reissues the phone verification code.
func (h *Handler) ResendPhoneCode(c *fiber.Ctx) error {
	var req userIDRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	res, err := h.auth.RequestPhoneVerification(c.UserContext(), req.UserID)
	if err != nil {
		return err
	}
	return respond.OK(c, "verification code sent", newIssueResponse(res))
}

type phoneRequest struct {
	PhoneNumber string `json:"phoneNumber"`
}

// RequestLoginOTP sends a login code by SMS. The answer is the same whether or not the number is registered.
func (h *Handler) RequestLoginOTP(c *fiber.Ctx) error {
	var req phoneRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	if _, err := h.auth.RequestLoginOTP(c.UserContext(), req.PhoneNumber); err != nil {
		return err
	}
	return respond.OK(c, silentMessage, nil)
}

type verifyLoginOTPRequest struct {
	PhoneNumber      string `json:"phoneNumber"`
	VerificationCode string `json:"verificationCode"`
}

// VerifyLoginOTP exchanges a login code for a session.
func (h *Handler) VerifyLoginOTP(c *fiber.Ctx) error {
	var req verifyLoginOTPRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	res, err := h.auth.VerifyLoginOTP(c.UserContext(), req.PhoneNumber, req.VerificationCode)
	if err != nil {
		return err
	}
	return respond.OK(c, "logged in", newSessionResponse(res))
}

// RequestEmailVerification sends the email verification code to the caller.
func (h *Handler) RequestEmailVerification(c *fiber.Ctx) error {
	userID, err := callerID(c)
	if err != nil {
		return err
	}
	res, err := h.auth.RequestEmailVerification(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return respond.OK(c, "verification code sent", newIssueResponse(res))
}

type verifyEmailRequest struct {
	UserID           string `json:"userId"`
	VerificationCode string `json:"verificationCode"`
}

// VerifyEmail consumes the email verification code.
func (h *Handler) VerifyEmail(c *fiber.Ctx) error {
	var req verifyEmailRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	if err := h.auth.VerifyEmail(c.UserContext(), req.UserID, req.VerificationCode); err != nil {
		return err
	}
	return respond.OK(c, "email verified", nil)
}

type emailRequest struct {
	Email string `json:"email"`
}

// RequestLoginLink emails a one-time sign-in link.
func (h *Handler) RequestLoginLink(c *fiber.Ctx) error {
	var req emailRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	if err := h.auth.RequestLoginLink(c.UserContext(), req.Email); err != nil {
		return err
	}
	return respond.OK(c, silentMessage, nil)
}

type tokenRequest struct {
	Token string `json:"token"`
}

// LoginWithLink exchanges a one-time login token for a session.
func (h *Handler) LoginWithLink(c *fiber.Ctx) error {
	var req tokenRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	res, err := h.auth.LoginWithToken(c.UserContext(), req.Token)
	if err != nil {
		return err
	}
	return respond.OK(c, "logged in", newSessionResponse(res))
}

type identifierRequest struct {
	Identifier string `json:"identifier"`
}

// ForgotPassword sends a password reset code.
func (h *Handler) ForgotPassword(c *fiber.Ctx) error {
	var req identifierRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	if _, err := h.auth.RequestPasswordReset(c.UserContext(), req.Identifier); err != nil {
		return err
	}
	return respond.OK(c, silentMessage, nil)
}

type resetPasswordRequest struct {
	Identifier       string `json:"identifier"`
	VerificationCode string `json:"verificationCode"`
	Password         string `json:"password"`
}

// ResetPassword consumes the reset code and sets a new password.
func (h *Handler) ResetPassword(c *fiber.Ctx) error {
	var req resetPasswordRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	if err := h.auth.ResetPassword(c.UserContext(), req.Identifier, req.VerificationCode, req.Password); err != nil {
		return err
	}
	return respond.OK(c, "password updated", nil)
}

// Me returns the caller's account.
func (h *Handler) Me(c *fiber.Ctx) error {
	userID, err := callerID(c)
	if err != nil {
		return err
	}
	u, err := h.auth.Me(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return respond.OK(c, "current user", userhandler.NewUserResponse(u))
}

// GenerateSecret starts TOTP enrollment for the caller.
func (h *Handler) GenerateSecret(c *fiber.Ctx) error {
	userID, err := callerID(c)
	if err != nil {
		return err
	}
	setup, err := h.twoFactor.SetupTwoFactor(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return respond.OK(c, "scan the QR code with an authenticator app", fiber.Map{
		"secret":     setup.Secret,
		"qrCode":     setup.QRCodeDataURL,
		"otpauthUrl": setup.OTPAuthURL,
	})
}

type codeRequest struct {
	Code string `json:"code"`
}

// ConfirmTwoFactor enables 2FA once the caller proves the authenticator works.
func (h *Handler) ConfirmTwoFactor(c *fiber.Ctx) error {
	userID, err := callerID(c)
	if err != nil {
		return err
	}
	var req codeRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	if err := h.twoFactor.ConfirmTwoFactor(c.UserContext(), userID, req.Code); err != nil {
		return err
	}
	return respond.OK(c, "two-factor authentication enabled", nil)
}

type passwordRequest struct {
	Password string `json:"password"`
}

// SetSuccessPassword stores the caller's step-up password.
func (h *Handler) SetSuccessPassword(c *fiber.Ctx) error {
	userID, err := callerID(c)
	if err != nil {
		return err
	}
	var req passwordRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	if err := h.auth.SetSuccessPassword(c.UserContext(), userID, req.Password); err != nil {
		return err
	}
	return respond.OK(c, "success password set", nil)
}

// VerifySuccessPassword checks the caller's step-up password.
func (h *Handler) VerifySuccessPassword(c *fiber.Ctx) error {
	userID, err := callerID(c)
	if err != nil {
		return err
	}
	var req passwordRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	if err := h.auth.VerifySuccessPassword(c.UserContext(), userID, req.Password); err != nil {
		return err
	}
	return respond.OK(c, "success password verified", nil)
}
