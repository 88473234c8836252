// Package handler exposes the dev-only OTP lookup endpoint.
package handler

import (
	"github.com/gofiber/fiber/v2"

	"nettoria/backend/internal/devotp"
	"nettoria/backend/internal/platform/apperr"
	"nettoria/backend/internal/platform/respond"
)

const devOTPNote = "DEV MODE ONLY"

var (
	errTargetRequired = apperr.NewCode(apperr.KindValidation, "TARGET_REQUIRED", "target is required")
	errOTPNotFound    = apperr.New(apperr.KindNotFound, "OTP not found or expired")
)

// Handler serves captured secrets. Only registered when dev OTP is enabled and not production.
type Handler struct {
	store devotp.Store
}

// NewHandler returns a Handler reading from store.
func NewHandler(store devotp.Store) *Handler {
	return &Handler{store: store}
}

// Register mounts GET /dev/otp.
func (h *Handler) Register(r fiber.Router) {
	r.Get("/dev/otp", h.GetOTP)
}

// GetOTP returns the last secret sent to ?target=.
func (h *Handler) GetOTP(c *fiber.Ctx) error {
	target := c.Query("target")
	if target == "" {
		return errTargetRequired
	}
	e, ok := h.store.Get(c.UserContext(), target)
	if !ok {
		return errOTPNotFound
	}
	return respond.OK(c, devOTPNote, fiber.Map{
		"target":    target,
		"channel":   e.Channel,
		"otp":       e.Secret,
		"expiresAt": e.ExpiresAt,
	})
}
