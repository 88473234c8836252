// Package handler exposes user account administration over HTTP.
package handler

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"nettoria/backend/internal/platform/apperr"
	"nettoria/backend/internal/platform/rbac"
	"nettoria/backend/internal/platform/respond"
	"nettoria/backend/internal/policy/engine"
	"nettoria/backend/internal/user/domain"
	"nettoria/backend/internal/user/service"
)

// UserResponse is the public view of a user. Secrets and hashes are never exposed.
type UserResponse struct {
	ID               string     `json:"id"`
	FirstName        string     `json:"firstName"`
	LastName         string     `json:"lastName"`
	Email            string     `json:"email"`
	PhoneNumber      string     `json:"phoneNumber"`
	NationalID       string     `json:"nationalId,omitempty"`
	EmailVerified    bool       `json:"emailVerified"`
	PhoneVerified    bool       `json:"phoneVerified"`
	TwoFactorEnabled bool       `json:"twoFactorEnabled"`
	Role             string     `json:"role"`
	Status           string     `json:"status"`
	LastLoginAt      *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
}

// NewUserResponse maps a domain user to its public view. Returns nil for nil.
func NewUserResponse(u *domain.User) *UserResponse {
	if u == nil {
		return nil
	}
	return &UserResponse{
		ID:               u.ID,
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		Email:            u.Email,
		PhoneNumber:      u.Phone,
		NationalID:       u.NationalID,
		EmailVerified:    u.EmailVerified,
		PhoneVerified:    u.PhoneVerified,
		TwoFactorEnabled: u.TwoFactorEnabled,
		Role:             string(u.Role),
		Status:           string(u.Status),
		LastLoginAt:      u.LastLoginAt,
		CreatedAt:        u.CreatedAt,
	}
}

var errUserIDRequired = apperr.NewCode(apperr.KindValidation, "USER_ID_REQUIRED", "user id is required")

// Handler serves /admin/users. Every route runs the policy check for its action.
type Handler struct {
	users  *service.Service
	policy engine.Evaluator
}

// NewHandler returns a Handler.
func NewHandler(users *service.Service, policy engine.Evaluator) *Handler {
	return &Handler{users: users, policy: policy}
}

// Register mounts the routes on r, which must already require authentication.
func (h *Handler) Register(r fiber.Router) {
	r.Get("/users/:id", h.GetUser)
	r.Patch("/users/:id/role", h.ChangeRole)
	r.Patch("/users/:id/status", h.ChangeStatus)
}

// GetUser returns a user by id.
func (h *Handler) GetUser(c *fiber.Ctx) error {
	targetID := strings.TrimSpace(c.Params("id"))
	if targetID == "" {
		return errUserIDRequired
	}
	if _, err := rbac.Authorize(c.UserContext(), h.policy, engine.ActionUserRead, targetID); err != nil {
		return err
	}
	u, err := h.users.Get(c.UserContext(), targetID)
	if err != nil {
		return err
	}
	return respond.OK(c, "user", NewUserResponse(u))
}

type changeRoleRequest struct {
	Role string `json:"role"`
}

// ChangeRole sets a user's role.
func (h *Handler) ChangeRole(c *fiber.Ctx) error {
	targetID := strings.TrimSpace(c.Params("id"))
	if targetID == "" {
		return errUserIDRequired
	}
	actorID, err := rbac.Authorize(c.UserContext(), h.policy, engine.ActionUserRoleUpdate, targetID)
	if err != nil {
		return err
	}
	var req changeRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.New(apperr.KindValidation, "invalid request body")
	}
	u, err := h.users.ChangeRole(c.UserContext(), actorID, targetID, domain.Role(strings.ToLower(strings.TrimSpace(req.Role))))
	if err != nil {
		return err
	}
	return respond.OK(c, "role updated", NewUserResponse(u))
}

type changeStatusRequest struct {
	Status string `json:"status"`
}

// ChangeStatus activates, deactivates or suspends a user.
func (h *Handler) ChangeStatus(c *fiber.Ctx) error {
	targetID := strings.TrimSpace(c.Params("id"))
	if targetID == "" {
		return errUserIDRequired
	}
	actorID, err := rbac.Authorize(c.UserContext(), h.policy, engine.ActionUserStatusUpdate, targetID)
	if err != nil {
		return err
	}
	var req changeStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.New(apperr.KindValidation, "invalid request body")
	}
	u, err := h.users.ChangeStatus(c.UserContext(), actorID, targetID, domain.Status(strings.ToLower(strings.TrimSpace(req.Status))))
	if err != nil {
		return err
	}
	return respond.OK(c, "status updated", NewUserResponse(u))
}
