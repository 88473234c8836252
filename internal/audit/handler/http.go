// Package handler exposes the audit trail to administrators.
package handler

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"

	"nettoria/backend/internal/audit/domain"
	"nettoria/backend/internal/audit/repository"
	"nettoria/backend/internal/platform/apperr"
	"nettoria/backend/internal/platform/rbac"
	"nettoria/backend/internal/platform/respond"
	"nettoria/backend/internal/policy/engine"
)

// AuditLogResponse is one entry in a listing.
type AuditLogResponse struct {
	ID        string            `json:"id"`
	UserID    string            `json:"userId,omitempty"`
	Action    string            `json:"action"`
	IP        string            `json:"ip"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// Handler serves GET /admin/audit-logs.
type Handler struct {
	repo   repository.Repository
	policy engine.Evaluator
}

// NewHandler returns a Handler.
func NewHandler(repo repository.Repository, policy engine.Evaluator) *Handler {
	return &Handler{repo: repo, policy: policy}
}

// Register mounts the routes on r, which must already require authentication.
func (h *Handler) Register(r fiber.Router) {
	r.Get("/audit-logs", h.List)
}

// List returns entries newest first, filtered by ?userId= and ?action=, paged by ?limit= and ?offset=.
func (h *Handler) List(c *fiber.Ctx) error {
	if _, err := rbac.Authorize(c.UserContext(), h.policy, engine.ActionAuditList, ""); err != nil {
		return err
	}
	limit := c.QueryInt("limit", repository.DefaultListLimit)
	offset := c.QueryInt("offset", 0)
	if limit < 0 || offset < 0 {
		return apperr.New(apperr.KindValidation, "limit and offset must not be negative")
	}
	logs, err := h.repo.List(c.UserContext(), domain.Filter{
		UserID: c.Query("userId"),
		Action: c.Query("action"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return apperr.Internal(err)
	}
	out := make([]AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		out = append(out, toResponse(l))
	}
	return respond.OK(c, "audit logs", fiber.Map{"items": out, "limit": limit, "offset": offset})
}

func toResponse(l *domain.AuditLog) AuditLogResponse {
	r := AuditLogResponse{
		ID:        l.ID,
		UserID:    l.UserID,
		Action:    l.Action,
		IP:        l.IP,
		CreatedAt: l.CreatedAt,
	}
	if l.Metadata != "" {
		_ = json.Unmarshal([]byte(l.Metadata), &r.Metadata)
	}
	return r
}
