// Package handler serves the health endpoint used by load balancers and orchestration.
package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"nettoria/backend/internal/platform/respond"
)

const checkTimeout = 2 * time.Second

// Check is a named dependency probe.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// Handler runs every check on GET /health.
type Handler struct {
	checks []Check
	logger *zap.Logger
}

// NewHandler returns a Handler running checks in order.
func NewHandler(logger *zap.Logger, checks ...Check) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{checks: checks, logger: logger}
}

// Register mounts GET /health.
func (h *Handler) Register(r fiber.Router) {
	r.Get("/health", h.Health)
}

// Health answers 200 when every check passes and 503 otherwise.
func (h *Handler) Health(c *fiber.Ctx) error {
	results := make(map[string]string, len(h.checks))
	healthy := true
	for _, chk := range h.checks {
		ctx, cancel := context.WithTimeout(c.UserContext(), checkTimeout)
		err := chk.Probe(ctx)
		cancel()
		if err != nil {
			healthy = false
			results[chk.Name] = "down"
			h.logger.Warn("health check failed", zap.String("check", chk.Name), zap.Error(err))
			continue
		}
		results[chk.Name] = "up"
	}
	if !healthy {
		return respond.JSON(c, fiber.StatusServiceUnavailable, "unhealthy", fiber.Map{"status": "down", "checks": results})
	}
	return respond.OK(c, "healthy", fiber.Map{"status": "up", "checks": results})
}
