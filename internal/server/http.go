// Package server assembles the fiber application: global middleware, error
// mapping and route registration.
package server

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	audithandler "nettoria/backend/internal/audit/handler"
	auditrepo "nettoria/backend/internal/audit/repository"
	"nettoria/backend/internal/devotp"
	devotphandler "nettoria/backend/internal/devotp/handler"
	healthhandler "nettoria/backend/internal/health/handler"
	identityhandler "nettoria/backend/internal/identity/handler"
	identityservice "nettoria/backend/internal/identity/service"
	"nettoria/backend/internal/platform/respond"
	"nettoria/backend/internal/policy/engine"
	"nettoria/backend/internal/security"
	"nettoria/backend/internal/server/middleware"
	userhandler "nettoria/backend/internal/user/handler"
	userservice "nettoria/backend/internal/user/service"
)

// Deps holds the services the HTTP handlers need.
type Deps struct {
	Logger    *zap.Logger
	Tokens    *security.TokenProvider
	Auth      *identityservice.AuthService
	TwoFactor identityhandler.TwoFactor
	Users     *userservice.Service
	AuditRepo auditrepo.Repository
	Policy    engine.Evaluator

	HealthChecks []healthhandler.Check
	// Limiter guards the code-issuing and code-checking endpoints. Nil disables limiting.
	Limiter middleware.Limiter
	// DevOTPStore enables GET /dev/otp. Set only when dev OTP is enabled and not production.
	DevOTPStore devotp.Store

	CORSOrigins []string
	// ProxyHeader names the header carrying the client IP behind a proxy (e.g. X-Forwarded-For).
	ProxyHeader string

	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// NewApp returns a fiber app with every route registered.
//
// Route → handler mapping:
//   - /auth, /2fa, /success-password → internal/identity/handler
//   - /admin/users                   → internal/user/handler
//   - /admin/audit-logs              → internal/audit/handler
//   - /health                        → internal/health/handler
//   - /dev/otp                       → internal/devotp/handler
func NewApp(deps Deps) *fiber.App {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	app := fiber.New(fiber.Config{
		AppName:               "nettoria",
		ErrorHandler:          respond.ErrorHandler(logger),
		ProxyHeader:           deps.ProxyHeader,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: corsOrigins(deps.CORSOrigins),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PATCH,OPTIONS",
	}))
	app.Use(middleware.Telemetry(deps.TracerProvider, deps.MeterProvider))
	app.Use(middleware.RequestLogger(logger))

	requireAuth := middleware.RequireAuth(deps.Tokens)
	var limit fiber.Handler
	if deps.Limiter != nil {
		limit = middleware.RateLimit(deps.Limiter, logger)
	}

	healthhandler.NewHandler(logger, deps.HealthChecks...).Register(app)
	identityhandler.NewHandler(deps.Auth, deps.TwoFactor).Register(app, requireAuth, limit)

	admin := app.Group("/admin", requireAuth)
	userhandler.NewHandler(deps.Users, deps.Policy).Register(admin)
	audithandler.NewHandler(deps.AuditRepo, deps.Policy).Register(admin)

	if deps.DevOTPStore != nil {
		devotphandler.NewHandler(deps.DevOTPStore).Register(app)
		logger.Warn("dev OTP mode: codes are captured for GET /dev/otp and not delivered")
	}
	return app
}

func corsOrigins(origins []string) string {
	if len(origins) == 0 {
		return "*"
	}
	return strings.Join(origins, ",")
}
