package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"nettoria/backend/internal/platform/apperr"
	"nettoria/backend/internal/security"
)

const bearerPrefix = "bearer "

// ErrUnauthorized is returned for requests without a valid session token.
var ErrUnauthorized = apperr.New(apperr.KindUnauthorized, "missing or invalid authorization")

// RequireAuth validates the Bearer session token and stores the caller's identity
// in the request's user context. Requests without a valid token are rejected.
func RequireAuth(tokens *security.TokenProvider) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := extractBearer(c.Get(fiber.HeaderAuthorization))
		if token == "" {
			return ErrUnauthorized
		}
		claims, err := tokens.ValidateSession(token)
		if err != nil {
			return ErrUnauthorized
		}
		c.SetUserContext(WithIdentity(c.UserContext(), claims.UserID(), claims.Role, claims.ID))
		return c.Next()
	}
}

// extractBearer returns the token from an Authorization header value, or "" if missing or malformed.
func extractBearer(header string) string {
	v := strings.TrimSpace(header)
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
