package rbac

import (
	"context"

	"nettoria/backend/internal/platform/apperr"
	"nettoria/backend/internal/policy/engine"
	"nettoria/backend/internal/server/middleware"
)

// ErrForbidden is returned when the policy denies the action.
var ErrForbidden = apperr.New(apperr.KindForbidden, "not allowed")

// Authorize ensures the caller is authenticated and the policy allows action on
// targetUserID. Returns the caller's user id on success.
func Authorize(ctx context.Context, evaluator engine.Evaluator, action, targetUserID string) (string, error) {
	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		return "", apperr.New(apperr.KindUnauthorized, "authentication required")
	}
	role, _ := middleware.GetRole(ctx)
	d, err := evaluator.Authorize(ctx, engine.Input{
		Subject:         engine.Subject{ID: userID, Role: role},
		Action:          action,
		ResourceOwnerID: targetUserID,
	})
	if err != nil {
		return "", apperr.Internal(err)
	}
	if !d.Allow {
		if d.Reason != "" {
			return "", ErrForbidden.WithDetails(d.Reason)
		}
		return "", ErrForbidden
	}
	return userID, nil
}
