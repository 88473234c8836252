package rbac

import (
	"context"
	"errors"
	"testing"

	"nettoria/backend/internal/platform/apperr"
	"nettoria/backend/internal/policy/engine"
	"nettoria/backend/internal/server/middleware"
)

// mockEvaluator implements engine.Evaluator for tests.
type mockEvaluator struct {
	decision engine.Decision
	err      error
	last     engine.Input
}

func (m *mockEvaluator) Authorize(ctx context.Context, in engine.Input) (engine.Decision, error) {
	m.last = in
	return m.decision, m.err
}

func TestAuthorize_Allowed(t *testing.T) {
	ev := &mockEvaluator{decision: engine.Decision{Allow: true}}
	ctx := middleware.WithIdentity(context.Background(), "admin-1", "admin", "jti")

	userID, err := Authorize(ctx, ev, engine.ActionUserRoleUpdate, "user-2")
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if userID != "admin-1" {
		t.Errorf("user_id = %q", userID)
	}
	if ev.last.Subject.Role != "admin" || ev.last.ResourceOwnerID != "user-2" || ev.last.Action != engine.ActionUserRoleUpdate {
		t.Errorf("input = %+v", ev.last)
	}
}

func TestAuthorize_Unauthenticated(t *testing.T) {
	_, err := Authorize(context.Background(), &mockEvaluator{}, engine.ActionAuditList, "")
	if apperr.KindOf(err) != apperr.KindUnauthorized {
		t.Fatalf("kind = %v, want UNAUTHORIZED", apperr.KindOf(err))
	}
}

func TestAuthorize_Denied(t *testing.T) {
	ev := &mockEvaluator{decision: engine.Decision{Reason: "admin role required"}}
	ctx := middleware.WithIdentity(context.Background(), "user-1", "user", "jti")

	_, err := Authorize(ctx, ev, engine.ActionAuditList, "")
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want FORBIDDEN", err)
	}
	if d := apperr.As(err).Details; len(d) != 1 || d[0] != "admin role required" {
		t.Errorf("details = %v", d)
	}
}

func TestAuthorize_EvaluatorError(t *testing.T) {
	ev := &mockEvaluator{err: errors.New("boom")}
	ctx := middleware.WithIdentity(context.Background(), "user-1", "admin", "jti")
	_, err := Authorize(ctx, ev, engine.ActionAuditList, "")
	if apperr.KindOf(err) != apperr.KindInternal {
		t.Fatalf("kind = %v, want INTERNAL", apperr.KindOf(err))
	}
}

func TestAuthorize_WithOPAEvaluator(t *testing.T) {
	ev, err := engine.NewOPAEvaluator(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	ctx := middleware.WithIdentity(context.Background(), "admin-1", "admin", "jti")
	if _, err := Authorize(ctx, ev, engine.ActionUserStatusUpdate, "admin-1"); !errors.Is(err, ErrForbidden) {
		t.Errorf("self status change err = %v, want FORBIDDEN", err)
	}
	if _, err := Authorize(ctx, ev, engine.ActionUserStatusUpdate, "user-9"); err != nil {
		t.Errorf("status change err = %v", err)
	}
}
