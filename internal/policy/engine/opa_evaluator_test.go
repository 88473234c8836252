package engine

import (
	"context"
	"testing"
)

func newEvaluator(t *testing.T, modules ...string) *OPAEvaluator {
	t.Helper()
	e, err := NewOPAEvaluator(context.Background(), modules...)
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	return e
}

func TestOPAEvaluator_HealthCheck(t *testing.T) {
	if err := newEvaluator(t).HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}

func TestOPAEvaluator_DefaultPolicy(t *testing.T) {
	e := newEvaluator(t)
	ctx := context.Background()
	tests := []struct {
		name   string
		in     Input
		allow  bool
		reason string
	}{
		{
			name:   "admin changes another user's role",
			in:     Input{Subject: Subject{ID: "a1", Role: "admin"}, Action: ActionUserRoleUpdate, ResourceOwnerID: "u1"},
			allow:  true,
			reason: "allowed",
		},
		{
			name:   "admin lists audit logs",
			in:     Input{Subject: Subject{ID: "a1", Role: "admin"}, Action: ActionAuditList},
			allow:  true,
			reason: "allowed",
		},
		{
			name:   "admin changes own status",
			in:     Input{Subject: Subject{ID: "a1", Role: "admin"}, Action: ActionUserStatusUpdate, ResourceOwnerID: "a1"},
			allow:  false,
			reason: "cannot change own account",
		},
		{
			name:   "user changes a role",
			in:     Input{Subject: Subject{ID: "u1", Role: "user"}, Action: ActionUserRoleUpdate, ResourceOwnerID: "u2"},
			allow:  false,
			reason: "admin role required",
		},
		{
			name:   "user reads own account",
			in:     Input{Subject: Subject{ID: "u1", Role: "user"}, Action: ActionUserRead, ResourceOwnerID: "u1"},
			allow:  true,
			reason: "allowed",
		},
		{
			name:   "user reads another account",
			in:     Input{Subject: Subject{ID: "u1", Role: "user"}, Action: ActionUserRead, ResourceOwnerID: "u2"},
			allow:  false,
			reason: "admin role required",
		},
		{
			name:  "admin unknown action",
			in:    Input{Subject: Subject{ID: "a1", Role: "admin"}, Action: "vm.delete"},
			allow: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := e.Authorize(ctx, tt.in)
			if err != nil {
				t.Fatalf("Authorize: %v", err)
			}
			if d.Allow != tt.allow {
				t.Errorf("allow = %v, want %v", d.Allow, tt.allow)
			}
			if tt.reason != "" && d.Reason != tt.reason {
				t.Errorf("reason = %q, want %q", d.Reason, tt.reason)
			}
		})
	}
}

func TestOPAEvaluator_CustomPolicy(t *testing.T) {
	e := newEvaluator(t, `package nettoria.authz

default allow := false

allow if input.action == "audit.list"
`)
	d, err := e.Authorize(context.Background(), Input{Subject: Subject{ID: "u1", Role: "user"}, Action: ActionAuditList})
	if err != nil {
		t.Fatal(err)
	}
	if !d.Allow {
		t.Error("custom policy should allow")
	}
	if d.Reason != "" {
		t.Errorf("reason = %q, want empty when the policy defines none", d.Reason)
	}
}

func TestNewOPAEvaluator_InvalidPolicy(t *testing.T) {
	if _, err := NewOPAEvaluator(context.Background(), "package nettoria.authz\n\nallow if {"); err == nil {
		t.Fatal("expected compile error")
	}
}
