// Package engine decides authorization for privileged actions with OPA Rego.
package engine

import "context"

// Actions checked against the authorization policy.
const (
	ActionUserRead         = "user.read"
	ActionUserRoleUpdate   = "user.role.update"
	ActionUserStatusUpdate = "user.status.update"
	ActionAuditList        = "audit.list"
)

// Subject is the authenticated caller.
type Subject struct {
	ID   string
	Role string
}

// Input describes one authorization question. ResourceOwnerID is the user the
// action targets, empty when the action has no single target.
type Input struct {
	Subject         Subject
	Action          string
	ResourceOwnerID string
}

// Decision is the policy's answer.
type Decision struct {
	Allow  bool
	Reason string
}

// Evaluator evaluates authorization policies using OPA or other engines.
type Evaluator interface {
	Authorize(ctx context.Context, in Input) (Decision, error)
}
