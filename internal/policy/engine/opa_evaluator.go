package engine

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
)

const (
	allowQuery  = "data.nettoria.authz.allow"
	reasonQuery = "data.nettoria.authz.reason"
)

// DefaultRegoPolicy lets admins perform admin actions, except changing their
// own role or status. Any user may read their own account.
const DefaultRegoPolicy = `package nettoria.authz

admin_actions := {"user.read", "user.role.update", "user.status.update", "audit.list"}

self_protected := {"user.role.update", "user.status.update"}

default allow := false

allow if {
	input.subject.role == "admin"
	admin_actions[input.action]
	not self_targeted
}

allow if {
	input.action == "user.read"
	input.subject.id != ""
	input.resource.owner_id == input.subject.id
}

self_targeted if {
	self_protected[input.action]
	input.resource.owner_id == input.subject.id
}

default reason := "admin role required"

reason := "cannot change own account" if {
	input.subject.role == "admin"
	self_targeted
}

reason := "allowed" if allow
`

// OPAEvaluator evaluates authorization with a compiled Rego policy.
type OPAEvaluator struct {
	allow  rego.PreparedEvalQuery
	reason rego.PreparedEvalQuery
}

// NewOPAEvaluator compiles modules, or DefaultRegoPolicy when none are given.
// Every module must live in package nettoria.authz.
func NewOPAEvaluator(ctx context.Context, modules ...string) (*OPAEvaluator, error) {
	if len(modules) == 0 {
		modules = []string{DefaultRegoPolicy}
	}
	files := make(map[string]string, len(modules))
	for i, m := range modules {
		files[fmt.Sprintf("policy_%d.rego", i)] = m
	}
	compiler, err := ast.CompileModules(files)
	if err != nil {
		return nil, fmt.Errorf("compile policies: %w", err)
	}
	allow, err := rego.New(rego.Query(allowQuery), rego.Compiler(compiler)).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare allow query: %w", err)
	}
	reason, err := rego.New(rego.Query(reasonQuery), rego.Compiler(compiler)).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare reason query: %w", err)
	}
	return &OPAEvaluator{allow: allow, reason: reason}, nil
}

// Authorize evaluates the policy for in. Evaluation errors deny.
func (e *OPAEvaluator) Authorize(ctx context.Context, in Input) (Decision, error) {
	input := map[string]interface{}{
		"subject": map[string]interface{}{
			"id":   in.Subject.ID,
			"role": in.Subject.Role,
		},
		"action": in.Action,
		"resource": map[string]interface{}{
			"owner_id": in.ResourceOwnerID,
		},
	}
	rs, err := e.allow.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return Decision{Reason: "policy evaluation failed"}, fmt.Errorf("eval allow: %w", err)
	}
	d := Decision{Allow: rs.Allowed()}
	if rs, err := e.reason.Eval(ctx, rego.EvalInput(input)); err == nil && len(rs) > 0 && len(rs[0].Expressions) > 0 {
		if s, ok := rs[0].Expressions[0].Value.(string); ok {
			d.Reason = s
		}
	}
	return d, nil
}

// HealthCheck evaluates a fixed input to confirm the engine answers.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	d, err := e.Authorize(ctx, Input{Subject: Subject{ID: "health", Role: "admin"}, Action: ActionAuditList})
	if err != nil {
		return err
	}
	if !d.Allow {
		return fmt.Errorf("policy health probe denied: %s", d.Reason)
	}
	return nil
}
