package domain

import "time"

// AuditLog is one recorded security event. UserID is empty for events with
// no resolved account (e.g. a failed login for an unknown identifier).
type AuditLog struct {
	ID        string
	UserID    string
	Action    string
	IP        string
	Metadata  string
	CreatedAt time.Time
}

// Audited actions.
const (
	ActionRegister           = "register"
	ActionLoginSuccess       = "login_success"
	ActionLoginFailure       = "login_failure"
	ActionCodeIssued         = "code_issued"
	ActionCodeVerified       = "code_verified"
	ActionLoginTokenIssued   = "login_token_issued"
	ActionLoginTokenUsed     = "login_token_used"
	ActionTwoFactorSetup     = "two_factor_setup"
	ActionTwoFactorEnabled   = "two_factor_enabled"
	ActionSuccessPasswordSet = "success_password_set"
	ActionPasswordReset      = "password_reset"
	ActionRoleChanged        = "role_changed"
	ActionStatusChanged      = "status_changed"
)

// Filter narrows a listing. Zero values mean no constraint.
type Filter struct {
	UserID string
	Action string
	Limit  int
	Offset int
}
