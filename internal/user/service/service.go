package service

import (
	"context"

	"nettoria/backend/internal/audit"
	auditdomain "nettoria/backend/internal/audit/domain"
	"nettoria/backend/internal/platform/apperr"
	"nettoria/backend/internal/user/domain"
	"nettoria/backend/internal/user/repository"
)

// Service performs administrative changes to user accounts. Authorization is
// the caller's responsibility.
type Service struct {
	users repository.Repository
	audit audit.AuditLogger
}

// NewService returns a Service. auditLogger may be nil.
func NewService(users repository.Repository, auditLogger audit.AuditLogger) *Service {
	if auditLogger == nil {
		auditLogger = audit.Nop{}
	}
	return &Service{users: users, audit: auditLogger}
}

// Get returns the user or domain.ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (*domain.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if u == nil {
		return nil, domain.ErrNotFound
	}
	return u, nil
}

// ChangeRole sets the target's role and records actorID in the audit trail.
func (s *Service) ChangeRole(ctx context.Context, actorID, targetID string, role domain.Role) (*domain.User, error) {
	if !role.Valid() {
		return nil, apperr.New(apperr.KindValidation, "role must be user or admin")
	}
	u, err := s.Get(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if u.Role == role {
		return u, nil
	}
	if err := s.users.UpdateRole(ctx, targetID, role); err != nil {
		return nil, mapUpdateErr(err)
	}
	s.audit.LogEvent(ctx, targetID, auditdomain.ActionRoleChanged, map[string]string{
		"actor": actorID,
		"from":  string(u.Role),
		"to":    string(role),
	})
	u.Role = role
	return u, nil
}

// ChangeStatus sets the target's status and records actorID in the audit trail.
func (s *Service) ChangeStatus(ctx context.Context, actorID, targetID string, status domain.Status) (*domain.User, error) {
	if !status.Valid() {
		return nil, apperr.New(apperr.KindValidation, "status must be active, inactive or suspended")
	}
	u, err := s.Get(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if u.Status == status {
		return u, nil
	}
	if err := s.users.UpdateStatus(ctx, targetID, status); err != nil {
		return nil, mapUpdateErr(err)
	}
	s.audit.LogEvent(ctx, targetID, auditdomain.ActionStatusChanged, map[string]string{
		"actor": actorID,
		"from":  string(u.Status),
		"to":    string(status),
	})
	u.Status = status
	return u, nil
}

func mapUpdateErr(err error) error {
	if apperr.KindOf(err) == apperr.KindNotFound {
		return err
	}
	return apperr.Internal(err)
}
