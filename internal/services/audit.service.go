package services

import (
	"context"

	"github.com/nimasrn/lending-admin/internal/model"
	"github.com/nimasrn/lending-admin/pkg/logger"
)

type AuditRepository interface {
	AddAuditLog(ctx context.Context, l *model.AuditLog) error
}

type AuditService struct {
	repo AuditRepository
}

func NewAuditService(repo AuditRepository) *AuditService {
	return &AuditService{repo: repo}
}

// Record writes one audit row for actor. Inside a transaction the row
// commits or rolls back with the change it describes.
func (s *AuditService) Record(ctx context.Context, actor *model.Actor, action model.ActionType, module, description string) error {
	l := &model.AuditLog{
		UserID:      actor.UserRef(),
		TenantID:    actor.TenantID,
		ActionType:  action,
		Module:      module,
		Description: description,
		IPAddress:   actor.IP,
	}
	return s.repo.AddAuditLog(ctx, l)
}

// Note records outside any transaction and only logs a failure.
func (s *AuditService) Note(ctx context.Context, actor *model.Actor, action model.ActionType, module, description string) {
	if err := s.Record(ctx, actor, action, module, description); err != nil {
		logger.Warn("[audit] failed to write audit log", "action", action, "module", module, "error", err)
	}
}
