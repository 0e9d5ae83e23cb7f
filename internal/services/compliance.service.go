package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/nimasrn/lending-admin/internal/model"
	"github.com/nimasrn/lending-admin/internal/repository"
	"github.com/nimasrn/lending-admin/pkg/pg"
)

const ModuleCompliance = "compliance"

type ComplianceService struct {
	checks *repository.Store[model.ComplianceCheck]

	Checks    *Resource[model.ComplianceCheck]
	RiskFlags *Resource[model.RiskFlag]
}

func NewComplianceService(db *pg.DB, tenants TenantDirectory, audit *AuditService) *ComplianceService {
	s := &ComplianceService{
		checks: repository.NewStore[model.ComplianceCheck](db, repository.ComplianceCheckOptions()),
	}
	s.Checks = NewResource(ResourceConfig[model.ComplianceCheck]{
		Name:    "Compliance check",
		Module:  ModuleCompliance,
		Store:   s.checks,
		Audit:   audit,
		Tenants: tenants,
		Scoped:  true,
		BeforeCreate: func(_ context.Context, _ *model.Actor, c *model.ComplianceCheck) error {
			c.CheckID = uuid.NewString()
			if c.Status == "" {
				c.Status = "PENDING"
			}
			return nil
		},
	})
	s.RiskFlags = NewResource(ResourceConfig[model.RiskFlag]{
		Name:    "Risk flag",
		Module:  ModuleCompliance,
		Store:   repository.NewStore[model.RiskFlag](db, repository.RiskFlagOptions()),
		Audit:   audit,
		Tenants: tenants,
		Scoped:  true,
		BeforeCreate: func(ctx context.Context, _ *model.Actor, f *model.RiskFlag) error {
			f.FlagID = uuid.NewString()
			return s.checkRelated(ctx, f)
		},
		BeforeUpdate: func(ctx context.Context, _ *model.Actor, _, f *model.RiskFlag) error {
			return s.checkRelated(ctx, f)
		},
	})
	return s
}

// checkRelated keeps a flag's related check inside the flag's tenant.
func (s *ComplianceService) checkRelated(ctx context.Context, f *model.RiskFlag) error {
	if f.RelatedCheckID == nil {
		return nil
	}
	tid := f.TenantID
	_, err := s.checks.GetByID(ctx, *f.RelatedCheckID, &tid)
	if errors.Is(err, repository.ErrNotFound) {
		return InvalidFields(map[string]string{"related_check_id": "compliance check does not belong to the tenant"})
	}
	return err
}
