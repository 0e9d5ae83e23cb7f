package services

import (
	"context"

	"github.com/nimasrn/lending-admin/internal/model"
	"github.com/nimasrn/lending-admin/internal/repository"
	"github.com/nimasrn/lending-admin/pkg/pg"
)

const ModuleOnboarding = "onboarding"

type OnboardingService struct {
	Clients *Resource[model.Client]
}

func NewOnboardingService(db *pg.DB, audit *AuditService) *OnboardingService {
	return &OnboardingService{
		Clients: NewResource(ResourceConfig[model.Client]{
			Name:   "Client",
			Module: ModuleOnboarding,
			Store:  repository.NewStore[model.Client](db, repository.ClientOptions()),
			Audit:  audit,
			Scoped: true,
			// anonymous sign-ups land in the tenant resolved from X-Tenant-Id, if any
			BeforeCreate: func(_ context.Context, actor *model.Actor, c *model.Client) error {
				if !actor.IsMaster() || c.TenantID == nil {
					c.TenantID = actor.TenantID
				}
				if c.KYCStatus == "" {
					c.KYCStatus = "Pending"
				}
				return nil
			},
		}),
	}
}
