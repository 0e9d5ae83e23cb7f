package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/nimasrn/lending-admin/internal/model"
	"github.com/nimasrn/lending-admin/internal/repository"
	"github.com/nimasrn/lending-admin/pkg/pg"
)

const ModuleCRM = "crm"

type CRMService struct {
	db        *pg.DB
	leads     *repository.Store[model.Lead]
	customers *repository.Store[model.Customer]
	audit     *AuditService

	Leads          *Resource[model.Lead]
	Customers      *Resource[model.Customer]
	LeadActivities *Resource[model.LeadActivity]
}

func NewCRMService(db *pg.DB, tenants TenantDirectory, audit *AuditService) *CRMService {
	s := &CRMService{
		db:        db,
		leads:     repository.NewStore[model.Lead](db, repository.LeadOptions()),
		customers: repository.NewStore[model.Customer](db, repository.CustomerOptions()),
		audit:     audit,
	}
	s.Leads = NewResource(ResourceConfig[model.Lead]{
		Name:    "Lead",
		Module:  ModuleCRM,
		Store:   s.leads,
		Audit:   audit,
		Tenants: tenants,
		Scoped:  true,
		BeforeCreate: func(_ context.Context, _ *model.Actor, l *model.Lead) error {
			if l.Status == "" {
				l.Status = model.LeadNew
			}
			return nil
		},
		AfterWrite: s.recordLeadChange,
	})
	s.Customers = NewResource(ResourceConfig[model.Customer]{
		Name:    "Customer",
		Module:  ModuleCRM,
		Store:   s.customers,
		Audit:   audit,
		Tenants: tenants,
		Scoped:  true,
		BeforeCreate: func(_ context.Context, _ *model.Actor, c *model.Customer) error {
			if c.KYCStatus == "" {
				c.KYCStatus = model.KYCPending
			}
			return nil
		},
	})
	s.LeadActivities = NewResource(ResourceConfig[model.LeadActivity]{
		Name:   "Lead activity",
		Store:  repository.NewStore[model.LeadActivity](db, repository.LeadActivityOptions()),
		Scoped: true,
	})
	return s
}

func (s *CRMService) recordLeadChange(ctx context.Context, actor *model.Actor, old, l *model.Lead) error {
	action := "Lead updated"
	switch {
	case old == nil:
		action = "Lead created"
	case old.Status != l.Status:
		action = fmt.Sprintf("Status changed to %s", l.Status)
	}
	return s.addActivity(ctx, actor, l.ID, action)
}

func (s *CRMService) addActivity(ctx context.Context, actor *model.Actor, leadID int64, action string) error {
	a := &model.LeadActivity{LeadID: leadID, UserID: actor.UserRef(), Action: action}
	return s.db.Write(ctx).Create(a).Error
}

// Convert turns a lead into a customer and marks it CONVERTED.
func (s *CRMService) Convert(ctx context.Context, actor *model.Actor, key string) (*model.Customer, error) {
	lead, err := s.Leads.Get(ctx, actor, key)
	if err != nil {
		return nil, err
	}
	if lead.Status == model.LeadConverted {
		return nil, Invalid("Lead already converted")
	}

	leadID := lead.ID
	customer := &model.Customer{
		TenantRef: model.TenantRef{TenantID: lead.TenantID},
		LeadID:    &leadID,
		Name:      lead.Name,
		Email:     lead.Email,
		Phone:     lead.Phone,
		Company:   lead.Company,
		KYCStatus: model.KYCPending,
	}
	err = s.db.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.customers.Create(ctx, customer); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return Invalid("Lead already converted")
			}
			return err
		}
		lead.Status = model.LeadConverted
		if err := s.leads.Update(ctx, lead); err != nil {
			return err
		}
		if err := s.addActivity(ctx, actor, lead.ID, "Converted to customer"); err != nil {
			return err
		}
		return s.audit.Record(ctx, actor, model.ActionUpdate, ModuleCRM, fmt.Sprintf("Converted lead %d to customer %d", lead.ID, customer.ID))
	})
	if err != nil {
		return nil, err
	}
	return customer, nil
}
