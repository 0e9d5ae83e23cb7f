package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/nimasrn/lending-admin/internal/model"
	"github.com/nimasrn/lending-admin/internal/repository"
	"github.com/nimasrn/lending-admin/pkg/pg"
	"gorm.io/datatypes"
)

const ModuleAdminPanel = "adminpanel"

type SubscriptionRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Subscription, error)
	Transition(ctx context.Context, id int64, action model.SubscriptionAction, by string) (*model.Subscription, error)
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

var actionMessages = map[model.SubscriptionAction]string{
	model.ActionPause:  "Subscription paused successfully",
	model.ActionCancel: "Subscription cancelled successfully",
	model.ActionResume: "Subscription resumed successfully",
}

// AdminPanelService serves the platform masters managed from the admin panel.
type AdminPanelService struct {
	db      *pg.DB
	subs    SubscriptionRepository
	tenants TenantLookup
	audit   *AuditService

	products *repository.Store[model.LoanProduct]
	roles    *repository.Store[model.RoleMaster]
	coupons  *repository.Store[model.Coupon]
	catalog  *repository.Store[model.Subscription]

	Leads                 *Resource[model.AdminLead]
	Charges               *Resource[model.ChargeMaster]
	DocumentTypes         *Resource[model.DocumentType]
	LoanProducts          *Resource[model.LoanProduct]
	NotificationTemplates *Resource[model.NotificationTemplate]
	Roles                 *Resource[model.RoleMaster]
	Subscriptions         *Resource[model.Subscription]
	Coupons               *Resource[model.Coupon]
	Subscribers           *Resource[model.Subscriber]
	EmploymentTypes       *Resource[model.EmploymentType]
	OccupationTypes       *Resource[model.OccupationType]
}

func NewAdminPanelService(db *pg.DB, subs SubscriptionRepository, tenants TenantLookup, audit *AuditService) *AdminPanelService {
	s := &AdminPanelService{
		db:       db,
		subs:     subs,
		tenants:  tenants,
		audit:    audit,
		products: repository.NewStore[model.LoanProduct](db, repository.LoanProductOptions()),
		roles:    repository.NewStore[model.RoleMaster](db, repository.RoleOptions()),
		coupons:  repository.NewStore[model.Coupon](db, repository.CouponOptions()),
		catalog:  repository.NewStore[model.Subscription](db, repository.SubscriptionOptions()),
	}
	s.Leads = NewResource(ResourceConfig[model.AdminLead]{
		Name:   "Lead",
		Module: ModuleAdminPanel,
		Store:  repository.NewStore[model.AdminLead](db, repository.AdminLeadOptions()),
		Audit:  audit,
		BeforeCreate: func(_ context.Context, _ *model.Actor, l *model.AdminLead) error {
			if l.Status == "" {
				l.Status = "New"
			}
			return nil
		},
	})
	s.Charges = NewResource(ResourceConfig[model.ChargeMaster]{
		Name:   "Charge",
		Module: ModuleAdminPanel,
		Store:  repository.NewStore[model.ChargeMaster](db, repository.ChargeOptions()),
		Audit:  audit,
	})
	s.DocumentTypes = NewResource(ResourceConfig[model.DocumentType]{
		Name:   "Document type",
		Module: ModuleAdminPanel,
		Store:  repository.NewStore[model.DocumentType](db, repository.DocumentTypeOptions()),
		Audit:  audit,
	})
	s.LoanProducts = NewResource(ResourceConfig[model.LoanProduct]{
		Name:       "Loan product",
		Module:     ModuleAdminPanel,
		Store:      s.products,
		Audit:      audit,
		AfterWrite: s.replaceProductLinks,
	})
	s.NotificationTemplates = NewResource(ResourceConfig[model.NotificationTemplate]{
		Name:   "Notification template",
		Module: ModuleAdminPanel,
		Store:  repository.NewStore[model.NotificationTemplate](db, repository.NotificationTemplateOptions()),
		Audit:  audit,
	})
	s.Roles = NewResource(ResourceConfig[model.RoleMaster]{
		Name:     "Role",
		Module:   ModuleAdminPanel,
		Store:    s.roles,
		Audit:    audit,
		ReadOnly: []string{"created_by_id"},
		BeforeCreate: func(_ context.Context, actor *model.Actor, r *model.RoleMaster) error {
			r.CreatedByID = actor.UserRef()
			if r.Permissions.Data() == nil {
				r.Permissions = datatypes.NewJSONType(model.Permissions{})
			}
			return nil
		},
	})
	s.Subscriptions = NewResource(ResourceConfig[model.Subscription]{
		Name:     "Subscription",
		Module:   ModuleAdminPanel,
		Store:    s.catalog,
		Audit:    audit,
		ReadOnly: []string{"is_deleted", "created_user", "status"},
		BeforeCreate: func(_ context.Context, _ *model.Actor, sub *model.Subscription) error {
			if sub.Status == "" {
				sub.Status = model.SubscriptionActive
			}
			sub.SetStatus(sub.Status)
			return nil
		},
		Delete: s.cancelSubscription,
	})
	s.Coupons = NewResource(ResourceConfig[model.Coupon]{
		Name:       "Coupon",
		Module:     ModuleAdminPanel,
		Store:      s.coupons,
		Audit:      audit,
		ReadOnly:   []string{"is_deleted", "created_user"},
		AfterWrite: s.replaceCouponLinks,
	})
	s.Subscribers = NewResource(ResourceConfig[model.Subscriber]{
		Name:     "Subscriber",
		Module:   ModuleAdminPanel,
		Store:    repository.NewStore[model.Subscriber](db, repository.SubscriberOptions()),
		Audit:    audit,
		ReadOnly: []string{"is_deleted", "created_user"},
	})
	s.EmploymentTypes = NewResource(ResourceConfig[model.EmploymentType]{
		Name:     "Employment type",
		Module:   ModuleAdminPanel,
		Store:    repository.NewStore[model.EmploymentType](db, repository.EmploymentTypeOptions()),
		Audit:    audit,
		ReadOnly: []string{"is_deleted", "created_user"},
	})
	s.OccupationTypes = NewResource(ResourceConfig[model.OccupationType]{
		Name:     "Occupation type",
		Module:   ModuleAdminPanel,
		Store:    repository.NewStore[model.OccupationType](db, repository.OccupationTypeOptions()),
		Audit:    audit,
		ReadOnly: []string{"is_deleted", "created_user"},
	})
	return s
}

// missingIDs lists the wanted ids that were not found.
func missingIDs[V comparable](want []V, found []V) []string {
	seen := make(map[V]struct{}, len(found))
	for _, v := range found {
		seen[v] = struct{}{}
	}
	var out []string
	for _, v := range want {
		if _, ok := seen[v]; !ok {
			out = append(out, fmt.Sprint(v))
		}
	}
	sort.Strings(out)
	return out
}

func unknownIDs(field string, missing []string) error {
	return InvalidFields(map[string]string{field: "unknown ids: " + strings.Join(missing, ", ")})
}

// replaceProductLinks swaps the charge and document sets named in the body.
// A key that was not sent leaves its set untouched.
func (s *AdminPanelService) replaceProductLinks(ctx context.Context, _ *model.Actor, old, p *model.LoanProduct) error {
	if old == nil {
		p.Charges, p.RequiredDocuments = nil, nil
	}
	if p.ChargeIDs != nil {
		charges, err := repository.FindByColumn[model.ChargeMaster](ctx, s.db, "id", *p.ChargeIDs)
		if err != nil {
			return err
		}
		found := make([]int64, len(charges))
		for i, c := range charges {
			found[i] = c.ID
		}
		if missing := missingIDs(*p.ChargeIDs, found); len(missing) > 0 {
			return unknownIDs("charge_ids", missing)
		}
		if err := s.products.ReplaceAssociation(ctx, p, "Charges", charges); err != nil {
			return err
		}
		p.Charges = charges
	}
	if p.RequiredDocumentIDs != nil {
		docs, err := repository.FindByColumn[model.DocumentType](ctx, s.db, "id", *p.RequiredDocumentIDs)
		if err != nil {
			return err
		}
		found := make([]int64, len(docs))
		for i, d := range docs {
			found[i] = d.ID
		}
		if missing := missingIDs(*p.RequiredDocumentIDs, found); len(missing) > 0 {
			return unknownIDs("required_document_ids", missing)
		}
		if err := s.products.ReplaceAssociation(ctx, p, "RequiredDocuments", docs); err != nil {
			return err
		}
		p.RequiredDocuments = docs
	}
	p.ChargeIDs, p.RequiredDocumentIDs = nil, nil
	if p.Charges == nil {
		p.Charges = []*model.ChargeMaster{}
	}
	if p.RequiredDocuments == nil {
		p.RequiredDocuments = []*model.DocumentType{}
	}
	return nil
}

func (s *AdminPanelService) replaceCouponLinks(ctx context.Context, _ *model.Actor, _, c *model.Coupon) error {
	if c.SubscriptionUUIDs == nil {
		return nil
	}
	subs, err := repository.FindByColumn[model.Subscription](ctx, s.db, "uuid", *c.SubscriptionUUIDs)
	if err != nil {
		return err
	}
	found := make([]string, len(subs))
	for i, sub := range subs {
		found[i] = sub.UUID
	}
	if missing := missingIDs(*c.SubscriptionUUIDs, found); len(missing) > 0 {
		return unknownIDs("subscription_uuids", missing)
	}
	if err := s.coupons.ReplaceAssociation(ctx, c, "Subscriptions", subs); err != nil {
		return err
	}
	c.Subscriptions = subs
	c.SubscriptionUUIDs = nil
	return nil
}

// cancelSubscription is the soft delete of a subscription, it always ends in Cancel.
func (s *AdminPanelService) cancelSubscription(ctx context.Context, actor *model.Actor, sub *model.Subscription) (string, error) {
	sub.SetStatus(model.SubscriptionCancel)
	sub.ModifiedUser = actor.Identity()
	if err := s.catalog.Update(ctx, sub); err != nil {
		return "", storeError(err, "Subscription")
	}
	return "Subscription deleted successfully", nil
}

func (s *AdminPanelService) Permissions(ctx context.Context, actor *model.Actor, key string) (model.Permissions, error) {
	role, err := s.Roles.Get(ctx, actor, key)
	if err != nil {
		return nil, err
	}
	perms := role.Permissions.Data()
	if perms == nil {
		perms = model.Permissions{}
	}
	return perms, nil
}

// SetPermissions replaces the whole permission map of a role.
func (s *AdminPanelService) SetPermissions(ctx context.Context, actor *model.Actor, key string, body []byte) (model.Permissions, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, Invalid("request body is required")
	}
	perms, err := model.ParsePermissions(body)
	if err != nil {
		return nil, Invalid(err.Error())
	}
	role, err := s.Roles.Get(ctx, actor, key)
	if err != nil {
		return nil, err
	}
	role.Permissions = datatypes.NewJSONType(perms)
	err = s.roles.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.roles.Update(ctx, role); err != nil {
			return storeError(err, "Role")
		}
		return s.audit.Record(ctx, actor, model.ActionUpdate, ModuleAdminPanel, "Updated permissions of role "+role.Name)
	})
	if err != nil {
		return nil, err
	}
	return perms, nil
}

func (s *AdminPanelService) tenantSubscriptionID(ctx context.Context, actor *model.Actor) (int64, error) {
	if actor.TenantID == nil {
		return 0, ErrNoTenant
	}
	tenant, err := s.tenants.GetByID(ctx, *actor.TenantID)
	if err != nil {
		return 0, storeError(err, "Tenant")
	}
	if tenant.SubscriptionID == nil {
		return 0, notFound("No subscription assigned")
	}
	return *tenant.SubscriptionID, nil
}

// TenantSubscription returns the subscription of the caller's tenant.
func (s *AdminPanelService) TenantSubscription(ctx context.Context, actor *model.Actor) (*model.Subscription, error) {
	id, err := s.tenantSubscriptionID(ctx, actor)
	if err != nil {
		return nil, err
	}
	sub, err := s.subs.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "Subscription")
	}
	return sub, nil
}

// SubscriptionAction moves the caller tenant's subscription through the
// pause/cancel/resume state machine.
func (s *AdminPanelService) SubscriptionAction(ctx context.Context, actor *model.Actor, req model.SubscriptionActionRequest) (*model.SubscriptionActionResponse, error) {
	action := req.Action
	if !action.Valid() {
		return nil, Invalid("Invalid action")
	}
	id, err := s.tenantSubscriptionID(ctx, actor)
	if err != nil {
		return nil, err
	}

	var sub *model.Subscription
	err = s.subs.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		if sub, err = s.subs.Transition(ctx, id, action, actor.Identity()); err != nil {
			return storeError(err, "Subscription")
		}
		return s.audit.Record(ctx, actor, model.ActionUpdate, ModuleAdminPanel,
			fmt.Sprintf("Subscription %s: %s", sub.UUID, action))
	})
	if err != nil {
		return nil, err
	}
	return &model.SubscriptionActionResponse{
		Message: actionMessages[action],
		Status:  sub.Status.Label(),
	}, nil
}
