package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/nimasrn/lending-admin/internal/auth"
	"github.com/nimasrn/lending-admin/internal/model"
	"github.com/nimasrn/lending-admin/internal/repository"
	"github.com/nimasrn/lending-admin/pkg/logger"
	"github.com/nimasrn/lending-admin/pkg/pg"
	"github.com/nimasrn/lending-admin/pkg/prom"
	"github.com/nimasrn/lending-admin/pkg/validate"
	"gorm.io/datatypes"
)

const ModuleTenants = "tenants"

type TenantRepository interface {
	TenantDirectory
	Create(ctx context.Context, t *model.Tenant) error
	NameTaken(ctx context.Context, name string) (bool, error)
	CreateRuleConfig(ctx context.Context, c *model.TenantRuleConfig) error
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type SignupUserRepository interface {
	EmailExists(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, u *model.User) (*model.User, error)
}

type TokenIssuer interface {
	Pair(u *model.User) (*auth.TokenPair, error)
}

// TenantService owns the tenant registry: tenants, their branches and
// calendars, categories, rule configs and self-service signup.
type TenantService struct {
	tenants TenantRepository
	users   SignupUserRepository
	tokens  TokenIssuer
	audit   *AuditService

	Tenants          *Resource[model.Tenant]
	Branches         *Resource[model.Branch]
	FinancialYears   *Resource[model.FinancialYear]
	ReportingPeriods *Resource[model.ReportingPeriod]
	Holidays         *Resource[model.Holiday]
	Categories       *Resource[model.Category]
	RuleConfigs      *Resource[model.TenantRuleConfig]
}

func NewTenantService(db *pg.DB, tenants TenantRepository, users SignupUserRepository, tokens TokenIssuer, audit *AuditService) *TenantService {
	s := &TenantService{
		tenants: tenants,
		users:   users,
		tokens:  tokens,
		audit:   audit,
	}
	s.Tenants = NewResource(ResourceConfig[model.Tenant]{
		Name:   "Tenant",
		Module: ModuleTenants,
		Store:  repository.NewStore[model.Tenant](db, repository.TenantOptions()),
		Audit:  audit,
		Scoped: true,
		BeforeCreate: func(_ context.Context, actor *model.Actor, t *model.Tenant) error {
			if !actor.IsMaster() {
				return ErrForbidden
			}
			t.TenantUUID = uuid.NewString()
			return nil
		},
		BeforeUpdate: func(_ context.Context, actor *model.Actor, _, _ *model.Tenant) error {
			if !actor.IsMaster() {
				return ErrForbidden
			}
			return nil
		},
		AfterWrite: func(ctx context.Context, _ *model.Actor, old, t *model.Tenant) error {
			if old != nil {
				return nil
			}
			return s.tenants.CreateRuleConfig(ctx, defaultRuleConfig(t.ID))
		},
		Delete: s.deactivateTenant,
	})
	s.Branches = NewResource(ResourceConfig[model.Branch]{
		Name:    "Branch",
		Module:  ModuleTenants,
		Store:   repository.NewStore[model.Branch](db, repository.BranchOptions()),
		Audit:   audit,
		Tenants: tenants,
		Scoped:  true,
	})
	s.FinancialYears = NewResource(ResourceConfig[model.FinancialYear]{
		Name:    "Financial year",
		Store:   repository.NewStore[model.FinancialYear](db, repository.FinancialYearOptions()),
		Tenants: tenants,
		Scoped:  true,
	})
	s.ReportingPeriods = NewResource(ResourceConfig[model.ReportingPeriod]{
		Name:    "Reporting period",
		Store:   repository.NewStore[model.ReportingPeriod](db, repository.ReportingPeriodOptions()),
		Tenants: tenants,
		Scoped:  true,
	})
	s.Holidays = NewResource(ResourceConfig[model.Holiday]{
		Name:    "Holiday",
		Store:   repository.NewStore[model.Holiday](db, repository.HolidayOptions()),
		Tenants: tenants,
		Scoped:  true,
	})
	s.Categories = NewResource(ResourceConfig[model.Category]{
		Name:    "Category",
		Store:   repository.NewStore[model.Category](db, repository.CategoryOptions()),
		Tenants: tenants,
		Scoped:  true,
	})
	s.RuleConfigs = NewResource(ResourceConfig[model.TenantRuleConfig]{
		Name:         "Tenant rule config",
		Module:       ModuleTenants,
		Store:        repository.NewStore[model.TenantRuleConfig](db, repository.RuleConfigOptions()),
		Audit:        audit,
		Tenants:      tenants,
		Scoped:       true,
		BeforeCreate: checkRuleConfig,
		BeforeUpdate: func(ctx context.Context, actor *model.Actor, _, c *model.TenantRuleConfig) error {
			return checkRuleConfig(ctx, actor, c)
		},
	})
	return s
}

func defaultRuleConfig(tenantID int64) *model.TenantRuleConfig {
	return &model.TenantRuleConfig{
		TenantID: tenantID,
		Config:   datatypes.NewJSONType(model.DefaultRuleConfig()),
	}
}

func checkRuleConfig(_ context.Context, _ *model.Actor, c *model.TenantRuleConfig) error {
	raw, err := json.Marshal(c.Config.Data())
	if err != nil {
		return Invalid("config is not a valid rule document")
	}
	fields, err := model.ValidateRuleConfig(raw)
	if err != nil {
		return err
	}
	if len(fields) > 0 {
		return InvalidFields(fields)
	}
	return nil
}

func (s *TenantService) deactivateTenant(ctx context.Context, actor *model.Actor, t *model.Tenant) (string, error) {
	if !actor.IsMaster() {
		return "", ErrForbidden
	}
	t.IsActive = false
	return "", storeError(s.Tenants.cfg.Store.Update(ctx, t), "Tenant")
}

// Signup registers a tenant together with its first TENANT_ADMIN user and
// default rule config. Everything is written in one transaction.
func (s *TenantService) Signup(ctx context.Context, actor *model.Actor, req model.SignupRequest) (*model.SignupResponse, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.BusinessName = strings.TrimSpace(req.BusinessName)
	if fields := validate.Struct(req); fields != nil {
		return nil, InvalidFields(fields)
	}
	if err := auth.ValidatePassword(req.Password, req.Email); err != nil {
		return nil, InvalidFields(map[string]string{"password": err.Error()})
	}

	exists, err := s.users.EmailExists(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, Invalid("Email already registered")
	}
	taken, err := s.tenants.NameTaken(ctx, req.BusinessName)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, Invalid("Business name already exists")
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	var (
		tenant *model.Tenant
		user   *model.User
	)
	err = s.tenants.WithinTransaction(ctx, func(ctx context.Context) error {
		tenant = &model.Tenant{
			TenantUUID: uuid.NewString(),
			Name:       req.BusinessName,
			TenantType: model.TenantNBFC,
			Email:      req.Email,
			Phone:      req.MobileNo,
			Address:    req.Address,
			IsActive:   true,
		}
		if err := s.tenants.Create(ctx, tenant); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return Invalid("Business name already exists")
			}
			return err
		}

		tid := tenant.ID
		created, err := s.users.Create(ctx, &model.User{
			Email:        req.Email,
			PasswordHash: hash,
			Phone:        req.MobileNo,
			FirstName:    strings.TrimSpace(req.ContactPerson),
			Role:         model.RoleTenantAdmin,
			TenantID:     &tid,
			IsActive:     true,
		})
		if err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return Invalid("Email already registered")
			}
			return err
		}
		user = created

		if err := s.tenants.CreateRuleConfig(ctx, defaultRuleConfig(tid)); err != nil {
			return err
		}

		owner := &model.Actor{UserID: user.ID, Email: user.Email, Role: user.Role, TenantID: &tid, IP: actor.IP}
		return s.audit.Record(ctx, owner, model.ActionCreate, ModuleTenants, "Tenant signup: "+tenant.Name)
	})
	if err != nil {
		return nil, err
	}

	pair, err := s.tokens.Pair(user)
	if err != nil {
		return nil, err
	}
	prom.IncSignups()
	logger.Info("[tenants] signup completed", "tenant", tenant.TenantUUID, "email", user.Email)

	return &model.SignupResponse{
		Message:  "Signup successful",
		TenantID: tenant.TenantUUID,
		Email:    user.Email,
		Access:   pair.Access,
		Refresh:  pair.Refresh,
	}, nil
}
