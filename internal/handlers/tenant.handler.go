package handlers

import (
	"context"

	"github.com/nimasrn/lending-admin/internal/auth"
	"github.com/nimasrn/lending-admin/internal/model"
	"github.com/nimasrn/lending-admin/internal/services"
	xhttp "github.com/nimasrn/lending-admin/pkg/http"
)

type SignupService interface {
	Signup(ctx context.Context, actor *model.Actor, req model.SignupRequest) (*model.SignupResponse, error)
}

type TenantHandler struct {
	signup SignupService

	tenants          *ResourceHandler[model.Tenant]
	branches         *ResourceHandler[model.Branch]
	financialYears   *ResourceHandler[model.FinancialYear]
	reportingPeriods *ResourceHandler[model.ReportingPeriod]
	holidays         *ResourceHandler[model.Holiday]
	categories       *ResourceHandler[model.Category]
	ruleConfigs      *ResourceHandler[model.TenantRuleConfig]
}

func NewTenantHandler(svc *services.TenantService) *TenantHandler {
	return &TenantHandler{
		signup:           svc,
		tenants:          NewResourceHandler[model.Tenant](svc.Tenants),
		branches:         NewResourceHandler[model.Branch](svc.Branches),
		financialYears:   NewResourceHandler[model.FinancialYear](svc.FinancialYears),
		reportingPeriods: NewResourceHandler[model.ReportingPeriod](svc.ReportingPeriods),
		holidays:         NewResourceHandler[model.Holiday](svc.Holidays),
		categories:       NewResourceHandler[model.Category](svc.Categories),
		ruleConfigs:      NewResourceHandler[model.TenantRuleConfig](svc.RuleConfigs),
	}
}

func RegisterTenantRoutes(g *xhttp.Group, guard Guard, h *TenantHandler) {
	g.POST("/tenants/signup", guard.Public(h.Signup))

	mount(g, guard, auth.ModuleTenants, "/tenants/tenants", h.tenants, crudRoutes)
	mount(g, guard, auth.ModuleTenants, "/tenants/branches", h.branches, crudRoutes)
	mount(g, guard, auth.ModuleTenants, "/tenants/calendar/financial-years", h.financialYears, crudRoutes)
	mount(g, guard, auth.ModuleTenants, "/tenants/calendar/reporting-periods", h.reportingPeriods, crudRoutes)
	mount(g, guard, auth.ModuleTenants, "/tenants/calendar/holidays", h.holidays, crudRoutes)
	mount(g, guard, auth.ModuleTenants, "/tenants/categories", h.categories, crudRoutes)
	mount(g, guard, auth.ModuleTenants, "/tenants/rules-config", h.ruleConfigs, crudRoutes)
}

func (h *TenantHandler) Signup(ctx *xhttp.RequestCtx) {
	var req model.SignupRequest
	if !readJSON(ctx, &req) {
		return
	}
	res, err := h.signup.Signup(ctx, actor(ctx), req)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusCreated, res)
}
