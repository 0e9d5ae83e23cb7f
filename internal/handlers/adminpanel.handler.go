package handlers

import (
	"context"

	"github.com/nimasrn/lending-admin/internal/auth"
	"github.com/nimasrn/lending-admin/internal/model"
	"github.com/nimasrn/lending-admin/internal/services"
	xhttp "github.com/nimasrn/lending-admin/pkg/http"
)

type RoleAccess interface {
	Permissions(ctx context.Context, actor *model.Actor, key string) (model.Permissions, error)
	SetPermissions(ctx context.Context, actor *model.Actor, key string, body []byte) (model.Permissions, error)
	TenantSubscription(ctx context.Context, actor *model.Actor) (*model.Subscription, error)
	SubscriptionAction(ctx context.Context, actor *model.Actor, req model.SubscriptionActionRequest) (*model.SubscriptionActionResponse, error)
}

type SettingService interface {
	Grouped(ctx context.Context) (model.GroupedSettings, error)
	Update(ctx context.Context, actor *model.Actor, body []byte) (*model.SettingsUpdateResponse, error)
}

type DashboardService interface {
	Get(ctx context.Context) (*model.DashboardSnapshot, error)
}

type AdminPanelHandler struct {
	panel     RoleAccess
	settings  SettingService
	dashboard DashboardService

	leads         *ResourceHandler[model.AdminLead]
	charges       *ResourceHandler[model.ChargeMaster]
	documentTypes *ResourceHandler[model.DocumentType]
	products      *ResourceHandler[model.LoanProduct]
	templates     *ResourceHandler[model.NotificationTemplate]
	roles         *ResourceHandler[model.RoleMaster]
	subscriptions *ResourceHandler[model.Subscription]
	coupons       *ResourceHandler[model.Coupon]
	subscribers   *ResourceHandler[model.Subscriber]
	employment    *ResourceHandler[model.EmploymentType]
	occupation    *ResourceHandler[model.OccupationType]
}

func NewAdminPanelHandler(panel *services.AdminPanelService, settings SettingService, dashboard DashboardService) *AdminPanelHandler {
	return &AdminPanelHandler{
		panel:         panel,
		settings:      settings,
		dashboard:     dashboard,
		leads:         NewResourceHandler[model.AdminLead](panel.Leads),
		charges:       NewResourceHandler[model.ChargeMaster](panel.Charges),
		documentTypes: NewResourceHandler[model.DocumentType](panel.DocumentTypes),
		products:      NewResourceHandler[model.LoanProduct](panel.LoanProducts),
		templates:     NewResourceHandler[model.NotificationTemplate](panel.NotificationTemplates),
		roles:         NewResourceHandler[model.RoleMaster](panel.Roles),
		subscriptions: NewResourceHandler[model.Subscription](panel.Subscriptions),
		coupons:       NewResourceHandler[model.Coupon](panel.Coupons),
		subscribers:   NewResourceHandler[model.Subscriber](panel.Subscribers),
		employment:    NewResourceHandler[model.EmploymentType](panel.EmploymentTypes),
		occupation:    NewResourceHandler[model.OccupationType](panel.OccupationTypes),
	}
}

func RegisterAdminPanelRoutes(g *xhttp.Group, guard Guard, h *AdminPanelHandler) {
	m := auth.ModuleAdminPanel
	mount(g, guard, m, "/adminpanel/leads", h.leads, crudRoutes)
	mount(g, guard, m, "/adminpanel/charges", h.charges, crudRoutes)
	mount(g, guard, m, "/adminpanel/document-types", h.documentTypes, crudRoutes)
	mount(g, guard, m, "/adminpanel/loan-products", h.products, crudRoutes)
	mount(g, guard, m, "/adminpanel/notification-templates", h.templates, crudRoutes)
	mount(g, guard, m, "/adminpanel/roles", h.roles, crudRoutes)
	g.GET("/adminpanel/roles/{id}/permissions", guard.Protect(m, h.Permissions))
	g.POST("/adminpanel/roles/{id}/permissions", guard.Protect(m, h.SetPermissions))

	mount(g, guard, m, "/adminpanel/subscriptions", h.subscriptions, crudRoutes)
	mount(g, guard, m, "/adminpanel/coupons", h.coupons, crudRoutes)
	mount(g, guard, m, "/adminpanel/subscribers", h.subscribers, crudRoutes)
	mount(g, guard, m, "/adminpanel/employment-types", h.employment, crudRoutes)
	mount(g, guard, m, "/adminpanel/occupation-types", h.occupation, crudRoutes)

	g.GET("/adminpanel/tenant-subscription", guard.Protect(m, h.TenantSubscription))
	g.POST("/adminpanel/tenant-subscription/action", guard.Protect(m, h.SubscriptionAction))

	g.GET("/adminpanel/settings", guard.Protect(m, h.Settings))
	g.PUT("/adminpanel/settings", guard.Protect(m, h.UpdateSettings))
	g.GET("/adminpanel/dashboard", guard.Protect(m, h.Dashboard))
}

func (h *AdminPanelHandler) Permissions(ctx *xhttp.RequestCtx) {
	perms, err := h.panel.Permissions(ctx, actor(ctx), xhttp.Param(ctx, "id"))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, perms)
}

func (h *AdminPanelHandler) SetPermissions(ctx *xhttp.RequestCtx) {
	raw, ok := body(ctx)
	if !ok {
		return
	}
	perms, err := h.panel.SetPermissions(ctx, actor(ctx), xhttp.Param(ctx, "id"), raw)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, perms)
}

func (h *AdminPanelHandler) TenantSubscription(ctx *xhttp.RequestCtx) {
	sub, err := h.panel.TenantSubscription(ctx, actor(ctx))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, sub)
}

func (h *AdminPanelHandler) SubscriptionAction(ctx *xhttp.RequestCtx) {
	var req model.SubscriptionActionRequest
	if !readJSON(ctx, &req) {
		return
	}
	res, err := h.panel.SubscriptionAction(ctx, actor(ctx), req)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, res)
}

func (h *AdminPanelHandler) Settings(ctx *xhttp.RequestCtx) {
	grouped, err := h.settings.Grouped(ctx)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, grouped)
}

func (h *AdminPanelHandler) UpdateSettings(ctx *xhttp.RequestCtx) {
	res, err := h.settings.Update(ctx, actor(ctx), append([]byte(nil), ctx.PostBody()...))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, res)
}

func (h *AdminPanelHandler) Dashboard(ctx *xhttp.RequestCtx) {
	snap, err := h.dashboard.Get(ctx)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, snap)
}
