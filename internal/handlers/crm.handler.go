package handlers

import (
	"context"

	"github.com/nimasrn/lending-admin/internal/auth"
	"github.com/nimasrn/lending-admin/internal/model"
	"github.com/nimasrn/lending-admin/internal/services"
	xhttp "github.com/nimasrn/lending-admin/pkg/http"
)

type CRMService interface {
	Convert(ctx context.Context, actor *model.Actor, key string) (*model.Customer, error)
}

type CRMHandler struct {
	svc            CRMService
	leads          *ResourceHandler[model.Lead]
	customers      *ResourceHandler[model.Customer]
	leadActivities *ResourceHandler[model.LeadActivity]
}

func NewCRMHandler(svc *services.CRMService) *CRMHandler {
	return &CRMHandler{
		svc:            svc,
		leads:          NewResourceHandler[model.Lead](svc.Leads),
		customers:      NewResourceHandler[model.Customer](svc.Customers),
		leadActivities: NewResourceHandler[model.LeadActivity](svc.LeadActivities),
	}
}

func RegisterCRMRoutes(g *xhttp.Group, guard Guard, h *CRMHandler) {
	mount(g, guard, auth.ModuleCRM, "/crm/leads", h.leads, crudRoutes)
	g.POST("/crm/leads/{id}/convert", guard.Protect(auth.ModuleCRM, h.Convert))
	mount(g, guard, auth.ModuleCRM, "/crm/customers", h.customers, crudRoutes)
	mount(g, guard, auth.ModuleCRM, "/crm/lead-activities", h.leadActivities, readRoutes)
}

func (h *CRMHandler) Convert(ctx *xhttp.RequestCtx) {
	c, err := h.svc.Convert(ctx, actor(ctx), xhttp.Param(ctx, "id"))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusCreated, c)
}
