package handlers

import (
	"context"

	"github.com/nimasrn/lending-admin/internal/auth"
	"github.com/nimasrn/lending-admin/internal/model"
	"github.com/nimasrn/lending-admin/internal/services"
	xhttp "github.com/nimasrn/lending-admin/pkg/http"
	"github.com/nimasrn/lending-admin/pkg/logger"
)

const HeaderWebhookToken = "X-Webhook-Token"

type DocumentFiles interface {
	Upload(ctx context.Context, actor *model.Actor, key string, f services.Upload) (*model.Document, error)
	Download(ctx context.Context, actor *model.Actor, key string) (*model.DownloadLink, error)
}

type MessageSender interface {
	Create(ctx context.Context, actor *model.Actor, body []byte) (*model.Communication, error)
	Resend(ctx context.Context, actor *model.Actor, key string) (*model.Communication, error)
}

type WebhookReceiver interface {
	Receive(ctx context.Context, provider, token string, payload []byte) (*model.WebhookLog, error)
}

type OperationsHandler struct {
	files    DocumentFiles
	messages MessageSender
	webhooks WebhookReceiver

	documents    *ResourceHandler[model.Document]
	comms        *ResourceHandler[model.Communication]
	checks       *ResourceHandler[model.ComplianceCheck]
	riskFlags    *ResourceHandler[model.RiskFlag]
	integrations *ResourceHandler[model.APIIntegration]
	webhookLogs  *ResourceHandler[model.WebhookLog]
	clients      *ResourceHandler[model.Client]
}

func NewOperationsHandler(
	docs *services.DocumentService,
	comms *services.CommunicationService,
	compliance *services.ComplianceService,
	integrations *services.IntegrationService,
	onboarding *services.OnboardingService,
) *OperationsHandler {
	return &OperationsHandler{
		files:        docs,
		messages:     comms,
		webhooks:     integrations,
		documents:    NewResourceHandler[model.Document](docs.Documents),
		comms:        NewResourceHandler[model.Communication](comms.Messages),
		checks:       NewResourceHandler[model.ComplianceCheck](compliance.Checks),
		riskFlags:    NewResourceHandler[model.RiskFlag](compliance.RiskFlags),
		integrations: NewResourceHandler[model.APIIntegration](integrations.APIs),
		webhookLogs:  NewResourceHandler[model.WebhookLog](integrations.WebhookLogs),
		clients:      NewResourceHandler[model.Client](onboarding.Clients),
	}
}

func RegisterOperationsRoutes(g *xhttp.Group, guard Guard, h *OperationsHandler) {
	mount(g, guard, auth.ModuleDocuments, "/documents/documents", h.documents, crudRoutes)
	g.POST("/documents/documents/{id}/upload", guard.Protect(auth.ModuleDocuments, h.Upload))
	g.GET("/documents/documents/{id}/download", guard.Protect(auth.ModuleDocuments, h.Download))

	mount(g, guard, auth.ModuleCommunications, "/communications/messages", h.comms, readRoutes)
	g.POST("/communications/messages", guard.Protect(auth.ModuleCommunications, h.CreateMessage))
	g.POST("/communications/messages/{id}/resend", guard.Protect(auth.ModuleCommunications, h.Resend))

	mount(g, guard, auth.ModuleCompliance, "/compliance/checks", h.checks, crudRoutes)
	mount(g, guard, auth.ModuleCompliance, "/compliance/risk-flags", h.riskFlags, crudRoutes)

	mount(g, guard, auth.ModuleIntegrations, "/integrations/apis", h.integrations, crudRoutes)
	mount(g, guard, auth.ModuleIntegrations, "/integrations/webhook-logs", h.webhookLogs, readRoutes)
	g.POST("/integrations/webhooks/{provider}", guard.Public(h.Webhook))

	// client registration is open, managing clients is not
	g.POST("/onboarding/clients", guard.Public(h.clients.Create))
	mount(g, guard, auth.ModuleOnboarding, "/onboarding/clients", h.clients, readRoutes|routeUpdate|routeDelete)
}

func (h *OperationsHandler) Upload(ctx *xhttp.RequestCtx) {
	var up services.Upload
	fh, err := ctx.FormFile("file")
	if err == nil {
		f, err := fh.Open()
		if err != nil {
			logger.Warn("[documents] open multipart file failed", "error", err)
			xhttp.WriteError(ctx, xhttp.StatusBadRequest, "unreadable file")
			return
		}
		defer f.Close()
		up = services.Upload{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Body:        f,
		}
	}
	doc, err := h.files.Upload(ctx, actor(ctx), xhttp.Param(ctx, "id"), up)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, doc)
}

func (h *OperationsHandler) Download(ctx *xhttp.RequestCtx) {
	link, err := h.files.Download(ctx, actor(ctx), xhttp.Param(ctx, "id"))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, link)
}

func (h *OperationsHandler) CreateMessage(ctx *xhttp.RequestCtx) {
	raw, ok := body(ctx)
	if !ok {
		return
	}
	msg, err := h.messages.Create(ctx, actor(ctx), raw)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusCreated, msg)
}

func (h *OperationsHandler) Resend(ctx *xhttp.RequestCtx) {
	msg, err := h.messages.Resend(ctx, actor(ctx), xhttp.Param(ctx, "id"))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, msg)
}

func (h *OperationsHandler) Webhook(ctx *xhttp.RequestCtx) {
	token := string(ctx.Request.Header.Peek(HeaderWebhookToken))
	entry, err := h.webhooks.Receive(ctx, xhttp.Param(ctx, "provider"), token, append([]byte(nil), ctx.PostBody()...))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, entry)
}
