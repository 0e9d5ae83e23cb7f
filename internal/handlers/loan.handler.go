package handlers

import (
	"context"

	"github.com/nimasrn/lending-admin/internal/auth"
	"github.com/nimasrn/lending-admin/internal/model"
	"github.com/nimasrn/lending-admin/internal/services"
	xhttp "github.com/nimasrn/lending-admin/pkg/http"
)

type LOSService interface {
	ChangeStatus(ctx context.Context, actor *model.Actor, key string, req model.ChangeStatusRequest) (*model.LoanApplication, error)
	UpdateScore(ctx context.Context, actor *model.Actor, key string, req model.UpdateScoreRequest) (*model.CreditAssessment, error)
}

type LMSService interface {
	Disburse(ctx context.Context, actor *model.Actor, key string, req model.DisburseRequest) (*model.LoanAccount, error)
	Repay(ctx context.Context, actor *model.Actor, body []byte) (*model.Repayment, error)
}

type LoanHandler struct {
	los LOSService
	lms LMSService

	applications *ResourceHandler[model.LoanApplication]
	kyc          *ResourceHandler[model.KYCDetail]
	assessments  *ResourceHandler[model.CreditAssessment]
	accounts     *ResourceHandler[model.LoanAccount]
	repayments   *ResourceHandler[model.Repayment]
	collections  *ResourceHandler[model.Collection]
}

func NewLoanHandler(los *services.LOSService, lms *services.LMSService) *LoanHandler {
	return &LoanHandler{
		los:          los,
		lms:          lms,
		applications: NewResourceHandler[model.LoanApplication](los.Applications),
		kyc:          NewResourceHandler[model.KYCDetail](los.KYC),
		assessments:  NewResourceHandler[model.CreditAssessment](los.Assessments),
		accounts:     NewResourceHandler[model.LoanAccount](lms.Accounts),
		repayments:   NewResourceHandler[model.Repayment](lms.Repayments),
		collections:  NewResourceHandler[model.Collection](lms.Collections),
	}
}

func RegisterLoanRoutes(g *xhttp.Group, guard Guard, h *LoanHandler) {
	mount(g, guard, auth.ModuleLOS, "/los/loan-applications", h.applications, crudRoutes)
	g.POST("/los/loan-applications/{id}/change-status", guard.Protect(auth.ModuleLOS, h.ChangeStatus))
	mount(g, guard, auth.ModuleLOS, "/los/kyc-details", h.kyc, crudRoutes)
	mount(g, guard, auth.ModuleLOS, "/los/credit-assessments", h.assessments, crudRoutes)
	g.POST("/los/credit-assessments/{id}/update-score", guard.Protect(auth.ModuleLOS, h.UpdateScore))

	mount(g, guard, auth.ModuleLMS, "/lms/loan-accounts", h.accounts, crudRoutes)
	g.POST("/lms/loan-accounts/{id}/disburse", guard.Protect(auth.ModuleLMS, h.Disburse))
	// repayments are immutable
	mount(g, guard, auth.ModuleLMS, "/lms/repayments", h.repayments, readRoutes)
	g.POST("/lms/repayments", guard.Protect(auth.ModuleLMS, h.Repay))
	mount(g, guard, auth.ModuleLMS, "/lms/collections", h.collections, crudRoutes)
}

func (h *LoanHandler) ChangeStatus(ctx *xhttp.RequestCtx) {
	var req model.ChangeStatusRequest
	if !readJSON(ctx, &req) {
		return
	}
	app, err := h.los.ChangeStatus(ctx, actor(ctx), xhttp.Param(ctx, "id"), req)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, app)
}

func (h *LoanHandler) UpdateScore(ctx *xhttp.RequestCtx) {
	var req model.UpdateScoreRequest
	if !readJSON(ctx, &req) {
		return
	}
	a, err := h.los.UpdateScore(ctx, actor(ctx), xhttp.Param(ctx, "id"), req)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, a)
}

func (h *LoanHandler) Disburse(ctx *xhttp.RequestCtx) {
	var req model.DisburseRequest
	if len(ctx.PostBody()) > 0 && !readJSON(ctx, &req) {
		return
	}
	acc, err := h.lms.Disburse(ctx, actor(ctx), xhttp.Param(ctx, "id"), req)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, acc)
}

func (h *LoanHandler) Repay(ctx *xhttp.RequestCtx) {
	raw, ok := body(ctx)
	if !ok {
		return
	}
	rep, err := h.lms.Repay(ctx, actor(ctx), raw)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusCreated, rep)
}
