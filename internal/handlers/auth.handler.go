package handlers

import (
	"context"

	"github.com/nimasrn/lending-admin/internal/auth"
	"github.com/nimasrn/lending-admin/internal/model"
	xhttp "github.com/nimasrn/lending-admin/pkg/http"
)

type AuthService interface {
	Login(ctx context.Context, client *model.Actor, req model.LoginRequest) (*auth.TokenPair, error)
	Refresh(ctx context.Context, req model.RefreshRequest) (string, error)
	Logout(ctx context.Context, actor *model.Actor, req model.RefreshRequest) error
}

type AuthHandler struct {
	svc AuthService
}

func NewAuthHandler(svc AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

func RegisterAuthRoutes(r *xhttp.Router, guard Guard, h *AuthHandler) {
	r.POST("/api/token", guard.Public(h.Login))
	r.POST("/api/token/refresh", guard.Public(h.Refresh))
	r.POST("/api/token/logout", guard.Public(h.Logout))
}

type accessResponse struct {
	Access string `json:"access"`
}

func (h *AuthHandler) Login(ctx *xhttp.RequestCtx) {
	var req model.LoginRequest
	if !readJSON(ctx, &req) {
		return
	}
	pair, err := h.svc.Login(ctx, actor(ctx), req)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, pair)
}

func (h *AuthHandler) Refresh(ctx *xhttp.RequestCtx) {
	var req model.RefreshRequest
	if !readJSON(ctx, &req) {
		return
	}
	access, err := h.svc.Refresh(ctx, req)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, accessResponse{Access: access})
}

func (h *AuthHandler) Logout(ctx *xhttp.RequestCtx) {
	var req model.RefreshRequest
	if !readJSON(ctx, &req) {
		return
	}
	if err := h.svc.Logout(ctx, actor(ctx), req); err != nil {
		writeServiceError(ctx, err)
		return
	}
	ctx.SetStatusCode(xhttp.StatusNoContent)
}
