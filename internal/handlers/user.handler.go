package handlers

import (
	"context"
	"strconv"
	"strings"

	"github.com/nimasrn/lending-admin/internal/auth"
	"github.com/nimasrn/lending-admin/internal/model"
	xhttp "github.com/nimasrn/lending-admin/pkg/http"
)

type UserService interface {
	Me(ctx context.Context, actor *model.Actor) (*model.User, error)
	UpdateProfile(ctx context.Context, actor *model.Actor, req model.ProfileUpdate) (*model.User, error)
	ChangePassword(ctx context.Context, actor *model.Actor, req model.ChangePasswordRequest) error
	Setup2FA(ctx context.Context, actor *model.Actor) (*model.TwoFASetup, error)
	Verify2FA(ctx context.Context, actor *model.Actor, req model.VerifyCodeRequest) error
	Disable2FA(ctx context.Context, actor *model.Actor) error
	LoginActivity(ctx context.Context, actor *model.Actor) ([]*model.LoginActivity, error)

	List(ctx context.Context, actor *model.Actor, f model.UserFilter) (*model.ListResult[model.User], error)
	Get(ctx context.Context, actor *model.Actor, key string) (*model.User, error)
	Create(ctx context.Context, actor *model.Actor, body []byte) (*model.User, error)
	Update(ctx context.Context, actor *model.Actor, key string, body []byte) (*model.User, error)
	Delete(ctx context.Context, actor *model.Actor, key string) error
}

type UserHandler struct {
	svc       UserService
	auditLogs *ResourceHandler[model.AuditLog]
}

func NewUserHandler(svc UserService, auditLogs ResourceAPI[model.AuditLog]) *UserHandler {
	return &UserHandler{svc: svc, auditLogs: NewResourceHandler(auditLogs)}
}

func RegisterUserRoutes(g *xhttp.Group, guard Guard, h *UserHandler) {
	g.GET("/users/me", guard.Authenticated(h.Me))
	g.PUT("/users/me", guard.Authenticated(h.UpdateMe))
	g.PATCH("/users/me", guard.Authenticated(h.UpdateMe))
	g.POST("/users/change-password", guard.Authenticated(h.ChangePassword))
	g.POST("/users/2fa/setup", guard.Authenticated(h.Setup2FA))
	g.POST("/users/2fa/verify", guard.Authenticated(h.Verify2FA))
	g.POST("/users/2fa/disable", guard.Authenticated(h.Disable2FA))
	g.GET("/users/login-activity", guard.Authenticated(h.LoginActivity))

	g.GET("/users/users", guard.Protect(auth.ModuleUsers, h.List))
	g.GET("/users/users/{id}", guard.Protect(auth.ModuleUsers, h.Get))
	g.POST("/users/users", guard.Protect(auth.ModuleUsers, h.Create))
	g.PUT("/users/users/{id}", guard.Protect(auth.ModuleUsers, h.Update))
	g.PATCH("/users/users/{id}", guard.Protect(auth.ModuleUsers, h.Update))
	g.DELETE("/users/users/{id}", guard.Protect(auth.ModuleUsers, h.Delete))

	mount(g, guard, auth.ModuleUsers, "/users/audit-logs", h.auditLogs, readRoutes)
}

func (h *UserHandler) Me(ctx *xhttp.RequestCtx) {
	u, err := h.svc.Me(ctx, actor(ctx))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, u)
}

func (h *UserHandler) UpdateMe(ctx *xhttp.RequestCtx) {
	var req model.ProfileUpdate
	if !readJSON(ctx, &req) {
		return
	}
	u, err := h.svc.UpdateProfile(ctx, actor(ctx), req)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, u)
}

func (h *UserHandler) ChangePassword(ctx *xhttp.RequestCtx) {
	var req model.ChangePasswordRequest
	if !readJSON(ctx, &req) {
		return
	}
	if err := h.svc.ChangePassword(ctx, actor(ctx), req); err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, messageResponse{Message: "Password changed successfully"})
}

func (h *UserHandler) Setup2FA(ctx *xhttp.RequestCtx) {
	res, err := h.svc.Setup2FA(ctx, actor(ctx))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, res)
}

func (h *UserHandler) Verify2FA(ctx *xhttp.RequestCtx) {
	var req model.VerifyCodeRequest
	if !readJSON(ctx, &req) {
		return
	}
	if err := h.svc.Verify2FA(ctx, actor(ctx), req); err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, messageResponse{Message: "2FA enabled"})
}

func (h *UserHandler) Disable2FA(ctx *xhttp.RequestCtx) {
	if err := h.svc.Disable2FA(ctx, actor(ctx)); err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, messageResponse{Message: "2FA disabled"})
}

func (h *UserHandler) LoginActivity(ctx *xhttp.RequestCtx) {
	rows, err := h.svc.LoginActivity(ctx, actor(ctx))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, rows)
}

func (h *UserHandler) List(ctx *xhttp.RequestCtx) {
	f := model.UserFilter{ListQuery: listQuery(ctx)}
	f.Role = strings.ToUpper(xhttp.Query(ctx, "role"))
	if v, err := strconv.ParseBool(xhttp.Query(ctx, "is_active")); err == nil {
		f.IsActive = &v
	}
	if id, err := strconv.ParseInt(xhttp.Query(ctx, "branch"), 10, 64); err == nil {
		f.BranchID = &id
	}
	res, err := h.svc.List(ctx, actor(ctx), f)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, res)
}

func (h *UserHandler) Get(ctx *xhttp.RequestCtx) {
	u, err := h.svc.Get(ctx, actor(ctx), xhttp.Param(ctx, "id"))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, u)
}

func (h *UserHandler) Create(ctx *xhttp.RequestCtx) {
	raw, ok := body(ctx)
	if !ok {
		return
	}
	u, err := h.svc.Create(ctx, actor(ctx), raw)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusCreated, u)
}

func (h *UserHandler) Update(ctx *xhttp.RequestCtx) {
	raw, ok := body(ctx)
	if !ok {
		return
	}
	u, err := h.svc.Update(ctx, actor(ctx), xhttp.Param(ctx, "id"), raw)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, u)
}

// Delete deactivates the user.
func (h *UserHandler) Delete(ctx *xhttp.RequestCtx) {
	if err := h.svc.Delete(ctx, actor(ctx), xhttp.Param(ctx, "id")); err != nil {
		writeServiceError(ctx, err)
		return
	}
	ctx.SetStatusCode(xhttp.StatusNoContent)
}
