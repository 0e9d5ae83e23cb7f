package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/nimasrn/lending-admin/internal/model"
	xhttp "github.com/nimasrn/lending-admin/pkg/http"
	"github.com/nimasrn/lending-admin/pkg/logger"
)

const HeaderTenant = "X-Tenant-Id"

const (
	msgNoCredentials = "Authentication credentials were not provided."
	msgBadToken      = "Given token not valid for any token type"
	msgInactiveUser  = "User not found or inactive"
	msgForbidden     = "You do not have permission to perform this action"
)

type UserLoader interface {
	GetByID(ctx context.Context, id int64, tenantID *int64) (*model.User, error)
}

// Guard wraps route handlers with authentication, tenant resolution and
// role authorization. The resolved caller is stored under model.ActorKey.
type Guard struct {
	tokens   *Tokens
	users    UserLoader
	tenants  *TenantResolver
	enforcer *Enforcer
}

func NewGuard(tokens *Tokens, users UserLoader, tenants *TenantResolver, enforcer *Enforcer) *Guard {
	return &Guard{
		tokens:   tokens,
		users:    users,
		tenants:  tenants,
		enforcer: enforcer,
	}
}

// ActorFrom returns the caller stored by the guard, an anonymous actor when none.
func ActorFrom(ctx *xhttp.RequestCtx) *model.Actor {
	if a, ok := ctx.UserValue(model.ActorKey).(*model.Actor); ok && a != nil {
		return a
	}
	return &model.Actor{IP: clientIP(ctx), UserAgent: string(ctx.UserAgent())}
}

func clientIP(ctx *xhttp.RequestCtx) string {
	if fwd := string(ctx.Request.Header.Peek("X-Forwarded-For")); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	return ctx.RemoteIP().String()
}

// Public resolves the X-Tenant-Id header for anonymous callers.
func (g *Guard) Public(next xhttp.RequestHandler) xhttp.RequestHandler {
	return func(ctx *xhttp.RequestCtx) {
		actor := &model.Actor{IP: clientIP(ctx), UserAgent: string(ctx.UserAgent())}
		if !g.resolveHeaderTenant(ctx, actor) {
			return
		}
		ctx.SetUserValue(model.ActorKey, actor)
		next(ctx)
	}
}

// Authenticated requires a valid access token and an active user.
func (g *Guard) Authenticated(next xhttp.RequestHandler) xhttp.RequestHandler {
	return func(ctx *xhttp.RequestCtx) {
		if g.authenticate(ctx) != nil {
			next(ctx)
		}
	}
}

// Protect requires authentication plus the role permission for module,
// read for GET and write for everything else.
func (g *Guard) Protect(module string, next xhttp.RequestHandler) xhttp.RequestHandler {
	return func(ctx *xhttp.RequestCtx) {
		actor := g.authenticate(ctx)
		if actor == nil {
			return
		}
		if !actor.IsSuperuser && !g.enforcer.Allowed(actor.Role, module, ActionFor(string(ctx.Method()))) {
			xhttp.WriteError(ctx, xhttp.StatusForbidden, msgForbidden)
			return
		}
		next(ctx)
	}
}

func (g *Guard) authenticate(ctx *xhttp.RequestCtx) *model.Actor {
	header := string(ctx.Request.Header.Peek("Authorization"))
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		xhttp.WriteError(ctx, xhttp.StatusUnauthorized, msgNoCredentials)
		return nil
	}
	claims, err := g.tokens.Parse(strings.TrimSpace(raw), TypeAccess)
	if err != nil {
		xhttp.WriteError(ctx, xhttp.StatusUnauthorized, msgBadToken)
		return nil
	}
	user, err := g.users.GetByID(ctx, claims.UserID(), nil)
	if err != nil || !user.IsActive {
		if err != nil {
			logger.Debug("[auth] user lookup failed", "sub", claims.Subject, "error", err)
		}
		xhttp.WriteError(ctx, xhttp.StatusUnauthorized, msgInactiveUser)
		return nil
	}

	actor := &model.Actor{
		UserID:      user.ID,
		Email:       user.Email,
		Phone:       user.Phone,
		Role:        user.Role,
		TenantID:    user.TenantID,
		BranchID:    user.BranchID,
		IsSuperuser: user.IsSuperuser,
		IP:          clientIP(ctx),
		UserAgent:   string(ctx.UserAgent()),
	}
	if actor.TenantID == nil && !g.resolveHeaderTenant(ctx, actor) {
		return nil
	}
	ctx.SetUserValue(model.ActorKey, actor)
	return actor
}

func (g *Guard) resolveHeaderTenant(ctx *xhttp.RequestCtx, actor *model.Actor) bool {
	header := strings.TrimSpace(string(ctx.Request.Header.Peek(HeaderTenant)))
	if header == "" {
		return true
	}
	id, err := g.tenants.Resolve(ctx, header)
	switch {
	case errors.Is(err, ErrInvalidTenant):
		xhttp.WriteError(ctx, xhttp.StatusBadRequest, ErrInvalidTenant.Error())
		return false
	case err != nil:
		logger.Error("[auth] tenant lookup failed", "error", err)
		xhttp.WriteError(ctx, xhttp.StatusInternalServerError, "internal error")
		return false
	}
	actor.TenantID = &id
	return true
}
