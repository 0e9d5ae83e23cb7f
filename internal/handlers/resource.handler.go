package handlers

import (
	"context"

	"github.com/nimasrn/lending-admin/internal/model"
	xhttp "github.com/nimasrn/lending-admin/pkg/http"
)

// ResourceAPI is the flat CRUD surface of services.Resource.
type ResourceAPI[T any] interface {
	List(ctx context.Context, actor *model.Actor, q model.ListQuery) (*model.ListResult[T], error)
	Get(ctx context.Context, actor *model.Actor, key string) (*T, error)
	Create(ctx context.Context, actor *model.Actor, body []byte) (*T, error)
	Update(ctx context.Context, actor *model.Actor, key string, body []byte) (*T, error)
	Delete(ctx context.Context, actor *model.Actor, key string) (string, error)
}

type routes uint8

const (
	routeList routes = 1 << iota
	routeGet
	routeCreate
	routeUpdate
	routeDelete

	readRoutes = routeList | routeGet
	crudRoutes = readRoutes | routeCreate | routeUpdate | routeDelete
)

type ResourceHandler[T any] struct {
	api ResourceAPI[T]
}

func NewResourceHandler[T any](api ResourceAPI[T]) *ResourceHandler[T] {
	return &ResourceHandler[T]{api: api}
}

// mount registers the selected routes of h under path, each behind the
// module permission.
func mount[T any](g *xhttp.Group, guard Guard, module, path string, h *ResourceHandler[T], which routes) {
	item := path + "/{id}"
	if which&routeList != 0 {
		g.GET(path, guard.Protect(module, h.List))
	}
	if which&routeGet != 0 {
		g.GET(item, guard.Protect(module, h.Get))
	}
	if which&routeCreate != 0 {
		g.POST(path, guard.Protect(module, h.Create))
	}
	if which&routeUpdate != 0 {
		g.PUT(item, guard.Protect(module, h.Update))
		g.PATCH(item, guard.Protect(module, h.Update))
	}
	if which&routeDelete != 0 {
		g.DELETE(item, guard.Protect(module, h.Delete))
	}
}

func (h *ResourceHandler[T]) List(ctx *xhttp.RequestCtx) {
	res, err := h.api.List(ctx, actor(ctx), listQuery(ctx))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, res)
}

func (h *ResourceHandler[T]) Get(ctx *xhttp.RequestCtx) {
	v, err := h.api.Get(ctx, actor(ctx), xhttp.Param(ctx, "id"))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, v)
}

func (h *ResourceHandler[T]) Create(ctx *xhttp.RequestCtx) {
	raw, ok := body(ctx)
	if !ok {
		return
	}
	v, err := h.api.Create(ctx, actor(ctx), raw)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusCreated, v)
}

func (h *ResourceHandler[T]) Update(ctx *xhttp.RequestCtx) {
	raw, ok := body(ctx)
	if !ok {
		return
	}
	v, err := h.api.Update(ctx, actor(ctx), xhttp.Param(ctx, "id"), raw)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, v)
}

func (h *ResourceHandler[T]) Delete(ctx *xhttp.RequestCtx) {
	msg, err := h.api.Delete(ctx, actor(ctx), xhttp.Param(ctx, "id"))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	if msg != "" {
		xhttp.WriteJSON(ctx, xhttp.StatusOK, messageResponse{Message: msg})
		return
	}
	ctx.SetStatusCode(xhttp.StatusNoContent)
}
