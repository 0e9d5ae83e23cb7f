package handlers

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/nimasrn/lending-admin/internal/auth"
	"github.com/nimasrn/lending-admin/internal/model"
	"github.com/nimasrn/lending-admin/internal/services"
	xhttp "github.com/nimasrn/lending-admin/pkg/http"
	"github.com/nimasrn/lending-admin/pkg/logger"
)

// Guard wraps handlers with authentication and module authorization.
type Guard interface {
	Public(next xhttp.RequestHandler) xhttp.RequestHandler
	Authenticated(next xhttp.RequestHandler) xhttp.RequestHandler
	Protect(module string, next xhttp.RequestHandler) xhttp.RequestHandler
}

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// writeServiceError maps service errors to status codes. Anything unknown is
// logged and answered with a bare 500.
func writeServiceError(ctx *xhttp.RequestCtx, err error) {
	var ve *services.ValidationError
	switch {
	case errors.As(err, &ve):
		xhttp.WriteJSON(ctx, xhttp.StatusBadRequest, errorResponse{Error: ve.Message, Fields: ve.Fields})
	case errors.Is(err, services.ErrNotFound):
		xhttp.WriteError(ctx, xhttp.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrForbidden), errors.Is(err, services.ErrNoTenant):
		xhttp.WriteError(ctx, xhttp.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrUnauthenticated):
		xhttp.WriteError(ctx, xhttp.StatusUnauthorized, err.Error())
	case errors.Is(err, services.ErrConflict):
		xhttp.WriteError(ctx, xhttp.StatusConflict, err.Error())
	case errors.Is(err, services.ErrThrottled):
		xhttp.WriteError(ctx, xhttp.StatusTooManyRequests, err.Error())
	default:
		logger.Error("[handlers] request failed",
			"method", string(ctx.Method()),
			"path", string(ctx.Path()),
			"request_id", xhttp.RequestID(ctx),
			"error", err,
		)
		xhttp.WriteError(ctx, xhttp.StatusInternalServerError, "internal error")
	}
}

// readJSON decodes the body into dst, answering 400 itself on failure.
func readJSON(ctx *xhttp.RequestCtx, dst any) bool {
	if err := xhttp.ReadJSON(ctx, dst); err != nil {
		xhttp.WriteError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}
	return true
}

// body returns the raw request body, or answers 400 when it is not JSON.
func body(ctx *xhttp.RequestCtx) ([]byte, bool) {
	raw := ctx.PostBody()
	if len(raw) == 0 {
		return []byte("{}"), true
	}
	if !json.Valid(raw) {
		xhttp.WriteError(ctx, xhttp.StatusBadRequest, "invalid JSON")
		return nil, false
	}
	return append([]byte(nil), raw...), true
}

var reservedQuery = map[string]struct{}{
	"search": {}, "limit": {}, "offset": {}, "tenant": {}, "page": {}, "ordering": {},
}

// listQuery reads search, paging, the master-only tenant narrowing and the
// remaining arguments as equality filters. Stores ignore unknown filters.
func listQuery(ctx *xhttp.RequestCtx) model.ListQuery {
	q := model.ListQuery{
		Search:  strings.TrimSpace(xhttp.Query(ctx, "search")),
		Filters: map[string]string{},
	}
	if n, err := strconv.Atoi(xhttp.Query(ctx, "limit")); err == nil {
		q.Limit = n
	}
	if n, err := strconv.Atoi(xhttp.Query(ctx, "offset")); err == nil {
		q.Offset = n
	}
	q.TenantID = tenantQuery(ctx)
	ctx.QueryArgs().VisitAll(func(k, v []byte) {
		if _, ok := reservedQuery[string(k)]; !ok {
			q.Filters[string(k)] = string(v)
		}
	})
	return q
}

func tenantQuery(ctx *xhttp.RequestCtx) *int64 {
	if id, err := strconv.ParseInt(xhttp.Query(ctx, "tenant"), 10, 64); err == nil && id > 0 {
		return &id
	}
	return nil
}

func actor(ctx *xhttp.RequestCtx) *model.Actor {
	return auth.ActorFrom(ctx)
}

func parseDate(s string) (*model.Date, bool) {
	if s == "" {
		return nil, true
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, false
	}
	return &model.Date{Time: t}, true
}

func invalidField(field, msg string) error {
	return services.InvalidFields(map[string]string{field: msg})
}

func invalidDate(field string) error {
	return invalidField(field, "use YYYY-MM-DD")
}
