package handlers

import (
	"context"

	"github.com/nimasrn/lending-admin/internal/services"
	xhttp "github.com/nimasrn/lending-admin/pkg/http"
)

type HealthService interface {
	Check(ctx context.Context) *services.HealthStatus
}

type HealthHandler struct {
	svc HealthService
}

func RegisterHealthRoutes(g *xhttp.Group, h *HealthHandler) {
	g.GET("/health", h.GetHealth)
}

func NewHealthHandler(svc HealthService) *HealthHandler {
	return &HealthHandler{
		svc: svc,
	}
}

// GetHealth answers 200 when every dependency responds, 503 otherwise.
func (h *HealthHandler) GetHealth(ctx *xhttp.RequestCtx) {
	st := h.svc.Check(ctx)
	status := xhttp.StatusOK
	if st.Status != "ok" {
		status = xhttp.StatusServiceUnavailable
	}
	xhttp.WriteJSON(ctx, status, st)
}
