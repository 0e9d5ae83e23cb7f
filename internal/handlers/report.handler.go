package handlers

import (
	"context"
	"strconv"

	"github.com/nimasrn/lending-admin/internal/auth"
	"github.com/nimasrn/lending-admin/internal/model"
	xhttp "github.com/nimasrn/lending-admin/pkg/http"
)

type ReportService interface {
	DashboardStats(ctx context.Context, actor *model.Actor, tenant *int64) (*model.DashboardStats, error)
	DailyDisbursement(ctx context.Context, actor *model.Actor, f model.DisbursementFilter) ([]model.DailyDisbursementRow, error)
	BranchPerformance(ctx context.Context, actor *model.Actor, tenant *int64) ([]model.BranchPerformanceRow, error)
	LoanApproval(ctx context.Context, actor *model.Actor, tenant *int64) (*model.LoanApprovalReport, error)
	NPA(ctx context.Context, actor *model.Actor, tenant *int64) (*model.NPAReport, error)
	Revenue(ctx context.Context, actor *model.Actor, tenant *int64) (*model.RevenueReport, error)
	UserActivity(ctx context.Context, actor *model.Actor, tenant *int64) (*model.UserActivityReport, error)
}

type ReportHandler struct {
	svc          ReportService
	savedReports *ResourceHandler[model.Report]
	analytics    *ResourceHandler[model.Analytics]
}

func NewReportHandler(svc ReportService, saved ResourceAPI[model.Report], analytics ResourceAPI[model.Analytics]) *ReportHandler {
	return &ReportHandler{
		svc:          svc,
		savedReports: NewResourceHandler(saved),
		analytics:    NewResourceHandler(analytics),
	}
}

func RegisterReportRoutes(g *xhttp.Group, guard Guard, h *ReportHandler) {
	m := auth.ModuleReports
	g.GET("/dashboard/stats", guard.Protect(m, h.DashboardStats))
	g.GET("/reports/daily-disbursement", guard.Protect(m, h.DailyDisbursement))
	g.GET("/reports/branch-performance", guard.Protect(m, scoped(h.svc.BranchPerformance)))
	g.GET("/reports/loan-approval", guard.Protect(m, scoped(h.svc.LoanApproval)))
	g.GET("/reports/npa", guard.Protect(m, scoped(h.svc.NPA)))
	g.GET("/reports/revenue", guard.Protect(m, scoped(h.svc.Revenue)))
	g.GET("/reports/user-activity", guard.Protect(m, scoped(h.svc.UserActivity)))

	mount(g, guard, m, "/saved-reports", h.savedReports, crudRoutes)
	mount(g, guard, m, "/analytics", h.analytics, crudRoutes)
}

// scoped adapts a report that only takes the ?tenant narrowing.
func scoped[R any](fn func(ctx context.Context, actor *model.Actor, tenant *int64) (R, error)) xhttp.RequestHandler {
	return func(ctx *xhttp.RequestCtx) {
		res, err := fn(ctx, actor(ctx), tenantQuery(ctx))
		if err != nil {
			writeServiceError(ctx, err)
			return
		}
		xhttp.WriteJSON(ctx, xhttp.StatusOK, res)
	}
}

func (h *ReportHandler) DashboardStats(ctx *xhttp.RequestCtx) {
	scoped(h.svc.DashboardStats)(ctx)
}

func (h *ReportHandler) DailyDisbursement(ctx *xhttp.RequestCtx) {
	f := model.DisbursementFilter{TenantID: tenantQuery(ctx)}
	var ok bool
	if f.StartDate, ok = parseDate(xhttp.Query(ctx, "start_date")); !ok {
		writeServiceError(ctx, invalidDate("start_date"))
		return
	}
	if f.EndDate, ok = parseDate(xhttp.Query(ctx, "end_date")); !ok {
		writeServiceError(ctx, invalidDate("end_date"))
		return
	}
	if b := xhttp.Query(ctx, "branch"); b != "" && b != "all" {
		id, err := strconv.ParseInt(b, 10, 64)
		if err != nil {
			writeServiceError(ctx, invalidField("branch", "must be a branch id or all"))
			return
		}
		f.BranchID = &id
	}
	rows, err := h.svc.DailyDisbursement(ctx, actor(ctx), f)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, rows)
}
