package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/nimasrn/lending-admin/internal/model"
	"github.com/nimasrn/lending-admin/internal/repository"
	"github.com/nimasrn/lending-admin/pkg/logger"
	"gorm.io/datatypes"
)

const (
	trendWindow      = 30 * 24 * time.Hour
	snapshotActivity = 10
)

type DashboardRepository interface {
	GetOrCreate(ctx context.Context) (*model.DashboardSnapshot, error)
	Save(ctx context.Context, snap *model.DashboardSnapshot) error
}

// SnapshotSource is the slice of the report repository a refresh reads.
type SnapshotSource interface {
	Totals(ctx context.Context, tenantID *int64) (repository.Totals, error)
	StatusCounts(ctx context.Context, tenantID *int64) ([]model.StatusCount, error)
	DisbursedSince(ctx context.Context, tenantID *int64, since time.Time) ([]repository.AmountAt, error)
	RecentAudit(ctx context.Context, limit int) ([]model.ActivityItem, error)
	CreatedBetween(ctx context.Context, from, to time.Time) (repository.Window, error)
}

type DashboardService struct {
	repo    DashboardRepository
	reports SnapshotSource
	now     func() time.Time
}

func NewDashboardService(repo DashboardRepository, reports SnapshotSource) *DashboardService {
	return &DashboardService{repo: repo, reports: reports, now: time.Now}
}

func (s *DashboardService) Get(ctx context.Context) (*model.DashboardSnapshot, error) {
	return s.repo.GetOrCreate(ctx)
}

// trend renders the change between two windows as "+12%" or "-3%".
func trend(current, previous float64) string {
	if previous == 0 {
		if current == 0 {
			return "+0%"
		}
		return "+100%"
	}
	change := math.Round((current - previous) / previous * 100)
	if change >= 0 {
		return fmt.Sprintf("+%.0f%%", change)
	}
	return fmt.Sprintf("%.0f%%", change)
}

// Refresh recomputes the global snapshot row. Trends compare the last 30
// days with the 30 days before.
func (s *DashboardService) Refresh(ctx context.Context) (*model.DashboardSnapshot, error) {
	now := s.now()
	totals, err := s.reports.Totals(ctx, nil)
	if err != nil {
		return nil, err
	}
	current, err := s.reports.CreatedBetween(ctx, now.Add(-trendWindow), now)
	if err != nil {
		return nil, err
	}
	previous, err := s.reports.CreatedBetween(ctx, now.Add(-2*trendWindow), now.Add(-trendWindow))
	if err != nil {
		return nil, err
	}
	disbursed, err := s.reports.DisbursedSince(ctx, nil, monthStart(now).AddDate(0, -(dashboardMonths-1), 0))
	if err != nil {
		return nil, err
	}
	statuses, err := s.reports.StatusCounts(ctx, nil)
	if err != nil {
		return nil, err
	}
	activity, err := s.reports.RecentAudit(ctx, snapshotActivity)
	if err != nil {
		return nil, err
	}

	refreshed := now
	snap := &model.DashboardSnapshot{
		ID: model.DashboardSnapshotID,
		KPIs: datatypes.NewJSONType(model.DashboardKPIs{
			TotalTenants:    totals.Tenants,
			TenantsTrend:    trend(float64(current.Tenants), float64(previous.Tenants)),
			ActiveUsers:     totals.ActiveUsers,
			UsersTrend:      trend(float64(current.Users), float64(previous.Users)),
			TotalLoans:      totals.Loans,
			LoansTrend:      trend(float64(current.Loans), float64(previous.Loans)),
			DisbursedAmount: FormatINR(totals.Disbursed),
			AmountTrend:     trend(current.Disbursed, previous.Disbursed),
		}),
		Charts: datatypes.NewJSONType(model.DashboardCharts{
			MonthlyDisbursement:    monthSeries(now, dashboardMonths, disbursed),
			LoanStatusDistribution: statuses,
			RecentActivity:         activity,
		}),
		RefreshedAt: &refreshed,
	}
	if err := s.repo.Save(ctx, snap); err != nil {
		return nil, err
	}
	logger.Info("[dashboard] snapshot refreshed", "tenants", totals.Tenants, "loans", totals.Loans)
	return snap, nil
}
