package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nimasrn/lending-admin/internal/model"
	"github.com/nimasrn/lending-admin/internal/repository"
	"github.com/nimasrn/lending-admin/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestTrend(t *testing.T) {
	assert.Equal(t, "+0%", trend(0, 0))
	assert.Equal(t, "+100%", trend(5, 0))
	assert.Equal(t, "+50%", trend(15, 10))
	assert.Equal(t, "-25%", trend(3, 4))
	assert.Equal(t, "+0%", trend(7, 7))
}

func TestDashboardService_GetCreatesDefault(t *testing.T) {
	db := repository.NewTestDB(t)
	svc := NewDashboardService(repository.NewDashboardRepository(db), new(MockReportRepository))

	snap, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "₹0", snap.KPIs.Data().DisbursedAmount)
	assert.Equal(t, "+0%", snap.KPIs.Data().TenantsTrend)
	assert.Nil(t, snap.RefreshedAt)
}

func TestDashboardService_Refresh(t *testing.T) {
	db := repository.NewTestDB(t)
	src := new(MockReportRepository)
	svc := NewDashboardService(repository.NewDashboardRepository(db), src)
	svc.now = func() time.Time { return reportNow }

	src.On("Totals", mock.Anything, (*int64)(nil)).Return(repository.Totals{Tenants: 4, ActiveUsers: 12, Loans: 30, Disbursed: 250000}, nil)
	src.On("CreatedBetween", mock.Anything, reportNow.Add(-trendWindow), reportNow).
		Return(repository.Window{Tenants: 2, Users: 3, Loans: 10, Disbursed: 150000}, nil)
	src.On("CreatedBetween", mock.Anything, reportNow.Add(-2*trendWindow), reportNow.Add(-trendWindow)).
		Return(repository.Window{Tenants: 0, Users: 4, Loans: 10, Disbursed: 100000}, nil)
	src.On("DisbursedSince", mock.Anything, (*int64)(nil), mock.Anything).
		Return([]repository.AmountAt{{Amount: 250000, At: reportNow}}, nil)
	src.On("StatusCounts", mock.Anything, (*int64)(nil)).Return([]model.StatusCount{{Status: "DISBURSED", Count: 3}}, nil)
	src.On("RecentAudit", mock.Anything, snapshotActivity).
		Return([]model.ActivityItem{{User: "root@lending.local", Action: "CREATE tenants", Time: reportNow}}, nil)

	_, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	stored, err := svc.Get(context.Background())
	require.NoError(t, err)
	kpis := stored.KPIs.Data()
	assert.Equal(t, model.DashboardKPIs{
		TotalTenants:    4,
		TenantsTrend:    "+100%",
		ActiveUsers:     12,
		UsersTrend:      "-25%",
		TotalLoans:      30,
		LoansTrend:      "+0%",
		DisbursedAmount: "₹250,000",
		AmountTrend:     "+50%",
	}, kpis)

	charts := stored.Charts.Data()
	require.Len(t, charts.MonthlyDisbursement, 6)
	assert.Equal(t, 250000.0, charts.MonthlyDisbursement[5].Amount)
	assert.Equal(t, []model.StatusCount{{Status: "DISBURSED", Count: 3}}, charts.LoanStatusDistribution)
	require.Len(t, charts.RecentActivity, 1)
	assert.Equal(t, "CREATE tenants", charts.RecentActivity[0].Action)
	require.NotNil(t, stored.RefreshedAt)
}

func TestDashboardService_RefreshError(t *testing.T) {
	db := repository.NewTestDB(t)
	src := new(MockReportRepository)
	svc := NewDashboardService(repository.NewDashboardRepository(db), src)
	src.On("Totals", mock.Anything, mock.Anything).Return(repository.Totals{}, errors.New("db down"))

	_, err := svc.Refresh(context.Background())
	assert.EqualError(t, err, "db down")

	snap, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snap.RefreshedAt)
}

type MockPinger struct {
	mock.Mock
}

func (m *MockPinger) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func TestHealthService_Check(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewFromClient("test:", goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))

	db := new(MockPinger)
	db.On("Ping", mock.Anything).Return(nil).Once()
	svc := NewHealthService(db, cache)

	got := svc.Check(context.Background())
	assert.Equal(t, "ok", got.Status)
	assert.Equal(t, map[string]string{"database": "ok", "redis": "ok"}, got.Checks)

	db.On("Ping", mock.Anything).Return(errors.New("connection refused")).Once()
	got = svc.Check(context.Background())
	assert.Equal(t, "degraded", got.Status)
	assert.Equal(t, "connection refused", got.Checks["database"])
	assert.Equal(t, "ok", got.Checks["redis"])

	mr.Close()
	db.On("Ping", mock.Anything).Return(nil).Once()
	got = svc.Check(context.Background())
	assert.Equal(t, "degraded", got.Status)
	assert.Equal(t, "ok", got.Checks["database"])
	assert.NotEqual(t, "ok", got.Checks["redis"])
}
