package services

import (
	"context"
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

type MockReportRepository struct {
	mock.Mock
}

func (m *MockReportRepository) Totals(ctx context.Context, tenantID *int64) (repository.Totals, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).(repository.Totals), args.Error(1)
}

func (m *MockReportRepository) StatusCounts(ctx context.Context, tenantID *int64) ([]model.StatusCount, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).([]model.StatusCount), args.Error(1)
}

func (m *MockReportRepository) DisbursedSince(ctx context.Context, tenantID *int64, since time.Time) ([]repository.AmountAt, error) {
	args := m.Called(ctx, tenantID, since)
	return args.Get(0).([]repository.AmountAt), args.Error(1)
}

func (m *MockReportRepository) Repayments(ctx context.Context, tenantID *int64, since time.Time) ([]repository.AmountAt, error) {
	args := m.Called(ctx, tenantID, since)
	return args.Get(0).([]repository.AmountAt), args.Error(1)
}

func (m *MockReportRepository) RecentLeadActivities(ctx context.Context, tenantID *int64, limit int) ([]repository.LeadActivityRow, error) {
	args := m.Called(ctx, tenantID, limit)
	return args.Get(0).([]repository.LeadActivityRow), args.Error(1)
}

func (m *MockReportRepository) RecentAudit(ctx context.Context, limit int) ([]model.ActivityItem, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]model.ActivityItem), args.Error(1)
}

func (m *MockReportRepository) UsersPerBranch(ctx context.Context, tenantID *int64) ([]model.LabelCount, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).([]model.LabelCount), args.Error(1)
}

func (m *MockReportRepository) Disbursements(ctx context.Context, f model.DisbursementFilter) ([]repository.DisbursementRow, error) {
	args := m.Called(ctx, f)
	return args.Get(0).([]repository.DisbursementRow), args.Error(1)
}

func (m *MockReportRepository) Branches(ctx context.Context, tenantID *int64) ([]repository.BranchRef, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).([]repository.BranchRef), args.Error(1)
}

func (m *MockReportRepository) StatusByBranch(ctx context.Context, tenantID *int64) ([]repository.BranchStatus, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).([]repository.BranchStatus), args.Error(1)
}

func (m *MockReportRepository) CollectionsByBranch(ctx context.Context, tenantID *int64) (map[int64]float64, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).(map[int64]float64), args.Error(1)
}

func (m *MockReportRepository) NPAAccounts(ctx context.Context, tenantID *int64, cutoff time.Time) ([]repository.NPARow, error) {
	args := m.Called(ctx, tenantID, cutoff)
	return args.Get(0).([]repository.NPARow), args.Error(1)
}

func (m *MockReportRepository) UserActivity(ctx context.Context, tenantID *int64) ([]repository.UserActivity, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).([]repository.UserActivity), args.Error(1)
}

func (m *MockReportRepository) CreatedBetween(ctx context.Context, from, to time.Time) (repository.Window, error) {
	args := m.Called(ctx, from, to)
	return args.Get(0).(repository.Window), args.Error(1)
}

var reportNow = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

func newReportService(repo ReportRepository, cache redis.RedisAdapter) *ReportService {
	s := &ReportService{repo: repo, cache: cache, cacheTTL: time.Minute}
	s.now = func() time.Time { return reportNow }
	return s
}

func TestFormatINR(t *testing.T) {
	cases := map[float64]string{
		0:          "₹0",
		999:        "₹999",
		12500:      "₹12,500",
		1234567.4:  "₹1,234,567",
		10000000:   "₹10,000,000",
		12500000:   "₹1.25 Cr",
		1234567890: "₹123.46 Cr",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatINR(in), "amount %v", in)
	}
}

func TestMonthSeries(t *testing.T) {
	rows := []repository.AmountAt{
		{Amount: 100, At: time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC)},
		{Amount: 50.25, At: time.Date(2026, 6, 20, 0, 0, 0, 0, time.UTC)},
		{Amount: 300, At: time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)},
		{Amount: 999, At: time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)},
	}
	got := monthSeries(reportNow, 6, rows)
	require.Len(t, got, 6)
	assert.Equal(t, "Jan", got[0].Month)
	assert.Equal(t, "Jun", got[5].Month)
	assert.Equal(t, 0.0, got[0].Amount)
	assert.Equal(t, 300.0, got[1].Amount)
	assert.Equal(t, 150.25, got[5].Amount)
}

func TestReportService_ScopeForNonMaster(t *testing.T) {
	repo := new(MockReportRepository)
	svc := newReportService(repo, nil)

	_, err := svc.BranchPerformance(context.Background(), &model.Actor{UserID: 3, Role: model.RoleAdmin}, nil)
	assert.ErrorIs(t, err, ErrNoTenant)
	repo.AssertNotCalled(t, "Branches", mock.Anything, mock.Anything)
}

func TestReportService_BranchPerformance(t *testing.T) {
	repo := new(MockReportRepository)
	svc := newReportService(repo, nil)
	tid := ptr(int64(7))
	north, south := int64(1), int64(2)

	repo.On("Branches", mock.Anything, tid).Return([]repository.BranchRef{{ID: north, Name: "North"}, {ID: south, Name: "South"}, {ID: 3, Name: "Empty"}}, nil)
	repo.On("StatusByBranch", mock.Anything, tid).Return([]repository.BranchStatus{
		{BranchID: &north, Branch: "North", Status: model.AppDisbursed, Count: 19, Amount: 1900000},
		{BranchID: &north, Branch: "North", Status: model.AppRejected, Count: 1, Amount: 10000},
		{BranchID: &south, Branch: "South", Status: model.AppRejected, Count: 1, Amount: 5000},
		{BranchID: &south, Branch: "South", Status: model.AppNew, Count: 9, Amount: 90000},
		{Branch: "Head Office", Status: model.AppNew, Count: 4},
	}, nil)
	repo.On("CollectionsByBranch", mock.Anything, tid).Return(map[int64]float64{north: 12345.678}, nil)

	rows, err := svc.BranchPerformance(context.Background(), tenantAdmin(7), nil)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, model.BranchPerformanceRow{Branch: "North", Loans: 19, Disbursed: 1900000, Collections: 12345.68, NPA: 5, Rating: "Good"}, rows[0])
	assert.Equal(t, 10.0, rows[1].NPA)
	assert.Equal(t, int64(0), rows[1].Loans)
	assert.Equal(t, model.BranchPerformanceRow{Branch: "Empty", Rating: "Excellent"}, rows[2])
}

func TestReportService_LoanApproval(t *testing.T) {
	repo := new(MockReportRepository)
	svc := newReportService(repo, nil)

	repo.On("StatusByBranch", mock.Anything, (*int64)(nil)).Return([]repository.BranchStatus{
		{Branch: "North", Status: model.AppApproved, Count: 4},
		{Branch: "North", Status: model.AppDisbursed, Count: 2},
		{Branch: "North", Status: model.AppRejected, Count: 10},
		{Branch: "Alpha", Status: model.AppSubmitted, Count: 4},
	}, nil)

	out, err := svc.LoanApproval(context.Background(), master(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(20), out.Total)
	assert.Equal(t, int64(6), out.Approved)
	assert.Equal(t, int64(10), out.Rejected)
	assert.Equal(t, int64(4), out.Pending)
	assert.Equal(t, "30.0%", out.ApprovalRate)
	assert.Equal(t, "50.0%", out.RejectionRate)

	require.Len(t, out.RejectionReasons, 3)
	assert.Equal(t, model.ReasonCount{Reason: "Low credit score", Count: 4, Percentage: "40%"}, out.RejectionReasons[0])
	assert.Equal(t, int64(3), out.RejectionReasons[1].Count)

	require.Len(t, out.Branches, 2)
	assert.Equal(t, model.ApprovalBranchRow{Branch: "Alpha", Total: 4, Pending: 4}, out.Branches[0])
	assert.Equal(t, model.ApprovalBranchRow{Branch: "North", Total: 16, Approved: 6, Rejected: 10}, out.Branches[1])
}

func TestReportService_LoanApprovalEmpty(t *testing.T) {
	repo := new(MockReportRepository)
	svc := newReportService(repo, nil)
	repo.On("StatusByBranch", mock.Anything, mock.Anything).Return([]repository.BranchStatus{}, nil)

	out, err := svc.LoanApproval(context.Background(), master(), nil)
	require.NoError(t, err)
	assert.Equal(t, "0.0%", out.ApprovalRate)
	assert.NotNil(t, out.Branches)
}

func TestReportService_NPA(t *testing.T) {
	repo := new(MockReportRepository)
	svc := newReportService(repo, nil)

	repo.On("NPAAccounts", mock.Anything, (*int64)(nil), reportNow.Add(-npaAge)).Return([]repository.NPARow{
		{Branch: "North", Category: "personal", Outstanding: 250000},
		{Branch: "North", Category: "home", Outstanding: 123456},
		{Branch: "South", Category: "personal", Outstanding: 50000},
	}, nil)

	out, err := svc.NPA(context.Background(), master(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), out.Count)
	assert.Equal(t, 423456.0, out.Amount)
	assert.Equal(t, []model.NPABucket{{Name: "North", Count: 2, Amount: 3.73}, {Name: "South", Count: 1, Amount: 0.5}}, out.ByBranch)
	assert.Equal(t, []model.NPABucket{{Name: "personal", Count: 2, Amount: 300000}, {Name: "home", Count: 1, Amount: 123456}}, out.ByCategory)
}

func TestReportService_DailyDisbursement(t *testing.T) {
	repo := new(MockReportRepository)
	svc := newReportService(repo, nil)
	d1 := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	d2 := time.Date(2026, 6, 2, 9, 0, 0, 0, time.UTC)

	repo.On("Disbursements", mock.Anything, mock.MatchedBy(func(f model.DisbursementFilter) bool {
		return f.TenantID != nil && *f.TenantID == 7 && f.BranchID == nil
	})).Return([]repository.DisbursementRow{
		{At: d2, Branch: "South", Amount: 10},
		{At: d2.Add(time.Hour), Branch: "North", Amount: 5},
		{At: d2.Add(2 * time.Hour), Branch: "North", Amount: 7},
		{At: d1, Branch: "North", Amount: 1},
	}, nil)

	rows, err := svc.DailyDisbursement(context.Background(), tenantAdmin(7), model.DisbursementFilter{TenantID: ptr(int64(99))})
	require.NoError(t, err)
	assert.Equal(t, []model.DailyDisbursementRow{
		{Date: "2026-06-02", Branch: "North", Count: 2, Amount: 12},
		{Date: "2026-06-02", Branch: "South", Count: 1, Amount: 10},
		{Date: "2026-06-01", Branch: "North", Count: 1, Amount: 1},
	}, rows)
}

func TestReportService_RevenueAndUserActivity(t *testing.T) {
	repo := new(MockReportRepository)
	svc := newReportService(repo, nil)
	login := time.Date(2026, 6, 14, 8, 30, 0, 0, time.UTC)

	repo.On("Repayments", mock.Anything, (*int64)(nil), time.Time{}).Return([]repository.AmountAt{
		{Amount: 1000, At: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)},
		{Amount: 500, At: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}, nil)
	repo.On("UserActivity", mock.Anything, (*int64)(nil)).Return([]repository.UserActivity{
		{ID: 1, Email: "a@x.co", FirstName: "Anu", LastName: "Das", Role: model.RoleLoanOfficer, IsActive: true, LastLogin: &login, Applications: 4},
		{ID: 2, Email: "b@x.co", Role: model.RoleAdmin, Applications: 1},
	}, nil)

	rev, err := svc.Revenue(context.Background(), master(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1500.0, rev.Total)
	require.Len(t, rev.Monthly, 12)
	assert.Equal(t, "Jul", rev.Monthly[0].Month)
	assert.Equal(t, 1000.0, rev.Monthly[11].Amount)

	ua, err := svc.UserActivity(context.Background(), master(), nil)
	require.NoError(t, err)
	require.Len(t, ua.Users, 2)
	assert.Equal(t, "Anu Das", ua.Users[0].User)
	assert.Equal(t, "2026-06-14 08:30", *ua.Users[0].LastLogin)
	assert.Equal(t, "b@x.co", ua.Users[1].User)
	assert.Nil(t, ua.Users[1].LastLogin)
	assert.Equal(t, int64(2), ua.KPIs.TotalUsers)
	assert.Equal(t, int64(1), ua.KPIs.ActiveUsers)
	assert.Equal(t, int64(5), ua.KPIs.TotalApplications)
}

func TestReportService_DashboardStatsCached(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewFromClient("test:", goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	repo := new(MockReportRepository)
	svc := newReportService(repo, cache)
	tid := ptr(int64(7))

	repo.On("Totals", mock.Anything, tid).Return(repository.Totals{Tenants: 1, Branches: 2, ActiveUsers: 3, Loans: 4, Disbursed: 15000000}, nil).Once()
	repo.On("StatusCounts", mock.Anything, tid).Return([]model.StatusCount{{Status: "NEW", Count: 4}}, nil).Once()
	repo.On("DisbursedSince", mock.Anything, tid, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)).Return([]repository.AmountAt{}, nil).Once()
	repo.On("RecentLeadActivities", mock.Anything, tid, 5).Return([]repository.LeadActivityRow{
		{Action: "Lead created", LeadName: "Kiran", CreatedAt: time.Date(2026, 6, 10, 14, 5, 0, 0, time.UTC)},
	}, nil).Once()
	repo.On("UsersPerBranch", mock.Anything, tid).Return([]model.LabelCount{{Label: "Head Office", Users: 3}}, nil).Once()

	first, err := svc.DashboardStats(context.Background(), tenantAdmin(7), nil)
	require.NoError(t, err)
	assert.Equal(t, "₹1.50 Cr", first.KPIs.DisbursedAmount)
	assert.Equal(t, "Online", first.KPIs.APIStatus)
	assert.Len(t, first.Charts.MonthlyDisbursement, 6)
	assert.Equal(t, []model.ActivityFeedItem{{Title: "Lead created", Subtitle: "Kiran", Time: "2026-06-10 14:05"}}, first.Charts.RecentActivity)
	assert.Len(t, first.Alerts, 3)
	assert.True(t, mr.Exists("test:reports:dashboard:7"))

	second, err := svc.DashboardStats(context.Background(), tenantAdmin(7), nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	repo.AssertExpectations(t)
}

func TestReportService_DashboardStatsFollowDisbursement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mr := miniredis.RunT(t)
	cache := redis.NewFromClient("test:", goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	tn := f.tenant(t, "Acme Finance")
	actor := tenantAdmin(tn.ID)
	svc := NewReportService(f.db, repository.NewReportRepository(f.db), cache, 0, f.tenants, f.audit)
	lms := NewLMSService(f.db, f.loans, f.audit)

	f.application(t, tn.ID, model.AppDisbursed, 2500)
	app := f.application(t, tn.ID, model.AppApproved, 12500)
	acc := f.account(t, app.ID, 0, nil)

	before, err := svc.DashboardStats(ctx, actor, nil)
	require.NoError(t, err)
	assert.Equal(t, 2500.0, before.KPIs.DisbursedTotal)
	assert.False(t, mr.Exists("test:reports:dashboard:"+key(tn.ID)))

	_, err = lms.Disburse(ctx, actor, key(acc.ID), model.DisburseRequest{OutstandingPrincipal: ptr(12500.0)})
	require.NoError(t, err)

	after, err := svc.DashboardStats(ctx, actor, nil)
	require.NoError(t, err)
	assert.Equal(t, 15000.0, after.KPIs.DisbursedTotal)
	assert.Equal(t, "₹15,000", after.KPIs.DisbursedAmount)
}

func TestReportService_SavedReports(t *testing.T) {
	f := newFixture(t)
	tn := f.tenant(t, "Acme Finance")
	svc := NewReportService(f.db, repository.NewReportRepository(f.db), nil, 0, f.tenants, f.audit)
	actor := tenantAdmin(tn.ID)

	r, err := svc.SavedReports.Create(context.Background(), actor, []byte(`{"name": "Q1 risk", "report_type": "RISK", "filters": {"branch": "all"}}`))
	require.NoError(t, err)
	require.NotNil(t, r.CreatedByID)
	assert.Equal(t, actor.UserID, *r.CreatedByID)
	assert.Equal(t, tn.ID, r.TenantID)

	_, err = svc.SavedReports.Create(context.Background(), actor, []byte(`{"name": "Bad", "report_type": "MISC"}`))
	assertInvalid(t, err, "report_type")
}
