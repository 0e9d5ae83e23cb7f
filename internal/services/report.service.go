package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nimasrn/lending-admin/internal/model"
	"github.com/nimasrn/lending-admin/internal/repository"
	"github.com/nimasrn/lending-admin/pkg/logger"
	"github.com/nimasrn/lending-admin/pkg/pg"
	"github.com/nimasrn/lending-admin/pkg/redis"
)

const (
	ModuleReports = "reports"

	npaAge            = 90 * 24 * time.Hour
	dashboardMonths   = 6
	revenueMonths     = 12
	recentLeadActions = 5
)

type ReportRepository interface {
	Totals(ctx context.Context, tenantID *int64) (repository.Totals, error)
	StatusCounts(ctx context.Context, tenantID *int64) ([]model.StatusCount, error)
	DisbursedSince(ctx context.Context, tenantID *int64, since time.Time) ([]repository.AmountAt, error)
	Repayments(ctx context.Context, tenantID *int64, since time.Time) ([]repository.AmountAt, error)
	RecentLeadActivities(ctx context.Context, tenantID *int64, limit int) ([]repository.LeadActivityRow, error)
	UsersPerBranch(ctx context.Context, tenantID *int64) ([]model.LabelCount, error)
	Disbursements(ctx context.Context, f model.DisbursementFilter) ([]repository.DisbursementRow, error)
	Branches(ctx context.Context, tenantID *int64) ([]repository.BranchRef, error)
	StatusByBranch(ctx context.Context, tenantID *int64) ([]repository.BranchStatus, error)
	CollectionsByBranch(ctx context.Context, tenantID *int64) (map[int64]float64, error)
	NPAAccounts(ctx context.Context, tenantID *int64, cutoff time.Time) ([]repository.NPARow, error)
	UserActivity(ctx context.Context, tenantID *int64) ([]repository.UserActivity, error)
}

var staticAlerts = []model.Alert{
	{Type: "Critical", Message: "High server load detected", Time: "10 mins ago"},
	{Type: "Warning", Message: "3 Loan applications pending > 24hrs", Time: "2 hours ago"},
	{Type: "Info", Message: "System backup completed successfully", Time: "5 hours ago"},
}

// rejection reasons are not captured on applications, the split is fixed
var rejectionSplit = []struct {
	reason string
	share  float64
}{
	{"Low credit score", 0.4},
	{"Insufficient income", 0.3},
	{"Incomplete documents", 0.3},
}

type ReportService struct {
	repo     ReportRepository
	cache    redis.RedisAdapter
	cacheTTL time.Duration
	now      func() time.Time

	SavedReports *Resource[model.Report]
	Analytics    *Resource[model.Analytics]
}

func NewReportService(db *pg.DB, repo ReportRepository, cache redis.RedisAdapter, cacheTTL time.Duration, tenants TenantDirectory, audit *AuditService) *ReportService {
	return &ReportService{
		repo:     repo,
		cache:    cache,
		cacheTTL: cacheTTL,
		now:      time.Now,
		SavedReports: NewResource(ResourceConfig[model.Report]{
			Name:    "Report",
			Module:  ModuleReports,
			Store:   repository.NewStore[model.Report](db, repository.SavedReportOptions()),
			Audit:   audit,
			Tenants: tenants,
			Scoped:  true,
			BeforeCreate: func(_ context.Context, actor *model.Actor, r *model.Report) error {
				r.CreatedByID = actor.UserRef()
				return nil
			},
		}),
		Analytics: NewResource(ResourceConfig[model.Analytics]{
			Name:    "Analytics",
			Store:   repository.NewStore[model.Analytics](db, repository.AnalyticsOptions()),
			Tenants: tenants,
			Scoped:  true,
		}),
	}
}

// FormatINR renders rupees as "₹1.25 Cr" above one crore, else with
// thousands separators, e.g. "₹12,500".
func FormatINR(amount float64) string {
	if amount > 1e7 {
		return fmt.Sprintf("₹%.2f Cr", amount/1e7)
	}
	return "₹" + groupThousands(int64(math.Round(amount)))
}

func groupThousands(n int64) string {
	sign := ""
	if n < 0 {
		sign, n = "-", -n
	}
	s := strconv.FormatInt(n, 10)
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return sign + b.String()
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func percent(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return round(float64(part)/float64(total)*100, 1)
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + "%"
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// monthSeries buckets amounts into the n months ending with the month of
// now, oldest first. Months without movements are reported as 0.
func monthSeries(now time.Time, n int, rows []repository.AmountAt) []model.MonthAmount {
	first := monthStart(now).AddDate(0, -(n - 1), 0)
	out := make([]model.MonthAmount, n)
	index := make(map[string]int, n)
	for i := 0; i < n; i++ {
		m := first.AddDate(0, i, 0)
		out[i] = model.MonthAmount{Month: m.Format("Jan")}
		index[m.Format("2006-01")] = i
	}
	for _, r := range rows {
		if i, ok := index[r.At.In(now.Location()).Format("2006-01")]; ok {
			out[i].Amount += r.Amount
		}
	}
	for i := range out {
		out[i].Amount = round(out[i].Amount, 2)
	}
	return out
}

func (s *ReportService) scope(actor *model.Actor, requested *int64) (*int64, string, error) {
	tid, err := readScope(actor, requested)
	if err != nil {
		return nil, "", err
	}
	if tid == nil {
		return nil, "all", nil
	}
	return tid, strconv.FormatInt(*tid, 10), nil
}

func (s *ReportService) cached(key string, dst any) bool {
	if s.cache == nil || s.cacheTTL <= 0 {
		return false
	}
	raw, err := s.cache.Get(key)
	if err != nil {
		if err != redis.NilError {
			logger.Warn("[reports] cache read failed", "key", key, "error", err)
		}
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

func (s *ReportService) store(key string, v any) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.cache.Set(key, raw, s.cacheTTL); err != nil {
		logger.Warn("[reports] cache write failed", "key", key, "error", err)
	}
}

// DashboardStats aggregates the dashboard for the caller's scope. Results are
// cached per scope only when a positive ttl is configured.
func (s *ReportService) DashboardStats(ctx context.Context, actor *model.Actor, requested *int64) (*model.DashboardStats, error) {
	tid, scopeKey, err := s.scope(actor, requested)
	if err != nil {
		return nil, err
	}
	key := "reports:dashboard:" + scopeKey
	out := &model.DashboardStats{}
	if s.cached(key, out) {
		return out, nil
	}

	totals, err := s.repo.Totals(ctx, tid)
	if err != nil {
		return nil, err
	}
	statuses, err := s.repo.StatusCounts(ctx, tid)
	if err != nil {
		return nil, err
	}
	now := s.now()
	disbursed, err := s.repo.DisbursedSince(ctx, tid, monthStart(now).AddDate(0, -(dashboardMonths-1), 0))
	if err != nil {
		return nil, err
	}
	activities, err := s.repo.RecentLeadActivities(ctx, tid, recentLeadActions)
	if err != nil {
		return nil, err
	}
	perBranch, err := s.repo.UsersPerBranch(ctx, tid)
	if err != nil {
		return nil, err
	}

	out.KPIs.TotalTenants = totals.Tenants
	out.KPIs.TotalBranches = totals.Branches
	out.KPIs.ActiveUsers = totals.ActiveUsers
	out.KPIs.TotalLoans = totals.Loans
	out.KPIs.DisbursedTotal = totals.Disbursed
	out.KPIs.DisbursedAmount = FormatINR(totals.Disbursed)
	out.KPIs.APIStatus = "Online"

	out.Charts.MonthlyDisbursement = monthSeries(now, dashboardMonths, disbursed)
	out.Charts.LoanStatusDistribution = statuses
	out.Charts.RecentActivity = make([]model.ActivityFeedItem, len(activities))
	for i, a := range activities {
		out.Charts.RecentActivity[i] = model.ActivityFeedItem{
			Title:    a.Action,
			Subtitle: a.LeadName,
			Time:     a.CreatedAt.Format("2006-01-02 15:04"),
		}
	}
	out.Charts.UsersPerBranch = perBranch
	out.Alerts = staticAlerts

	s.store(key, out)
	return out, nil
}

func (s *ReportService) DailyDisbursement(ctx context.Context, actor *model.Actor, f model.DisbursementFilter) ([]model.DailyDisbursementRow, error) {
	tid, _, err := s.scope(actor, f.TenantID)
	if err != nil {
		return nil, err
	}
	f.TenantID = tid
	rows, err := s.repo.Disbursements(ctx, f)
	if err != nil {
		return nil, err
	}

	type key struct{ date, branch string }
	index := map[key]int{}
	out := make([]model.DailyDisbursementRow, 0)
	for _, r := range rows {
		k := key{r.At.Format("2006-01-02"), r.Branch}
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, model.DailyDisbursementRow{Date: k.date, Branch: k.branch})
		}
		out[i].Count++
		out[i].Amount += r.Amount
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		return out[i].Branch < out[j].Branch
	})
	return out, nil
}

func (s *ReportService) BranchPerformance(ctx context.Context, actor *model.Actor, requested *int64) ([]model.BranchPerformanceRow, error) {
	tid, _, err := s.scope(actor, requested)
	if err != nil {
		return nil, err
	}
	branches, err := s.repo.Branches(ctx, tid)
	if err != nil {
		return nil, err
	}
	stats, err := s.repo.StatusByBranch(ctx, tid)
	if err != nil {
		return nil, err
	}
	collections, err := s.repo.CollectionsByBranch(ctx, tid)
	if err != nil {
		return nil, err
	}

	type agg struct {
		all, rejected, disbursedCount int64
		disbursed                     float64
	}
	byBranch := map[int64]*agg{}
	for _, st := range stats {
		if st.BranchID == nil {
			continue
		}
		a := byBranch[*st.BranchID]
		if a == nil {
			a = &agg{}
			byBranch[*st.BranchID] = a
		}
		a.all += st.Count
		switch st.Status {
		case model.AppRejected:
			a.rejected += st.Count
		case model.AppDisbursed:
			a.disbursedCount += st.Count
			a.disbursed += st.Amount
		}
	}

	out := make([]model.BranchPerformanceRow, 0, len(branches))
	for _, b := range branches {
		a := byBranch[b.ID]
		if a == nil {
			a = &agg{}
		}
		npa := percent(a.rejected, a.all)
		rating := "Good"
		if npa < 5 {
			rating = "Excellent"
		}
		out = append(out, model.BranchPerformanceRow{
			Branch:      b.Name,
			Loans:       a.disbursedCount,
			Disbursed:   round(a.disbursed, 2),
			Collections: round(collections[b.ID], 2),
			NPA:         npa,
			Rating:      rating,
		})
	}
	return out, nil
}

func (s *ReportService) LoanApproval(ctx context.Context, actor *model.Actor, requested *int64) (*model.LoanApprovalReport, error) {
	tid, _, err := s.scope(actor, requested)
	if err != nil {
		return nil, err
	}
	stats, err := s.repo.StatusByBranch(ctx, tid)
	if err != nil {
		return nil, err
	}

	out := &model.LoanApprovalReport{Branches: []model.ApprovalBranchRow{}}
	index := map[string]int{}
	for _, st := range stats {
		i, ok := index[st.Branch]
		if !ok {
			i = len(out.Branches)
			index[st.Branch] = i
			out.Branches = append(out.Branches, model.ApprovalBranchRow{Branch: st.Branch})
		}
		row := &out.Branches[i]
		row.Total += st.Count
		out.Total += st.Count
		switch st.Status {
		case model.AppApproved, model.AppDisbursed:
			row.Approved += st.Count
			out.Approved += st.Count
		case model.AppRejected:
			row.Rejected += st.Count
			out.Rejected += st.Count
		}
	}
	for i := range out.Branches {
		b := &out.Branches[i]
		b.Pending = b.Total - b.Approved - b.Rejected
	}
	sort.Slice(out.Branches, func(i, j int) bool { return out.Branches[i].Branch < out.Branches[j].Branch })

	out.Pending = out.Total - out.Approved - out.Rejected
	out.ApprovalRate = formatPercent(percent(out.Approved, out.Total))
	out.RejectionRate = formatPercent(percent(out.Rejected, out.Total))
	out.RejectionReasons = make([]model.ReasonCount, len(rejectionSplit))
	for i, r := range rejectionSplit {
		out.RejectionReasons[i] = model.ReasonCount{
			Reason:     r.reason,
			Count:      int64(float64(out.Rejected) * r.share),
			Percentage: fmt.Sprintf("%.0f%%", r.share*100),
		}
	}
	return out, nil
}

// NPA reports accounts at least 90 days old that still carry principal.
// Branch amounts are in lakhs.
func (s *ReportService) NPA(ctx context.Context, actor *model.Actor, requested *int64) (*model.NPAReport, error) {
	tid, _, err := s.scope(actor, requested)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.NPAAccounts(ctx, tid, s.now().Add(-npaAge))
	if err != nil {
		return nil, err
	}

	out := &model.NPAReport{ByBranch: []model.NPABucket{}, ByCategory: []model.NPABucket{}}
	branchIdx, catIdx := map[string]int{}, map[string]int{}
	add := func(list *[]model.NPABucket, idx map[string]int, name string, amount float64) {
		i, ok := idx[name]
		if !ok {
			i = len(*list)
			idx[name] = i
			*list = append(*list, model.NPABucket{Name: name})
		}
		(*list)[i].Count++
		(*list)[i].Amount += amount
	}
	for _, r := range rows {
		out.Count++
		out.Amount += r.Outstanding
		add(&out.ByBranch, branchIdx, r.Branch, r.Outstanding)
		add(&out.ByCategory, catIdx, r.Category, r.Outstanding)
	}
	out.Amount = round(out.Amount, 2)
	for i := range out.ByBranch {
		out.ByBranch[i].Amount = round(out.ByBranch[i].Amount/1e5, 2)
	}
	for i := range out.ByCategory {
		out.ByCategory[i].Amount = round(out.ByCategory[i].Amount, 2)
	}
	return out, nil
}

func (s *ReportService) Revenue(ctx context.Context, actor *model.Actor, requested *int64) (*model.RevenueReport, error) {
	tid, _, err := s.scope(actor, requested)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.Repayments(ctx, tid, time.Time{})
	if err != nil {
		return nil, err
	}
	out := &model.RevenueReport{}
	for _, r := range rows {
		out.Total += r.Amount
	}
	out.Total = round(out.Total, 2)
	out.Monthly = monthSeries(s.now(), revenueMonths, rows)
	return out, nil
}

func (s *ReportService) UserActivity(ctx context.Context, actor *model.Actor, requested *int64) (*model.UserActivityReport, error) {
	tid, _, err := s.scope(actor, requested)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.UserActivity(ctx, tid)
	if err != nil {
		return nil, err
	}
	out := &model.UserActivityReport{Users: make([]model.UserActivityRow, len(rows))}
	for i, u := range rows {
		name := strings.TrimSpace(u.FirstName + " " + u.LastName)
		if name == "" {
			name = u.Email
		}
		row := model.UserActivityRow{
			User:                name,
			Email:               u.Email,
			Role:                u.Role,
			ApplicationsCreated: u.Applications,
		}
		if u.LastLogin != nil {
			ts := u.LastLogin.Format("2006-01-02 15:04")
			row.LastLogin = &ts
		}
		out.Users[i] = row
		out.KPIs.TotalUsers++
		if u.IsActive {
			out.KPIs.ActiveUsers++
		}
		out.KPIs.TotalApplications += u.Applications
	}
	return out, nil
}
