package repository

import (
	"context"
	"time"

	"github.com/nimasrn/lending-admin/internal/model"
	"github.com/nimasrn/lending-admin/pkg/pg"
	"gorm.io/gorm"
)

// ReportRepository runs the read-only aggregates behind the dashboard and
// reports. Every query is narrowed to one tenant when tenantID is set.
type ReportRepository struct {
	*pg.DB
}

func NewReportRepository(db *pg.DB) *ReportRepository {
	return &ReportRepository{
		db,
	}
}

func forTenant(db *gorm.DB, column string, tenantID *int64) *gorm.DB {
	if tenantID == nil {
		return db
	}
	return db.Where(column+" = ?", *tenantID)
}

type Totals struct {
	Tenants     int64
	Branches    int64
	ActiveUsers int64
	Loans       int64
	Disbursed   float64
}

func (r *ReportRepository) Totals(ctx context.Context, tenantID *int64) (Totals, error) {
	var t Totals
	db := r.Read(ctx)

	if err := forTenant(db.Model(&model.Tenant{}), "id", tenantID).Count(&t.Tenants).Error; err != nil {
		return t, err
	}
	if err := forTenant(db.Model(&model.Branch{}), "tenant_id", tenantID).Count(&t.Branches).Error; err != nil {
		return t, err
	}
	err := forTenant(db.Model(&UserEntity{}), "tenant_id", tenantID).
		Where("is_active = ?", true).
		Count(&t.ActiveUsers).Error
	if err != nil {
		return t, err
	}
	if err := forTenant(db.Model(&model.LoanApplication{}), "tenant_id", tenantID).Count(&t.Loans).Error; err != nil {
		return t, err
	}
	err = forTenant(db.Model(&model.LoanApplication{}), "tenant_id", tenantID).
		Where("status = ?", model.AppDisbursed).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&t.Disbursed).Error
	return t, err
}

func (r *ReportRepository) StatusCounts(ctx context.Context, tenantID *int64) ([]model.StatusCount, error) {
	out := make([]model.StatusCount, 0)
	err := forTenant(r.Read(ctx).Model(&model.LoanApplication{}), "tenant_id", tenantID).
		Select("status, COUNT(id) AS count").
		Group("status").
		Order("status").
		Scan(&out).Error
	return out, err
}

// AmountAt is one money movement at a point in time, bucketed by the caller.
type AmountAt struct {
	Amount float64
	At     time.Time
}

// DisbursedSince returns DISBURSED applications updated at or after since.
func (r *ReportRepository) DisbursedSince(ctx context.Context, tenantID *int64, since time.Time) ([]AmountAt, error) {
	out := make([]AmountAt, 0)
	err := forTenant(r.Read(ctx).Model(&model.LoanApplication{}), "tenant_id", tenantID).
		Select("amount, updated_at AS at").
		Where("status = ? AND updated_at >= ?", model.AppDisbursed, since).
		Order("updated_at").
		Scan(&out).Error
	return out, err
}

// Repayments returns repayments paid at or after since, all of them when since is zero.
func (r *ReportRepository) Repayments(ctx context.Context, tenantID *int64, since time.Time) ([]AmountAt, error) {
	db := r.Read(ctx).
		Table("repayments AS rp").
		Select("rp.amount AS amount, rp.paid_at AS at").
		Joins("JOIN loan_accounts AS acc ON acc.id = rp.loan_account_id").
		Joins("JOIN loan_applications AS app ON app.id = acc.loan_application_id")
	if !since.IsZero() {
		db = db.Where("rp.paid_at >= ?", since)
	}
	out := make([]AmountAt, 0)
	err := forTenant(db, "app.tenant_id", tenantID).Order("rp.paid_at").Scan(&out).Error
	return out, err
}

type LeadActivityRow struct {
	Action    string
	LeadName  string
	CreatedAt time.Time
}

func (r *ReportRepository) RecentLeadActivities(ctx context.Context, tenantID *int64, limit int) ([]LeadActivityRow, error) {
	db := r.Read(ctx).
		Table("lead_activities AS la").
		Select("la.action AS action, COALESCE(l.name, 'System') AS lead_name, la.created_at AS created_at").
		Joins("LEFT JOIN leads AS l ON l.id = la.lead_id")
	out := make([]LeadActivityRow, 0)
	err := forTenant(db, "l.tenant_id", tenantID).
		Order("la.created_at DESC, la.id DESC").
		Limit(limit).
		Scan(&out).Error
	return out, err
}

// RecentAudit feeds the dashboard snapshot activity list.
func (r *ReportRepository) RecentAudit(ctx context.Context, limit int) ([]model.ActivityItem, error) {
	out := make([]model.ActivityItem, 0)
	err := r.Read(ctx).
		Table("audit_logs AS al").
		Select(`COALESCE(u.email, 'System') AS "user", al.action_type || ' ' || COALESCE(al.module, '') AS action,
			al.timestamp AS "time"`).
		Joins("LEFT JOIN users AS u ON u.id = al.user_id").
		Order("al.timestamp DESC, al.id DESC").
		Limit(limit).
		Scan(&out).Error
	return out, err
}

func (r *ReportRepository) UsersPerBranch(ctx context.Context, tenantID *int64) ([]model.LabelCount, error) {
	db := r.Read(ctx).
		Table("users AS u").
		Select("COALESCE(b.name, 'Head Office') AS label, COUNT(u.id) AS users").
		Joins("LEFT JOIN branches AS b ON b.id = u.branch_id")
	out := make([]model.LabelCount, 0)
	err := forTenant(db, "u.tenant_id", tenantID).
		Group("b.name").
		Order("label").
		Scan(&out).Error
	return out, err
}

type DisbursementRow struct {
	At     time.Time
	Branch string
	Amount float64
}

func (r *ReportRepository) Disbursements(ctx context.Context, f model.DisbursementFilter) ([]DisbursementRow, error) {
	db := r.Read(ctx).
		Table("loan_applications AS app").
		Select("app.updated_at AS at, COALESCE(b.name, 'Head Office') AS branch, app.amount AS amount").
		Joins("LEFT JOIN branches AS b ON b.id = app.branch_id").
		Where("app.status = ?", model.AppDisbursed)
	if f.StartDate != nil {
		db = db.Where("app.updated_at >= ?", f.StartDate.Time)
	}
	if f.EndDate != nil {
		db = db.Where("app.updated_at < ?", f.EndDate.AddDate(0, 0, 1))
	}
	if f.BranchID != nil {
		db = db.Where("app.branch_id = ?", *f.BranchID)
	}
	out := make([]DisbursementRow, 0)
	err := forTenant(db, "app.tenant_id", f.TenantID).Order("app.updated_at DESC").Scan(&out).Error
	return out, err
}

type BranchRef struct {
	ID   int64
	Name string
}

func (r *ReportRepository) Branches(ctx context.Context, tenantID *int64) ([]BranchRef, error) {
	out := make([]BranchRef, 0)
	err := forTenant(r.Read(ctx).Model(&model.Branch{}), "tenant_id", tenantID).
		Select("id, name").
		Order("name").
		Scan(&out).Error
	return out, err
}

// BranchStatus is the application count and amount for one branch and status.
// BranchID is nil for applications without a branch.
type BranchStatus struct {
	BranchID *int64
	Branch   string
	Status   model.ApplicationStatus
	Count    int64
	Amount   float64
}

func (r *ReportRepository) StatusByBranch(ctx context.Context, tenantID *int64) ([]BranchStatus, error) {
	db := r.Read(ctx).
		Table("loan_applications AS app").
		Select(`app.branch_id AS branch_id, COALESCE(b.name, 'Head Office') AS branch,
			app.status AS status, COUNT(app.id) AS count, COALESCE(SUM(app.amount), 0) AS amount`).
		Joins("LEFT JOIN branches AS b ON b.id = app.branch_id")
	out := make([]BranchStatus, 0)
	err := forTenant(db, "app.tenant_id", tenantID).
		Group("app.branch_id, b.name, app.status").
		Scan(&out).Error
	return out, err
}

// CollectionsByBranch sums repayments per branch of the owning application.
func (r *ReportRepository) CollectionsByBranch(ctx context.Context, tenantID *int64) (map[int64]float64, error) {
	var rows []struct {
		BranchID int64
		Amount   float64
	}
	db := r.Read(ctx).
		Table("repayments AS rp").
		Select("app.branch_id AS branch_id, COALESCE(SUM(rp.amount), 0) AS amount").
		Joins("JOIN loan_accounts AS acc ON acc.id = rp.loan_account_id").
		Joins("JOIN loan_applications AS app ON app.id = acc.loan_application_id").
		Where("app.branch_id IS NOT NULL")
	if err := forTenant(db, "app.tenant_id", tenantID).Group("app.branch_id").Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[int64]float64, len(rows))
	for _, row := range rows {
		out[row.BranchID] = row.Amount
	}
	return out, nil
}

type NPARow struct {
	Branch      string
	Category    string
	Outstanding float64
}

// NPAAccounts returns accounts opened at or before cutoff that still carry principal.
func (r *ReportRepository) NPAAccounts(ctx context.Context, tenantID *int64, cutoff time.Time) ([]NPARow, error) {
	db := r.Read(ctx).
		Table("loan_accounts AS acc").
		Select(`COALESCE(b.name, 'Head Office') AS branch, COALESCE(p.loan_type, 'Uncategorised') AS category,
			acc.outstanding_principal AS outstanding`).
		Joins("JOIN loan_applications AS app ON app.id = acc.loan_application_id").
		Joins("LEFT JOIN branches AS b ON b.id = app.branch_id").
		Joins("LEFT JOIN loan_products AS p ON p.id = app.loan_product_id").
		Where("acc.created_at <= ? AND acc.outstanding_principal > 0", cutoff)
	out := make([]NPARow, 0)
	err := forTenant(db, "app.tenant_id", tenantID).Order("acc.id").Scan(&out).Error
	return out, err
}

type UserActivity struct {
	ID           int64
	Email        string
	FirstName    string
	LastName     string
	Role         model.Role
	IsActive     bool
	LastLogin    *time.Time
	Applications int64
}

func (r *ReportRepository) UserActivity(ctx context.Context, tenantID *int64) ([]UserActivity, error) {
	db := r.Read(ctx).
		Table("users AS u").
		Select(`u.id AS id, u.email AS email, u.first_name AS first_name, u.last_name AS last_name,
			u.role AS role, u.is_active AS is_active, u.last_login AS last_login, COUNT(app.id) AS applications`).
		Joins("LEFT JOIN loan_applications AS app ON app.created_by_id = u.id")
	out := make([]UserActivity, 0)
	err := forTenant(db, "u.tenant_id", tenantID).
		Group("u.id, u.email, u.first_name, u.last_name, u.role, u.is_active, u.last_login").
		Order("u.id").
		Scan(&out).Error
	return out, err
}

// Window holds what was added between two instants.
type Window struct {
	Tenants   int64
	Users     int64
	Loans     int64
	Disbursed float64
}

// CreatedBetween counts rows created in [from, to). Disbursed sums the
// applications that reached DISBURSED in the window.
func (r *ReportRepository) CreatedBetween(ctx context.Context, from, to time.Time) (Window, error) {
	var w Window
	db := r.Read(ctx)
	if err := db.Model(&model.Tenant{}).Where("created_at >= ? AND created_at < ?", from, to).Count(&w.Tenants).Error; err != nil {
		return w, err
	}
	if err := db.Model(&UserEntity{}).Where("created_at >= ? AND created_at < ?", from, to).Count(&w.Users).Error; err != nil {
		return w, err
	}
	if err := db.Model(&model.LoanApplication{}).Where("created_at >= ? AND created_at < ?", from, to).Count(&w.Loans).Error; err != nil {
		return w, err
	}
	err := db.Model(&model.LoanApplication{}).
		Where("status = ? AND updated_at >= ? AND updated_at < ?", model.AppDisbursed, from, to).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&w.Disbursed).Error
	return w, err
}
