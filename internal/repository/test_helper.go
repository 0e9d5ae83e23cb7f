package repository

import (
	"testing"

	"github.com/nimasrn/lending-admin/internal/model"
	"github.com/nimasrn/lending-admin/pkg/pg"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Tables lists every row type the sqlite test databases are migrated with.
var Tables = []any{
	&model.Tenant{}, &model.Branch{}, &model.FinancialYear{}, &model.ReportingPeriod{},
	&model.Holiday{}, &model.Category{}, &model.TenantRuleConfig{},
	&UserEntity{}, &model.AuditLog{}, &model.LoginActivity{},
	&model.Lead{}, &model.Customer{}, &model.LeadActivity{},
	&model.LoanApplication{}, &model.KYCDetail{}, &model.CreditAssessment{},
	&model.LoanAccount{}, &model.Repayment{}, &model.Collection{},
	&model.Document{}, &model.Communication{}, &model.ComplianceCheck{}, &model.RiskFlag{},
	&model.APIIntegration{}, &model.WebhookLog{}, &model.Client{},
	&model.AdminLead{}, &model.ChargeMaster{}, &model.DocumentType{}, &model.LoanProduct{},
	&model.NotificationTemplate{}, &model.RoleMaster{},
	&model.Subscription{}, &model.Coupon{}, &model.Subscriber{},
	&model.EmploymentType{}, &model.OccupationType{},
	&model.Setting{}, &model.DashboardSnapshot{},
	&model.Report{}, &model.Analytics{},
}

// NewTestDB opens a migrated in-memory sqlite database behind pg.DB.
// A single connection keeps every query on the same memory database, so
// code under test must reach the db through the ctx it was given.
func NewTestDB(t testing.TB) *pg.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), pg.GormConfig())
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(Tables...))
	return pg.New(db, db)
}
