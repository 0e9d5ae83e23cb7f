package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/lending-admin/internal/model"
	"github.com/nimasrn/lending-admin/internal/repository"
	"github.com/nimasrn/lending-admin/pkg/pg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T {
	return &v
}

type fixture struct {
	db      *pg.DB
	tenants *repository.TenantRepository
	users   *repository.UserRepository
	loans   *repository.LoanRepository
	audit   *AuditService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := repository.NewTestDB(t)
	users := repository.NewUserRepository(db)
	return &fixture{
		db:      db,
		tenants: repository.NewTenantRepository(db),
		users:   users,
		loans:   repository.NewLoanRepository(db),
		audit:   NewAuditService(users),
	}
}

func (f *fixture) tenant(t *testing.T, name string) *model.Tenant {
	t.Helper()
	tn := &model.Tenant{TenantUUID: uuid.NewString(), Name: name, TenantType: model.TenantNBFC, IsActive: true}
	require.NoError(t, f.tenants.Create(context.Background(), tn))
	return tn
}

func (f *fixture) branch(t *testing.T, tenantID int64, code string) *model.Branch {
	t.Helper()
	b := &model.Branch{TenantRef: model.TenantRef{TenantID: tenantID}, BranchCode: code, Name: "Branch " + code, IsActive: true}
	require.NoError(t, f.db.Write(context.Background()).Create(b).Error)
	return b
}

func (f *fixture) customer(t *testing.T, tenantID int64) *model.Customer {
	t.Helper()
	c := &model.Customer{TenantRef: model.TenantRef{TenantID: tenantID}, Name: "Asha Rao", KYCStatus: model.KYCPending}
	require.NoError(t, f.db.Write(context.Background()).Create(c).Error)
	return c
}

func (f *fixture) application(t *testing.T, tenantID int64, status model.ApplicationStatus, amount float64) *model.LoanApplication {
	t.Helper()
	c := f.customer(t, tenantID)
	app := &model.LoanApplication{
		TenantRef:     model.TenantRef{TenantID: tenantID},
		ApplicationID: uuid.NewString(),
		CustomerID:    c.ID,
		Amount:        amount,
		TenureMonths:  12,
		Status:        status,
	}
	require.NoError(t, f.db.Write(context.Background()).Create(app).Error)
	return app
}

func (f *fixture) account(t *testing.T, appID int64, outstanding float64, disbursedAt *time.Time) *model.LoanAccount {
	t.Helper()
	acc := &model.LoanAccount{
		AccountID:            uuid.NewString(),
		LoanApplicationID:    appID,
		OutstandingPrincipal: outstanding,
		DisbursedAt:          disbursedAt,
	}
	require.NoError(t, f.db.Write(context.Background()).Create(acc).Error)
	return acc
}

func (f *fixture) auditCount(t *testing.T, action model.ActionType, module string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Read(context.Background()).Model(&model.AuditLog{}).
		Where("action_type = ? AND module = ?", action, module).Count(&n).Error)
	return n
}

func master() *model.Actor {
	return &model.Actor{UserID: 1, Email: "root@lending.local", Role: model.RoleMasterAdmin}
}

func tenantAdmin(tenantID int64) *model.Actor {
	return &model.Actor{UserID: 2, Email: "admin@tenant.local", Role: model.RoleTenantAdmin, TenantID: ptr(tenantID)}
}

func key(id int64) string {
	return fmt.Sprint(id)
}

func assertInvalid(t *testing.T, err error, field string) {
	t.Helper()
	var ve *ValidationError
	require.True(t, errors.As(err, &ve), "expected validation error, got %v", err)
	if field != "" {
		assert.Contains(t, ve.Fields, field)
	}
}
