package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/lending-admin/internal/model"
	"github.com/nimasrn/lending-admin/pkg/pg"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T {
	return &v
}

func seedTenant(t *testing.T, db *pg.DB, name string) *model.Tenant {
	t.Helper()
	tn := &model.Tenant{
		TenantUUID: uuid.NewString(),
		Name:       name,
		TenantType: model.TenantNBFC,
		IsActive:   true,
	}
	require.NoError(t, db.Write(context.Background()).Create(tn).Error)
	return tn
}

func seedBranch(t *testing.T, db *pg.DB, tenantID int64, code, name string) *model.Branch {
	t.Helper()
	b := &model.Branch{
		TenantRef:  model.TenantRef{TenantID: tenantID},
		BranchCode: code,
		Name:       name,
		IsActive:   true,
	}
	require.NoError(t, db.Write(context.Background()).Create(b).Error)
	return b
}

func seedCustomer(t *testing.T, db *pg.DB, tenantID int64) *model.Customer {
	t.Helper()
	c := &model.Customer{
		TenantRef: model.TenantRef{TenantID: tenantID},
		Name:      "Ravi Kumar",
		KYCStatus: model.KYCPending,
	}
	require.NoError(t, db.Write(context.Background()).Create(c).Error)
	return c
}

var appSeq int

func seedApplication(t *testing.T, db *pg.DB, tenantID, customerID int64, amount float64, status model.ApplicationStatus) *model.LoanApplication {
	t.Helper()
	appSeq++
	app := &model.LoanApplication{
		TenantRef:     model.TenantRef{TenantID: tenantID},
		ApplicationID: fmt.Sprintf("APP-%04d", appSeq),
		CustomerID:    customerID,
		Amount:        amount,
		TenureMonths:  12,
		Status:        status,
	}
	require.NoError(t, db.Write(context.Background()).Create(app).Error)
	return app
}

func seedAccount(t *testing.T, db *pg.DB, appID int64, outstanding float64, disbursedAt *time.Time) *model.LoanAccount {
	t.Helper()
	acc := &model.LoanAccount{
		AccountID:            uuid.NewString(),
		LoanApplicationID:    appID,
		OutstandingPrincipal: outstanding,
		DisbursedAt:          disbursedAt,
	}
	require.NoError(t, db.Write(context.Background()).Create(acc).Error)
	return acc
}
