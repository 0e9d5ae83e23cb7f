package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nimasrn/lending-admin/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoanRepository_Disburse(t *testing.T) {
	db := NewTestDB(t)
	repo := NewLoanRepository(db)
	ctx := context.Background()

	tn := seedTenant(t, db, "Acme Finance")
	app := seedApplication(t, db, tn.ID, seedCustomer(t, db, tn.ID).ID, 50000, model.AppApproved)
	acc := seedAccount(t, db, app.ID, 0, nil)

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	got, err := repo.Disburse(ctx, acc.ID, at, ptr(50000.0))
	require.NoError(t, err)
	assert.True(t, got.Disbursed())
	assert.Equal(t, 50000.0, got.OutstandingPrincipal)

	var stored model.LoanApplication
	require.NoError(t, db.Read(ctx).First(&stored, app.ID).Error)
	assert.Equal(t, model.AppDisbursed, stored.Status)

	_, err = repo.Disburse(ctx, acc.ID, at, nil)
	assert.ErrorIs(t, err, ErrAlreadyDisbursed)

	_, err = repo.Disburse(ctx, 999, at, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoanRepository_Repay(t *testing.T) {
	db := NewTestDB(t)
	repo := NewLoanRepository(db)
	ctx := context.Background()

	tn := seedTenant(t, db, "Acme Finance")
	customer := seedCustomer(t, db, tn.ID)

	t.Run("account not disbursed", func(t *testing.T) {
		app := seedApplication(t, db, tn.ID, customer.ID, 1000, model.AppApproved)
		acc := seedAccount(t, db, app.ID, 1000, nil)

		_, err := repo.Repay(ctx, &model.Repayment{LoanAccountID: acc.ID, Amount: 100})
		assert.ErrorIs(t, err, ErrNotDisbursed)
	})

	t.Run("decrements outstanding", func(t *testing.T) {
		app := seedApplication(t, db, tn.ID, customer.ID, 1000, model.AppDisbursed)
		acc := seedAccount(t, db, app.ID, 1000, ptr(time.Now()))

		rep := &model.Repayment{LoanAccountID: acc.ID, Amount: 300, TransactionReference: "UTR-1"}
		got, err := repo.Repay(ctx, rep)
		require.NoError(t, err)
		assert.Equal(t, 700.0, got.OutstandingPrincipal)
		assert.NotZero(t, rep.ID)
		assert.False(t, rep.PaidAt.IsZero())

		var stored model.LoanAccount
		require.NoError(t, db.Read(ctx).First(&stored, acc.ID).Error)
		assert.Equal(t, 700.0, stored.OutstandingPrincipal)
	})

	t.Run("rejects more than outstanding", func(t *testing.T) {
		app := seedApplication(t, db, tn.ID, customer.ID, 1000, model.AppDisbursed)
		acc := seedAccount(t, db, app.ID, 200, ptr(time.Now()))

		_, err := repo.Repay(ctx, &model.Repayment{LoanAccountID: acc.ID, Amount: 200.01})
		assert.ErrorIs(t, err, ErrExceedsOutstanding)

		_, err = repo.Repay(ctx, &model.Repayment{LoanAccountID: acc.ID, Amount: 0})
		assert.ErrorIs(t, err, ErrExceedsOutstanding)

		var n int64
		require.NoError(t, db.Read(ctx).Model(&model.Repayment{}).Where("loan_account_id = ?", acc.ID).Count(&n).Error)
		assert.Zero(t, n)
	})

	t.Run("full repayment reaches zero", func(t *testing.T) {
		app := seedApplication(t, db, tn.ID, customer.ID, 1000, model.AppDisbursed)
		acc := seedAccount(t, db, app.ID, 200, ptr(time.Now()))

		got, err := repo.Repay(ctx, &model.Repayment{LoanAccountID: acc.ID, Amount: 200})
		require.NoError(t, err)
		assert.Zero(t, got.OutstandingPrincipal)
	})
}

func TestLoanRepository_ConcurrentRepayments(t *testing.T) {
	db := NewTestDB(t)
	repo := NewLoanRepository(db)
	ctx := context.Background()

	tn := seedTenant(t, db, "Acme Finance")
	app := seedApplication(t, db, tn.ID, seedCustomer(t, db, tn.ID).ID, 1000, model.AppDisbursed)
	acc := seedAccount(t, db, app.ID, 1000, ptr(time.Now()))

	// 15 attempts at 100 against 1000: exactly 10 fit.
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < 15; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Repay(ctx, &model.Repayment{LoanAccountID: acc.ID, Amount: 100})
			if err == nil {
				mu.Lock()
				success++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, ErrExceedsOutstanding)
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, success)
	var stored model.LoanAccount
	require.NoError(t, db.Read(ctx).First(&stored, acc.ID).Error)
	assert.Zero(t, stored.OutstandingPrincipal)
}

func TestLoanRepository_Tenants(t *testing.T) {
	db := NewTestDB(t)
	repo := NewLoanRepository(db)
	ctx := context.Background()

	tn := seedTenant(t, db, "Acme Finance")
	app := seedApplication(t, db, tn.ID, seedCustomer(t, db, tn.ID).ID, 1000, model.AppNew)
	acc := seedAccount(t, db, app.ID, 0, nil)

	got, err := repo.ApplicationTenant(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, tn.ID, got)

	got, err = repo.AccountTenant(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, tn.ID, got)

	_, err = repo.AccountTenant(ctx, 404)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.SetApplicationStatus(ctx, app.ID, model.AppSubmitted))
	assert.ErrorIs(t, repo.SetApplicationStatus(ctx, 404, model.AppSubmitted), ErrNotFound)
}
