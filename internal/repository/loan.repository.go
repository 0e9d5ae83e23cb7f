package repository

import (
	"context"
	"time"

	"github.com/nimasrn/lending-admin/internal/model"
	"github.com/nimasrn/lending-admin/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LoanRepository struct {
	*pg.DB
}

func NewLoanRepository(db *pg.DB) *LoanRepository {
	return &LoanRepository{
		db,
	}
}

// ApplicationTenant returns the tenant owning loan application id.
func (r *LoanRepository) ApplicationTenant(ctx context.Context, id int64) (int64, error) {
	var app model.LoanApplication
	if err := r.Read(ctx).Select("id", "tenant_id").Where("id = ?", id).Take(&app).Error; err != nil {
		return 0, translate(err)
	}
	return app.TenantID, nil
}

// AccountTenant returns the tenant owning loan account id through its application.
func (r *LoanRepository) AccountTenant(ctx context.Context, id int64) (int64, error) {
	var row struct{ TenantID int64 }
	err := r.Read(ctx).
		Table("loan_accounts AS acc").
		Select("app.tenant_id AS tenant_id").
		Joins("JOIN loan_applications AS app ON app.id = acc.loan_application_id").
		Where("acc.id = ?", id).
		Take(&row).Error
	if err != nil {
		return 0, translate(err)
	}
	return row.TenantID, nil
}

func (r *LoanRepository) lockAccount(ctx context.Context, id int64) (*model.LoanAccount, error) {
	var acc model.LoanAccount
	err := r.Write(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Take(&acc).
		Error
	if err != nil {
		return nil, translate(err)
	}
	return &acc, nil
}

// Disburse marks the account disbursed and moves its application to DISBURSED.
// A nil principal keeps the stored outstanding principal.
func (r *LoanRepository) Disburse(ctx context.Context, accountID int64, at time.Time, principal *float64) (*model.LoanAccount, error) {
	var out *model.LoanAccount
	err := r.WithinTransaction(ctx, func(ctx context.Context) error {
		acc, err := r.lockAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if acc.Disbursed() {
			return ErrAlreadyDisbursed
		}

		acc.DisbursedAt = &at
		if principal != nil {
			acc.OutstandingPrincipal = *principal
		}
		err = r.Write(ctx).Model(acc).Updates(map[string]any{
			"disbursed_at":          at,
			"outstanding_principal": acc.OutstandingPrincipal,
		}).Error
		if err != nil {
			return err
		}

		err = r.Write(ctx).Model(&model.LoanApplication{}).
			Where("id = ?", acc.LoanApplicationID).
			Update("status", model.AppDisbursed).
			Error
		if err != nil {
			return err
		}
		out = acc
		return nil
	})
	return out, err
}

// Repay records rep and decrements the account's outstanding principal in
// the same transaction, holding the account row lock throughout.
func (r *LoanRepository) Repay(ctx context.Context, rep *model.Repayment) (*model.LoanAccount, error) {
	var out *model.LoanAccount
	err := r.WithinTransaction(ctx, func(ctx context.Context) error {
		acc, err := r.lockAccount(ctx, rep.LoanAccountID)
		if err != nil {
			return err
		}
		if !acc.Disbursed() {
			return ErrNotDisbursed
		}
		if rep.Amount <= 0 || rep.Amount > acc.OutstandingPrincipal {
			return ErrExceedsOutstanding
		}
		if rep.PaidAt.IsZero() {
			rep.PaidAt = time.Now()
		}

		if err := r.Write(ctx).Create(rep).Error; err != nil {
			return translate(err)
		}

		res := r.Write(ctx).Model(&model.LoanAccount{}).
			Where("id = ? AND outstanding_principal >= ?", acc.ID, rep.Amount).
			Update("outstanding_principal", gorm.Expr("outstanding_principal - ?", rep.Amount))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStale
		}

		acc.OutstandingPrincipal -= rep.Amount
		out = acc
		return nil
	})
	return out, err
}

func (r *LoanRepository) SetApplicationStatus(ctx context.Context, id int64, status model.ApplicationStatus) error {
	res := r.Write(ctx).Model(&model.LoanApplication{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
