package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/lending-admin/internal/model"
	"github.com/nimasrn/lending-admin/internal/repository"
	"github.com/nimasrn/lending-admin/pkg/logger"
	"github.com/nimasrn/lending-admin/pkg/pg"
	"github.com/nimasrn/lending-admin/pkg/prom"
	"github.com/nimasrn/lending-admin/pkg/validate"
)

type LMSService struct {
	loans LoanRepository
	audit *AuditService
	now   func() time.Time

	Accounts    *Resource[model.LoanAccount]
	Repayments  *Resource[model.Repayment]
	Collections *Resource[model.Collection]
}

func NewLMSService(db *pg.DB, loans LoanRepository, audit *AuditService) *LMSService {
	s := &LMSService{
		loans: loans,
		audit: audit,
		now:   time.Now,
	}
	s.Accounts = NewResource(ResourceConfig[model.LoanAccount]{
		Name:     "Loan account",
		Module:   ModuleLMS,
		Store:    repository.NewStore[model.LoanAccount](db, repository.LoanAccountOptions()),
		Audit:    audit,
		Scoped:   true,
		ReadOnly: []string{"disbursed_at", "outstanding_principal"},
		BeforeCreate: func(ctx context.Context, actor *model.Actor, acc *model.LoanAccount) error {
			acc.AccountID = uuid.NewString()
			return checkApplication(ctx, loans, actor, acc.LoanApplicationID)
		},
		BeforeUpdate: func(ctx context.Context, actor *model.Actor, _, acc *model.LoanAccount) error {
			return checkApplication(ctx, loans, actor, acc.LoanApplicationID)
		},
	})
	// repayments are written through Repay only
	s.Repayments = NewResource(ResourceConfig[model.Repayment]{
		Name:   "Repayment",
		Store:  repository.NewStore[model.Repayment](db, repository.RepaymentOptions()),
		Scoped: true,
	})
	s.Collections = NewResource(ResourceConfig[model.Collection]{
		Name:   "Collection",
		Module: ModuleLMS,
		Store:  repository.NewStore[model.Collection](db, repository.CollectionOptions()),
		Audit:  audit,
		Scoped: true,
		BeforeCreate: func(ctx context.Context, actor *model.Actor, c *model.Collection) error {
			if c.CollectorID == nil {
				c.CollectorID = actor.UserRef()
			}
			if c.CollectedAt.IsZero() {
				c.CollectedAt = s.now()
			}
			return checkAccount(ctx, loans, actor, c.LoanAccountID)
		},
		BeforeUpdate: func(ctx context.Context, actor *model.Actor, _, c *model.Collection) error {
			return checkAccount(ctx, loans, actor, c.LoanAccountID)
		},
	})
	return s
}

// Disburse marks the account disbursed under a row lock. A second call fails
// without touching the account.
func (s *LMSService) Disburse(ctx context.Context, actor *model.Actor, key string, req model.DisburseRequest) (*model.LoanAccount, error) {
	if fields := validate.Struct(req); fields != nil {
		return nil, InvalidFields(fields)
	}
	acc, err := s.Accounts.Get(ctx, actor, key)
	if err != nil {
		return nil, err
	}
	at := s.now()
	if req.DisbursedAt != nil {
		at = *req.DisbursedAt
	}

	var out *model.LoanAccount
	err = s.loans.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.loans.Disburse(ctx, acc.ID, at, req.OutstandingPrincipal)
		if errors.Is(err, repository.ErrAlreadyDisbursed) {
			return Invalid(err.Error())
		}
		if err != nil {
			return storeError(err, "Loan account")
		}
		return s.audit.Record(ctx, actor, model.ActionApprove, ModuleLMS, "Disbursed loan account "+out.AccountID)
	})
	if err != nil {
		return nil, err
	}
	prom.IncLoansDisbursed()
	return out, nil
}

// Repay records a repayment and decrements the outstanding principal in one
// transaction.
func (s *LMSService) Repay(ctx context.Context, actor *model.Actor, body []byte) (*model.Repayment, error) {
	rep := &model.Repayment{}
	if err := decodeBody(body, rep); err != nil {
		return nil, err
	}
	rep.ID = 0
	if err := Check(rep); err != nil {
		return nil, err
	}
	if err := checkAccount(ctx, s.loans, actor, rep.LoanAccountID); err != nil {
		return nil, err
	}

	var acc *model.LoanAccount
	err := s.loans.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		acc, err = s.loans.Repay(ctx, rep)
		switch {
		case errors.Is(err, repository.ErrNotDisbursed), errors.Is(err, repository.ErrExceedsOutstanding):
			return Invalid(err.Error())
		case err != nil:
			return storeError(err, "Loan account")
		}
		return s.audit.Record(ctx, actor, model.ActionCreate, ModuleLMS,
			fmt.Sprintf("Repayment of %.2f on loan account %s", rep.Amount, acc.AccountID))
	})
	if err != nil {
		return nil, err
	}
	prom.AddRepaymentAmount(rep.Amount)
	logger.Debug("[lms] repayment recorded", "account", acc.ID, "outstanding", acc.OutstandingPrincipal)
	return rep, nil
}
